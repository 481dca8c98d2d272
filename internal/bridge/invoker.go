package bridge

// Invoker dispatches panel address operations to a native host. Results are
// never returned directly; the host re-delivers the full list through the
// callback named in RequestList.
type Invoker interface {
	Kind() Kind
	RequestList(callbackName string)
	Save(name, address string)
	SetCurrent(name string)
	Delete(name string)
}

type options struct {
	androidObject string
	logger        Logger
}

// Option configures Resolve.
type Option func(*options)

// WithAndroidObject overrides the global name of the Android interface object.
func WithAndroidObject(name string) Option {
	return func(o *options) {
		if name != "" {
			o.androidObject = name
		}
	}
}

// WithLogger sets a logger for host invocation failures.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Resolve detects the host convention in env and returns the matching
// Invoker. Callers resolve once per session.
func Resolve(env Environment, opts ...Option) Invoker {
	o := options{androidObject: DefaultAndroidObject, logger: nopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}

	switch DetectWithObject(env, o.androidObject) {
	case KindAndroid:
		return &androidInvoker{env: env, object: o.androidObject, logger: o.logger}
	case KindIOS:
		return &iosInvoker{env: env, logger: o.logger}
	default:
		return NoopInvoker{}
	}
}

// androidInvoker calls methods on the host object with positional arguments.
type androidInvoker struct {
	env    Environment
	object string
	logger Logger
}

func (a *androidInvoker) Kind() Kind { return KindAndroid }

func (a *androidInvoker) RequestList(callbackName string) {
	a.call(MethodList, callbackName)
}

func (a *androidInvoker) Save(name, address string) {
	a.call(MethodSave, name, address)
}

func (a *androidInvoker) SetCurrent(name string) {
	a.call(MethodSetCurrent, name)
}

func (a *androidInvoker) Delete(name string) {
	a.call(MethodDelete, name)
}

func (a *androidInvoker) call(method string, args ...any) {
	if err := a.env.Invoke([]string{a.object, method}, args...); err != nil {
		a.logger.Printf("[Bridge] android %s.%s failed: %v", a.object, method, err)
	}
}

// iosInvoker posts a structured message to the handler named after the method.
type iosInvoker struct {
	env    Environment
	logger Logger
}

func (i *iosInvoker) Kind() Kind { return KindIOS }

func (i *iosInvoker) RequestList(callbackName string) {
	i.post(MethodList, map[string]any{"callbackName": callbackName})
}

func (i *iosInvoker) Save(name, address string) {
	i.post(MethodSave, map[string]any{"name": name, "address": address})
}

func (i *iosInvoker) SetCurrent(name string) {
	i.post(MethodSetCurrent, map[string]any{"name": name})
}

func (i *iosInvoker) Delete(name string) {
	i.post(MethodDelete, map[string]any{"name": name})
}

func (i *iosInvoker) post(method string, payload map[string]any) {
	if err := i.env.Invoke(iosHandlerPath(method), payload); err != nil {
		i.logger.Printf("[Bridge] ios messageHandlers.%s failed: %v", method, err)
	}
}

// NoopInvoker is used when no native host is present. Panel addresses are
// not persisted in the browser, so every operation does nothing.
type NoopInvoker struct{}

func (NoopInvoker) Kind() Kind { return KindNone }

func (NoopInvoker) RequestList(string) {}

func (NoopInvoker) Save(string, string) {}

func (NoopInvoker) SetCurrent(string) {}

func (NoopInvoker) Delete(string) {}
