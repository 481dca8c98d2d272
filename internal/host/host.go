// Package host provides Go implementations of the two native panel address
// hosts: the Android JavaScript interface object and the iOS WebKit message
// handlers. They are installed into a webview.Page and behave like the real
// hosts do from the page's point of view: every call is answered later, on a
// separate loop turn, by invoking the page's registered callback with the
// full address list.
package host

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/fluxpanel/panelbridge/internal/bridge"
	"github.com/fluxpanel/panelbridge/internal/panel"
	"github.com/fluxpanel/panelbridge/internal/webview"
)

// Store persists panel addresses on the native side.
type Store interface {
	ListPanelAddresses(ctx context.Context) (panel.AddressSet, error)
	SavePanelAddress(ctx context.Context, name, address string) error
	SetCurrentPanelAddress(ctx context.Context, name string) error
	DeletePanelAddress(ctx context.Context, name string) error
}

// Logger is an optional interface for logging host activity.
type Logger interface {
	Printf(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets a logger for the host.
func WithLogger(logger Logger) Option {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithContext sets the context passed to store calls.
func WithContext(ctx context.Context) Option {
	return func(h *Host) {
		if ctx != nil {
			h.ctx = ctx
		}
	}
}

// Call is one bridge method invocation received from the page.
type Call struct {
	Method string
	Args   []string
}

// Host is an installed native host.
type Host struct {
	kind   bridge.Kind
	page   *webview.Page
	store  Store
	logger Logger
	ctx    context.Context

	// callback is only touched on the page loop.
	callback string

	mu    sync.Mutex
	calls []Call
}

func newHost(kind bridge.Kind, page *webview.Page, store Store, opts []Option) (*Host, error) {
	if page == nil {
		return nil, fmt.Errorf("host: page is nil")
	}
	if store == nil {
		return nil, fmt.Errorf("host: store is nil")
	}
	h := &Host{
		kind:   kind,
		page:   page,
		store:  store,
		logger: nopLogger{},
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// InstallAndroid defines a global object named objectName (the bridge default
// when empty) whose methods take positional string arguments.
func InstallAndroid(page *webview.Page, store Store, objectName string, opts ...Option) (*Host, error) {
	if objectName == "" {
		objectName = bridge.DefaultAndroidObject
	}
	h, err := newHost(bridge.KindAndroid, page, store, opts)
	if err != nil {
		return nil, err
	}

	err = page.Exec(func(vm *goja.Runtime) error {
		obj := vm.NewObject()
		methods := map[string]func(args []string){
			bridge.MethodList:       h.getPanelAddresses,
			bridge.MethodSave:       h.savePanelAddress,
			bridge.MethodSetCurrent: h.setCurrentPanelAddress,
			bridge.MethodDelete:     h.deletePanelAddress,
		}
		for method, handle := range methods {
			if err := obj.Set(method, h.androidMethod(method, handle)); err != nil {
				return err
			}
		}
		return vm.Set(objectName, obj)
	})
	if err != nil {
		return nil, fmt.Errorf("host: install android object %s: %w", objectName, err)
	}
	h.logger.Printf("[Host] android interface installed as %s", objectName)
	return h, nil
}

// InstallIOS defines webkit.messageHandlers.<method>.postMessage for every
// bridge method. Messages are objects with callbackName, name and address
// fields.
func InstallIOS(page *webview.Page, store Store, opts ...Option) (*Host, error) {
	h, err := newHost(bridge.KindIOS, page, store, opts)
	if err != nil {
		return nil, err
	}

	err = page.Exec(func(vm *goja.Runtime) error {
		handlers := vm.NewObject()
		methods := map[string]struct {
			fields []string
			handle func(args []string)
		}{
			bridge.MethodList:       {[]string{"callbackName"}, h.getPanelAddresses},
			bridge.MethodSave:       {[]string{"name", "address"}, h.savePanelAddress},
			bridge.MethodSetCurrent: {[]string{"name"}, h.setCurrentPanelAddress},
			bridge.MethodDelete:     {[]string{"name"}, h.deletePanelAddress},
		}
		for method, m := range methods {
			handler := vm.NewObject()
			if err := handler.Set("postMessage", h.iosMethod(vm, method, m.fields, m.handle)); err != nil {
				return err
			}
			if err := handlers.Set(method, handler); err != nil {
				return err
			}
		}
		webkit := vm.NewObject()
		if err := webkit.Set("messageHandlers", handlers); err != nil {
			return err
		}
		return vm.Set("webkit", webkit)
	})
	if err != nil {
		return nil, fmt.Errorf("host: install webkit message handlers: %w", err)
	}
	h.logger.Printf("[Host] ios message handlers installed")
	return h, nil
}

// Kind reports which native convention the host implements.
func (h *Host) Kind() bridge.Kind {
	return h.kind
}

// Calls returns the bridge calls received so far.
func (h *Host) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Call, len(h.calls))
	copy(out, h.calls)
	return out
}

func (h *Host) androidMethod(method string, handle func([]string)) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		args := make([]string, len(call.Arguments))
		for i, v := range call.Arguments {
			args[i] = stringValue(v)
		}
		h.record(method, args)
		handle(args)
		return goja.Undefined()
	}
}

func (h *Host) iosMethod(vm *goja.Runtime, method string, fields []string, handle func([]string)) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		args := make([]string, len(fields))
		msg := call.Argument(0)
		if !goja.IsUndefined(msg) && !goja.IsNull(msg) {
			obj := msg.ToObject(vm)
			for i, field := range fields {
				args[i] = stringValue(obj.Get(field))
			}
		}
		h.record(method, args)
		handle(args)
		return goja.Undefined()
	}
}

func (h *Host) record(method string, args []string) {
	h.mu.Lock()
	h.calls = append(h.calls, Call{Method: method, Args: args})
	h.mu.Unlock()
}

func (h *Host) getPanelAddresses(args []string) {
	if name := arg(args, 0); name != "" {
		h.callback = name
	}
	h.scheduleDelivery()
}

func (h *Host) savePanelAddress(args []string) {
	name, address := arg(args, 0), arg(args, 1)
	if err := h.store.SavePanelAddress(h.ctx, name, address); err != nil {
		h.logger.Printf("[Host] save %s failed: %v", name, err)
	}
	h.scheduleDelivery()
}

func (h *Host) setCurrentPanelAddress(args []string) {
	name := arg(args, 0)
	if err := h.store.SetCurrentPanelAddress(h.ctx, name); err != nil {
		h.logger.Printf("[Host] set current %s ignored: %v", name, err)
	}
	h.scheduleDelivery()
}

func (h *Host) deletePanelAddress(args []string) {
	name := arg(args, 0)
	if err := h.store.DeletePanelAddress(h.ctx, name); err != nil {
		h.logger.Printf("[Host] delete %s ignored: %v", name, err)
	}
	h.scheduleDelivery()
}

func (h *Host) scheduleDelivery() {
	if err := h.page.Submit(h.deliver); err != nil {
		h.logger.Printf("[Host] schedule delivery: %v", err)
	}
}

// deliver runs on its own loop turn, after the call that scheduled it has
// returned to the page.
func (h *Host) deliver(vm *goja.Runtime) {
	if h.callback == "" {
		h.logger.Printf("[Host] no callback registered yet; delivery skipped")
		return
	}
	set, err := h.store.ListPanelAddresses(h.ctx)
	if err != nil {
		h.logger.Printf("[Host] list panel addresses: %v", err)
		return
	}

	var payload any
	switch h.kind {
	case bridge.KindAndroid:
		encoded, err := json.Marshal(set)
		if err != nil {
			h.logger.Printf("[Host] encode panel addresses: %v", err)
			return
		}
		payload = string(encoded)
	default:
		payload = toJSArray(vm, set)
	}

	if !h.page.HasFunction(h.callback) {
		h.logger.Printf("[Host] callback %s is not defined", h.callback)
		return
	}
	if err := h.page.Invoke([]string{h.callback}, payload); err != nil {
		h.logger.Printf("[Host] callback %s failed: %v", h.callback, err)
	}
}

func toJSArray(vm *goja.Runtime, set panel.AddressSet) goja.Value {
	items := make([]any, len(set))
	for i, a := range set {
		obj := vm.NewObject()
		_ = obj.Set("name", a.Name)
		_ = obj.Set("address", a.Address)
		_ = obj.Set("isCurrent", a.IsCurrent)
		items[i] = obj
	}
	return vm.NewArray(items...)
}

func stringValue(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
