package bridge

import "errors"

// ErrEmptyCallbackName is returned by Register for an empty name.
var ErrEmptyCallbackName = errors.New("bridge: callback name is empty")

// Handler consumes one host delivery.
type Handler func(payload any)

// Exporter publishes a named function on the page's global scope so the
// native host can reach it. The published function forwards its first
// argument to deliver.
type Exporter interface {
	Export(name string, deliver func(payload any)) error
}

// Registry is the result channel: a single named handler slot that the
// native host writes into. Registering overwrites the slot; there is no
// queue. Registry is not safe for concurrent use and must be driven from
// the page event loop.
type Registry struct {
	exporter Exporter
	logger   Logger

	exported map[string]struct{}

	name      string
	handler   Handler
	latest    any
	hasLatest bool
}

// NewRegistry creates a registry. A nil exporter keeps the channel purely
// in-process, which is what tests and the no-bridge mode use.
func NewRegistry(exporter Exporter, logger Logger) *Registry {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Registry{
		exporter: exporter,
		logger:   logger,
		exported: make(map[string]struct{}),
	}
}

// Register installs h under name, replacing any previous registration, and
// clears the latest delivery so reads report no data until the host calls
// back again.
func (r *Registry) Register(name string, h Handler) error {
	if name == "" {
		return ErrEmptyCallbackName
	}
	if r.exporter != nil {
		if _, ok := r.exported[name]; !ok {
			if err := r.exporter.Export(name, func(payload any) { r.Deliver(name, payload) }); err != nil {
				return err
			}
			r.exported[name] = struct{}{}
		}
	}
	r.name = name
	r.handler = h
	r.latest = nil
	r.hasLatest = false
	return nil
}

// Deliver hands payload to the live registration. Deliveries addressed to a
// name that is no longer registered are dropped and reported as false.
func (r *Registry) Deliver(name string, payload any) bool {
	if r.handler == nil || name != r.name {
		r.logger.Printf("[Bridge] dropping delivery for unregistered callback %q", name)
		return false
	}
	r.latest = payload
	r.hasLatest = true
	r.handler(payload)
	return true
}

// Latest returns the most recent payload delivered to the live registration.
func (r *Registry) Latest() (any, bool) {
	return r.latest, r.hasLatest
}

// Name returns the live callback name, or "" before the first registration.
func (r *Registry) Name() string {
	return r.name
}
