package session

import "github.com/fluxpanel/panelbridge/internal/bridge"

// Page is the page global scope a coordinator is bound to.
type Page interface {
	bridge.Environment
	bridge.Exporter
}

// Bind builds a coordinator for page. Unless opts already carry them, the
// invoker is resolved by detecting the page's host and the registry exports
// its callback into the page's global scope. Call from the page loop.
func Bind(page Page, opts Options, bridgeOpts ...bridge.Option) (*Coordinator, error) {
	if opts.Logger != nil {
		bridgeOpts = append([]bridge.Option{bridge.WithLogger(opts.Logger)}, bridgeOpts...)
	}
	if opts.Invoker == nil {
		opts.Invoker = bridge.Resolve(page, bridgeOpts...)
	}
	if opts.Registry == nil {
		opts.Registry = bridge.NewRegistry(page, opts.Logger)
	}
	c, err := New(opts)
	if err != nil {
		return nil, err
	}
	c.logger.Printf("[Session] bound to %s host, callback %s", c.Kind(), c.callbackName)
	return c, nil
}
