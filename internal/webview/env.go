package webview

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

// HasFunction reports whether the value at path, walked from the global
// object, is callable. Loop-only.
func (p *Page) HasFunction(path ...string) bool {
	_, fn, err := p.resolve(path)
	return err == nil && fn != nil
}

// Invoke calls the function at path with args converted to JS values. The
// receiver is the object holding the function. A JS exception is returned as
// an error. Loop-only.
func (p *Page) Invoke(path []string, args ...any) error {
	this, fn, err := p.resolve(path)
	if err != nil {
		return err
	}
	values := make([]goja.Value, len(args))
	for i, arg := range args {
		values[i] = p.vm.ToValue(arg)
	}
	if _, err := fn(this, values...); err != nil {
		return fmt.Errorf("webview: %s: %w", strings.Join(path, "."), err)
	}
	return nil
}

// Export installs a global function name that forwards its first argument,
// exported to a Go value, to deliver. An argument that cannot be exported
// (a getter throws while it is read) is forwarded as nil. Loop-only.
func (p *Page) Export(name string, deliver func(payload any)) error {
	if name == "" {
		return fmt.Errorf("webview: export: empty name")
	}
	return p.vm.Set(name, func(call goja.FunctionCall) goja.Value {
		var payload any
		if len(call.Arguments) > 0 {
			v, err := exportValue(call.Argument(0))
			if err != nil {
				p.logger.Printf("[WebView] %s: unreadable payload: %v", name, err)
			}
			payload = v
		}
		deliver(payload)
		return goja.Undefined()
	})
}

// exportValue converts v to a Go value, turning a JS exception raised by a
// property getter into an error.
func exportValue(v goja.Value) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			ex, ok := r.(*goja.Exception)
			if !ok {
				panic(r)
			}
			out, err = nil, ex
		}
	}()
	return v.Export(), nil
}

func (p *Page) resolve(path []string) (goja.Value, goja.Callable, error) {
	if len(path) == 0 {
		return nil, nil, fmt.Errorf("webview: empty path")
	}

	var this goja.Value = p.vm.GlobalObject()
	current := this
	for i, segment := range path {
		if !isObjectLike(current) {
			return nil, nil, fmt.Errorf("webview: %s is not an object", strings.Join(path[:i], "."))
		}
		this = current
		current = current.ToObject(p.vm).Get(segment)
	}

	if !isObjectLike(current) {
		return nil, nil, fmt.Errorf("webview: %s is not a function", strings.Join(path, "."))
	}
	fn, ok := goja.AssertFunction(current)
	if !ok {
		return nil, nil, fmt.Errorf("webview: %s is not a function", strings.Join(path, "."))
	}
	return this, fn, nil
}

func isObjectLike(v goja.Value) bool {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return false
	}
	_, ok := v.(*goja.Object)
	return ok
}
