// Package webview models the JavaScript global scope of a page running in a
// browser or in a native WebView. A Page owns a goja runtime and a single
// goroutine event loop; every touch of the runtime happens on that loop, so
// page code, native host code and bridge deliveries interleave one turn at a
// time exactly like they do in a real WebView.
package webview

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/dop251/goja"
)

// ErrClosed is returned when work is submitted to a closed page.
var ErrClosed = errors.New("webview: page closed")

// Logger is an optional interface for logging page events.
type Logger interface {
	Printf(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Option configures a Page.
type Option func(*Page)

// WithLogger sets a logger for the page.
func WithLogger(logger Logger) Option {
	return func(p *Page) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Page is a JS global scope driven by one event loop goroutine.
//
// Methods documented as loop-only (HasFunction, Invoke, Export, Runtime)
// must be called from a job running on the loop. Submit, Exec, RunScript
// and Close may be called from any goroutine.
type Page struct {
	vm     *goja.Runtime
	logger Logger

	mu     sync.Mutex
	queue  []func(*goja.Runtime)
	closed bool

	wake      chan struct{}
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a page with an empty global scope and starts its loop.
func New(opts ...Option) *Page {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	vm.Set("window", vm.GlobalObject())

	p := &Page{
		vm:     vm,
		logger: nopLogger{},
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	go p.loop()
	return p
}

// Submit queues fn to run on a later loop turn. It never blocks, so jobs may
// submit further jobs.
func (p *Page) Submit(fn func(vm *goja.Runtime)) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.queue = append(p.queue, fn)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Exec runs fn on the loop and waits for it. It must not be called from the
// loop itself.
func (p *Page) Exec(fn func(vm *goja.Runtime) error) error {
	result := make(chan error, 1)
	if err := p.Submit(func(vm *goja.Runtime) {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("webview: panic in exec: %v", r)
			}
		}()
		result <- fn(vm)
	}); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-p.done:
		// The loop may have finished the job just before stopping.
		select {
		case err := <-result:
			return err
		default:
			return ErrClosed
		}
	}
}

// RunScript evaluates page JavaScript on the loop.
func (p *Page) RunScript(name, src string) error {
	return p.Exec(func(vm *goja.Runtime) error {
		if _, err := vm.RunScript(name, src); err != nil {
			return fmt.Errorf("webview: run %s: %w", name, err)
		}
		return nil
	})
}

// Idle waits until every job queued so far, and every job those jobs queue,
// has run.
func (p *Page) Idle() error {
	for {
		if err := p.Exec(func(*goja.Runtime) error { return nil }); err != nil {
			return err
		}
		p.mu.Lock()
		pending := len(p.queue)
		p.mu.Unlock()
		if pending == 0 {
			return nil
		}
	}
}

// Close stops the loop. Queued jobs that have not started are discarded.
func (p *Page) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.queue = nil
		p.mu.Unlock()
		close(p.quit)
		<-p.done
	})
}

func (p *Page) loop() {
	defer close(p.done)
	for {
		select {
		case <-p.quit:
			return
		case <-p.wake:
		}
		for {
			job, ok := p.next()
			if !ok {
				break
			}
			p.run(job)
			select {
			case <-p.quit:
				return
			default:
			}
		}
	}
}

func (p *Page) next() (func(*goja.Runtime), bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return nil, false
	}
	job := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return job, true
}

func (p *Page) run(job func(*goja.Runtime)) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Printf("[WebView] recovered panic in loop job: %v\n%s", r, debug.Stack())
		}
	}()
	job(p.vm)
}
