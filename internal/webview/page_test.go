package webview

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/dop251/goja"
)

func newTestPage(t *testing.T) *Page {
	t.Helper()
	p := New()
	t.Cleanup(p.Close)
	return p
}

func TestHasFunctionWalksGlobals(t *testing.T) {
	p := newTestPage(t)

	if err := p.RunScript("setup.js", `
		var AndroidBridge = { getPanelAddresses: function(cb) {} , label: "x" };
		window.webkit = { messageHandlers: { getPanelAddresses: { postMessage: function(m) {} } } };
	`); err != nil {
		t.Fatalf("RunScript: %v", err)
	}

	tests := []struct {
		path []string
		want bool
	}{
		{[]string{"AndroidBridge", "getPanelAddresses"}, true},
		{[]string{"AndroidBridge", "label"}, false},
		{[]string{"AndroidBridge", "missing"}, false},
		{[]string{"Missing", "getPanelAddresses"}, false},
		{[]string{"webkit", "messageHandlers", "getPanelAddresses", "postMessage"}, true},
		{[]string{"webkit", "messageHandlers", "savePanelAddress", "postMessage"}, false},
		{[]string{"AndroidBridge", "label", "length"}, false},
		{nil, false},
	}

	for _, tc := range tests {
		var got bool
		if err := p.Exec(func(*goja.Runtime) error {
			got = p.HasFunction(tc.path...)
			return nil
		}); err != nil {
			t.Fatalf("Exec: %v", err)
		}
		if got != tc.want {
			t.Errorf("HasFunction(%v) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestInvokeUsesReceiverAndConvertsArgs(t *testing.T) {
	p := newTestPage(t)

	if err := p.RunScript("setup.js", `
		var seen = [];
		var Host = {
			prefix: "host:",
			save: function(name, addr) { seen.push(this.prefix + name + "=" + addr); },
			post: function(msg) { seen.push(msg.name + "|" + msg.address); },
			fail: function() { throw new Error("nope"); }
		};
	`); err != nil {
		t.Fatalf("RunScript: %v", err)
	}

	var seen []string
	err := p.Exec(func(vm *goja.Runtime) error {
		if err := p.Invoke([]string{"Host", "save"}, "home", "http://localhost:3000"); err != nil {
			return err
		}
		if err := p.Invoke([]string{"Host", "post"}, map[string]any{"name": "lab", "address": "http://10.0.0.2"}); err != nil {
			return err
		}
		if err := vm.ExportTo(vm.Get("seen"), &seen); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}

	want := []string{"host:home=http://localhost:3000", "lab|http://10.0.0.2"}
	if len(seen) != len(want) || seen[0] != want[0] || seen[1] != want[1] {
		t.Fatalf("seen = %v, want %v", seen, want)
	}

	err = p.Exec(func(*goja.Runtime) error {
		return p.Invoke([]string{"Host", "fail"})
	})
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Fatalf("Invoke(fail) = %v, want JS exception", err)
	}

	err = p.Exec(func(*goja.Runtime) error {
		return p.Invoke([]string{"Host", "prefix"})
	})
	if err == nil || !strings.Contains(err.Error(), "not a function") {
		t.Fatalf("Invoke(prefix) = %v, want not a function", err)
	}
}

func TestExportForwardsFirstArgument(t *testing.T) {
	p := newTestPage(t)

	var got []any
	if err := p.Exec(func(*goja.Runtime) error {
		return p.Export("__panelCallback", func(payload any) { got = append(got, payload) })
	}); err != nil {
		t.Fatalf("Export: %v", err)
	}

	if err := p.RunScript("deliver.js", `
		__panelCallback('[{"name":"a","address":"http://a.example.com"}]');
		__panelCallback([{name: "b", address: "http://b.example.com", isCurrent: true}]);
		__panelCallback();
	`); err != nil {
		t.Fatalf("RunScript: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("deliveries = %d, want 3", len(got))
	}
	if s, ok := got[0].(string); !ok || !strings.HasPrefix(s, "[{") {
		t.Errorf("first delivery = %#v, want JSON string", got[0])
	}
	if arr, ok := got[1].([]any); !ok || len(arr) != 1 {
		t.Errorf("second delivery = %#v, want exported array", got[1])
	}
	if got[2] != nil {
		t.Errorf("third delivery = %#v, want nil", got[2])
	}

	if err := p.Exec(func(*goja.Runtime) error { return p.Export("", func(any) {}) }); err == nil {
		t.Fatal("expected error for empty export name")
	}
}

func TestExportForwardsNilForThrowingGetter(t *testing.T) {
	p := newTestPage(t)

	var got []any
	if err := p.Exec(func(*goja.Runtime) error {
		return p.Export("__panelCallback", func(payload any) { got = append(got, payload) })
	}); err != nil {
		t.Fatalf("Export: %v", err)
	}

	if err := p.RunScript("deliver.js", `
		var threw = false;
		try {
			__panelCallback([{ get name() { throw new Error("boom"); }, address: "http://a.example.com" }]);
		} catch (e) {
			threw = true;
		}
	`); err != nil {
		t.Fatalf("RunScript: %v", err)
	}

	if len(got) != 1 || got[0] != nil {
		t.Fatalf("deliveries = %#v, want one nil payload", got)
	}
	var threw any
	if err := p.Exec(func(vm *goja.Runtime) error {
		threw = vm.Get("threw").Export()
		return nil
	}); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if threw != false {
		t.Fatal("getter exception leaked back into the caller")
	}
}

func TestSubmitRunsJobsInOrderOnLaterTurns(t *testing.T) {
	p := newTestPage(t)

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	// Queue both jobs from one loop turn so the nested job lands behind them.
	if err := p.Exec(func(*goja.Runtime) error {
		if err := p.Submit(func(*goja.Runtime) {
			record("first")
			_ = p.Submit(func(*goja.Runtime) { record("nested") })
			record("first-end")
		}); err != nil {
			return err
		}
		return p.Submit(func(*goja.Runtime) { record("second") })
	}); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if err := p.Idle(); err != nil {
		t.Fatalf("Idle: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"first", "first-end", "second", "nested"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

func TestPanicInJobDoesNotStopLoop(t *testing.T) {
	p := newTestPage(t)

	if err := p.Exec(func(*goja.Runtime) error { panic("boom") }); err == nil {
		t.Fatal("expected error from panicking Exec")
	}
	_ = p.Submit(func(*goja.Runtime) { panic("boom again") })
	if err := p.Exec(func(*goja.Runtime) error { return nil }); err != nil {
		t.Fatalf("loop stopped after panic: %v", err)
	}
}

func TestClosedPageRejectsWork(t *testing.T) {
	p := New()
	p.Close()
	p.Close()

	if err := p.Submit(func(*goja.Runtime) {}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Submit after close = %v, want ErrClosed", err)
	}
	if err := p.Exec(func(*goja.Runtime) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Fatalf("Exec after close = %v, want ErrClosed", err)
	}
}

func TestRunScriptSyntaxError(t *testing.T) {
	p := newTestPage(t)
	if err := p.RunScript("bad.js", "function ("); err == nil {
		t.Fatal("expected syntax error")
	}
}
