package session

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fluxpanel/panelbridge/internal/bridge"
	"github.com/fluxpanel/panelbridge/internal/panel"
	"github.com/fluxpanel/panelbridge/internal/validate"
)

// fakeInvoker records bridge calls without delivering anything.
type fakeInvoker struct {
	kind  bridge.Kind
	calls []string
}

func (f *fakeInvoker) Kind() bridge.Kind { return f.kind }

func (f *fakeInvoker) RequestList(cb string) {
	f.calls = append(f.calls, "list:"+cb)
}

func (f *fakeInvoker) Save(name, address string) {
	f.calls = append(f.calls, "save:"+name+"="+address)
}

func (f *fakeInvoker) SetCurrent(name string) {
	f.calls = append(f.calls, "current:"+name)
}

func (f *fakeInvoker) Delete(name string) {
	f.calls = append(f.calls, "delete:"+name)
}

type countingClient struct {
	calls int
}

func (c *countingClient) ReinitializeBaseURL() { c.calls++ }

type captureLogger struct {
	lines []string
}

func (l *captureLogger) Printf(format string, v ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
}

type harness struct {
	coord    *Coordinator
	invoker  *fakeInvoker
	registry *bridge.Registry
	client   *countingClient
	logger   *captureLogger
	updates  []panel.AddressSet
}

func newHarness(t *testing.T, kind bridge.Kind, policy DuplicatePolicy) *harness {
	t.Helper()
	h := &harness{
		invoker: &fakeInvoker{kind: kind},
		client:  &countingClient{},
		logger:  &captureLogger{},
	}
	h.registry = bridge.NewRegistry(nil, h.logger)
	coord, err := New(Options{
		Invoker:         h.invoker,
		Registry:        h.registry,
		Client:          h.client,
		CallbackName:    "__cb",
		DuplicatePolicy: policy,
		Logger:          h.logger,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	coord.Subscribe(func(_ State, set panel.AddressSet) {
		h.updates = append(h.updates, set)
	})
	h.coord = coord
	return h
}

func (h *harness) deliver(t *testing.T, payload any) {
	t.Helper()
	if !h.registry.Deliver(h.coord.CallbackName(), payload) {
		t.Fatalf("delivery to %s was dropped", h.coord.CallbackName())
	}
}

func TestNewRequiresInvoker(t *testing.T) {
	if _, err := New(Options{}); !errors.Is(err, ErrNoInvoker) {
		t.Fatalf("New without invoker = %v, want ErrNoInvoker", err)
	}
}

func TestGeneratedCallbackNameIsIdentifier(t *testing.T) {
	coord, err := New(Options{Invoker: &fakeInvoker{kind: bridge.KindAndroid}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	name := coord.CallbackName()
	if !strings.HasPrefix(name, DefaultCallbackPrefix) || strings.Contains(name, "-") {
		t.Fatalf("CallbackName = %q", name)
	}
}

func TestLoadAwaitsDelivery(t *testing.T) {
	h := newHarness(t, bridge.KindAndroid, DuplicateDeferToHost)

	if err := h.coord.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h.coord.State() != StateAwaitingList {
		t.Fatalf("state = %s, want awaiting-list", h.coord.State())
	}
	if _, ok := h.registry.Latest(); ok {
		t.Fatal("registry reported data before delivery")
	}
	if h.coord.Loaded() {
		t.Fatal("Loaded before delivery")
	}

	h.deliver(t, `[{"name":"home","address":"http://192.168.1.100:3000","isCurrent":true}]`)

	if h.coord.State() != StateIdle {
		t.Fatalf("state after delivery = %s, want idle", h.coord.State())
	}
	cur, ok := h.coord.Current()
	if !ok || cur.Name != "home" {
		t.Fatalf("Current = %+v, %v", cur, ok)
	}
	if addr, ok := h.coord.CurrentAddress(); !ok || addr != "http://192.168.1.100:3000" {
		t.Fatalf("CurrentAddress = %q, %v", addr, ok)
	}
	if len(h.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(h.updates))
	}
	// First delivery establishes a current address.
	if h.client.calls != 1 {
		t.Fatalf("reinit calls = %d, want 1", h.client.calls)
	}
}

func TestLoadWithoutHostResolvesEmpty(t *testing.T) {
	h := newHarness(t, bridge.KindNone, DuplicateDeferToHost)

	if err := h.coord.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h.coord.State() != StateIdle {
		t.Fatalf("state = %s, want idle", h.coord.State())
	}
	if len(h.coord.Addresses()) != 0 || !h.coord.Loaded() {
		t.Fatalf("addresses = %+v loaded=%v", h.coord.Addresses(), h.coord.Loaded())
	}
	if len(h.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(h.updates))
	}
	if len(h.invoker.calls) != 0 || h.registry.Name() != "" {
		t.Fatalf("no-host load touched bridge: calls=%v registry=%q", h.invoker.calls, h.registry.Name())
	}
}

func TestMutationsWithoutHostAreNoops(t *testing.T) {
	h := newHarness(t, bridge.KindNone, DuplicateDeferToHost)
	_ = h.coord.Load()
	before := h.coord.Addresses()

	if err := h.coord.Add("home", "http://192.168.1.100:3000"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := h.coord.Switch("home"); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if err := h.coord.Delete("home"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if len(h.coord.Addresses()) != len(before) {
		t.Fatalf("addresses changed: %+v", h.coord.Addresses())
	}
	if h.coord.State() != StateIdle {
		t.Fatalf("state = %s, want idle", h.coord.State())
	}
	if h.client.calls != 0 {
		t.Fatalf("reinit calls = %d, want 0", h.client.calls)
	}
}

func TestAddRejectsInvalidAddressBeforeBridge(t *testing.T) {
	h := newHarness(t, bridge.KindAndroid, DuplicateDeferToHost)

	err := h.coord.Add("bad", "ftp://example.com")
	if !validate.IsValidationError(err) {
		t.Fatalf("Add = %v, want ValidationError", err)
	}
	if len(h.invoker.calls) != 0 {
		t.Fatalf("invalid address reached bridge: %v", h.invoker.calls)
	}
	if h.coord.State() != StateIdle {
		t.Fatalf("state = %s, want idle", h.coord.State())
	}
}

func TestEmptyNameRejected(t *testing.T) {
	h := newHarness(t, bridge.KindAndroid, DuplicateDeferToHost)

	for name, fn := range map[string]func() error{
		"add":    func() error { return h.coord.Add("", "http://localhost:3000") },
		"switch": func() error { return h.coord.Switch("") },
		"delete": func() error { return h.coord.Delete("") },
	} {
		if err := fn(); !errors.Is(err, ErrEmptyName) {
			t.Errorf("%s with empty name = %v, want ErrEmptyName", name, err)
		}
	}
	if len(h.invoker.calls) != 0 {
		t.Fatalf("bridge called: %v", h.invoker.calls)
	}
}

func TestDuplicatePolicies(t *testing.T) {
	existing := `[{"name":"home","address":"http://192.168.1.100:3000","isCurrent":true}]`

	t.Run("defer to host", func(t *testing.T) {
		h := newHarness(t, bridge.KindAndroid, DuplicateDeferToHost)
		_ = h.coord.Load()
		h.deliver(t, existing)

		if err := h.coord.Add("home", "http://192.168.1.200:3000"); err != nil {
			t.Fatalf("Add duplicate = %v, want nil", err)
		}
		last := h.invoker.calls[len(h.invoker.calls)-1]
		if last != "save:home=http://192.168.1.200:3000" {
			t.Fatalf("last call = %q", last)
		}
	})

	t.Run("reject", func(t *testing.T) {
		h := newHarness(t, bridge.KindAndroid, DuplicateReject)
		_ = h.coord.Load()
		h.deliver(t, existing)
		calls := len(h.invoker.calls)

		err := h.coord.Add("home", "http://192.168.1.200:3000")
		if !IsDuplicateName(err) {
			t.Fatalf("Add duplicate = %v, want DuplicateNameError", err)
		}
		if len(h.invoker.calls) != calls {
			t.Fatalf("duplicate reached bridge: %v", h.invoker.calls)
		}
		if err := h.coord.Add("office", "https://panel.example.com"); err != nil {
			t.Fatalf("Add new name: %v", err)
		}
	})
}

func TestParseDuplicatePolicy(t *testing.T) {
	for in, want := range map[string]DuplicatePolicy{
		"":       DuplicateDeferToHost,
		"host":   DuplicateDeferToHost,
		"reject": DuplicateReject,
		"REJECT": DuplicateReject,
	} {
		got, err := ParseDuplicatePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseDuplicatePolicy(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseDuplicatePolicy("merge"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestSwitchReinitializesExactlyOnce(t *testing.T) {
	h := newHarness(t, bridge.KindAndroid, DuplicateDeferToHost)
	_ = h.coord.Load()
	h.deliver(t, `[{"name":"a","address":"http://a.example.com","isCurrent":true},{"name":"b","address":"http://b.example.com"}]`)
	h.client.calls = 0

	if err := h.coord.Switch("b"); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if h.coord.State() != StateAwaitingMutation {
		t.Fatalf("state = %s, want awaiting-mutation", h.coord.State())
	}
	if last := h.invoker.calls[len(h.invoker.calls)-1]; last != "current:b" {
		t.Fatalf("last call = %q", last)
	}

	switched := `[{"name":"a","address":"http://a.example.com"},{"name":"b","address":"http://b.example.com","isCurrent":true}]`
	h.deliver(t, switched)

	current := 0
	for _, a := range h.coord.Addresses() {
		if a.IsCurrent {
			current++
		}
	}
	if current != 1 {
		t.Fatalf("current entries = %d, want 1", current)
	}
	if h.client.calls != 1 {
		t.Fatalf("reinit calls = %d, want 1", h.client.calls)
	}

	// A repeated delivery of the same state re-renders but does not reinit.
	h.deliver(t, switched)
	if h.client.calls != 1 {
		t.Fatalf("reinit calls after repeat = %d, want 1", h.client.calls)
	}
	if len(h.updates) != 3 {
		t.Fatalf("updates = %d, want 3", len(h.updates))
	}
}

func TestDeleteCurrentReinitializes(t *testing.T) {
	h := newHarness(t, bridge.KindIOS, DuplicateDeferToHost)
	_ = h.coord.Load()
	h.deliver(t, `[{"name":"a","address":"http://a.example.com","isCurrent":true}]`)
	h.client.calls = 0

	if err := h.coord.Delete("a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	h.deliver(t, `[]`)

	if _, ok := h.coord.Current(); ok {
		t.Fatal("current entry survived delete")
	}
	if h.client.calls != 1 {
		t.Fatalf("reinit calls = %d, want 1", h.client.calls)
	}
}

func TestDeleteNonCurrentStillReinitializesOnce(t *testing.T) {
	h := newHarness(t, bridge.KindAndroid, DuplicateDeferToHost)
	_ = h.coord.Load()
	h.deliver(t, `[{"name":"a","address":"http://a.example.com","isCurrent":true},{"name":"b","address":"http://b.example.com"}]`)
	h.client.calls = 0

	_ = h.coord.Delete("b")
	h.deliver(t, `[{"name":"a","address":"http://a.example.com","isCurrent":true}]`)
	if h.client.calls != 1 {
		t.Fatalf("reinit calls = %d, want 1", h.client.calls)
	}
}

func TestMalformedDeliveryTreatedAsEmpty(t *testing.T) {
	h := newHarness(t, bridge.KindAndroid, DuplicateDeferToHost)
	_ = h.coord.Load()
	h.deliver(t, `[{"name":"a","address":"http://a.example.com","isCurrent":true}]`)

	for _, payload := range []any{"garbage", nil, 17, map[string]any{"name": "x"}} {
		h.deliver(t, payload)
		if len(h.coord.Addresses()) != 0 {
			t.Fatalf("payload %v: addresses = %+v, want empty", payload, h.coord.Addresses())
		}
		if h.coord.State() != StateIdle {
			t.Fatalf("payload %v: state = %s", payload, h.coord.State())
		}
	}

	found := false
	for _, line := range h.logger.lines {
		if strings.Contains(line, "malformed delivery") {
			found = true
		}
	}
	if !found {
		t.Fatalf("malformed delivery not logged: %v", h.logger.lines)
	}
}

func TestReRegisterBeforeDeliveryYieldsSingleUpdate(t *testing.T) {
	h := newHarness(t, bridge.KindAndroid, DuplicateDeferToHost)

	_ = h.coord.Load()
	_ = h.coord.Load()
	if got := len(h.invoker.calls); got != 2 {
		t.Fatalf("list requests = %d, want 2", got)
	}

	h.deliver(t, `[{"name":"a","address":"http://a.example.com"}]`)
	if len(h.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(h.updates))
	}
	if h.coord.Deliveries() != 1 {
		t.Fatalf("deliveries = %d, want 1", h.coord.Deliveries())
	}
}

func TestMultipleDeliveriesLastWriteWins(t *testing.T) {
	h := newHarness(t, bridge.KindAndroid, DuplicateDeferToHost)
	_ = h.coord.Load()

	h.deliver(t, `[{"name":"a","address":"http://a.example.com"}]`)
	h.deliver(t, `[{"name":"b","address":"http://b.example.com"},{"name":"c","address":"http://c.example.com"}]`)

	if got := h.coord.Addresses().Names(); strings.Join(got, ",") != "b,c" {
		t.Fatalf("names = %v, want b,c", got)
	}
	if len(h.updates) != 2 {
		t.Fatalf("updates = %d, want 2", len(h.updates))
	}
}

func TestMutationBeforeLoadRequestsList(t *testing.T) {
	h := newHarness(t, bridge.KindAndroid, DuplicateDeferToHost)

	if err := h.coord.Add("home", "http://192.168.1.100:3000"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	want := []string{"save:home=http://192.168.1.100:3000", "list:__cb"}
	if strings.Join(h.invoker.calls, "|") != strings.Join(want, "|") {
		t.Fatalf("calls = %v, want %v", h.invoker.calls, want)
	}

	_ = h.coord.Switch("home")
	if last := h.invoker.calls[len(h.invoker.calls)-1]; last != "current:home" {
		t.Fatalf("list requested twice: %v", h.invoker.calls)
	}
}

func TestAddressesReturnsCopy(t *testing.T) {
	h := newHarness(t, bridge.KindAndroid, DuplicateDeferToHost)
	_ = h.coord.Load()
	h.deliver(t, `[{"name":"a","address":"http://a.example.com"}]`)

	got := h.coord.Addresses()
	got[0].Name = "mutated"
	if h.coord.Addresses()[0].Name != "a" {
		t.Fatal("Addresses exposes internal state")
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateIdle:             "idle",
		StateAwaitingList:     "awaiting-list",
		StateAwaitingMutation: "awaiting-mutation",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
