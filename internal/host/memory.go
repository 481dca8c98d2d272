package host

import (
	"context"
	"fmt"
	"sync"

	"github.com/fluxpanel/panelbridge/internal/panel"
)

// UnknownNameError is returned by MemoryStore for names it does not hold.
type UnknownNameError struct {
	Name string
}

func (e UnknownNameError) Error() string {
	return fmt.Sprintf("host: unknown panel address %q", e.Name)
}

// MemoryStore is an in-memory Store with the same semantics as the sqlite
// store: insertion order is kept, the first saved entry becomes current and
// deleting the current entry leaves none current.
type MemoryStore struct {
	mu  sync.Mutex
	set panel.AddressSet
}

// NewMemoryStore returns a store seeded with initial.
func NewMemoryStore(initial ...panel.Address) *MemoryStore {
	return &MemoryStore{set: panel.AddressSet(initial).Clone()}
}

func (m *MemoryStore) ListPanelAddresses(context.Context) (panel.AddressSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.set.Clone()
	if out == nil {
		out = panel.AddressSet{}
	}
	return out, nil
}

func (m *MemoryStore) SavePanelAddress(_ context.Context, name, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.set {
		if m.set[i].Name == name {
			m.set[i].Address = address
			return nil
		}
	}
	_, hasCurrent := m.set.Current()
	m.set = append(m.set, panel.Address{Name: name, Address: address, IsCurrent: !hasCurrent})
	return nil
}

func (m *MemoryStore) SetCurrentPanelAddress(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.set.Find(name); !ok {
		return UnknownNameError{Name: name}
	}
	for i := range m.set {
		m.set[i].IsCurrent = m.set[i].Name == name
	}
	return nil
}

func (m *MemoryStore) DeletePanelAddress(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.set {
		if m.set[i].Name == name {
			m.set = append(m.set[:i], m.set[i+1:]...)
			return nil
		}
	}
	return UnknownNameError{Name: name}
}
