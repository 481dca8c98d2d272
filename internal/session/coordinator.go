// Package session coordinates panel address operations for one page: it
// issues bridge calls, consumes host deliveries from the result channel and
// keeps the HTTP client pointed at the current panel address.
package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fluxpanel/panelbridge/internal/bridge"
	"github.com/fluxpanel/panelbridge/internal/panel"
	"github.com/fluxpanel/panelbridge/internal/validate"
)

// DefaultCallbackPrefix prefixes generated callback names.
const DefaultCallbackPrefix = "__panelAddressCallback_"

var (
	// ErrEmptyName is returned for add/switch/delete without a name.
	ErrEmptyName = errors.New("session: panel name is empty")
	// ErrNoInvoker is returned by New when no invoker is configured.
	ErrNoInvoker = errors.New("session: invoker is required")
)

// State is the coordinator's position in the request/deliver protocol.
type State int

const (
	StateIdle State = iota
	StateAwaitingList
	StateAwaitingMutation
)

func (s State) String() string {
	switch s {
	case StateAwaitingList:
		return "awaiting-list"
	case StateAwaitingMutation:
		return "awaiting-mutation"
	default:
		return "idle"
	}
}

// DuplicatePolicy decides who handles adding a name that already exists.
type DuplicatePolicy int

const (
	// DuplicateDeferToHost forwards the save and lets the host reject or
	// overwrite.
	DuplicateDeferToHost DuplicatePolicy = iota
	// DuplicateReject refuses the add locally when the last delivered set
	// already contains the name.
	DuplicateReject
)

func (p DuplicatePolicy) String() string {
	if p == DuplicateReject {
		return "reject"
	}
	return "host"
}

// ParseDuplicatePolicy parses "host" or "reject".
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "host", "defer":
		return DuplicateDeferToHost, nil
	case "reject":
		return DuplicateReject, nil
	default:
		return DuplicateDeferToHost, fmt.Errorf("session: unknown duplicate policy %q", s)
	}
}

// DuplicateNameError reports an add rejected by DuplicateReject.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("panel address %q already exists", e.Name)
}

// IsDuplicateName reports whether err is (or wraps) a DuplicateNameError.
func IsDuplicateName(err error) bool {
	var target *DuplicateNameError
	return errors.As(err, &target)
}

// BaseURLReinitializer is the HTTP client hook run when the current panel
// address may have changed.
type BaseURLReinitializer interface {
	ReinitializeBaseURL()
}

// Listener observes every applied delivery.
type Listener func(state State, addresses panel.AddressSet)

// Logger is an optional interface for logging coordinator events.
type Logger interface {
	Printf(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Options configures a Coordinator.
type Options struct {
	Invoker  bridge.Invoker
	Registry *bridge.Registry // defaults to an in-process registry
	Client   BaseURLReinitializer

	CallbackName    string // defaults to DefaultCallbackPrefix + random suffix
	DuplicatePolicy DuplicatePolicy
	Logger          Logger
}

type operation int

const (
	opNone operation = iota
	opList
	opSave
	opSwitch
	opDelete
)

// Coordinator owns the page's address set and current-address invariant.
//
// It is not safe for concurrent use. Drive it from the page event loop:
// host deliveries arrive on that loop and are applied synchronously.
type Coordinator struct {
	invoker  bridge.Invoker
	registry *bridge.Registry
	client   BaseURLReinitializer
	logger   Logger

	callbackName string
	duplicates   DuplicatePolicy

	state         State
	op            operation
	addresses     panel.AddressSet
	loaded        bool
	listRequested bool
	reinitPending bool
	deliveries    int

	listeners []Listener
}

// New builds a coordinator.
func New(opts Options) (*Coordinator, error) {
	if opts.Invoker == nil {
		return nil, ErrNoInvoker
	}
	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	registry := opts.Registry
	if registry == nil {
		registry = bridge.NewRegistry(nil, logger)
	}
	name := opts.CallbackName
	if name == "" {
		name = DefaultCallbackPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	return &Coordinator{
		invoker:      opts.Invoker,
		registry:     registry,
		client:       opts.Client,
		logger:       logger,
		callbackName: name,
		duplicates:   opts.DuplicatePolicy,
	}, nil
}

// Subscribe registers l to run after every applied delivery.
func (c *Coordinator) Subscribe(l Listener) {
	if l != nil {
		c.listeners = append(c.listeners, l)
	}
}

// Load asks the host for the address list. Without a host it resolves
// locally to an empty set.
func (c *Coordinator) Load() error {
	if c.invoker.Kind() == bridge.KindNone {
		c.apply(panel.AddressSet{}, false)
		return nil
	}
	if err := c.arm(); err != nil {
		return err
	}
	c.state = StateAwaitingList
	c.op = opList
	c.listRequested = true
	c.invoker.RequestList(c.callbackName)
	return nil
}

// Add validates address locally and asks the host to save it.
func (c *Coordinator) Add(name, address string) error {
	if name == "" {
		return ErrEmptyName
	}
	if err := validate.CheckPanelAddress(address); err != nil {
		return err
	}
	if c.duplicates == DuplicateReject {
		if _, exists := c.addresses.Find(name); exists {
			return &DuplicateNameError{Name: name}
		}
	}
	return c.mutate(opSave, func() { c.invoker.Save(name, address) })
}

// Switch asks the host to make name the current address.
func (c *Coordinator) Switch(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	return c.mutate(opSwitch, func() { c.invoker.SetCurrent(name) })
}

// Delete asks the host to remove name.
func (c *Coordinator) Delete(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	return c.mutate(opDelete, func() { c.invoker.Delete(name) })
}

func (c *Coordinator) mutate(op operation, call func()) error {
	if c.invoker.Kind() == bridge.KindNone {
		return nil
	}
	if err := c.arm(); err != nil {
		return err
	}
	c.state = StateAwaitingMutation
	c.op = op
	if op == opSwitch || op == opDelete {
		c.reinitPending = true
	}
	call()
	if !c.listRequested {
		// The host learns the callback name from the list request.
		c.listRequested = true
		c.invoker.RequestList(c.callbackName)
	}
	return nil
}

// arm (re)registers the result channel before a bridge call.
func (c *Coordinator) arm() error {
	if err := c.registry.Register(c.callbackName, c.onDelivery); err != nil {
		return fmt.Errorf("session: register callback %s: %w", c.callbackName, err)
	}
	return nil
}

func (c *Coordinator) onDelivery(payload any) {
	set, err := panel.Decode(payload)
	if err != nil {
		c.logger.Printf("[Session] %v; treating as empty list", err)
		set = panel.AddressSet{}
	}
	c.apply(set, true)
}

func (c *Coordinator) apply(set panel.AddressSet, fromHost bool) {
	prev, hadPrev := c.addresses.Current()
	c.addresses = set
	c.loaded = true
	c.state = StateIdle
	c.op = opNone
	if fromHost {
		c.deliveries++
	}

	next, hasNext := set.Current()
	changed := hadPrev != hasNext || prev.Address != next.Address
	if c.reinitPending || (fromHost && changed) {
		c.reinitPending = false
		if c.client != nil {
			c.client.ReinitializeBaseURL()
		}
	}

	for _, l := range c.listeners {
		l(c.state, set.Clone())
	}
}

// State returns the current protocol state.
func (c *Coordinator) State() State {
	return c.state
}

// Addresses returns a copy of the last applied address set.
func (c *Coordinator) Addresses() panel.AddressSet {
	return c.addresses.Clone()
}

// Loaded reports whether any address set has been applied yet.
func (c *Coordinator) Loaded() bool {
	return c.loaded
}

// Current returns the current panel address, if any.
func (c *Coordinator) Current() (panel.Address, bool) {
	return c.addresses.Current()
}

// CurrentAddress returns the current entry's URL, for the HTTP client.
func (c *Coordinator) CurrentAddress() (string, bool) {
	cur, ok := c.addresses.Current()
	if !ok {
		return "", false
	}
	return cur.Address, true
}

// Kind returns the bridge kind this session routes to.
func (c *Coordinator) Kind() bridge.Kind {
	return c.invoker.Kind()
}

// CallbackName returns the global callback name handed to the host.
func (c *Coordinator) CallbackName() string {
	return c.callbackName
}

// Deliveries returns how many host deliveries have been applied.
func (c *Coordinator) Deliveries() int {
	return c.deliveries
}
