// Package panel defines the panel address model shared by the bridge, the
// session coordinator and the reference native hosts.
package panel

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Address is a named backend endpoint the panel UI can target.
type Address struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	IsCurrent bool   `json:"isCurrent"`
}

// AddressSet is the ordered collection of panel addresses known to the page.
// Order is insertion order as reported by the host.
type AddressSet []Address

// MalformedDeliveryError reports a host delivery that is not a well-formed
// address list.
type MalformedDeliveryError struct {
	Reason string
}

func (e *MalformedDeliveryError) Error() string {
	return "panel: malformed delivery: " + e.Reason
}

// IsMalformedDelivery reports whether err is (or wraps) a MalformedDeliveryError.
func IsMalformedDelivery(err error) bool {
	var target *MalformedDeliveryError
	return errors.As(err, &target)
}

// Current returns the entry marked current, if any.
func (s AddressSet) Current() (Address, bool) {
	for _, a := range s {
		if a.IsCurrent {
			return a, true
		}
	}
	return Address{}, false
}

// Find returns the entry with the given name.
func (s AddressSet) Find(name string) (Address, bool) {
	for _, a := range s {
		if a.Name == name {
			return a, true
		}
	}
	return Address{}, false
}

// Names returns entry names in display order.
func (s AddressSet) Names() []string {
	names := make([]string, 0, len(s))
	for _, a := range s {
		names = append(names, a.Name)
	}
	return names
}

// Clone returns a copy that does not share the backing array.
func (s AddressSet) Clone() AddressSet {
	if s == nil {
		return nil
	}
	out := make(AddressSet, len(s))
	copy(out, s)
	return out
}

// Validate checks name uniqueness and that at most one entry is current.
func (s AddressSet) Validate() error {
	seen := make(map[string]struct{}, len(s))
	current := 0
	for i, a := range s {
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("entry %d has empty name", i)
		}
		if _, dup := seen[a.Name]; dup {
			return fmt.Errorf("duplicate name %q", a.Name)
		}
		seen[a.Name] = struct{}{}
		if a.IsCurrent {
			current++
		}
	}
	if current > 1 {
		return fmt.Errorf("%d entries marked current", current)
	}
	return nil
}

// Decode converts a host delivery into an AddressSet. Hosts deliver either a
// JSON document (string or bytes) or a value exported from the page VM.
func Decode(payload any) (AddressSet, error) {
	var raw []byte
	switch v := payload.(type) {
	case nil:
		return nil, &MalformedDeliveryError{Reason: "empty payload"}
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, &MalformedDeliveryError{Reason: fmt.Sprintf("unencodable %T", payload)}
		}
		raw = encoded
	}

	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil || entries == nil {
		return nil, &MalformedDeliveryError{Reason: "not an address list"}
	}

	set := make(AddressSet, 0, len(entries))
	for i, entry := range entries {
		if entry == nil {
			return nil, &MalformedDeliveryError{Reason: fmt.Sprintf("entry %d is null", i)}
		}
		var a Address
		if err := decodeString(entry, "name", &a.Name); err != nil {
			return nil, &MalformedDeliveryError{Reason: fmt.Sprintf("entry %d: %v", i, err)}
		}
		if err := decodeString(entry, "address", &a.Address); err != nil {
			return nil, &MalformedDeliveryError{Reason: fmt.Sprintf("entry %d: %v", i, err)}
		}
		if v, ok := entry["isCurrent"]; ok && string(v) != "null" {
			if err := json.Unmarshal(v, &a.IsCurrent); err != nil {
				return nil, &MalformedDeliveryError{Reason: fmt.Sprintf("entry %d: isCurrent is not a boolean", i)}
			}
		}
		set = append(set, a)
	}

	if err := set.Validate(); err != nil {
		return nil, &MalformedDeliveryError{Reason: err.Error()}
	}
	return set, nil
}

func decodeString(entry map[string]json.RawMessage, key string, dst *string) error {
	v, ok := entry[key]
	if !ok {
		return fmt.Errorf("missing %s", key)
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return fmt.Errorf("%s is not a string", key)
	}
	return nil
}
