// Package bridge routes panel address operations to whichever native host
// convention the page runs under: an Android-style JavaScript interface
// object, iOS-style WebKit message handlers, or no host at all.
//
// Native hosts never return values synchronously. Every operation is fire and
// forget; the host later calls a globally registered callback by name with
// the full address list. Registry owns that callback slot.
package bridge

import (
	"fmt"
	"strings"
)

// Kind classifies the native host available to the page.
type Kind int

const (
	KindNone Kind = iota
	KindAndroid
	KindIOS
)

func (k Kind) String() string {
	switch k {
	case KindAndroid:
		return "android"
	case KindIOS:
		return "ios"
	default:
		return "none"
	}
}

// ParseKind parses the String form of a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "browser", "":
		return KindNone, nil
	case "android":
		return KindAndroid, nil
	case "ios":
		return KindIOS, nil
	default:
		return KindNone, fmt.Errorf("bridge: unknown kind %q", s)
	}
}

// Host method names. iOS message handlers use the same names.
const (
	MethodList       = "getPanelAddresses"
	MethodSave       = "savePanelAddress"
	MethodSetCurrent = "setCurrentPanelAddress"
	MethodDelete     = "deletePanelAddress"
)

// DefaultAndroidObject is the global name the Android host registers its
// JavaScript interface under.
const DefaultAndroidObject = "AndroidBridge"

// Environment is the page's global scope as seen by the bridge.
type Environment interface {
	// HasFunction reports whether the value reached by walking path from
	// the global object is callable.
	HasFunction(path ...string) bool
	// Invoke calls the function at path. The receiver is the value at
	// path[:len(path)-1].
	Invoke(path []string, args ...any) error
}

// Logger is an optional interface for logging bridge events.
type Logger interface {
	Printf(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
