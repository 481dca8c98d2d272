package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/fluxpanel/panelbridge/internal/bootstrap"
	"github.com/fluxpanel/panelbridge/internal/validate"
)

// DefaultOrigin is the compiled-in panel API origin used when no panel
// address is current.
const DefaultOrigin = "http://127.0.0.1:6365"

// Environment variables read by Resolve. They take precedence over the
// bootstrap file.
const (
	EnvBaseURL         = "PANEL_BASE_URL"
	EnvAPIToken        = "PANEL_API_TOKEN"
	EnvDuplicatePolicy = "PANEL_DUPLICATE_POLICY"
	EnvAndroidObject   = "PANEL_ANDROID_OBJECT"
)

// Settings is the resolved client configuration.
type Settings struct {
	DefaultOrigin   string
	APIToken        string
	AndroidObject   string // empty means the bridge default
	DuplicatePolicy string // "host" or "reject"; parsed by the session layer
	CallbackName    string // empty means generated per session
}

// Resolve merges compiled-in defaults, the bootstrap file at
// bootstrapPath (optional) and environment overrides.
func Resolve(bootstrapPath string) (Settings, error) {
	s := Settings{DefaultOrigin: DefaultOrigin, DuplicatePolicy: "host"}

	if bootstrapPath != "" {
		boot, err := bootstrap.Load(bootstrapPath)
		if err != nil {
			return s, err
		}
		if boot != nil {
			overlay(&s.DefaultOrigin, boot.DefaultOrigin)
			overlay(&s.APIToken, boot.APIToken)
			overlay(&s.AndroidObject, boot.AndroidObject)
			overlay(&s.DuplicatePolicy, boot.DuplicatePolicy)
			overlay(&s.CallbackName, boot.CallbackName)
		}
	}

	overlay(&s.DefaultOrigin, os.Getenv(EnvBaseURL))
	overlay(&s.APIToken, os.Getenv(EnvAPIToken))
	overlay(&s.DuplicatePolicy, os.Getenv(EnvDuplicatePolicy))
	overlay(&s.AndroidObject, os.Getenv(EnvAndroidObject))

	s.DefaultOrigin = strings.TrimRight(s.DefaultOrigin, "/")
	if err := validate.HTTPURL(s.DefaultOrigin); err != nil {
		return s, fmt.Errorf("config: default origin: %w", err)
	}
	return s, nil
}

func overlay(dst *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*dst = v
	}
}
