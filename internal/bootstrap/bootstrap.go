package bootstrap

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config stores the settings panelctl needs before any panel address is
// known: the fallback origin, the API token and bridge conventions.
type Config struct {
	DefaultOrigin   string       `json:"default_origin,omitempty"`
	APIToken        string       `json:"api_token,omitempty"`
	AndroidObject   string       `json:"android_object,omitempty"`
	DuplicatePolicy string       `json:"duplicate_policy,omitempty"`
	CallbackName    string       `json:"callback_name,omitempty"`
	UpdatedAt       time.Time    `json:"updated_at"`
	Metadata        *MetaSection `json:"meta,omitempty"`
}

// MetaSection allows callers to store additional information (e.g. name).
type MetaSection struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// Load returns the stored bootstrap configuration at path. If the file does
// not exist, (nil, nil) is returned.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("bootstrap: read file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: decode file: %w", err)
	}

	return &cfg, nil
}

// Save persists the given bootstrap configuration to path, creating
// intermediate directories as needed.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("bootstrap: config is nil")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("bootstrap: create directory: %w", err)
	}

	cfg.UpdatedAt = time.Now().UTC()

	encoded, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("bootstrap: encode config: %w", err)
	}

	if err := os.WriteFile(path, encoded, 0o600); err != nil {
		return fmt.Errorf("bootstrap: write file: %w", err)
	}

	return nil
}

// Remove deletes the bootstrap configuration. It is not considered an error
// when the file does not exist.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("bootstrap: remove file: %w", err)
	}
	return nil
}
