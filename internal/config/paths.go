package config

import (
	"os"
	"path/filepath"
)

const (
	DefaultProfile = "default"

	homeEnv = "PANELBRIDGE_HOME"
)

// Paths contains the on-disk layout used by panelctl.
type Paths struct {
	Home      string // Root directory (~/.panelbridge)
	ConfigDB  string // SQLite address store path
	Bootstrap string // JSON bootstrap file path
	Scripts   string // Page scripts directory
}

// GetPaths returns the layout rooted at GetHome.
func GetPaths() Paths {
	home := GetHome()
	return Paths{
		Home:      home,
		ConfigDB:  filepath.Join(home, "config.db"),
		Bootstrap: filepath.Join(home, "bootstrap.json"),
		Scripts:   filepath.Join(home, "scripts"),
	}
}

// GetHome returns the panelbridge home directory. PANELBRIDGE_HOME overrides
// the default of ~/.panelbridge.
func GetHome() string {
	if override := os.Getenv(homeEnv); override != "" {
		return ExpandPath(override)
	}
	userHome, _ := os.UserHomeDir()
	return filepath.Join(userHome, ".panelbridge")
}

// ExpandPath expands ~ to the user home directory.
func ExpandPath(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) == 1 {
			return home
		}
		if path[1] == '/' || path[1] == os.PathSeparator {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// EnsureDirs creates the directory structure if it does not exist.
func EnsureDirs() (Paths, error) {
	paths := GetPaths()

	for _, dir := range []string{paths.Home, paths.Scripts} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return paths, err
		}
	}

	return paths, nil
}
