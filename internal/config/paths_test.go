package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetHomeDefault(t *testing.T) {
	t.Setenv(homeEnv, "")

	home := GetHome()

	userHome, _ := os.UserHomeDir()
	expected := filepath.Join(userHome, ".panelbridge")

	if home != expected {
		t.Errorf("GetHome() = %s; want %s", home, expected)
	}
}

func TestGetHomeOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(homeEnv, dir)

	if home := GetHome(); home != dir {
		t.Errorf("GetHome() = %s; want %s", home, dir)
	}
}

func TestGetPaths(t *testing.T) {
	t.Setenv(homeEnv, "")
	paths := GetPaths()

	if !strings.HasSuffix(paths.Home, ".panelbridge") {
		t.Errorf("Home path incorrect: %s", paths.Home)
	}
	if !strings.Contains(paths.ConfigDB, ".panelbridge/config.db") {
		t.Errorf("ConfigDB path incorrect: %s", paths.ConfigDB)
	}
	if !strings.Contains(paths.Bootstrap, ".panelbridge/bootstrap.json") {
		t.Errorf("Bootstrap path incorrect: %s", paths.Bootstrap)
	}
	if !strings.Contains(paths.Scripts, ".panelbridge/scripts") {
		t.Errorf("Scripts path incorrect: %s", paths.Scripts)
	}
}

func TestEnsureDirs(t *testing.T) {
	root := filepath.Join(t.TempDir(), "home")
	t.Setenv(homeEnv, root)

	paths, err := EnsureDirs()
	if err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	for _, dir := range []string{paths.Home, paths.Scripts} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("stat %s: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("%s is not a directory", dir)
		}
	}
	if paths.ConfigDB != filepath.Join(root, "config.db") {
		t.Errorf("ConfigDB = %s", paths.ConfigDB)
	}
}

func TestExpandPath(t *testing.T) {
	tests := []struct {
		input    string
		contains string
	}{
		{"~/test", "/test"},
		{"~", ""},
		{"/absolute/path", "/absolute/path"},
		{"", ""},
	}

	for _, tt := range tests {
		result := ExpandPath(tt.input)
		if tt.input == "~" {
			home, _ := os.UserHomeDir()
			if result != home {
				t.Errorf("ExpandPath(%q) = %q; want home directory", tt.input, result)
			}
		} else if tt.input != "" && !strings.Contains(result, tt.contains) {
			t.Errorf("ExpandPath(%q) = %q; should contain %q", tt.input, result, tt.contains)
		}
	}
}
