package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPaths_honorsEnvironment(t *testing.T) {
	t.Setenv("GHP_CONFIG_PATH", "/tmp/custom/ghp.toml")
	t.Setenv("GHP_HOME", "/tmp/custom/home")

	paths, err := DefaultPaths()
	if err != nil {
		t.Fatalf("DefaultPaths() error = %v", err)
	}

	if paths.Config != "/tmp/custom/ghp.toml" {
		t.Errorf("Config = %q", paths.Config)
	}
	if paths.Base != "/tmp/custom/home" {
		t.Errorf("Base = %q", paths.Base)
	}
	if paths.Log != filepath.Join("/tmp/custom/home", "log") {
		t.Errorf("Log = %q", paths.Log)
	}
}

func TestDefaultPaths_fallsBackToHome(t *testing.T) {
	t.Setenv("GHP_CONFIG_PATH", "")
	t.Setenv("GHP_HOME", "")

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	paths, err := DefaultPaths()
	if err != nil {
		t.Fatalf("DefaultPaths() error = %v", err)
	}

	if paths.Config != filepath.Join(home, ".config", "ghp.toml") {
		t.Errorf("Config = %q", paths.Config)
	}
	if paths.Base != filepath.Join(home, ".local", "share", "ghp") {
		t.Errorf("Base = %q", paths.Base)
	}
}
