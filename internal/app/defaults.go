package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds the filesystem locations ghp works from when flags and the
// config file do not say otherwise.
type Paths struct {
	Config string // TOML config file
	Base   string // tracker database and secret store
	Log    string // structured run logs
}

// DefaultPaths resolves Paths from the environment. GHP_CONFIG_PATH and
// GHP_HOME override the XDG-style defaults ~/.config/ghp.toml and
// ~/.local/share/ghp; the log directory always lives under the base.
func DefaultPaths() (Paths, error) {
	config, err := envOrHome("GHP_CONFIG_PATH", ".config", "ghp.toml")
	if err != nil {
		return Paths{}, err
	}
	base, err := envOrHome("GHP_HOME", ".local", "share", "ghp")
	if err != nil {
		return Paths{}, err
	}
	return Paths{
		Config: config,
		Base:   base,
		Log:    filepath.Join(base, "log"),
	}, nil
}

func envOrHome(env string, fallback ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{home}, fallback...)...), nil
}
