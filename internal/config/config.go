package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for ghp. Command-line flags
// override file values; the file carries everything a scheduled run needs.
type Config struct {
	LogDir   string         `toml:"log_dir"`
	Gerrit   GerritConfig   `toml:"gerrit"`
	Archive  ArchiveConfig  `toml:"archive"`
	Sync     SyncConfig     `toml:"sync"`
	Database DatabaseConfig `toml:"database"`
	Secrets  SecretsConfig  `toml:"secrets"`
	Mirror   MirrorConfig   `toml:"mirror"`
}

// GerritConfig holds the connection settings for the Gerrit server.
type GerritConfig struct {
	URL      string `toml:"url"`
	Username string `toml:"username,omitempty"`
	// VerifySSL defaults to true; disable only for servers with
	// self-signed certificates.
	VerifySSL      *bool `toml:"verify_ssl,omitempty"`
	TimeoutSeconds int   `toml:"timeout_seconds,omitempty"`
	// RequestsPerSecond throttles outbound API calls. Zero selects the
	// client default.
	RequestsPerSecond float64 `toml:"requests_per_second,omitempty"`
}

// SSLVerificationEnabled resolves the VerifySSL default.
func (g GerritConfig) SSLVerificationEnabled() bool {
	return g.VerifySSL == nil || *g.VerifySSL
}

// ArchiveConfig describes what to archive and where.
type ArchiveConfig struct {
	Query     string `toml:"query"`
	Limit     int    `toml:"limit"`
	OutputDir string `toml:"output_dir"`
	RepoPath  string `toml:"repo_path"`
	Branch    string `toml:"branch"`
}

// SyncConfig tunes the pipeline.
type SyncConfig struct {
	Workers          int `toml:"workers,omitempty"`
	PageSize         int `toml:"page_size,omitempty"`
	Retries          int `toml:"retries,omitempty"`
	BackoffInitialMS int `toml:"backoff_initial_ms,omitempty"`
	BackoffMaxMS     int `toml:"backoff_max_ms,omitempty"`
}

// DatabaseConfig represents configuration for the archive state database.
// This uses a tagged union pattern - the Type field determines which other
// fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// SecretsConfig holds paths for the age-encrypted credential store.
type SecretsConfig struct {
	Type           string `toml:"type"` // "age" (default) or "none"
	PublicKeyPath  string `toml:"public_key_path,omitempty"`
	PrivateKeyPath string `toml:"private_key_path,omitempty"`
	PasswordPath   string `toml:"password_path,omitempty"`
}

// MirrorConfig represents configuration for the optional post-commit
// offsite mirror. This uses a tagged union pattern - the Type field
// determines which other fields are relevant.
type MirrorConfig struct {
	Type string `toml:"type"` // "none", "s3", "filesystem", or "memory"

	// S3-specific fields (only used when Type == "s3")
	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`
}

// NewConfig creates a Config with the standard defaults rooted at baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		LogDir: filepath.Join(baseDir, "log"),
		Archive: ArchiveConfig{
			Query:     "status:merged",
			Limit:     1000,
			OutputDir: "./gerrit-export",
			RepoPath:  "./gerrit-history-repo",
			Branch:    "gerrit-history",
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
		Secrets: SecretsConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "ghp.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "ghp.key"),
			PasswordPath:   filepath.Join(baseDir, "keys", "gerrit-password.age"),
		},
		Mirror: MirrorConfig{Type: "none"},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the
// provided Config. Fails if a file already exists.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
