package tracker

import (
	"fmt"
	"path/filepath"

	"ghp-go/internal/config"
	"ghp-go/internal/ghp"
)

// NewTrackerFromConfig creates an ArchiveTracker implementation based on
// the database config type.
func NewTrackerFromConfig(cfg config.DatabaseConfig) (ghp.ArchiveTracker, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		return NewSQLiteTracker(filepath.Join(cfg.DataDir, "archive.db"))
	case "memory":
		return NewMemoryTracker(), nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
