package secret

import (
	"fmt"

	"ghp-go/internal/config"
)

// NewStoreFromConfig creates a Store based on the configuration type.
// Type "none" returns a nil Store; callers then rely on flags or prompts
// for credentials.
func NewStoreFromConfig(cfg config.SecretsConfig) (Store, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeStore(cfg), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown secrets type: %q", cfg.Type)
	}
}
