package mirror

import (
	"context"
	"fmt"

	"ghp-go/internal/config"
)

// NewMirrorFromConfig creates a Mirror implementation based on the mirror
// config type. Type "none" returns a nil Mirror; callers skip mirroring
// when no mirror is configured.
func NewMirrorFromConfig(ctx context.Context, cfg config.MirrorConfig) (Mirror, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 mirror requires s3_bucket to be set")
		}
		return NewS3Mirror(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region)
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem mirror requires fs_root to be set")
		}
		return NewFileSystemMirror(cfg.FSRoot)
	case "memory":
		return NewMemoryMirror(), nil
	default:
		return nil, fmt.Errorf("unknown mirror type: %s", cfg.Type)
	}
}
