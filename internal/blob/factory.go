// Package blob selects the worklist artifact backend from configuration.
package blob

import (
	"context"
	"fmt"

	"poolcore/internal/blob/core"
	"poolcore/internal/config"
	"poolcore/internal/infra/blob/fs"
	"poolcore/internal/infra/blob/memory"
	"poolcore/internal/infra/blob/s3"
)

// Open builds the store named by cfg.Driver (fs when empty).
func Open(ctx context.Context, cfg config.BlobConfig) (core.Store, error) {
	driver := core.Driver(cfg.Driver)
	if driver == "" {
		driver = core.DriverFilesystem
	}
	switch driver {
	case core.DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case core.DriverS3:
		return s3.New(ctx, s3.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			PathStyle:       cfg.S3.PathStyle,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
	case core.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}
