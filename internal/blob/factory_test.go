package blob

import (
	"context"
	"testing"

	"poolcore/internal/blob/core"
	"poolcore/internal/config"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	cases := []struct {
		name string
		cfg  config.BlobConfig
		want core.Driver
	}{
		{name: "default", cfg: config.BlobConfig{FSRoot: root}, want: core.DriverFilesystem},
		{name: "fs", cfg: config.BlobConfig{Driver: "fs", FSRoot: root}, want: core.DriverFilesystem},
		{name: "memory", cfg: config.BlobConfig{Driver: "memory"}, want: core.DriverMemory},
		{name: "s3", cfg: config.BlobConfig{Driver: "s3", S3: config.S3Config{Bucket: "worklists", AccessKeyID: "a", SecretAccessKey: "b"}}, want: core.DriverS3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := Open(ctx, tc.cfg)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			if store.Driver() != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, store.Driver())
			}
		})
	}
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := Open(ctx, config.BlobConfig{Driver: "gcs"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := Open(ctx, config.BlobConfig{Driver: "s3"}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
	if _, err := Open(ctx, config.BlobConfig{Driver: "fs"}); err == nil {
		t.Fatalf("expected missing root error")
	}
}
