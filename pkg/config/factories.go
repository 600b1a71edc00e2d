package config

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/sessionfs/sessionfs/internal/hostfs"
	"github.com/sessionfs/sessionfs/internal/hostfs/local"
	"github.com/sessionfs/sessionfs/internal/hostfs/memfs"
	"github.com/sessionfs/sessionfs/internal/hostfs/s3"
)

// CreateHostFS builds the hostfs.FS binding selected by cfg, the way the
// teacher's CreateContentStore picks and configures a store
// implementation from a type tag plus a type-specific options map.
func CreateHostFS(ctx context.Context, cfg *HostFSConfig) (hostfs.FS, error) {
	switch cfg.Type {
	case "local":
		return local.New(), nil
	case "memory":
		return memfs.New(), nil
	case "s3":
		return createS3HostFS(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown hostfs type: %q", cfg.Type)
	}
}

// s3HostFSOptions mirrors the YAML keys of the hostfs.s3 config section.
type s3HostFSOptions struct {
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// createS3HostFS decodes the s3 options map and builds the S3 binding.
func createS3HostFS(ctx context.Context, options map[string]any) (hostfs.FS, error) {
	var opts s3HostFSOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode s3 hostfs config: %w", err)
	}

	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 hostfs: bucket is required")
	}

	fs, err := s3.New(ctx, s3.Config{
		Bucket:          opts.Bucket,
		KeyPrefix:       opts.KeyPrefix,
		Endpoint:        opts.Endpoint,
		AccessKeyID:     opts.AccessKeyID,
		SecretAccessKey: opts.SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 hostfs binding: %w", err)
	}
	return fs, nil
}
