// Package flatfs presents a hierarchical, POSIX-like filesystem on top of
// a flat object store. Backends exist for Amazon S3, MinIO-compatible
// endpoints and an in-memory store for testing.
package flatfs

import (
	"context"
	"fmt"

	"github.com/flatfs/flatfs/internal/config"
	"github.com/flatfs/flatfs/internal/fs"
	"github.com/flatfs/flatfs/internal/metrics"
	"github.com/flatfs/flatfs/internal/store"
	"github.com/flatfs/flatfs/internal/store/mem"
	minstore "github.com/flatfs/flatfs/internal/store/minio"
	s3store "github.com/flatfs/flatfs/internal/store/s3"
	"github.com/flatfs/flatfs/pkg/logging"
	"github.com/flatfs/flatfs/pkg/retry"
)

// Config is the full flatfs configuration.
type Config = config.Configuration

// FileSystem is the hierarchical view over the object store.
type FileSystem = fs.FileSystem

// Reader and Writer are the streaming handles returned by Open, Create
// and Append.
type (
	Reader = fs.Reader
	Writer = fs.Writer
)

// DefaultConfig returns the documented default configuration.
func DefaultConfig() *Config { return config.NewDefault() }

// LoadConfig builds a configuration from defaults, an optional YAML file
// and FLATFS_* environment variables, in that order.
func LoadConfig(filename string) (*Config, error) {
	cfg := config.NewDefault()
	if filename != "" {
		if err := cfg.LoadFromFile(filename); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// New builds a filesystem from cfg: it validates the configuration,
// constructs the selected backend, wraps it with the retry policy and
// wires logging and metrics.
func New(ctx context.Context, cfg *Config) (*FileSystem, error) {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	var backend store.Store
	switch cfg.Store.Backend {
	case "memory":
		backend = mem.New()
	case "minio":
		backend, err = minstore.New(cfg.Store, logger)
	default:
		backend, err = s3store.New(ctx, cfg.Store, logger)
	}
	if err != nil {
		return nil, err
	}

	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Delay:       cfg.Retry.Delay,
	}
	retrying := store.WithRetries(backend, policy)

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics.Namespace)
		go func() {
			if err := collector.Serve(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
				logger.Error("metrics endpoint stopped", "error", err)
			}
		}()
	}

	return fs.New(retrying, cfg, logger, collector)
}
