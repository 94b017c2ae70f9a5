package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/flatfs/flatfs/pkg/errors"
	"github.com/flatfs/flatfs/pkg/logging"
)

// Size limits for the streaming buffers.
const (
	DefaultBlockSize      = 128 * 1024 * 1024
	DefaultReadBufferSize = 64 * 1024 * 1024
	MaxReadBufferSize     = 256 * 1024 * 1024
)

// Configuration is the complete flatfs configuration.
type Configuration struct {
	Scheme  string         `yaml:"scheme"`
	Store   StoreConfig    `yaml:"store"`
	Buffer  BufferConfig   `yaml:"buffer"`
	Retry   RetryConfig    `yaml:"retry"`
	Logging logging.Config `yaml:"logging"`
	Metrics MetricsConfig  `yaml:"metrics"`
}

// StoreConfig selects and configures the object store backend.
type StoreConfig struct {
	Backend         string `yaml:"backend"` // "s3", "minio" or "memory"
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	UseSSL          bool   `yaml:"use_ssl"`
}

// BufferConfig controls the block-buffered streams.
type BufferConfig struct {
	// BlockSize is the local block file threshold for writers, in bytes.
	BlockSize int64 `yaml:"block_size"`
	// ReadBufferSize is the reader fetch window, in bytes. Values above
	// MaxReadBufferSize are clamped with a warning at adapter construction.
	ReadBufferSize int `yaml:"read_buffer_size"`
	// ReaderAlgorithmVersion selects the range-fetch strategy: 1 or 2.
	ReaderAlgorithmVersion int `yaml:"reader_algorithm_version"`
	// TempDir is where writer block files are spilled. Empty means the
	// system temporary directory.
	TempDir string `yaml:"temp_dir"`
}

// RetryConfig controls the storage retry wrapper.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Delay       time.Duration `yaml:"delay"`
}

// UnmarshalYAML parses the delay from duration strings such as "10s".
func (r *RetryConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw struct {
		MaxAttempts int    `yaml:"max_attempts"`
		Delay       string `yaml:"delay"`
	}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	if raw.MaxAttempts != 0 {
		r.MaxAttempts = raw.MaxAttempts
	}
	if raw.Delay != "" {
		delay, err := time.ParseDuration(raw.Delay)
		if err != nil {
			return fmt.Errorf("invalid retry delay %q: %w", raw.Delay, err)
		}
		r.Delay = delay
	}
	return nil
}

// MetricsConfig controls the Prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// NewDefault returns a configuration with the documented defaults.
func NewDefault() *Configuration {
	return &Configuration{
		Scheme: "flat",
		Store: StoreConfig{
			Backend: "s3",
			UseSSL:  true,
		},
		Buffer: BufferConfig{
			BlockSize:              DefaultBlockSize,
			ReadBufferSize:         DefaultReadBufferSize,
			ReaderAlgorithmVersion: 1,
		},
		Retry: RetryConfig{
			MaxAttempts: 4,
			Delay:       10 * time.Second,
		},
		Logging: logging.Config{
			Level:  "INFO",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Port:      9090,
			Path:      "/metrics",
			Namespace: "flatfs",
		},
	}
}

// LoadFromFile merges a YAML file into the configuration.
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// LoadFromEnv merges FLATFS_* environment variables into the configuration.
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("FLATFS_STORE_BACKEND"); val != "" {
		c.Store.Backend = val
	}
	if val := os.Getenv("FLATFS_STORE_BUCKET"); val != "" {
		c.Store.Bucket = val
	}
	if val := os.Getenv("FLATFS_STORE_REGION"); val != "" {
		c.Store.Region = val
	}
	if val := os.Getenv("FLATFS_STORE_ENDPOINT"); val != "" {
		c.Store.Endpoint = val
	}
	if val := os.Getenv("FLATFS_ACCESS_KEY_ID"); val != "" {
		c.Store.AccessKeyID = val
	}
	if val := os.Getenv("FLATFS_SECRET_ACCESS_KEY"); val != "" {
		c.Store.SecretAccessKey = val
	}
	if val := os.Getenv("FLATFS_BLOCK_SIZE"); val != "" {
		if size, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.Buffer.BlockSize = size
		}
	}
	if val := os.Getenv("FLATFS_READ_BUFFER_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			c.Buffer.ReadBufferSize = size
		}
	}
	if val := os.Getenv("FLATFS_READER_ALGORITHM_VERSION"); val != "" {
		if version, err := strconv.Atoi(val); err == nil {
			c.Buffer.ReaderAlgorithmVersion = version
		}
	}
	if val := os.Getenv("FLATFS_TEMP_DIR"); val != "" {
		c.Buffer.TempDir = val
	}
	if val := os.Getenv("FLATFS_RETRY_MAX_ATTEMPTS"); val != "" {
		if attempts, err := strconv.Atoi(val); err == nil {
			c.Retry.MaxAttempts = attempts
		}
	}
	if val := os.Getenv("FLATFS_RETRY_DELAY"); val != "" {
		if delay, err := time.ParseDuration(val); err == nil {
			c.Retry.Delay = delay
		}
	}
	if val := os.Getenv("FLATFS_LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
	return nil
}

// Validate checks the configuration for values no component can accept.
func (c *Configuration) Validate() error {
	if v := c.Buffer.ReaderAlgorithmVersion; v != 1 && v != 2 {
		return errors.New(errors.KindUnsupportedConfiguration,
			fmt.Sprintf("reader algorithm version must be 1 or 2, got %d", v))
	}
	if c.Buffer.BlockSize <= 0 {
		return fmt.Errorf("block_size must be greater than 0")
	}
	if c.Buffer.ReadBufferSize <= 0 {
		return fmt.Errorf("read_buffer_size must be greater than 0")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry max_attempts must be greater than 0")
	}
	switch c.Store.Backend {
	case "s3", "minio", "memory":
	default:
		return fmt.Errorf("unknown store backend: %s", c.Store.Backend)
	}
	return nil
}
