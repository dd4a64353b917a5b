// Package bmconfig loads and validates BlockManager configuration: a
// Config struct with mapstructure/yaml tags, loaded via spf13/viper (file +
// BLOCKMANAGER_* env overrides), decoded through mitchellh/mapstructure,
// and validated with go-playground/validator/v10 struct tags.
package bmconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/blockmgr/blockmanager/internal/bytesize"
)

// Config is the top-level BlockManager configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Self identifies this node's BlockManagerId components.
	Self SelfConfig `mapstructure:"self" yaml:"self"`

	// Memory bounds the memory tier's accountant.
	Memory MemoryConfig `mapstructure:"memory" yaml:"memory"`

	// Disk configures the disk tier (local/badger/s3).
	Disk DiskConfig `mapstructure:"disk" yaml:"disk"`

	// Replication configures the Replicator.
	Replication ReplicationConfig `mapstructure:"replication" yaml:"replication"`

	// RemoteFetch configures the RemoteFetcher.
	RemoteFetch RemoteFetchConfig `mapstructure:"remote_fetch" yaml:"remote_fetch"`

	// EventQueue configures the AsyncEventQueue.
	EventQueue EventQueueConfig `mapstructure:"event_queue" yaml:"event_queue"`

	// ShuffleRegistration configures the external shuffle service
	// registration retry policy.
	ShuffleRegistration ShuffleRegistrationConfig `mapstructure:"shuffle_registration" yaml:"shuffle_registration"`

	// Diagnostics configures the read-only HTTP status endpoint.
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics" yaml:"diagnostics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig controls whether Prometheus metrics collection is enabled.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// SelfConfig identifies this BlockManager node.
type SelfConfig struct {
	ExecutorID   string `mapstructure:"executor_id" yaml:"executor_id"`
	Host         string `mapstructure:"host" validate:"required" yaml:"host"`
	Port         int    `mapstructure:"port" validate:"required,min=1,max=65535" yaml:"port"`
	TopologyInfo string `mapstructure:"topology_info" yaml:"topology_info,omitempty"`
}

// MemoryConfig bounds the in-memory tier's fixed accountant.
type MemoryConfig struct {
	// MaxBytes is the combined unroll+storage budget. Supports human
	// readable sizes ("1GB", "512Mi") via the bytesize decode hook.
	MaxBytes bytesize.ByteSize `mapstructure:"max_bytes" validate:"required,gt=0" yaml:"max_bytes"`
}

// DiskConfig selects and configures a disk tier backend.
type DiskConfig struct {
	// Backend selects the DiskStore implementation: "local", "badger", "s3".
	Backend string      `mapstructure:"backend" validate:"required,oneof=local badger s3" yaml:"backend"`
	Local   LocalConfig `mapstructure:"local" yaml:"local,omitempty"`
	Badger  BadgerConfig `mapstructure:"badger" yaml:"badger,omitempty"`
	S3      S3Config    `mapstructure:"s3" yaml:"s3,omitempty"`
}

// LocalConfig configures the hashed-directory local disk backend.
type LocalConfig struct {
	Root          string `mapstructure:"root" yaml:"root"`
	DeleteOnClose bool   `mapstructure:"delete_on_close" yaml:"delete_on_close"`
}

// BadgerConfig configures the embedded-KV disk backend.
type BadgerConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// S3Config configures the object-storage disk backend.
type S3Config struct {
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
	Prefix string `mapstructure:"prefix" yaml:"prefix,omitempty"`
	Region string `mapstructure:"region" yaml:"region,omitempty"`
}

// ReplicationConfig parameterizes the Replicator.
type ReplicationConfig struct {
	MaxReplicationFailures int           `mapstructure:"max_replication_failures" validate:"min=0" yaml:"max_replication_failures"`
	CachedPeersTTL         time.Duration `mapstructure:"cached_peers_ttl" yaml:"cached_peers_ttl"`
	MaxWorkers             int           `mapstructure:"max_workers" validate:"min=1" yaml:"max_workers"`
}

// RemoteFetchConfig parameterizes the RemoteFetcher.
type RemoteFetchConfig struct {
	MaxFailuresBeforeLocationRefresh int   `mapstructure:"max_failures_before_location_refresh" validate:"min=1" yaml:"max_failures_before_location_refresh"`
	MaxRemoteBlockSizeFetchToMem     int64 `mapstructure:"max_remote_block_size_fetch_to_mem" validate:"min=0" yaml:"max_remote_block_size_fetch_to_mem"`
}

// EventQueueConfig parameterizes the AsyncEventQueue.
type EventQueueConfig struct {
	Capacity int `mapstructure:"capacity" validate:"min=1" yaml:"capacity"`
}

// ShuffleRegistrationConfig bounds retries against the external shuffle
// service.
type ShuffleRegistrationConfig struct {
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1" yaml:"max_attempts"`
}

// DiagnosticsConfig controls the read-only status HTTP endpoint.
type DiagnosticsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr,omitempty"`
}

// Load loads configuration from file, environment, and defaults, in that
// precedence (environment highest).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if !found {
		return cfg, Validate(cfg)
	}

	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	))); err != nil {
		return nil, fmt.Errorf("bmconfig: unmarshal: %w", err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("bmconfig: validation failed: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML to path.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("bmconfig: create directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("bmconfig: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("BLOCKMANAGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(".")
	v.SetConfigName("blockmanager")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("bmconfig: read config file: %w", err)
	}
	return true, nil
}
