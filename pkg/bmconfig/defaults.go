package bmconfig

import (
	"time"

	"github.com/blockmgr/blockmanager/internal/bytesize"
)

// Default returns a Config populated with the values this module runs with
// out of the box. One applyXxxDefaults function per sub-config, all
// invoked from ApplyDefaults.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in zero-valued fields of cfg. It is safe to call
// after a partial Unmarshal: only fields left at their zero value are
// touched.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applySelfDefaults(&cfg.Self)
	applyMemoryDefaults(&cfg.Memory)
	applyDiskDefaults(&cfg.Disk)
	applyReplicationDefaults(&cfg.Replication)
	applyRemoteFetchDefaults(&cfg.RemoteFetch)
	applyEventQueueDefaults(&cfg.EventQueue)
	applyShuffleRegistrationDefaults(&cfg.ShuffleRegistration)
	applyDiagnosticsDefaults(&cfg.Diagnostics)
}

func applyLoggingDefaults(c *LoggingConfig) {
	if c.Level == "" {
		c.Level = "INFO"
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if c.Output == "" {
		c.Output = "stderr"
	}
}

func applyMetricsDefaults(c *MetricsConfig) {
	if c.Port == 0 {
		c.Port = 9090
	}
}

func applySelfDefaults(c *SelfConfig) {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 7077
	}
}

func applyMemoryDefaults(c *MemoryConfig) {
	if c.MaxBytes == 0 {
		c.MaxBytes = bytesize.GiB
	}
}

func applyDiskDefaults(c *DiskConfig) {
	if c.Backend == "" {
		c.Backend = "local"
	}
	if c.Local.Root == "" {
		c.Local.Root = "./blockmanager-data"
	}
}

func applyReplicationDefaults(c *ReplicationConfig) {
	if c.MaxReplicationFailures == 0 {
		c.MaxReplicationFailures = 1
	}
	if c.CachedPeersTTL == 0 {
		c.CachedPeersTTL = 60 * time.Second
	}
	if c.MaxWorkers == 0 {
		c.MaxWorkers = 128
	}
}

func applyRemoteFetchDefaults(c *RemoteFetchConfig) {
	if c.MaxFailuresBeforeLocationRefresh == 0 {
		c.MaxFailuresBeforeLocationRefresh = 5
	}
	if c.MaxRemoteBlockSizeFetchToMem == 0 {
		c.MaxRemoteBlockSizeFetchToMem = 200 << 20 // 200MiB
	}
}

func applyEventQueueDefaults(c *EventQueueConfig) {
	if c.Capacity == 0 {
		c.Capacity = 10000
	}
}

func applyShuffleRegistrationDefaults(c *ShuffleRegistrationConfig) {
	if c.Timeout == 0 {
		c.Timeout = 5000 * time.Millisecond
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
}

func applyDiagnosticsDefaults(c *DiagnosticsConfig) {
	if c.Addr == "" {
		c.Addr = ":8086"
	}
}
