package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation
// and querying across the BlockManager subsystem.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Operation identity
	// ========================================================================
	KeyOperation = "operation" // put, get, replicate, fetch, evict, report
	KeyBlockID   = "block_id"  // Canonical textual BlockId
	KeyPeerID    = "peer_id"   // BlockManagerId of a remote peer
	KeyTaskID    = "task_id"   // Task identifier holding/requesting a lock

	// ========================================================================
	// Storage placement
	// ========================================================================
	KeyStorageLevel = "storage_level" // Canonical StorageLevel string
	KeyUseMemory    = "use_memory"
	KeyUseDisk      = "use_disk"
	KeyReplication  = "replication" // Requested replication factor
	KeyMemSize      = "mem_size"    // Bytes resident in the memory tier
	KeyDiskSize     = "disk_size"   // Bytes resident in the disk tier

	// ========================================================================
	// Locking
	// ========================================================================
	KeyLockMode    = "lock_mode" // read, write
	KeyReaderCount = "reader_count"
	KeyWriterTask  = "writer_task"

	// ========================================================================
	// Replication & remote fetch
	// ========================================================================
	KeyPeersTargeted   = "peers_targeted"
	KeyPeersReplicated = "peers_replicated"
	KeyFailureCount    = "failure_count"
	KeyMaxFailures     = "max_failures"
	KeyLocationCount   = "location_count"
	KeyAttempt         = "attempt"

	// ========================================================================
	// Eviction & capacity
	// ========================================================================
	KeyEvictedBytes  = "evicted_bytes"
	KeyReservedBytes = "reserved_bytes"
	KeyBudgetBytes   = "budget_bytes"

	// ========================================================================
	// Event queue
	// ========================================================================
	KeyQueueName     = "queue_name"
	KeyQueueDepth    = "queue_depth"
	KeyQueueCapacity = "queue_capacity"
	KeyDroppedEvents = "dropped_events"

	// ========================================================================
	// Operation metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeySize       = "size"        // Byte count, generic
)

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Operation returns a slog.Attr for the sub-operation type
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// BlockID returns a slog.Attr for a canonical BlockId string
func BlockID(id string) slog.Attr {
	return slog.String(KeyBlockID, id)
}

// PeerID returns a slog.Attr for a remote BlockManagerId string
func PeerID(id string) slog.Attr {
	return slog.String(KeyPeerID, id)
}

// TaskID returns a slog.Attr for a task identifier
func TaskID(id string) slog.Attr {
	return slog.String(KeyTaskID, id)
}

// StorageLevel returns a slog.Attr for a canonical StorageLevel string
func StorageLevel(level string) slog.Attr {
	return slog.String(KeyStorageLevel, level)
}

// Replication returns a slog.Attr for a requested replication factor
func Replication(n int) slog.Attr {
	return slog.Int(KeyReplication, n)
}

// MemSize returns a slog.Attr for bytes resident in the memory tier
func MemSize(n int64) slog.Attr {
	return slog.Int64(KeyMemSize, n)
}

// DiskSize returns a slog.Attr for bytes resident in the disk tier
func DiskSize(n int64) slog.Attr {
	return slog.Int64(KeyDiskSize, n)
}

// LockMode returns a slog.Attr for the lock mode (read, write)
func LockMode(mode string) slog.Attr {
	return slog.String(KeyLockMode, mode)
}

// ReaderCount returns a slog.Attr for the current reader count on a block
func ReaderCount(n int) slog.Attr {
	return slog.Int(KeyReaderCount, n)
}

// WriterTask returns a slog.Attr for the task holding the write lock
func WriterTask(task string) slog.Attr {
	return slog.String(KeyWriterTask, task)
}

// PeersTargeted returns a slog.Attr for the number of peers targeted for replication
func PeersTargeted(n int) slog.Attr {
	return slog.Int(KeyPeersTargeted, n)
}

// PeersReplicated returns a slog.Attr for the number of peers that received a replica
func PeersReplicated(n int) slog.Attr {
	return slog.Int(KeyPeersReplicated, n)
}

// FailureCount returns a slog.Attr for an accumulated failure count
func FailureCount(n int) slog.Attr {
	return slog.Int(KeyFailureCount, n)
}

// MaxFailures returns a slog.Attr for the configured maximum failure count
func MaxFailures(n int) slog.Attr {
	return slog.Int(KeyMaxFailures, n)
}

// LocationCount returns a slog.Attr for the number of candidate locations
func LocationCount(n int) slog.Attr {
	return slog.Int(KeyLocationCount, n)
}

// Attempt returns a slog.Attr for a retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// EvictedBytes returns a slog.Attr for bytes freed by eviction
func EvictedBytes(n int64) slog.Attr {
	return slog.Int64(KeyEvictedBytes, n)
}

// ReservedBytes returns a slog.Attr for bytes reserved from the accountant
func ReservedBytes(n int64) slog.Attr {
	return slog.Int64(KeyReservedBytes, n)
}

// BudgetBytes returns a slog.Attr for a configured memory budget
func BudgetBytes(n int64) slog.Attr {
	return slog.Int64(KeyBudgetBytes, n)
}

// QueueName returns a slog.Attr for an event queue's name
func QueueName(name string) slog.Attr {
	return slog.String(KeyQueueName, name)
}

// QueueDepth returns a slog.Attr for the current queue depth
func QueueDepth(n int) slog.Attr {
	return slog.Int(KeyQueueDepth, n)
}

// QueueCapacity returns a slog.Attr for the configured queue capacity
func QueueCapacity(n int) slog.Attr {
	return slog.Int(KeyQueueCapacity, n)
}

// DroppedEvents returns a slog.Attr for the cumulative dropped-event count
func DroppedEvents(n uint64) slog.Attr {
	return slog.Uint64(KeyDroppedEvents, n)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Size returns a slog.Attr for a generic byte count
func Size(n int64) slog.Attr {
	return slog.Int64(KeySize, n)
}
