package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context for a single BlockManager
// operation (put, get, replicate, fetch, evict, report).
type LogContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	Operation string    // put, get, replicate, fetch, evict, report
	BlockID   string    // Canonical textual BlockId
	PeerID    string    // BlockManagerId of a remote peer involved in the operation
	TaskID    string    // Task identifier holding/requesting a lock
	StartTime time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for the given operation
func NewLogContext(operation string) *LogContext {
	return &LogContext{
		Operation: operation,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:   lc.TraceID,
		SpanID:    lc.SpanID,
		Operation: lc.Operation,
		BlockID:   lc.BlockID,
		PeerID:    lc.PeerID,
		TaskID:    lc.TaskID,
		StartTime: lc.StartTime,
	}
}

// WithBlockID returns a copy with the block ID set
func (lc *LogContext) WithBlockID(blockID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.BlockID = blockID
	}
	return clone
}

// WithPeer returns a copy with the peer ID set
func (lc *LogContext) WithPeer(peerID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.PeerID = peerID
	}
	return clone
}

// WithTask returns a copy with the task ID set
func (lc *LogContext) WithTask(taskID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TaskID = taskID
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
