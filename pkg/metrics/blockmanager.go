package metrics

import "time"

// BlockManagerMetrics is the nil-safe observer contract for put/get/evict/
// replicate/fetch/queue events. A nil BlockManagerMetrics is always valid to
// call through the package-level Observe* helpers below — every component
// in this module takes a BlockManagerMetrics by interface value and treats
// nil as "metrics disabled".
type BlockManagerMetrics interface {
	ObservePut(level string, bytes int64, duration time.Duration, success bool)
	ObserveGet(level string, bytes int64, duration time.Duration, hit bool)
	ObserveEviction(reason string, bytes int64)
	ObserveReplication(achieved, target int, duration time.Duration)
	ObserveRemoteFetch(success bool, duration time.Duration)
	RecordQueueDepth(queue string, depth int)
	RecordDroppedEvents(queue string, total uint64)
}

// New returns a Prometheus-backed BlockManagerMetrics, or nil if metrics are
// not enabled (InitRegistry not called). Callers pass the nil result
// straight through to components; every Observe* call below is nil-safe.
func New() BlockManagerMetrics {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusMetrics()
}

// newPrometheusMetrics is supplied by pkg/metrics/prometheus's init(), to
// avoid an import cycle between metrics and prometheus.
var newPrometheusMetrics func() BlockManagerMetrics

// RegisterConstructor is called by pkg/metrics/prometheus's init() to wire
// its concrete implementation into New().
func RegisterConstructor(constructor func() BlockManagerMetrics) {
	newPrometheusMetrics = constructor
}

// ObservePut records a completed put.
func ObservePut(m BlockManagerMetrics, level string, bytes int64, duration time.Duration, success bool) {
	if m != nil {
		m.ObservePut(level, bytes, duration, success)
	}
}

// ObserveGet records a completed get.
func ObserveGet(m BlockManagerMetrics, level string, bytes int64, duration time.Duration, hit bool) {
	if m != nil {
		m.ObserveGet(level, bytes, duration, hit)
	}
}

// ObserveEviction records a memory-store eviction.
func ObserveEviction(m BlockManagerMetrics, reason string, bytes int64) {
	if m != nil {
		m.ObserveEviction(reason, bytes)
	}
}

// ObserveReplication records a completed replication job.
func ObserveReplication(m BlockManagerMetrics, achieved, target int, duration time.Duration) {
	if m != nil {
		m.ObserveReplication(achieved, target, duration)
	}
}

// ObserveRemoteFetch records a completed remote fetch attempt.
func ObserveRemoteFetch(m BlockManagerMetrics, success bool, duration time.Duration) {
	if m != nil {
		m.ObserveRemoteFetch(success, duration)
	}
}

// RecordQueueDepth records an event queue's current depth.
func RecordQueueDepth(m BlockManagerMetrics, queue string, depth int) {
	if m != nil {
		m.RecordQueueDepth(queue, depth)
	}
}

// RecordDroppedEvents records an event queue's cumulative drop count.
func RecordDroppedEvents(m BlockManagerMetrics, queue string, total uint64) {
	if m != nil {
		m.RecordDroppedEvents(queue, total)
	}
}
