// Package prometheus implements pkg/metrics's BlockManagerMetrics contract
// using github.com/prometheus/client_golang.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/blockmgr/blockmanager/pkg/metrics"
)

func init() {
	metrics.RegisterConstructor(newBlockManagerMetrics)
}

type blockManagerMetrics struct {
	putOperations  *prometheus.CounterVec
	putDuration    *prometheus.HistogramVec
	putBytes       *prometheus.HistogramVec
	getOperations  *prometheus.CounterVec
	getDuration    *prometheus.HistogramVec
	getBytes       *prometheus.HistogramVec
	evictions      *prometheus.CounterVec
	evictedBytes   prometheus.Counter
	replications   *prometheus.HistogramVec
	remoteFetches  *prometheus.CounterVec
	fetchDuration  prometheus.Histogram
	queueDepth     *prometheus.GaugeVec
	queueDropped   *prometheus.GaugeVec
}

var byteBuckets = []float64{4096, 32768, 131072, 524288, 1048576, 4194304, 10485760}
var msBuckets = []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000}

func newBlockManagerMetrics() metrics.BlockManagerMetrics {
	reg := metrics.GetRegistry()

	return &blockManagerMetrics{
		putOperations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "blockmgr_put_operations_total",
			Help: "Total number of put operations by storage level and outcome",
		}, []string{"level", "outcome"}),
		putDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blockmgr_put_duration_milliseconds",
			Help:    "Duration of put operations in milliseconds",
			Buckets: msBuckets,
		}, []string{"level"}),
		putBytes: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blockmgr_put_bytes",
			Help:    "Distribution of bytes placed by put operations",
			Buckets: byteBuckets,
		}, []string{"level"}),
		getOperations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "blockmgr_get_operations_total",
			Help: "Total number of get operations by storage level and hit/miss",
		}, []string{"level", "status"}),
		getDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blockmgr_get_duration_milliseconds",
			Help:    "Duration of get operations in milliseconds",
			Buckets: msBuckets,
		}, []string{"level"}),
		getBytes: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blockmgr_get_bytes",
			Help:    "Distribution of bytes returned by get operations",
			Buckets: byteBuckets,
		}, []string{"level"}),
		evictions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "blockmgr_evictions_total",
			Help: "Total number of memory-store evictions by reason",
		}, []string{"reason"}),
		evictedBytes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "blockmgr_evicted_bytes_total",
			Help: "Total bytes freed by eviction",
		}),
		replications: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blockmgr_replication_achieved_ratio",
			Help:    "Ratio of peers successfully replicated to versus target, per job",
			Buckets: []float64{0, 0.25, 0.5, 0.75, 1.0},
		}, []string{}),
		remoteFetches: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "blockmgr_remote_fetches_total",
			Help: "Total number of remote fetch attempts by outcome",
		}, []string{"outcome"}),
		fetchDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "blockmgr_remote_fetch_duration_milliseconds",
			Help:    "Duration of remote fetch attempts in milliseconds",
			Buckets: msBuckets,
		}),
		queueDepth: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "blockmgr_event_queue_depth",
			Help: "Current depth of an AsyncEventQueue",
		}, []string{"queue"}),
		queueDropped: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "blockmgr_event_queue_dropped_total",
			Help: "Cumulative events dropped by an AsyncEventQueue",
		}, []string{"queue"}),
	}
}

func (m *blockManagerMetrics) ObservePut(level string, bytes int64, duration time.Duration, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.putOperations.WithLabelValues(level, outcome).Inc()
	m.putDuration.WithLabelValues(level).Observe(float64(duration.Milliseconds()))
	if bytes > 0 {
		m.putBytes.WithLabelValues(level).Observe(float64(bytes))
	}
}

func (m *blockManagerMetrics) ObserveGet(level string, bytes int64, duration time.Duration, hit bool) {
	status := "hit"
	if !hit {
		status = "miss"
	}
	m.getOperations.WithLabelValues(level, status).Inc()
	m.getDuration.WithLabelValues(level).Observe(float64(duration.Milliseconds()))
	if bytes > 0 {
		m.getBytes.WithLabelValues(level).Observe(float64(bytes))
	}
}

func (m *blockManagerMetrics) ObserveEviction(reason string, bytes int64) {
	m.evictions.WithLabelValues(reason).Inc()
	if bytes > 0 {
		m.evictedBytes.Add(float64(bytes))
	}
}

func (m *blockManagerMetrics) ObserveReplication(achieved, target int, duration time.Duration) {
	ratio := 1.0
	if target > 0 {
		ratio = float64(achieved) / float64(target)
	}
	m.replications.WithLabelValues().Observe(ratio)
}

func (m *blockManagerMetrics) ObserveRemoteFetch(success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.remoteFetches.WithLabelValues(outcome).Inc()
	m.fetchDuration.Observe(float64(duration.Milliseconds()))
}

func (m *blockManagerMetrics) RecordQueueDepth(queue string, depth int) {
	m.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

func (m *blockManagerMetrics) RecordDroppedEvents(queue string, total uint64) {
	m.queueDropped.WithLabelValues(queue).Set(float64(total))
}
