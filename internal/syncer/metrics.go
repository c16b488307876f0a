package syncer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// syncRuns tracks finished sync cycles by outcome.
	syncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tariff_sync_runs_total",
		Help: "Total number of sync cycles by target, mode and status",
	}, []string{"target", "mode", "status"})

	// compileDuration tracks how long building a document takes.
	compileDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tariff_compile_duration_seconds",
		Help:    "Time taken to fetch, compile and serialize a tariff by mode",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"mode"})

	// publishDuration tracks controller upload latency.
	publishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tariff_publish_duration_seconds",
		Help:    "Time taken to publish a tariff by target",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"target"})

	// staleData counts cycles rejected because the feed was stale.
	staleData = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tariff_stale_data_total",
		Help: "Total number of sync cycles failed on stale price data",
	}, []string{"target"})

	// clampedSlots tracks how many slots were clamped per dynamic compile.
	clampedSlots = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tariff_clamped_slots_count",
		Help:    "Number of clamped slots per dynamic compile",
		Buckets: []float64{0, 1, 4, 8, 16, 32, 48},
	})

	// lastPublished records the last successful publish per target.
	lastPublished = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tariff_last_published_timestamp_seconds",
		Help: "Unix time of the last successful publish by target",
	}, []string{"target"})

	// inFlight counts cycles currently running.
	inFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tariff_sync_in_flight",
		Help: "Number of sync cycles in progress",
	})
)

// MetricsRecorder provides methods to record sync metrics.
type MetricsRecorder struct{}

// NewMetricsRecorder creates a new metrics recorder.
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{}
}

// RecordRun records a finished cycle.
func (m *MetricsRecorder) RecordRun(target, mode, status string) {
	syncRuns.WithLabelValues(target, mode, status).Inc()
}

// RecordCompile records the duration of a document build.
func (m *MetricsRecorder) RecordCompile(mode string, d time.Duration) {
	compileDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// RecordPublish records a successful publish.
func (m *MetricsRecorder) RecordPublish(target string, d time.Duration, at time.Time) {
	publishDuration.WithLabelValues(target).Observe(d.Seconds())
	lastPublished.WithLabelValues(target).Set(float64(at.Unix()))
}

// RecordStale records a stale feed.
func (m *MetricsRecorder) RecordStale(target string) {
	staleData.WithLabelValues(target).Inc()
}

// RecordClamped records the clamped slot count of a dynamic compile.
func (m *MetricsRecorder) RecordClamped(n int) {
	clampedSlots.Observe(float64(n))
}

// IncInFlight increments the in-flight gauge.
func (m *MetricsRecorder) IncInFlight() {
	inFlight.Inc()
}

// DecInFlight decrements the in-flight gauge.
func (m *MetricsRecorder) DecInFlight() {
	inFlight.Dec()
}
