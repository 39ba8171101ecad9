package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the sync engine.
// Tracks message outcomes, per-target applies and retry pressure.
type Metrics struct {
	MessagesProcessed *prometheus.CounterVec
	ProcessDuration   prometheus.Histogram
	TargetApplies     *prometheus.CounterVec
	TargetsSkipped    *prometheus.CounterVec
	ApplyDuration     *prometheus.HistogramVec
	Requeues          *prometheus.CounterVec
	DeadLetters       *prometheus.CounterVec
	ConflictRetries   prometheus.Counter
	LaneWait          prometheus.Histogram
}

// New registers the sync metrics with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MessagesProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "regionsync_messages_processed_total",
			Help: "Sync messages processed, by entity type and outcome",
		}, []string{"entity_type", "outcome"}),
		ProcessDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "regionsync_process_duration_seconds",
			Help:    "Duration of one message through the orchestrator",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		TargetApplies: f.NewCounterVec(prometheus.CounterOpts{
			Name: "regionsync_target_applies_total",
			Help: "Rows written to or deleted from a target region",
		}, []string{"entity_type", "region", "op"}),
		TargetsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "regionsync_targets_skipped_total",
			Help: "Target regions skipped, by reason",
		}, []string{"entity_type", "reason"}),
		ApplyDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regionsync_apply_duration_seconds",
			Help:    "Duration of a single target apply",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"region"}),
		Requeues: f.NewCounterVec(prometheus.CounterOpts{
			Name: "regionsync_requeues_total",
			Help: "Messages returned to the queue, by entity type and kind (retry or defer)",
		}, []string{"entity_type", "kind"}),
		DeadLetters: f.NewCounterVec(prometheus.CounterOpts{
			Name: "regionsync_dead_letters_total",
			Help: "Messages dead-lettered, by entity type and reason",
		}, []string{"entity_type", "reason"}),
		ConflictRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "regionsync_conflict_retries_total",
			Help: "Optimistic concurrency retries in the write path",
		}),
		LaneWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "regionsync_lane_wait_seconds",
			Help:    "Time spent waiting for a lane lock",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

func (m *Metrics) IncrementProcessed(entityType, outcome string) {
	m.MessagesProcessed.WithLabelValues(entityType, outcome).Inc()
}

// ObserveProcess records the duration of a Process call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveProcess(start time.Time) {
	m.ProcessDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementApplied(entityType, region, op string) {
	m.TargetApplies.WithLabelValues(entityType, region, op).Inc()
}

func (m *Metrics) IncrementSkipped(entityType, reason string) {
	m.TargetsSkipped.WithLabelValues(entityType, reason).Inc()
}

func (m *Metrics) ObserveApply(region string, start time.Time) {
	m.ApplyDuration.WithLabelValues(region).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementRequeue(entityType, kind string) {
	m.Requeues.WithLabelValues(entityType, kind).Inc()
}

func (m *Metrics) IncrementDeadLetter(entityType, reason string) {
	m.DeadLetters.WithLabelValues(entityType, reason).Inc()
}

func (m *Metrics) IncrementConflictRetry() {
	m.ConflictRetries.Inc()
}

func (m *Metrics) ObserveLaneWait(start time.Time) {
	m.LaneWait.Observe(time.Since(start).Seconds())
}
