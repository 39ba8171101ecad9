package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersByLabel(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementProcessed("Candidate", "applied")
	m.IncrementProcessed("Candidate", "applied")
	m.IncrementProcessed("Candidate", "requeued")
	m.IncrementDeadLetter("JobApplication", "retries_exhausted")
	m.IncrementConflictRetry()

	assert.Equal(t, 2.0, promtest.ToFloat64(m.MessagesProcessed.WithLabelValues("Candidate", "applied")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.MessagesProcessed.WithLabelValues("Candidate", "requeued")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.DeadLetters.WithLabelValues("JobApplication", "retries_exhausted")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.ConflictRetries))
}

func TestHistogramsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	start := time.Now().Add(-10 * time.Millisecond)
	m.ObserveProcess(start)
	m.ObserveApply("eu-1", start)
	m.ObserveLaneWait(start)

	assert.Equal(t, 1, promtest.CollectAndCount(m.ProcessDuration))
	assert.Equal(t, 1, promtest.CollectAndCount(m.ApplyDuration))
	assert.Equal(t, 1, promtest.CollectAndCount(m.LaneWait))
}
