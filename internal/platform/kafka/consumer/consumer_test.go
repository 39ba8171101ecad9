package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

type recordingHandler struct {
	seen []string
	fail string
}

func (h *recordingHandler) Handle(_ context.Context, m *Message) error {
	if string(m.Key) == h.fail {
		return errors.New("boom")
	}
	h.seen = append(h.seen, string(m.Key))
	return nil
}

func TestEach_StopsAtFirstError(t *testing.T) {
	h := &recordingHandler{fail: "b"}
	err := Each(h).HandleBatch(context.Background(), []*Message{{Key: []byte("a")}, {Key: []byte("b")}, {Key: []byte("c")}})

	require.Error(t, err)
	assert.Equal(t, []string{"a"}, h.seen)
}

func TestFromRecord(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := fromRecord(&kgo.Record{
		Topic: "t", Partition: 3, Offset: 42, Key: []byte("k"), Value: []byte("v"), Timestamp: ts,
		Headers: []kgo.RecordHeader{{Key: "attempt", Value: []byte("2")}},
	})

	assert.Equal(t, "t", m.Topic)
	assert.Equal(t, int32(3), m.Partition)
	assert.Equal(t, int64(42), m.Offset)
	assert.Equal(t, map[string]string{"attempt": "2"}, m.Headers)
	assert.Equal(t, ts, m.Timestamp)
}

type flakyBatch struct {
	failures int
	calls    int
}

func (f *flakyBatch) HandleBatch(context.Context, []*Message) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("transient")
	}
	return nil
}

func TestHandle_RetriesThenSucceeds(t *testing.T) {
	c := &Consumer{cfg: Config{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}, logger: discard()}
	h := &flakyBatch{failures: 2}

	require.NoError(t, c.handle(context.Background(), h, nil))
	assert.Equal(t, 3, h.calls)
}

func TestHandle_GivesUp(t *testing.T) {
	c := &Consumer{cfg: Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}, logger: discard()}
	h := &flakyBatch{failures: 10}

	err := c.handle(context.Background(), h, nil)
	require.Error(t, err)
	assert.Equal(t, 3, h.calls)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
