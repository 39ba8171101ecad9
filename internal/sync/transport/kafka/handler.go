package kafka

import (
	"context"
	"log/slog"
	"time"

	"regionsync/internal/platform/kafka/consumer"
	"regionsync/internal/sync/models"
)

// Batcher processes decoded messages, index-aligned results.
type Batcher interface {
	ProcessBatch(ctx context.Context, msgs []models.Message) ([]models.Result, error)
}

// DeadLetterSink receives undecodable records.
type DeadLetterSink interface {
	DeadLetter(ctx context.Context, dl models.DeadLetter) error
}

// Handler adapts consumed records to the lane pool.
type Handler struct {
	pool      Batcher
	transport *Transport
	sink      DeadLetterSink
	logger    *slog.Logger
	maxWait   time.Duration
	clock     func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

type HandlerOption func(*Handler)

// WithMaxInlineWait bounds how long a not-yet-due message is waited for
// inside a batch before it is parked back on the retry topic.
func WithMaxInlineWait(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.maxWait = d
		}
	}
}

func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithHandlerClock sets the clock and sleep functions for testability.
func WithHandlerClock(clock func() time.Time, sleep func(ctx context.Context, d time.Duration) error) HandlerOption {
	return func(h *Handler) {
		if clock != nil {
			h.clock = clock
		}
		if sleep != nil {
			h.sleep = sleep
		}
	}
}

func NewHandler(pool Batcher, transport *Transport, sink DeadLetterSink, opts ...HandlerOption) *Handler {
	h := &Handler{
		pool:      pool,
		transport: transport,
		sink:      sink,
		logger:    slog.Default(),
		maxWait:   5 * time.Second,
		clock:     time.Now,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleBatch decodes, processes due messages and parks the rest. Undecodable
// records are dead-lettered and committed.
func (h *Handler) HandleBatch(ctx context.Context, records []*consumer.Message) error {
	now := h.clock()
	var due, parked []models.Message
	for _, r := range records {
		msg, err := models.DecodeMessage(r.Value)
		if err != nil {
			if err := h.deadLetterRaw(ctx, r, err, now); err != nil {
				return err
			}
			continue
		}
		if !msg.NotBefore.IsZero() && msg.NotBefore.Sub(now) > h.maxWait {
			parked = append(parked, msg)
			continue
		}
		due = append(due, msg)
	}

	if len(due) > 0 {
		results, err := h.pool.ProcessBatch(ctx, due)
		if err != nil {
			return err
		}
		for i, res := range results {
			h.logger.DebugContext(ctx, "sync message handled",
				"entity_type", due[i].EntityType,
				"entity_id", due[i].EntityID,
				"outcome", res.Outcome,
			)
		}
	} else if len(parked) > 0 {
		// Nothing due: wait before recirculating so the retry topic does not spin.
		if err := h.sleep(ctx, h.maxWait); err != nil {
			return err
		}
	}

	for _, msg := range parked {
		if err := h.transport.Requeue(ctx, msg, 0); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) deadLetterRaw(ctx context.Context, r *consumer.Message, cause error, now time.Time) error {
	h.logger.ErrorContext(ctx, "undecodable sync message",
		"topic", r.Topic,
		"partition", r.Partition,
		"offset", r.Offset,
		"error", cause,
	)
	dl := models.NewDeadLetter(models.Message{}, models.ReasonDecode, cause, now)
	dl.Payload = r.Value
	return h.sink.DeadLetter(ctx, dl)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
