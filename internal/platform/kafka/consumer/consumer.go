// Package consumer runs a franz-go group consumer that hands each poll to a
// batch handler and commits only after the handler succeeds.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is a consumed record.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// BatchHandler handles one poll worth of messages. Returning nil commits
// them; an error leaves them uncommitted.
type BatchHandler interface {
	HandleBatch(ctx context.Context, msgs []*Message) error
}

// Handler handles a single message.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Each adapts a Handler to a BatchHandler, stopping at the first error.
func Each(h Handler) BatchHandler {
	return eachHandler{h}
}

type eachHandler struct{ h Handler }

func (e eachHandler) HandleBatch(ctx context.Context, msgs []*Message) error {
	for _, m := range msgs {
		if err := e.h.Handle(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// Config configures the group consumer.
type Config struct {
	Brokers  []string
	Group    string
	Topics   []string
	ClientID string
	// MaxRetries bounds handler retries per batch. After that Run returns
	// and the uncommitted batch is redelivered to the next group member.
	MaxRetries     uint64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxPollRecords int
}

// Consumer drives a BatchHandler.
type Consumer struct {
	client *kgo.Client
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Consumer, error) {
	if cfg.Group == "" || len(cfg.Topics) == 0 {
		return nil, errors.New("consumer group and topics are required")
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	if cfg.MaxPollRecords <= 0 {
		cfg.MaxPollRecords = 500
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, cfg: cfg, logger: logger}, nil
}

// Run polls until ctx is done or a batch fails permanently.
func (c *Consumer) Run(ctx context.Context, h BatchHandler) error {
	for {
		fetches := c.client.PollRecords(ctx, c.cfg.MaxPollRecords)
		if fetches.IsClientClosed() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.WarnContext(ctx, "fetch error", "topic", topic, "partition", partition, "error", err)
		})

		records := fetches.Records()
		if len(records) == 0 {
			continue
		}
		msgs := make([]*Message, 0, len(records))
		for _, r := range records {
			msgs = append(msgs, fromRecord(r))
		}

		if err := c.handle(ctx, h, msgs); err != nil {
			return err
		}
		if err := c.client.CommitRecords(ctx, records...); err != nil {
			c.logger.WarnContext(ctx, "commit failed", "error", err, "records", len(records))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, h BatchHandler, msgs []*Message) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	b.MaxElapsedTime = 0

	attempt := 0
	op := func() error {
		attempt++
		err := h.HandleBatch(ctx, msgs)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err != nil {
			c.logger.WarnContext(ctx, "batch handler failed", "attempt", attempt, "records", len(msgs), "error", err)
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.cfg.MaxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("handle batch after %d attempts: %w", attempt, err)
	}
	return nil
}

func (c *Consumer) Close() {
	c.client.Close()
}

func fromRecord(r *kgo.Record) *Message {
	m := &Message{
		Topic:     r.Topic,
		Partition: r.Partition,
		Offset:    r.Offset,
		Key:       r.Key,
		Value:     r.Value,
		Timestamp: r.Timestamp,
	}
	if len(r.Headers) > 0 {
		m.Headers = make(map[string]string, len(r.Headers))
		for _, h := range r.Headers {
			m.Headers[h.Key] = string(h.Value)
		}
	}
	return m
}
