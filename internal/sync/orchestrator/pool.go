package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"regionsync/internal/sync/lanes"
	"regionsync/internal/sync/metrics"
	"regionsync/internal/sync/models"
)

// Processor is the single-message contract the pool drives.
type Processor interface {
	Process(ctx context.Context, msg models.Message) (models.Result, error)
}

// Pool processes a batch with one lane per (entityType, entityId). Lanes run
// in parallel up to Workers; messages inside a lane keep delivery order.
type Pool struct {
	proc    Processor
	locker  lanes.Locker
	workers int
	logger  *slog.Logger
	metrics *metrics.Metrics
	clock   func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

type PoolOption func(*Pool)

func WithWorkers(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithLocker(l lanes.Locker) PoolOption {
	return func(p *Pool) {
		if l != nil {
			p.locker = l
		}
	}
}

func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = logger
	}
}

func WithPoolMetrics(m *metrics.Metrics) PoolOption {
	return func(p *Pool) {
		p.metrics = m
	}
}

// WithPoolClock sets the clock and sleep functions for testability.
func WithPoolClock(clock func() time.Time, sleep func(ctx context.Context, d time.Duration) error) PoolOption {
	return func(p *Pool) {
		if clock != nil {
			p.clock = clock
		}
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

func NewPool(proc Processor, opts ...PoolOption) *Pool {
	p := &Pool{
		proc:    proc,
		locker:  lanes.NewLocalLocker(),
		workers: 8,
		logger:  slog.Default(),
		clock:   time.Now,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type lane struct {
	key     string
	indexes []int
}

// ProcessBatch returns one result per message, index-aligned with msgs. An
// error means at least one message was not brought to an outcome and the batch
// must not be acknowledged.
func (p *Pool) ProcessBatch(ctx context.Context, msgs []models.Message) ([]models.Result, error) {
	results := make([]models.Result, len(msgs))

	byKey := make(map[string]*lane)
	var ordered []*lane
	for i, m := range msgs {
		key := m.LaneKey()
		l, ok := byKey[key]
		if !ok {
			l = &lane{key: key}
			byKey[key] = l
			ordered = append(ordered, l)
		}
		l.indexes = append(l.indexes, i)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, l := range ordered {
		g.Go(func() error {
			return p.runLane(ctx, l, msgs, results)
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (p *Pool) runLane(ctx context.Context, l *lane, msgs []models.Message, results []models.Result) error {
	waitStart := time.Now()
	release, err := p.locker.Acquire(ctx, l.key)
	if err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.ObserveLaneWait(waitStart)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			p.logger.Warn("failed to release lane", "lane", l.key, "error", err)
		}
	}()

	for _, i := range l.indexes {
		msg := msgs[i]
		if wait := msg.NotBefore.Sub(p.clock()); !msg.NotBefore.IsZero() && wait > 0 {
			if err := p.sleep(ctx, wait); err != nil {
				return err
			}
		}
		res, err := p.proc.Process(ctx, msg)
		if err != nil {
			return err
		}
		results[i] = res
	}
	return nil
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
