// Package memory is an in-process transport for tests and single-node runs.
package memory

import (
	"context"
	"sync"
	"time"

	"regionsync/internal/sync/models"
)

// Batcher processes decoded messages, index-aligned results.
type Batcher interface {
	ProcessBatch(ctx context.Context, msgs []models.Message) ([]models.Result, error)
}

// Queue is a FIFO shared by sends and requeues.
type Queue struct {
	mu       sync.Mutex
	msgs     []models.Message
	requeued int
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Send(_ context.Context, msg models.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	return nil
}

func (q *Queue) Requeue(_ context.Context, msg models.Message, _ time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	q.requeued++
	return nil
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

// Requeued counts requeues since creation.
func (q *Queue) Requeued() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.requeued
}

// take removes and returns everything queued.
func (q *Queue) take() []models.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.msgs
	q.msgs = nil
	return out
}

// Drain feeds the queue to b in rounds until it is empty or maxRounds is hit.
// Each round is one batch; requeues land in the next round. It returns every
// result in processing order.
func (q *Queue) Drain(ctx context.Context, b Batcher, maxRounds int) ([]models.Result, error) {
	var all []models.Result
	for round := 0; round < maxRounds; round++ {
		batch := q.take()
		if len(batch) == 0 {
			return all, nil
		}
		results, err := b.ProcessBatch(ctx, batch)
		if err != nil {
			return all, err
		}
		all = append(all, results...)
	}
	return all, nil
}
