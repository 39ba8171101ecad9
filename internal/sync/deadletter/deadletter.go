// Package deadletter records messages the orchestrator gave up on. Sinks
// write; readers back the inspection API.
package deadletter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"regionsync/internal/sync/models"
)

// Sink stores one dead letter.
type Sink interface {
	DeadLetter(ctx context.Context, dl models.DeadLetter) error
}

// Filter narrows a listing. Zero values match everything.
type Filter struct {
	EntityType string
	Reason     string
	Limit      int
}

const defaultLimit = 100

func (f Filter) limit() int {
	if f.Limit <= 0 || f.Limit > 1000 {
		return defaultLimit
	}
	return f.Limit
}

func (f Filter) matches(dl models.DeadLetter) bool {
	return (f.EntityType == "" || dl.EntityType == f.EntityType) &&
		(f.Reason == "" || dl.Reason == f.Reason)
}

// Reader lists dead letters, newest first.
type Reader interface {
	List(ctx context.Context, f Filter) ([]models.DeadLetter, error)
}

// Memory keeps dead letters in process.
type Memory struct {
	mu      sync.RWMutex
	letters []models.DeadLetter
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) DeadLetter(_ context.Context, dl models.DeadLetter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.letters = append(m.letters, dl)
	return nil
}

func (m *Memory) List(_ context.Context, f Filter) ([]models.DeadLetter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.DeadLetter, 0)
	for i := len(m.letters) - 1; i >= 0 && len(out) < f.limit(); i-- {
		if f.matches(m.letters[i]) {
			out = append(out, m.letters[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.letters)
}

// Publisher is the Kafka producer surface the topic sink needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// Topic publishes dead letters as JSON, keyed by the message's lane.
type Topic struct {
	pub   Publisher
	topic string
}

func NewTopic(pub Publisher, topic string) *Topic {
	return &Topic{pub: pub, topic: topic}
}

func (t *Topic) DeadLetter(ctx context.Context, dl models.DeadLetter) error {
	value, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	key := []byte(dl.EntityType + "/" + dl.EntityID)
	return t.pub.Publish(ctx, t.topic, key, value, map[string]string{"reason": dl.Reason})
}

// Fanout writes to every sink and reports all failures. A dead letter counts
// as recorded only when every sink accepted it.
type Fanout []Sink

func (f Fanout) DeadLetter(ctx context.Context, dl models.DeadLetter) error {
	var errs []error
	for _, s := range f {
		if err := s.DeadLetter(ctx, dl); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
