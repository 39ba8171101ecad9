// Package emitter is the producing side of sync: it turns local writes into
// sync messages in an order the consumers can apply.
package emitter

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"regionsync/internal/sync/models"
	"regionsync/internal/sync/policy"
	"regionsync/pkg/domain"
)

// Sender publishes one message.
type Sender interface {
	Send(ctx context.Context, msg models.Message) error
}

// Policies is the registry surface the emitter needs.
type Policies interface {
	Get(name string) (policy.Descriptor, error)
	Rank(name string) int
	DependentsOf(name string) []string
}

// ChildFinder lists ids of childType rows that reference the given parent.
type ChildFinder interface {
	Children(ctx context.Context, childType, parentType string, parentID domain.EntityID) ([]domain.EntityID, error)
}

// Change is one local write.
type Change struct {
	EntityType string
	EntityID   domain.EntityID
	Deleted    bool
}

type Emitter struct {
	sender   Sender
	policies Policies
	region   string
	logger   *slog.Logger
	clock    func() time.Time
}

type Option func(*Emitter)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Emitter) {
		e.logger = logger
	}
}

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(e *Emitter) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// New builds an emitter for writes made in region.
func New(sender Sender, policies Policies, region string, opts ...Option) *Emitter {
	e := &Emitter{
		sender:   sender,
		policies: policies,
		region:   region,
		logger:   slog.Default(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit sends one change. Disabled entity types are not sent and report
// false; unregistered types are a configuration error.
func (e *Emitter) Emit(ctx context.Context, c Change) (bool, error) {
	desc, err := e.policies.Get(c.EntityType)
	if err != nil {
		return false, err
	}
	if !desc.IsEnabled {
		e.logger.DebugContext(ctx, "sync not emitted: entity type disabled", "entity_type", c.EntityType)
		return false, nil
	}
	if _, err := domain.ParseEntityID(string(c.EntityID)); err != nil {
		return false, err
	}
	msg := models.Message{
		SyncEventID:  domain.NewSyncEventID(),
		EntityType:   desc.Name,
		EntityID:     c.EntityID,
		SourceRegion: e.region,
		IsDeleted:    c.Deleted,
		TableName:    desc.Table(),
		OccurredAt:   e.clock().UTC(),
	}
	if err := e.sender.Send(ctx, msg); err != nil {
		return false, fmt.Errorf("send %s %s: %w", c.EntityType, c.EntityID, err)
	}
	e.logger.DebugContext(ctx, "sync emitted",
		"entity_type", msg.EntityType,
		"entity_id", msg.EntityID,
		"sync_event_id", msg.SyncEventID,
		"is_deleted", msg.IsDeleted,
	)
	return true, nil
}

// EmitBatch sends upserts parents-first, then deletes children-first. Order
// within one entity type is preserved. It returns how many were sent.
func (e *Emitter) EmitBatch(ctx context.Context, changes []Change) (int, error) {
	sent := 0
	for _, c := range Order(e.policies, changes) {
		ok, err := e.Emit(ctx, c)
		if err != nil {
			return sent, err
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

// Order sorts changes into emission order. Types outside the propagation
// order (disabled or unknown) keep their relative position at the end of
// their group.
func Order(p Policies, changes []Change) []Change {
	var upserts, deletes []Change
	for _, c := range changes {
		if c.Deleted {
			deletes = append(deletes, c)
		} else {
			upserts = append(upserts, c)
		}
	}
	rank := func(name string) int {
		if r := p.Rank(name); r >= 0 {
			return r
		}
		return int(^uint(0) >> 1)
	}
	sort.SliceStable(upserts, func(i, j int) bool {
		return rank(upserts[i].EntityType) < rank(upserts[j].EntityType)
	})
	sort.SliceStable(deletes, func(i, j int) bool {
		ri, rj := rank(deletes[i].EntityType), rank(deletes[j].EntityType)
		if ri == rj {
			return false
		}
		return ri > rj
	})
	return append(upserts, deletes...)
}

// Cascade re-emits a parent together with every row that depends on it,
// transitively. Upserts go parent first; deletes go deepest child first.
func (e *Emitter) Cascade(ctx context.Context, parent Change, finder ChildFinder) (int, error) {
	changes := []Change{parent}
	seen := map[string]bool{models.LaneKey(parent.EntityType, parent.EntityID): true}
	queue := []Change{parent}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, childType := range e.policies.DependentsOf(cur.EntityType) {
			ids, err := finder.Children(ctx, childType, cur.EntityType, cur.EntityID)
			if err != nil {
				return 0, fmt.Errorf("find %s children of %s %s: %w", childType, cur.EntityType, cur.EntityID, err)
			}
			for _, id := range ids {
				key := models.LaneKey(childType, id)
				if seen[key] {
					continue
				}
				seen[key] = true
				child := Change{EntityType: childType, EntityID: id, Deleted: parent.Deleted}
				changes = append(changes, child)
				queue = append(queue, child)
			}
		}
	}
	return e.EmitBatch(ctx, changes)
}
