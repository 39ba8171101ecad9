package orchestrator

import (
	"context"
	"fmt"
	"time"

	"regionsync/internal/sync/models"
	"regionsync/internal/sync/policy"
	"regionsync/pkg/domain"
	dErrors "regionsync/pkg/domain-errors"
	"regionsync/pkg/platform/conflict"
)

// PolicySource resolves the descriptor of an entity type.
type PolicySource interface {
	Get(name string) (policy.Descriptor, error)
}

// RegionStore is one region's row store. Fetch returns sentinel.ErrNotFound for
// a missing row; Delete returns sentinel.ErrNotFound when there was nothing to
// delete and sentinel.ErrDependency when dependent rows still reference it.
// Upserts go through conflict.Persister so version races are retried.
type RegionStore interface {
	Fetch(ctx context.Context, entityType string, id domain.EntityID) (*models.Record, error)
	Delete(ctx context.Context, entityType string, id domain.EntityID) error
	conflict.Persister
}

// Stores resolves a region name to its store.
type Stores interface {
	Store(region string) (RegionStore, error)
}

// ExposureLookup returns the countries an exposure set covers. The set lives in
// the source region's database.
type ExposureLookup interface {
	Countries(ctx context.Context, region, setID string) ([]string, error)
}

// Requeuer returns a message to the queue for delivery after delay.
type Requeuer interface {
	Requeue(ctx context.Context, msg models.Message, delay time.Duration) error
}

// DeadLetterSink records a message that will not be retried.
type DeadLetterSink interface {
	DeadLetter(ctx context.Context, dl models.DeadLetter) error
}

// StoreMap is a static Stores.
type StoreMap map[string]RegionStore

func (m StoreMap) Store(region string) (RegionStore, error) {
	s, ok := m[region]
	if !ok {
		return nil, dErrors.New(dErrors.CodeConfiguration, fmt.Sprintf("no store for region %q", region))
	}
	return s, nil
}
