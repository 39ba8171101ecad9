// Package memory is an in-process region store. It enforces declared foreign
// keys and row-version tokens the way the Postgres store does, so the
// orchestrator's retry paths can be exercised without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"regionsync/internal/sync/models"
	"regionsync/pkg/domain"
	"regionsync/pkg/platform/conflict"
	"regionsync/pkg/platform/sentinel"
)

// Reference declares that Field on rows of an entity type holds the id of a
// row of Type.
type Reference struct {
	Field string
	Type  string
}

// Store is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	region     string
	rows       map[string]map[domain.EntityID]*models.Record
	references map[string][]Reference
	unique     map[string][]string
}

type Option func(*Store)

// WithReference declares a foreign key from entityType.field to refType.
func WithReference(entityType, field, refType string) Option {
	return func(s *Store) {
		s.references[entityType] = append(s.references[entityType], Reference{Field: field, Type: refType})
	}
}

// WithUnique declares a unique column on entityType.
func WithUnique(entityType, field string) Option {
	return func(s *Store) {
		s.unique[entityType] = append(s.unique[entityType], field)
	}
}

func New(region string, opts ...Option) *Store {
	s := &Store{
		region:     region,
		rows:       make(map[string]map[domain.EntityID]*models.Record),
		references: make(map[string][]Reference),
		unique:     make(map[string][]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Region() string { return s.region }

// Put writes rec directly, bypassing constraints. Used to seed source regions.
func (s *Store) Put(rec *models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := rec.Clone()
	if c.RowVersion == 0 {
		c.RowVersion = 1
	}
	s.table(c.EntityType)[c.ID] = c
}

// Len returns the number of rows of entityType.
func (s *Store) Len(entityType string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows[entityType])
}

// IDs returns the ids of entityType, sorted.
func (s *Store) IDs(entityType string) []domain.EntityID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.EntityID, 0, len(s.rows[entityType]))
	for id := range s.rows[entityType] {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Store) Fetch(_ context.Context, entityType string, id domain.EntityID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.rows[entityType][id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", entityType, id, sentinel.ErrNotFound)
	}
	return rec.Clone(), nil
}

func (s *Store) Delete(_ context.Context, entityType string, id domain.EntityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[entityType][id]; !ok {
		return fmt.Errorf("%s %s: %w", entityType, id, sentinel.ErrNotFound)
	}
	if err := s.checkNoDependents(entityType, id); err != nil {
		return err
	}
	delete(s.rows[entityType], id)
	return nil
}

// Persist applies every pending entry or none. An insert of an existing id
// fails with sentinel.ErrConflict so the resolver retries it as an update.
func (s *Store) Persist(_ context.Context, cs *conflict.ChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := cs.Pending()
	for _, e := range pending {
		rec, ok := e.Entity.(*models.Record)
		if !ok {
			return fmt.Errorf("memory store: unsupported entity %T", e.Entity)
		}
		current, exists := s.rows[e.Kind][rec.ID]
		switch e.State {
		case conflict.Added:
			if exists {
				return fmt.Errorf("insert %s %s: row exists: %w", e.Kind, rec.ID, sentinel.ErrConflict)
			}
		case conflict.Modified, conflict.Deleted:
			if !exists || current.RowVersion != e.OriginalVersion {
				return fmt.Errorf("%s %s %s: %w", e.State, e.Kind, rec.ID, sentinel.ErrConflict)
			}
		}
		if e.State == conflict.Deleted {
			if err := s.checkNoDependents(e.Kind, rec.ID); err != nil {
				return err
			}
			continue
		}
		if err := s.checkReferences(e.Kind, rec, pending); err != nil {
			return err
		}
		if err := s.checkUnique(e.Kind, rec); err != nil {
			return err
		}
	}

	for _, e := range pending {
		rec := e.Entity.(*models.Record)
		switch e.State {
		case conflict.Added:
			rec.RowVersion = 1
		case conflict.Modified:
			rec.RowVersion = e.OriginalVersion + 1
		case conflict.Deleted:
			delete(s.rows[e.Kind], rec.ID)
			continue
		}
		stored := rec.Clone()
		stored.EntityType = e.Kind
		s.table(e.Kind)[rec.ID] = stored
	}
	return nil
}

func (s *Store) CurrentVersion(_ context.Context, e *conflict.Entry) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.rows[e.Kind][e.Entity.GetID()]
	if !ok {
		return 0, fmt.Errorf("%s %s: %w", e.Kind, e.Entity.GetID(), sentinel.ErrNotFound)
	}
	return rec.RowVersion, nil
}

func (s *Store) table(entityType string) map[domain.EntityID]*models.Record {
	t, ok := s.rows[entityType]
	if !ok {
		t = make(map[domain.EntityID]*models.Record)
		s.rows[entityType] = t
	}
	return t
}

// checkReferences fails with sentinel.ErrDependency when a referenced row is
// neither stored nor being added in the same change set.
func (s *Store) checkReferences(entityType string, rec *models.Record, pending []*conflict.Entry) error {
	for _, ref := range s.references[entityType] {
		target := referenceID(rec.Fields[ref.Field])
		if target == "" {
			continue
		}
		if _, ok := s.rows[ref.Type][target]; ok {
			continue
		}
		if addedInSet(pending, ref.Type, target) {
			continue
		}
		return fmt.Errorf("%s %s: %s references missing %s %s: %w",
			entityType, rec.ID, ref.Field, ref.Type, target, sentinel.ErrDependency)
	}
	return nil
}

func (s *Store) checkNoDependents(entityType string, id domain.EntityID) error {
	for childType, refs := range s.references {
		for _, ref := range refs {
			if ref.Type != entityType {
				continue
			}
			for childID, child := range s.rows[childType] {
				if referenceID(child.Fields[ref.Field]) == id {
					return fmt.Errorf("%s %s is referenced by %s %s: %w",
						entityType, id, childType, childID, sentinel.ErrDependency)
				}
			}
		}
	}
	return nil
}

func (s *Store) checkUnique(entityType string, rec *models.Record) error {
	for _, field := range s.unique[entityType] {
		v, ok := rec.Fields[field]
		if !ok || v == nil {
			continue
		}
		for id, other := range s.rows[entityType] {
			if id != rec.ID && other.Fields[field] == v {
				return fmt.Errorf("%s.%s = %v: %w", entityType, field, v, sentinel.ErrDuplicate)
			}
		}
	}
	return nil
}

func addedInSet(pending []*conflict.Entry, entityType string, id domain.EntityID) bool {
	for _, e := range pending {
		if e.Kind == entityType && e.State != conflict.Deleted && e.Entity.GetID() == id {
			return true
		}
	}
	return false
}

func referenceID(v any) domain.EntityID {
	switch t := v.(type) {
	case string:
		return domain.EntityID(t)
	case domain.EntityID:
		return t
	default:
		return ""
	}
}
