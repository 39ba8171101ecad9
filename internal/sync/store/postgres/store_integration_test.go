//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"regionsync/internal/sync/models"
	"regionsync/internal/sync/policy"
	storepg "regionsync/internal/sync/store/postgres"
	"regionsync/pkg/domain"
	"regionsync/pkg/platform/conflict"
	"regionsync/pkg/platform/sentinel"
	"regionsync/pkg/platform/sqlerr"
	"regionsync/pkg/testutil/containers"
)

type StoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *storepg.Store
	now      time.Time
}

func TestStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	registry, err := policy.NewRegistry(policy.DefaultConfigurations())
	s.Require().NoError(err)
	s.now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.store = storepg.New("eu-west", s.postgres.DB, registry, storepg.WithClock(func() time.Time { return s.now }))
}

func (s *StoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "candidates", "job_posts", "countries", "job_applications")
	s.Require().NoError(err)
}

func candidate(id, email string) *models.Record {
	sanitized := false
	return &models.Record{
		Identity:   domain.Identity{ID: domain.EntityID(id)},
		EntityType: "Candidate",
		SyncMetadata: domain.SyncMetadata{
			DataOriginRegion: "eu-west",
			DataResidency:    domain.ResidencyEU,
			IsSanitized:      &sanitized,
			LastSyncEventID:  "evt-1",
		},
		Fields: map[string]any{"email": email, "fullName": "Ada"},
	}
}

func (s *StoreSuite) add(kind string, rec *models.Record) error {
	cs := conflict.NewChangeSet()
	cs.Add(kind, rec)
	return s.store.Persist(context.Background(), cs)
}

func (s *StoreSuite) TestInsertAndFetch() {
	ctx := context.Background()
	rec := candidate("cand-1", "ada@example.com")
	s.Require().NoError(s.add("Candidate", rec))
	s.Equal(int64(1), rec.RowVersion)

	got, err := s.store.Fetch(ctx, "Candidate", "cand-1")
	s.Require().NoError(err)
	s.Equal(domain.EntityID("cand-1"), got.ID)
	s.Equal(int64(1), got.RowVersion)
	s.Equal(domain.ResidencyEU, got.DataResidency)
	s.Require().NotNil(got.IsSanitized)
	s.False(*got.IsSanitized)
	s.Equal("evt-1", got.LastSyncEventID)
	s.Equal("ada@example.com", got.Fields["email"])
}

func (s *StoreSuite) TestFetchMissing() {
	_, err := s.store.Fetch(context.Background(), "Candidate", "nope")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestInsertExistingIsConflict() {
	s.Require().NoError(s.add("Candidate", candidate("cand-1", "a@example.com")))

	err := s.add("Candidate", candidate("cand-1", "b@example.com"))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *StoreSuite) TestUpdateChecksVersion() {
	ctx := context.Background()
	s.Require().NoError(s.add("Candidate", candidate("cand-1", "a@example.com")))

	current, err := s.store.Fetch(ctx, "Candidate", "cand-1")
	s.Require().NoError(err)

	stale := current.Clone()
	stale.RowVersion = 7
	cs := conflict.NewChangeSet()
	cs.Modify("Candidate", stale)
	s.ErrorIs(s.store.Persist(ctx, cs), sentinel.ErrConflict)

	current.Fields["fullName"] = "Ada L."
	cs = conflict.NewChangeSet()
	entry := cs.Modify("Candidate", current)
	s.Require().NoError(s.store.Persist(ctx, cs))
	s.Equal(int64(2), current.RowVersion)

	v, err := s.store.CurrentVersion(ctx, entry)
	s.Require().NoError(err)
	s.Equal(int64(2), v)
}

func (s *StoreSuite) TestUniqueEmail() {
	s.Require().NoError(s.add("Candidate", candidate("cand-1", "same@example.com")))

	err := s.add("Candidate", candidate("cand-2", "same@example.com"))
	s.Require().Error(err)
	s.True(sqlerr.IsUniqueViolation(err))
}

func (s *StoreSuite) TestForeignKeys() {
	ctx := context.Background()
	app := &models.Record{
		Identity:     domain.Identity{ID: "app-1"},
		EntityType:   "JobApplication",
		SyncMetadata: domain.SyncMetadata{DataOriginRegion: "eu-west", DataResidency: domain.ResidencyEU},
		Fields:       map[string]any{"candidate_id": "cand-1", "status": "new"},
	}

	s.Run("missing parent", func() {
		err := s.add("JobApplication", app.Clone())
		s.ErrorIs(err, sentinel.ErrDependency)
	})

	s.Run("parent present", func() {
		s.Require().NoError(s.add("Candidate", candidate("cand-1", "a@example.com")))
		s.Require().NoError(s.add("JobApplication", app.Clone()))

		got, err := s.store.Fetch(ctx, "JobApplication", "app-1")
		s.Require().NoError(err)
		s.Equal("cand-1", got.Fields["candidate_id"])
		s.Equal("new", got.Fields["status"])
	})

	s.Run("referenced parent cannot be deleted", func() {
		err := s.store.Delete(ctx, "Candidate", "cand-1")
		s.ErrorIs(err, sentinel.ErrDependency)
	})

	s.Run("delete child then parent", func() {
		s.Require().NoError(s.store.Delete(ctx, "JobApplication", "app-1"))
		s.Require().NoError(s.store.Delete(ctx, "Candidate", "cand-1"))
		err := s.store.Delete(ctx, "Candidate", "cand-1")
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})
}

func (s *StoreSuite) TestVersionedDelete() {
	ctx := context.Background()
	rec := candidate("cand-1", "a@example.com")
	s.Require().NoError(s.add("Candidate", rec))

	stale := rec.Clone()
	stale.RowVersion = 3
	cs := conflict.NewChangeSet()
	cs.Remove("Candidate", stale)
	s.ErrorIs(s.store.Persist(ctx, cs), sentinel.ErrConflict)

	cs = conflict.NewChangeSet()
	cs.Remove("Candidate", rec)
	s.Require().NoError(s.store.Persist(ctx, cs))
	_, err := s.store.Fetch(ctx, "Candidate", "cand-1")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestUnregisteredType() {
	_, err := s.store.Fetch(context.Background(), "Invoice", "x")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
