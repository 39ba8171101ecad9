//go:build integration

package orchestrator_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"regionsync/internal/sync/deadletter"
	"regionsync/internal/sync/models"
	"regionsync/internal/sync/orchestrator"
	"regionsync/internal/sync/policy"
	storepg "regionsync/internal/sync/store/postgres"
	"regionsync/internal/sync/transport/memory"
	"regionsync/pkg/domain"
	"regionsync/pkg/platform/conflict"
	"regionsync/pkg/platform/sentinel"
	"regionsync/pkg/testutil/containers"
)

// PostgresPropagationSuite runs the orchestrator against one migrated
// database per region.
type PostgresPropagationSuite struct {
	suite.Suite
	dbs    map[string]*sql.DB
	stores map[string]*storepg.Store
	queue  *memory.Queue
	dlq    *deadletter.Postgres
	orch   *orchestrator.Orchestrator
	pool   *orchestrator.Pool
}

func TestPostgresPropagationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresPropagationSuite))
}

func (s *PostgresPropagationSuite) SetupSuite() {
	pg := containers.GetManager().GetPostgres(s.T())
	s.dbs = map[string]*sql.DB{
		"eu-1": pg.Database(s.T(), "region_eu_1"),
		"eu-2": pg.Database(s.T(), "region_eu_2"),
		"us-1": pg.Database(s.T(), "region_us_1"),
	}
}

func (s *PostgresPropagationSuite) SetupTest() {
	registry, err := policy.NewRegistry(policy.DefaultConfigurations())
	s.Require().NoError(err)

	s.stores = map[string]*storepg.Store{}
	storeMap := orchestrator.StoreMap{}
	for name, db := range s.dbs {
		st := storepg.New(name, db, registry)
		s.stores[name] = st
		storeMap[name] = st
	}
	s.queue = memory.NewQueue()
	s.dlq = deadletter.NewPostgres(s.dbs["eu-1"])

	s.orch, err = orchestrator.New(orchestrator.Config{
		Regions: []models.Region{
			{Name: "eu-1", Residency: domain.ResidencyEU, Countries: []string{"DE"}},
			{Name: "eu-2", Residency: domain.ResidencyEU, Countries: []string{"FR"}},
			{Name: "us-1", Residency: domain.ResidencyNonEU, Countries: []string{"US"}},
		},
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
	}, registry, storeMap, s.queue, s.dlq,
		orchestrator.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		orchestrator.WithResolver(conflict.New(conflict.WithBaseDelay(0))),
	)
	s.Require().NoError(err)
	s.pool = orchestrator.NewPool(s.orch, orchestrator.WithWorkers(4))
}

func (s *PostgresPropagationSuite) seed(region, entityType string, rec *models.Record) {
	cs := conflict.NewChangeSet()
	cs.Add(entityType, rec)
	s.Require().NoError(s.stores[region].Persist(context.Background(), cs))
}

func (s *PostgresPropagationSuite) msg(entityType string, id domain.EntityID) models.Message {
	return models.Message{
		SyncEventID:  domain.NewSyncEventID(),
		EntityType:   entityType,
		EntityID:     id,
		SourceRegion: "eu-1",
		OccurredAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

func euRecord(entityType string, id domain.EntityID, fields map[string]any) *models.Record {
	return &models.Record{
		Identity:     domain.Identity{ID: id},
		EntityType:   entityType,
		SyncMetadata: domain.SyncMetadata{DataOriginRegion: "eu-1", DataResidency: domain.ResidencyEU},
		Fields:       fields,
	}
}

func (s *PostgresPropagationSuite) TestCandidateStaysInEU() {
	ctx := context.Background()
	id := domain.EntityID(uuid.NewString())
	s.seed("eu-1", "Candidate", euRecord("Candidate", id, map[string]any{"email": uuid.NewString() + "@example.com"}))

	msg := s.msg("Candidate", id)
	res, err := s.orch.Process(ctx, msg)
	s.Require().NoError(err)
	s.Equal(models.OutcomeApplied, res.Outcome)
	s.Equal([]string{"eu-2"}, res.Applied)

	got, err := s.stores["eu-2"].Fetch(ctx, "Candidate", id)
	s.Require().NoError(err)
	s.Equal(string(msg.SyncEventID), got.LastSyncEventID)
	s.Equal("eu-1", got.DataOriginRegion)

	_, err = s.stores["us-1"].Fetch(ctx, "Candidate", id)
	s.ErrorIs(err, sentinel.ErrNotFound)

	// Re-delivery is a no-op.
	res, err = s.orch.Process(ctx, msg)
	s.Require().NoError(err)
	s.Empty(res.Applied)
}

// Justification: the target database's foreign key is what rejects the child;
// the orchestrator must turn that into a requeue, not a dead letter.
func (s *PostgresPropagationSuite) TestChildBeforeParentIsRequeuedThenApplied() {
	ctx := context.Background()
	candID := domain.EntityID(uuid.NewString())
	appID := domain.EntityID(uuid.NewString())
	s.seed("eu-1", "Candidate", euRecord("Candidate", candID, map[string]any{"email": uuid.NewString() + "@example.com"}))
	s.seed("eu-1", "JobApplication", euRecord("JobApplication", appID, map[string]any{"candidate_id": string(candID)}))

	res, err := s.orch.Process(ctx, s.msg("JobApplication", appID))
	s.Require().NoError(err)
	s.Equal(models.OutcomeRequeued, res.Outcome)
	s.Equal(2, res.Attempt)
	s.Equal(1, s.queue.Requeued())

	s.Require().NoError(s.queue.Send(ctx, s.msg("Candidate", candID)))
	// Lanes run in parallel, so the child may need one more retry.
	_, err = s.queue.Drain(ctx, s.pool, 3)
	s.Require().NoError(err)

	got, err := s.stores["eu-2"].Fetch(ctx, "JobApplication", appID)
	s.Require().NoError(err)
	s.Equal(string(candID), got.Fields["candidate_id"])
}

func (s *PostgresPropagationSuite) TestDeleteRemovesTargets() {
	ctx := context.Background()
	id := domain.EntityID(uuid.NewString())
	s.seed("eu-1", "Candidate", euRecord("Candidate", id, map[string]any{"email": uuid.NewString() + "@example.com"}))
	_, err := s.orch.Process(ctx, s.msg("Candidate", id))
	s.Require().NoError(err)

	s.Require().NoError(s.stores["eu-1"].Delete(ctx, "Candidate", id))
	del := s.msg("Candidate", id)
	del.IsDeleted = true
	res, err := s.orch.Process(ctx, del)
	s.Require().NoError(err)
	s.Equal(models.OutcomeApplied, res.Outcome)

	_, err = s.stores["eu-2"].Fetch(ctx, "Candidate", id)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresPropagationSuite) TestUnregisteredTypeIsDeadLettered() {
	ctx := context.Background()
	msg := s.msg("Invoice", domain.EntityID(uuid.NewString()))

	res, err := s.orch.Process(ctx, msg)
	s.Require().NoError(err)
	s.Equal(models.OutcomeDeadLettered, res.Outcome)

	letters, err := s.dlq.List(ctx, deadletter.Filter{EntityType: "Invoice"})
	s.Require().NoError(err)
	s.Require().NotEmpty(letters)
	s.Equal(models.ReasonConfiguration, letters[0].Reason)
}
