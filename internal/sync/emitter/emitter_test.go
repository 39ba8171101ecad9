package emitter

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"regionsync/internal/sync/models"
	"regionsync/internal/sync/policy"
	"regionsync/internal/sync/transport/memory"
	"regionsync/pkg/domain"
	dErrors "regionsync/pkg/domain-errors"
)

type staticFinder map[string][]domain.EntityID

func (f staticFinder) Children(_ context.Context, childType, parentType string, parentID domain.EntityID) ([]domain.EntityID, error) {
	return f[childType+"<"+parentType+"/"+string(parentID)], nil
}

type EmitterSuite struct {
	suite.Suite
	registry *policy.Registry
	queue    *memory.Queue
	emitter  *Emitter
	now      time.Time
}

func TestEmitterSuite(t *testing.T) {
	suite.Run(t, new(EmitterSuite))
}

func (s *EmitterSuite) SetupTest() {
	descs := policy.DefaultConfigurations()
	for i := range descs {
		if descs[i].Name == "Feedback" {
			descs[i].IsEnabled = false
		}
	}
	reg, err := policy.NewRegistry(descs)
	s.Require().NoError(err)
	s.registry = reg
	s.queue = memory.NewQueue()
	s.now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s.emitter = New(s.queue, reg, "eu-west",
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return s.now }),
	)
}

func (s *EmitterSuite) drain() []models.Message {
	var out []models.Message
	_, err := s.queue.Drain(context.Background(), batchFunc(func(msgs []models.Message) {
		out = append(out, msgs...)
	}), 1)
	s.Require().NoError(err)
	return out
}

type batchFunc func([]models.Message)

func (f batchFunc) ProcessBatch(_ context.Context, msgs []models.Message) ([]models.Result, error) {
	f(msgs)
	return make([]models.Result, len(msgs)), nil
}

func types(msgs []models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.EntityType
		if m.IsDeleted {
			out[i] = "-" + out[i]
		}
	}
	return out
}

// =============================================================================
// Emit
// =============================================================================

func (s *EmitterSuite) TestEmitBuildsMessage() {
	ok, err := s.emitter.Emit(context.Background(), Change{EntityType: "Candidate", EntityID: "c1"})

	s.Require().NoError(err)
	s.True(ok)
	msgs := s.drain()
	s.Require().Len(msgs, 1)
	m := msgs[0]
	s.Equal("eu-west", m.SourceRegion)
	s.Equal("candidates", m.TableName)
	s.Equal(s.now, m.OccurredAt)
	s.NoError(m.Validate())
}

func (s *EmitterSuite) TestEmitSkipsDisabledType() {
	ok, err := s.emitter.Emit(context.Background(), Change{EntityType: "Feedback", EntityID: "f1"})

	s.Require().NoError(err)
	s.False(ok)
	s.Zero(s.queue.Len())
}

func (s *EmitterSuite) TestEmitRejectsUnregisteredType() {
	_, err := s.emitter.Emit(context.Background(), Change{EntityType: "Invoice", EntityID: "i1"})

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
}

func (s *EmitterSuite) TestEmitRejectsBadID() {
	_, err := s.emitter.Emit(context.Background(), Change{EntityType: "Candidate", EntityID: "a/b"})

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

// =============================================================================
// Ordering
// =============================================================================

func (s *EmitterSuite) TestEmitBatchUpsertsParentsFirstDeletesChildrenFirst() {
	n, err := s.emitter.EmitBatch(context.Background(), []Change{
		{EntityType: "JobApplication", EntityID: "a1", Deleted: true},
		{EntityType: "JobApplication", EntityID: "a2"},
		{EntityType: "Candidate", EntityID: "c1", Deleted: true},
		{EntityType: "Candidate", EntityID: "c2"},
		{EntityType: "JobPost", EntityID: "p1"},
	})

	s.Require().NoError(err)
	s.Equal(5, n)
	s.Equal([]string{"Candidate", "JobPost", "JobApplication", "-JobApplication", "-Candidate"}, types(s.drain()))
}

func (s *EmitterSuite) TestCascadeUpsertVisitsDescendants() {
	finder := staticFinder{
		"JobApplication<Candidate/c1":          {"a1", "a2"},
		"Interview<JobApplication/a1":          {"i1"},
		"JobApplicationStep<JobApplication/a2": {"s1"},
	}

	n, err := s.emitter.Cascade(context.Background(), Change{EntityType: "Candidate", EntityID: "c1"}, finder)

	s.Require().NoError(err)
	s.Equal(5, n)
	got := types(s.drain())
	s.Equal("Candidate", got[0])
	s.Less(indexOf(got, "JobApplication"), indexOf(got, "Interview"))
}

func (s *EmitterSuite) TestCascadeDeleteGoesDeepestFirst() {
	finder := staticFinder{
		"JobApplication<Candidate/c1": {"a1"},
		"Interview<JobApplication/a1": {"i1"},
	}

	_, err := s.emitter.Cascade(context.Background(), Change{EntityType: "Candidate", EntityID: "c1", Deleted: true}, finder)

	s.Require().NoError(err)
	s.Equal([]string{"-Interview", "-JobApplication", "-Candidate"}, types(s.drain()))
}

func indexOf(xs []string, x string) int {
	for i, v := range xs {
		if v == x {
			return i
		}
	}
	return -1
}

func TestOrder_UnknownTypesLast(t *testing.T) {
	reg, err := policy.NewRegistry(policy.DefaultConfigurations())
	require.NoError(t, err)

	got := Order(reg, []Change{{EntityType: "Mystery", EntityID: "m"}, {EntityType: "Country", EntityID: "de"}})

	assert.Equal(t, "Country", got[0].EntityType)
	assert.Equal(t, "Mystery", got[1].EntityType)
}
