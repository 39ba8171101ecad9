//go:build integration

package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"regionsync/internal/recruiting/store"
	"regionsync/pkg/domain"
	dErrors "regionsync/pkg/domain-errors"
	"regionsync/pkg/platform/conflict"
	"regionsync/pkg/platform/sentinel"
	"regionsync/pkg/testutil/containers"
)

// racingBackend runs interfere before the first Persist it sees.
type racingBackend struct {
	*store.Postgres
	interfere func(ctx context.Context)
}

func (b *racingBackend) Persist(ctx context.Context, cs *conflict.ChangeSet) error {
	if b.interfere != nil {
		fn := b.interfere
		b.interfere = nil
		fn(ctx)
	}
	return b.Postgres.Persist(ctx, cs)
}

type PostgresRepositorySuite struct {
	suite.Suite
	db      *sql.DB
	backend *racingBackend
	repo    *store.Repository
	retries []int
}

func TestPostgresRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresRepositorySuite))
}

func (s *PostgresRepositorySuite) SetupSuite() {
	s.db = containers.GetManager().GetPostgres(s.T()).Database(s.T(), "recruiting")
}

func (s *PostgresRepositorySuite) SetupTest() {
	_, err := s.db.ExecContext(context.Background(),
		"TRUNCATE questionnaire_answers, questionnaire_submissions, candidates CASCADE")
	s.Require().NoError(err)

	s.retries = nil
	s.backend = &racingBackend{Postgres: store.NewPostgres(s.db)}
	resolver := conflict.New(
		conflict.WithBaseDelay(time.Millisecond),
		conflict.WithRetryHook(func(attempt int) { s.retries = append(s.retries, attempt) }),
	)
	s.repo = store.New(s.backend, resolver)
}

func (s *PostgresRepositorySuite) candidate() domain.EntityID {
	id := uuid.NewString()
	_, err := s.db.ExecContext(context.Background(), `INSERT INTO candidates (id) VALUES ($1)`, id)
	s.Require().NoError(err)
	return domain.EntityID(id)
}

func (s *PostgresRepositorySuite) TestCreateRequiresCandidate() {
	_, err := s.repo.Create(context.Background(), domain.EntityID(uuid.NewString()))
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrDependency)
}

func (s *PostgresRepositorySuite) TestAppendSurvivesConcurrentWriter() {
	ctx := context.Background()
	sub, err := s.repo.Create(ctx, s.candidate())
	s.Require().NoError(err)

	_, err = s.repo.AppendAnswer(ctx, sub.ID, "experience", "5 years")
	s.Require().NoError(err)
	s.Empty(s.retries)

	s.backend.interfere = func(ctx context.Context) {
		_, err := s.db.ExecContext(ctx,
			`UPDATE questionnaire_submissions SET row_version = row_version + 1 WHERE id = $1`, string(sub.ID))
		s.Require().NoError(err)
	}
	_, err = s.repo.AppendAnswer(ctx, sub.ID, "relocation", "yes")
	s.Require().NoError(err)
	s.Equal([]int{1}, s.retries)

	loaded, err := s.repo.Get(ctx, sub.ID)
	s.Require().NoError(err)
	s.Len(loaded.Answers, 2)
	s.Equal(int64(4), loaded.RowVersion)
}

func (s *PostgresRepositorySuite) TestDuplicateAnswerFromStaleReader() {
	ctx := context.Background()
	sub, err := s.repo.Create(ctx, s.candidate())
	s.Require().NoError(err)

	s.backend.interfere = func(ctx context.Context) {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO questionnaire_answers (id, submission_id, question_key, value)
			VALUES ($1, $2, 'experience', 'other writer')`, uuid.NewString(), string(sub.ID))
		s.Require().NoError(err)
	}
	_, err = s.repo.AppendAnswer(ctx, sub.ID, "experience", "5 years")
	s.Require().Error(err)
	s.True(errors.Is(err, sentinel.ErrDuplicate) || dErrors.HasCode(err, dErrors.CodeUniqueViolation))
}

func (s *PostgresRepositorySuite) TestSubmitAndDeleteCascade() {
	ctx := context.Background()
	sub, err := s.repo.Create(ctx, s.candidate())
	s.Require().NoError(err)
	_, err = s.repo.AppendAnswer(ctx, sub.ID, "experience", "5 years")
	s.Require().NoError(err)

	submitted, err := s.repo.Submit(ctx, sub.ID)
	s.Require().NoError(err)
	s.False(submitted.IsOpen())

	_, err = s.repo.AppendAnswer(ctx, sub.ID, "late", "answer")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	s.Require().NoError(s.repo.Delete(ctx, sub.ID))
	var n int
	s.Require().NoError(s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM questionnaire_answers WHERE submission_id = $1`, string(sub.ID)).Scan(&n))
	s.Zero(n)

	_, err = s.repo.Get(ctx, sub.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
