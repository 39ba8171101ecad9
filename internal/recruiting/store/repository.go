// Package store persists questionnaire submissions. Appends are guarded by
// the submission's row version and retried through conflict.Resolver.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"regionsync/internal/recruiting/models"
	"regionsync/pkg/domain"
	dErrors "regionsync/pkg/domain-errors"
	"regionsync/pkg/platform/conflict"
)

// Backend is a submission store that can apply a change set atomically.
type Backend interface {
	conflict.Persister
	Load(ctx context.Context, id domain.EntityID) (*models.QuestionnaireSubmission, error)
}

type Repository struct {
	backend  Backend
	resolver *conflict.Resolver
	logger   *slog.Logger
	clock    func() time.Time
}

type Option func(*Repository)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(r *Repository) {
		if clock != nil {
			r.clock = clock
		}
	}
}

func New(backend Backend, resolver *conflict.Resolver, opts ...Option) *Repository {
	if resolver == nil {
		resolver = conflict.New()
	}
	r := &Repository{
		backend:  backend,
		resolver: resolver,
		logger:   slog.Default(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create starts a draft submission for a candidate.
func (r *Repository) Create(ctx context.Context, candidateID domain.EntityID) (*models.QuestionnaireSubmission, error) {
	if _, err := domain.ParseEntityID(string(candidateID)); err != nil {
		return nil, err
	}
	sub := &models.QuestionnaireSubmission{
		Identity:    domain.Identity{ID: domain.EntityID(uuid.NewString())},
		CandidateID: candidateID,
		Status:      models.SubmissionDraft,
	}
	sub.Touch(r.clock().UTC())

	cs := conflict.NewChangeSet()
	cs.Add(models.KindSubmission, sub)
	if err := r.resolver.PersistWithRetry(ctx, cs, r.backend); err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}
	return sub, nil
}

func (r *Repository) Get(ctx context.Context, id domain.EntityID) (*models.QuestionnaireSubmission, error) {
	return r.backend.Load(ctx, id)
}

// AppendAnswer adds one answer and bumps the submission version. A writer
// racing on the same submission makes the first persist fail; the resolver
// refreshes the token and the new answer is written on the next attempt.
func (r *Repository) AppendAnswer(ctx context.Context, submissionID domain.EntityID, questionKey, value string) (*models.Answer, error) {
	questionKey = strings.TrimSpace(questionKey)
	if questionKey == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "question key is required")
	}
	sub, err := r.backend.Load(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !sub.IsOpen() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "submission is already submitted")
	}
	if _, exists := sub.Answer(questionKey); exists {
		return nil, dErrors.New(dErrors.CodeUniqueViolation, fmt.Sprintf("question %q already answered", questionKey))
	}

	now := r.clock().UTC()
	ans := &models.Answer{
		Identity:     domain.Identity{ID: domain.EntityID(uuid.NewString())},
		SubmissionID: sub.ID,
		QuestionKey:  questionKey,
		Value:        value,
		CreatedAt:    now,
	}
	sub.Touch(now)

	cs := conflict.NewChangeSet()
	cs.Modify(models.KindSubmission, sub)
	cs.Add(models.KindAnswer, ans)
	if err := r.resolver.PersistWithRetry(ctx, cs, r.backend); err != nil {
		r.logger.WarnContext(ctx, "append answer failed",
			"submission_id", sub.ID,
			"question_key", questionKey,
			"error", err,
		)
		return nil, err
	}
	sub.Answers = append(sub.Answers, ans)
	return ans, nil
}

// Submit closes the submission for further answers.
func (r *Repository) Submit(ctx context.Context, id domain.EntityID) (*models.QuestionnaireSubmission, error) {
	sub, err := r.backend.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sub.IsOpen() {
		return sub, nil
	}
	sub.Status = models.SubmissionSubmitted
	sub.Touch(r.clock().UTC())

	cs := conflict.NewChangeSet()
	cs.Modify(models.KindSubmission, sub)
	if err := r.resolver.PersistWithRetry(ctx, cs, r.backend); err != nil {
		return nil, err
	}
	return sub, nil
}

// Delete removes the submission and its answers. Deleting a submission that
// another writer already removed succeeds.
func (r *Repository) Delete(ctx context.Context, id domain.EntityID) error {
	sub, err := r.backend.Load(ctx, id)
	if err != nil {
		return err
	}
	cs := conflict.NewChangeSet()
	cs.Remove(models.KindSubmission, sub)
	return r.resolver.PersistWithRetry(ctx, cs, r.backend)
}
