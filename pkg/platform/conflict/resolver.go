// Package conflict retries optimistic-concurrency writes that lost a race,
// refreshing only the version tokens of the tracked rows so that pending
// inserts in the same change set survive the retry.
package conflict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dErrors "regionsync/pkg/domain-errors"
	"regionsync/pkg/platform/sentinel"
	"regionsync/pkg/platform/sqlerr"
)

// ErrConflictExhausted is returned when every attempt lost a version race.
var ErrConflictExhausted = errors.New("concurrency conflict retries exhausted")

// Persister writes a change set atomically. A version token mismatch must be
// reported as an error wrapping sentinel.ErrConflict, and a missing row from
// CurrentVersion as sentinel.ErrNotFound.
type Persister interface {
	Persist(ctx context.Context, cs *ChangeSet) error
	CurrentVersion(ctx context.Context, e *Entry) (int64, error)
}

// Resolver runs the bounded retry loop.
type Resolver struct {
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *slog.Logger
	onRetry     func(attempt int)
}

type Option func(*Resolver)

func WithMaxAttempts(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

func WithBaseDelay(d time.Duration) Option {
	return func(r *Resolver) {
		if d >= 0 {
			r.baseDelay = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSleeper replaces the context-aware sleep, for tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Resolver) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// WithRetryHook is called before each retry with the attempt that failed.
func WithRetryHook(fn func(attempt int)) Option {
	return func(r *Resolver) {
		r.onRetry = fn
	}
}

func New(opts ...Option) *Resolver {
	r := &Resolver{
		maxAttempts: 3,
		baseDelay:   25 * time.Millisecond,
		sleep:       sleepContext,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PersistWithRetry persists cs, retrying version conflicts up to the
// configured attempt count. Unique violations are returned immediately with
// CodeUniqueViolation; a row deleted under a pending update is returned with
// CodeConcurrencyConflict.
func (r *Resolver) PersistWithRetry(ctx context.Context, cs *ChangeSet, p Persister) error {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err := p.Persist(ctx, cs)
		if err == nil {
			cs.acceptChanges()
			return nil
		}
		if sqlerr.IsUniqueViolation(err) {
			return dErrors.Wrap(err, dErrors.CodeUniqueViolation, "duplicate key")
		}
		if !isVersionConflict(err) {
			return err
		}
		lastErr = err
		if attempt == r.maxAttempts {
			break
		}

		if err := r.refreshVersions(ctx, cs, p); err != nil {
			return err
		}
		if !cs.HasPending() {
			return nil
		}

		r.logger.DebugContext(ctx, "concurrency conflict, retrying",
			"attempt", attempt,
			"max_attempts", r.maxAttempts,
		)
		if r.onRetry != nil {
			r.onRetry(attempt)
		}
		if err := r.sleep(ctx, r.baseDelay*time.Duration(attempt)); err != nil {
			return err
		}
	}

	return dErrors.Wrap(
		fmt.Errorf("%w after %d attempts: %w", ErrConflictExhausted, r.maxAttempts, lastErr),
		dErrors.CodeConflictExhausted, "persist")
}

// refreshVersions reloads OriginalVersion of Modified and Deleted versioned
// entries. An Added versioned entry whose row now exists was lost to a racing
// insert and becomes Modified against the stored version. Nothing else on the
// entry or entity is touched.
func (r *Resolver) refreshVersions(ctx context.Context, cs *ChangeSet, p Persister) error {
	for _, e := range cs.Entries() {
		if e.State != Added && e.State != Modified && e.State != Deleted {
			continue
		}
		if !e.Versioned() {
			continue
		}
		current, err := p.CurrentVersion(ctx, e)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			switch e.State {
			case Added:
				continue
			case Deleted:
				e.State = Detached
				continue
			}
			return dErrors.Wrap(
				fmt.Errorf("%s %s: %w", e.Kind, e.Entity.GetID(), sentinel.ErrConflict),
				dErrors.CodeConcurrencyConflict, "row deleted concurrently")
		case err != nil:
			return fmt.Errorf("refresh version of %s %s: %w", e.Kind, e.Entity.GetID(), err)
		}
		if e.State == Added {
			e.State = Modified
		}
		e.OriginalVersion = current
	}
	return nil
}

func isVersionConflict(err error) bool {
	return sqlerr.Classify(err) == sqlerr.KindSerialization
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
