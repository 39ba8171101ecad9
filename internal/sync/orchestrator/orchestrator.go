// Package orchestrator applies sync messages to target regions: policy lookup,
// target planning, idempotent apply through the conflict resolver, and
// requeue or dead-letter on failure.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"regionsync/internal/sync/lanes"
	"regionsync/internal/sync/metrics"
	"regionsync/internal/sync/models"
	"regionsync/internal/sync/policy"
	dErrors "regionsync/pkg/domain-errors"
	"regionsync/pkg/platform/circuit"
	"regionsync/pkg/platform/conflict"
	"regionsync/pkg/platform/sentinel"
	"regionsync/pkg/platform/sqlerr"
)

const tracerName = "regionsync/internal/sync/orchestrator"

// Orchestrator processes one message at a time. It is safe for concurrent use
// across distinct lanes; callers serialize messages of the same lane.
type Orchestrator struct {
	cfg      Config
	regions  map[string]models.Region
	policies PolicySource
	stores   Stores
	requeuer Requeuer
	sink     DeadLetterSink

	exposure ExposureLookup
	pending  lanes.PendingTracker
	resolver *conflict.Resolver
	breakers map[string]*circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	clock    func() time.Time
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithExposure sets the lookup used by exposure-scoped entity types. Without
// it those types only reach central regions.
func WithExposure(lookup ExposureLookup) Option {
	return func(o *Orchestrator) {
		o.exposure = lookup
	}
}

func WithPendingTracker(p lanes.PendingTracker) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.pending = p
		}
	}
}

func WithResolver(r *conflict.Resolver) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.resolver = r
		}
	}
}

// WithBreakers guards each target region with a circuit breaker.
func WithBreakers(failureThreshold int, cooldown time.Duration) Option {
	return func(o *Orchestrator) {
		o.breakers = make(map[string]*circuit.Breaker, len(o.cfg.Regions))
		for _, r := range o.cfg.Regions {
			o.breakers[r.Name] = circuit.New(r.Name,
				circuit.WithFailureThreshold(failureThreshold),
				circuit.WithCooldown(cooldown))
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// New validates cfg and builds an orchestrator.
func New(cfg Config, policies PolicySource, stores Stores, requeuer Requeuer, sink DeadLetterSink, opts ...Option) (*Orchestrator, error) {
	switch {
	case policies == nil:
		return nil, errors.New("policy source is required")
	case stores == nil:
		return nil, errors.New("stores are required")
	case requeuer == nil:
		return nil, errors.New("requeuer is required")
	case sink == nil:
		return nil, errors.New("dead-letter sink is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	o := &Orchestrator{
		cfg:      cfg,
		regions:  make(map[string]models.Region, len(cfg.Regions)),
		policies: policies,
		stores:   stores,
		requeuer: requeuer,
		sink:     sink,
		pending:  lanes.NewLocalPending(),
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		clock:    time.Now,
	}
	for _, r := range cfg.Regions {
		o.regions[r.Name] = r
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.resolver == nil {
		o.resolver = conflict.New(conflict.WithLogger(o.logger), conflict.WithRetryHook(func(int) {
			if o.metrics != nil {
				o.metrics.IncrementConflictRetry()
			}
		}))
	}
	return o, nil
}

// Regions returns the configured topology sorted by name.
func (o *Orchestrator) Regions() []models.Region {
	return append([]models.Region(nil), o.cfg.Regions...)
}

// Process runs one message to a terminal outcome for this delivery. The error
// return is reserved for failures of the requeue and dead-letter channels and
// for context cancellation; the caller must not acknowledge the message then.
func (o *Orchestrator) Process(ctx context.Context, msg models.Message) (models.Result, error) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "sync.process", trace.WithAttributes(
		attribute.String("sync.entity_type", msg.EntityType),
		attribute.String("sync.entity_id", string(msg.EntityID)),
		attribute.String("sync.event_id", string(msg.SyncEventID)),
		attribute.String("sync.source_region", msg.SourceRegion),
		attribute.Bool("sync.is_deleted", msg.IsDeleted),
		attribute.Int("sync.attempt", msg.Attempt()),
	))
	defer span.End()

	res, err := o.process(ctx, msg)

	span.SetAttributes(attribute.String("sync.outcome", string(res.Outcome)))
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case res.Outcome == models.OutcomeDeadLettered:
		span.SetStatus(codes.Error, res.Reason)
	}
	if o.metrics != nil {
		o.metrics.ObserveProcess(start)
		if err == nil {
			o.metrics.IncrementProcessed(msg.EntityType, string(res.Outcome))
		}
	}
	return res, err
}

func (o *Orchestrator) process(ctx context.Context, msg models.Message) (models.Result, error) {
	if err := msg.Validate(); err != nil {
		return o.deadLetter(ctx, msg, models.ReasonValidation, err)
	}

	desc, err := o.policies.Get(msg.EntityType)
	if err != nil {
		// Unregistered types are a configuration error: dead-lettered, not dropped.
		return o.deadLetter(ctx, msg, models.ReasonConfiguration, err)
	}
	if msg.TableName != "" && msg.TableName != desc.Table() {
		return o.deadLetter(ctx, msg, models.ReasonValidation,
			dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("table %q does not match entity type %q", msg.TableName, desc.Name)))
	}
	if !desc.IsEnabled {
		o.logger.InfoContext(ctx, "sync dropped: entity type disabled",
			"entity_type", msg.EntityType,
			"entity_id", msg.EntityID,
			"sync_event_id", msg.SyncEventID,
		)
		return models.Result{Outcome: models.OutcomeDropped, Attempt: msg.Attempt(), Reason: "entity type disabled"}, nil
	}
	if _, ok := o.regions[msg.SourceRegion]; !ok {
		return o.deadLetter(ctx, msg, models.ReasonConfiguration,
			dErrors.New(dErrors.CodeConfiguration, fmt.Sprintf("unknown source region %q", msg.SourceRegion)))
	}

	if msg.IsDeleted {
		return o.processDelete(ctx, desc, msg)
	}
	return o.processUpsert(ctx, desc, msg)
}

func (o *Orchestrator) processUpsert(ctx context.Context, desc policy.Descriptor, msg models.Message) (models.Result, error) {
	res, err := o.upsert(ctx, desc, msg)
	if err != nil {
		return res, err
	}
	// Track upserts that entered the retry path so deletes of the same key wait.
	key := msg.LaneKey()
	switch {
	case res.Outcome == models.OutcomeRequeued && msg.Attempt() == 1:
		if err := o.pending.Add(ctx, key); err != nil {
			o.logger.WarnContext(ctx, "failed to mark upsert pending", "lane", key, "error", err)
		}
	case res.Outcome != models.OutcomeRequeued && msg.Attempt() > 1:
		if err := o.pending.Done(ctx, key); err != nil {
			o.logger.WarnContext(ctx, "failed to clear pending upsert", "lane", key, "error", err)
		}
	}
	return res, nil
}

func (o *Orchestrator) upsert(ctx context.Context, desc policy.Descriptor, msg models.Message) (models.Result, error) {
	attempt := msg.Attempt()

	sourceStore, err := o.stores.Store(msg.SourceRegion)
	if err != nil {
		return o.deadLetter(ctx, msg, models.ReasonConfiguration, err)
	}
	row, err := sourceStore.Fetch(ctx, desc.Name, msg.EntityID)
	if errors.Is(err, sentinel.ErrNotFound) {
		// The row was removed after the event was produced; its delete event follows.
		o.logger.WarnContext(ctx, "sync skipped: source row missing",
			"entity_type", msg.EntityType,
			"entity_id", msg.EntityID,
			"source_region", msg.SourceRegion,
		)
		return models.Result{Outcome: models.OutcomeSkipped, Attempt: attempt, Reason: "source row missing"}, nil
	}
	if err != nil {
		return o.failure(ctx, msg, nil, nil, fmt.Errorf("fetch source row: %w", err))
	}

	targets, skipped, err := o.planUpsert(ctx, desc, msg, row)
	if err != nil {
		return o.failure(ctx, msg, nil, nil, fmt.Errorf("plan targets: %w", err))
	}
	o.recordSkips(ctx, msg, skipped)
	if len(targets) == 0 {
		o.logger.InfoContext(ctx, "sync dropped: no eligible target",
			"entity_type", msg.EntityType,
			"entity_id", msg.EntityID,
			"sync_event_id", msg.SyncEventID,
		)
		return models.Result{
			Outcome: models.OutcomeDropped,
			Skipped: skipped,
			Attempt: attempt,
			Reason:  dErrors.New(dErrors.CodePolicyViolation, "no eligible target region").Error(),
		}, nil
	}

	var (
		applied  []string
		firstErr error
	)
	for _, target := range targets {
		ok, reason, err := o.applyUpsert(ctx, target, desc, msg, row)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return models.Result{}, ctx.Err()
			}
			o.logger.WarnContext(ctx, "sync apply failed",
				"entity_type", msg.EntityType,
				"entity_id", msg.EntityID,
				"target_region", target.Name,
				"attempt", attempt,
				"error", err,
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("apply to %s: %w", target.Name, err)
			}
		case ok:
			applied = append(applied, target.Name)
			if o.metrics != nil {
				o.metrics.IncrementApplied(desc.Name, target.Name, "upsert")
			}
		default:
			skipped = append(skipped, models.SkippedTarget{Region: target.Name, Reason: reason})
			if o.metrics != nil {
				o.metrics.IncrementSkipped(desc.Name, reason)
			}
		}
	}
	if firstErr != nil {
		return o.failure(ctx, msg, applied, skipped, firstErr)
	}
	return o.success(ctx, msg, applied, skipped), nil
}

func (o *Orchestrator) applyUpsert(ctx context.Context, target models.Region, desc policy.Descriptor, msg models.Message, source *models.Record) (bool, string, error) {
	store, err := o.targetStore(target.Name)
	if err != nil {
		return false, "", err
	}
	start := time.Now()
	defer func() {
		if o.metrics != nil {
			o.metrics.ObserveApply(target.Name, start)
		}
	}()

	var applied bool
	var skipReason string
	err = o.guard(target.Name, func() error {
		existing, err := store.Fetch(ctx, desc.Name, msg.EntityID)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			existing = nil
		case err != nil:
			return err
		}
		if existing != nil && existing.AlreadyApplied(msg.SyncEventID, msg.OccurredAt) {
			skipReason = skipAlreadyApplied
			return nil
		}

		rec := source.Clone()
		rec.EntityType = desc.Name
		rec.RowVersion = 0
		rec.LastSyncedAt, rec.LastSyncEventID = nil, ""
		if existing != nil {
			rec.RowVersion = existing.RowVersion
			rec.LastSyncedAt = existing.LastSyncedAt
		}
		syncedAt := msg.OccurredAt
		if syncedAt.IsZero() {
			syncedAt = o.clock()
		}
		rec.MarkSynced(msg.SyncEventID, syncedAt)

		cs := conflict.NewChangeSet()
		if existing == nil {
			cs.Add(desc.Name, rec)
		} else {
			cs.Modify(desc.Name, rec)
		}
		if err := o.resolver.PersistWithRetry(ctx, cs, store); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, skipReason, err
}

func (o *Orchestrator) processDelete(ctx context.Context, desc policy.Descriptor, msg models.Message) (models.Result, error) {
	attempt := msg.Attempt()
	key := msg.LaneKey()

	pending, err := o.pending.Pending(ctx, key)
	if err != nil {
		return o.failure(ctx, msg, nil, nil, fmt.Errorf("check pending upserts: %w", err))
	}
	if pending > 0 {
		delay := o.cfg.DeferDelay
		if err := o.requeuer.Requeue(ctx, msg.Defer(o.clock().Add(delay)), delay); err != nil {
			return models.Result{}, fmt.Errorf("defer delete: %w", err)
		}
		if o.metrics != nil {
			o.metrics.IncrementRequeue(msg.EntityType, "defer")
		}
		o.logger.InfoContext(ctx, "sync delete deferred: upserts pending",
			"entity_type", msg.EntityType,
			"entity_id", msg.EntityID,
			"pending", pending,
		)
		return models.Result{Outcome: models.OutcomeDeferred, Attempt: attempt, Delay: delay, Reason: "upserts pending"}, nil
	}

	var (
		applied  []string
		skipped  []models.SkippedTarget
		firstErr error
	)
	for _, target := range o.planDelete(desc, msg) {
		store, err := o.targetStore(target.Name)
		if err != nil {
			firstErr = err
			break
		}
		err = o.guard(target.Name, func() error {
			return store.Delete(ctx, desc.Name, msg.EntityID)
		})
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			skipped = append(skipped, models.SkippedTarget{Region: target.Name, Reason: skipAlreadyAbsent})
		case err != nil:
			if ctx.Err() != nil {
				return models.Result{}, ctx.Err()
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("delete in %s: %w", target.Name, err)
			}
		default:
			applied = append(applied, target.Name)
			if o.metrics != nil {
				o.metrics.IncrementApplied(desc.Name, target.Name, "delete")
			}
		}
	}
	if firstErr != nil {
		return o.failure(ctx, msg, applied, skipped, firstErr)
	}
	return o.success(ctx, msg, applied, skipped), nil
}

func (o *Orchestrator) success(ctx context.Context, msg models.Message, applied []string, skipped []models.SkippedTarget) models.Result {
	outcome := models.OutcomeApplied
	if len(applied) == 0 {
		outcome = models.OutcomeSkipped
	}
	o.logger.InfoContext(ctx, "sync processed",
		"entity_type", msg.EntityType,
		"entity_id", msg.EntityID,
		"sync_event_id", msg.SyncEventID,
		"outcome", outcome,
		"regions", applied,
		"attempt", msg.Attempt(),
	)
	return models.Result{Outcome: outcome, Applied: applied, Skipped: skipped, Attempt: msg.Attempt()}
}

// failure routes an apply error to requeue or dead-letter by its class.
func (o *Orchestrator) failure(ctx context.Context, msg models.Message, applied []string, skipped []models.SkippedTarget, cause error) (models.Result, error) {
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		if ctx.Err() != nil {
			return models.Result{}, ctx.Err()
		}
	}

	var res models.Result
	var err error
	switch {
	case dErrors.HasCode(cause, dErrors.CodeConfiguration):
		res, err = o.deadLetter(ctx, msg, models.ReasonConfiguration, cause)
	case dErrors.HasCode(cause, dErrors.CodeUniqueViolation), sqlerr.IsUniqueViolation(cause):
		res, err = o.deadLetter(ctx, msg, models.ReasonUnique, cause)
	default:
		res, err = o.transient(ctx, msg, cause)
	}
	res.Applied = applied
	res.Skipped = skipped
	return res, err
}

// transient requeues with backoff, or dead-letters once the attempt budget is spent.
func (o *Orchestrator) transient(ctx context.Context, msg models.Message, cause error) (models.Result, error) {
	attempt := msg.Attempt()
	wrapped := dErrors.Wrap(cause, dErrors.CodeTransientSync, "sync apply failed")
	if attempt >= o.cfg.MaxAttempts {
		return o.deadLetter(ctx, msg, models.ReasonExhausted,
			dErrors.Wrap(wrapped, dErrors.CodePermanentFailure, fmt.Sprintf("gave up after %d attempts", attempt)))
	}

	delay := Backoff(attempt, o.cfg.BaseDelay, o.cfg.MaxDelay)
	next := msg.Retry(o.clock().Add(delay))
	if err := o.requeuer.Requeue(ctx, next, delay); err != nil {
		return models.Result{}, fmt.Errorf("requeue: %w", err)
	}
	if o.metrics != nil {
		o.metrics.IncrementRequeue(msg.EntityType, "retry")
	}
	o.logger.InfoContext(ctx, "sync requeued",
		"entity_type", msg.EntityType,
		"entity_id", msg.EntityID,
		"sync_event_id", msg.SyncEventID,
		"attempt", next.AttemptCount,
		"delay", delay,
		"error", cause,
	)
	return models.Result{
		Outcome: models.OutcomeRequeued,
		Attempt: next.AttemptCount,
		Delay:   delay,
		Reason:  string(dErrors.CodeTransientSync),
		Err:     wrapped,
	}, nil
}

func (o *Orchestrator) deadLetter(ctx context.Context, msg models.Message, reason string, cause error) (models.Result, error) {
	dl := models.NewDeadLetter(msg, reason, cause, o.clock())
	if err := o.sink.DeadLetter(ctx, dl); err != nil {
		return models.Result{}, fmt.Errorf("dead-letter: %w", err)
	}
	if o.metrics != nil {
		o.metrics.IncrementDeadLetter(msg.EntityType, reason)
	}
	o.logger.ErrorContext(ctx, "sync dead-lettered",
		"entity_type", msg.EntityType,
		"entity_id", msg.EntityID,
		"sync_event_id", msg.SyncEventID,
		"attempt", msg.Attempt(),
		"reason", reason,
		"error", cause,
	)
	return models.Result{
		Outcome: models.OutcomeDeadLettered,
		Attempt: msg.Attempt(),
		Reason:  reason,
		Err:     cause,
	}, nil
}

func (o *Orchestrator) recordSkips(ctx context.Context, msg models.Message, skipped []models.SkippedTarget) {
	for _, s := range skipped {
		o.logger.DebugContext(ctx, "sync target skipped",
			"entity_type", msg.EntityType,
			"entity_id", msg.EntityID,
			"target_region", s.Region,
			"reason", s.Reason,
		)
		if o.metrics != nil {
			o.metrics.IncrementSkipped(msg.EntityType, s.Reason)
		}
	}
}

func (o *Orchestrator) targetStore(region string) (RegionStore, error) {
	return o.stores.Store(region)
}

// guard runs fn behind the region's breaker, if any. Only unavailability
// counts as a breaker failure; data errors say nothing about store health.
func (o *Orchestrator) guard(region string, fn func() error) error {
	b, ok := o.breakers[region]
	if !ok {
		return fn()
	}
	if !b.Allow() {
		return fmt.Errorf("region %s: breaker open: %w", region, sentinel.ErrUnavailable)
	}
	err := fn()
	if sqlerr.Classify(err) == sqlerr.KindUnavailable {
		if _, change := b.RecordFailure(); change.Opened {
			o.logger.Warn("region breaker opened", "region", region)
		}
		return err
	}
	if _, change := b.RecordSuccess(); change.Closed {
		o.logger.Info("region breaker closed", "region", region)
	}
	return err
}
