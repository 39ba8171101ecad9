package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"regionsync/internal/platform/config"
	"regionsync/internal/platform/httpserver"
	"regionsync/internal/platform/jwttoken"
	"regionsync/internal/platform/kafka/admin"
	"regionsync/internal/platform/kafka/consumer"
	"regionsync/internal/platform/kafka/producer"
	platformmetrics "regionsync/internal/platform/metrics"
	"regionsync/internal/platform/middleware"
	"regionsync/internal/platform/postgres"
	platformredis "regionsync/internal/platform/redis"
	"regionsync/internal/sync/deadletter"
	"regionsync/internal/sync/emitter"
	"regionsync/internal/sync/exposure"
	"regionsync/internal/sync/handler"
	"regionsync/internal/sync/lanes"
	syncmetrics "regionsync/internal/sync/metrics"
	"regionsync/internal/sync/orchestrator"
	storepg "regionsync/internal/sync/store/postgres"
	kafkatransport "regionsync/internal/sync/transport/kafka"
	"regionsync/pkg/platform/conflict"
)

const shutdownGrace = 15 * time.Second

func newServeCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Consume sync messages and serve the operator API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := build(ctx, e.cfg, e.logger)
			if err != nil {
				return err
			}
			defer a.close()
			return a.run(ctx)
		},
	}
}

type app struct {
	cfg      config.Config
	logger   *slog.Logger
	dbs      map[string]*sql.DB
	redis    *platformredis.Client
	producer *producer.Producer
	consumer *consumer.Consumer
	batches  consumer.BatchHandler
	server   *http.Server
}

// build wires every dependency. Failures here are configuration errors and
// abort startup.
func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	topo, err := config.LoadTopology(cfg.TopologyFile)
	if err != nil {
		return nil, err
	}
	regions, err := regionsFromTopology(topo, residencyResolver(topo))
	if err != nil {
		return nil, err
	}
	dsns := topo.DSNs()
	for _, r := range regions {
		if _, ok := dsns[r.Name]; !ok {
			return nil, fmt.Errorf("region %s has no dsn", r.Name)
		}
	}

	if a.dbs, err = postgres.OpenRegions(ctx, dsns, postgres.DefaultPool); err != nil {
		return nil, err
	}
	for name, db := range a.dbs {
		if err := postgres.Migrate(ctx, db, logger.With("region", name)); err != nil {
			return nil, fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	primaryName, primaryDB := primaryRegion(cfg, a.dbs)

	registry, err := loadPolicies(ctx, cfg, primaryDB)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "policies loaded",
		"source", cfg.Sync.PolicySource,
		"entity_types", len(registry.All()),
		"order", registry.Order(),
	)

	reg := platformmetrics.NewRegistry()
	m := syncmetrics.New(reg)

	stores := make(orchestrator.StoreMap, len(a.dbs))
	for name, db := range a.dbs {
		stores[name] = storepg.New(name, db, registry, storepg.WithColumns(storepg.DefaultColumns()))
	}

	var (
		locker  lanes.Locker         = lanes.NewLocalLocker()
		pending lanes.PendingTracker = lanes.NewLocalPending()
	)
	if a.redis, err = platformredis.New(ctx, cfg.Redis); err != nil {
		return nil, err
	}
	if a.redis != nil {
		locker = lanes.NewRedisLocker(a.redis.Client, lanes.WithLockTTL(cfg.Sync.LockTTL))
		pending = lanes.NewRedisPending(a.redis.Client, cfg.Sync.MaxDelay*time.Duration(cfg.Sync.MaxAttempts))
	}

	if a.producer, err = producer.New(producer.Config{Brokers: cfg.Kafka.Brokers, ClientID: cfg.Kafka.ClientID}); err != nil {
		return nil, err
	}
	transport := kafkatransport.NewTransport(a.producer, cfg.Kafka.Topic)
	topics := append(transport.Topics(), cfg.Kafka.DeadLetterTopic)
	if err := admin.EnsureTopics(ctx, a.producer.Client(), cfg.Kafka.Partitions, cfg.Kafka.Replication, topics...); err != nil {
		return nil, err
	}

	deadLetters := deadletter.NewPostgres(primaryDB)
	sink := deadletter.Fanout{deadLetters, deadletter.NewTopic(a.producer, cfg.Kafka.DeadLetterTopic)}

	resolver := conflict.New(
		conflict.WithMaxAttempts(cfg.Sync.ConflictMaxAttempts),
		conflict.WithBaseDelay(cfg.Sync.ConflictBaseDelay),
		conflict.WithLogger(logger),
		conflict.WithRetryHook(func(int) { m.IncrementConflictRetry() }),
	)
	orch, err := orchestrator.New(orchestrator.Config{
		Regions:     regions,
		MaxAttempts: cfg.Sync.MaxAttempts,
		BaseDelay:   cfg.Sync.BaseDelay,
		MaxDelay:    cfg.Sync.MaxDelay,
		DeferDelay:  cfg.Sync.DeferDelay,
	}, registry, stores, transport, sink,
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(m),
		orchestrator.WithExposure(exposure.NewCached(exposure.NewPostgres(a.dbs), cfg.Sync.ExposureCacheTTL)),
		orchestrator.WithPendingTracker(pending),
		orchestrator.WithResolver(resolver),
		orchestrator.WithBreakers(cfg.Sync.BreakerThreshold, cfg.Sync.BreakerCooldown),
	)
	if err != nil {
		return nil, err
	}
	pool := orchestrator.NewPool(orch,
		orchestrator.WithWorkers(cfg.Sync.Workers),
		orchestrator.WithLocker(locker),
		orchestrator.WithPoolLogger(logger),
		orchestrator.WithPoolMetrics(m),
	)
	a.batches = kafkatransport.NewHandler(pool, transport, sink, kafkatransport.WithHandlerLogger(logger))

	if a.consumer, err = consumer.New(consumer.Config{
		Brokers:    cfg.Kafka.Brokers,
		Group:      cfg.Kafka.ConsumerGroup,
		Topics:     transport.Topics(),
		ClientID:   cfg.Kafka.ClientID,
		MaxRetries: cfg.Kafka.HandlerRetries,
	}, logger); err != nil {
		return nil, err
	}

	opts := []handler.Option{
		handler.WithLogger(logger),
		handler.WithCheck("kafka", a.producer.Ping),
	}
	for name, db := range a.dbs {
		opts = append(opts, handler.WithCheck("postgres:"+name, db.PingContext))
	}
	if a.redis != nil {
		opts = append(opts, handler.WithCheck("redis", a.redis.Health))
	}
	if cfg.LocalRegion != "" {
		opts = append(opts, handler.WithEmitter(emitter.New(transport, registry, cfg.LocalRegion, emitter.WithLogger(logger))))
	}
	h := handler.New(registry, orch, deadLetters, opts...)
	a.server = httpserver.New(cfg.Server.Addr, handler.NewRouter(h, adminAuth(cfg.Server, logger), platformmetrics.Handler(reg)))

	logger.InfoContext(ctx, "regionsync wired",
		"regions", len(regions),
		"primary_region", primaryName,
		"distributed_lanes", a.redis != nil,
	)
	return a, nil
}

// adminAuth prefers bearer tokens; the static admin token is the fallback
// for deployments without a signing key.
func adminAuth(s config.Server, logger *slog.Logger) func(http.Handler) http.Handler {
	if s.JWTSigningKey == "" {
		return middleware.RequireAdminToken(s.AdminToken, logger)
	}
	validator := jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(s.JWTSigningKey, s.JWTIssuer, s.JWTAudience))
	authn := middleware.RequireAuth(validator, logger)
	authz := middleware.RequireScope(jwttoken.ScopeSyncAdmin, logger)
	return func(next http.Handler) http.Handler {
		return authn(authz(next))
	}
}

func (a *app) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.InfoContext(ctx, "consumer started", "topic", a.cfg.Kafka.Topic, "group", a.cfg.Kafka.ConsumerGroup)
		if err := a.consumer.Run(ctx, a.batches); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		a.logger.InfoContext(ctx, "http server started", "addr", a.cfg.Server.Addr)
		return httpserver.Run(ctx, a.server, shutdownGrace, a.logger)
	})
	return g.Wait()
}

func (a *app) close() {
	if a.consumer != nil {
		a.consumer.Close()
	}
	if a.producer != nil {
		a.producer.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close failed", "error", err)
		}
	}
	if err := postgres.CloseAll(a.dbs); err != nil {
		a.logger.Warn("database close failed", "error", err)
	}
}
