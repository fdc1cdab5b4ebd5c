// Package app initializes and holds long-lived application services, acting as
// a dependency injection container.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/macrofeed/series-crawler/internal/catalog"
	"github.com/macrofeed/series-crawler/internal/clock"
	"github.com/macrofeed/series-crawler/internal/clock/system"
	"github.com/macrofeed/series-crawler/internal/config"
	"github.com/macrofeed/series-crawler/internal/id/uuid"
	"github.com/macrofeed/series-crawler/internal/metrics"
	"github.com/macrofeed/series-crawler/internal/policy/ratelimit"
	"github.com/macrofeed/series-crawler/internal/publisher"
	pubmemory "github.com/macrofeed/series-crawler/internal/publisher/memory"
	pubgcp "github.com/macrofeed/series-crawler/internal/publisher/pubsub"
	"github.com/macrofeed/series-crawler/internal/scheduler"
	"github.com/macrofeed/series-crawler/internal/source"
	"github.com/macrofeed/series-crawler/internal/storage/memory"
	"github.com/macrofeed/series-crawler/internal/storage/postgres"
	"github.com/macrofeed/series-crawler/internal/tracker"
	"github.com/macrofeed/series-crawler/internal/worker"
)

// App holds the shared, long-lived services for the crawler. It is built once
// at startup and handed to whichever command is running.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Catalog   *catalog.Catalog
	Clock     clock.Clock
	Scheduler *scheduler.Scheduler
	Tracker   *tracker.Tracker
	Pool      *worker.Pool
	Publisher publisher.Publisher

	closers []func()
}

// New creates and initializes an App from configuration. It fails fast if any
// critical service cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	metrics.Init()

	a := &App{
		Config: cfg,
		Logger: logger,
		Clock:  system.New(),
	}

	cat := catalog.Default()
	if cfg.Catalog.Path != "" {
		loaded, err := catalog.LoadFile(cfg.Catalog.Path)
		if err != nil {
			return nil, fmt.Errorf("load catalog file: %w", err)
		}
		cat = loaded
		logger.Info("catalog loaded from file",
			zap.String("path", cfg.Catalog.Path), zap.Int("series", cat.Len()))
	}
	a.Catalog = cat

	attemptStore, resultStore, err := a.buildStores(ctx)
	if err != nil {
		return nil, err
	}

	limiterCfg := ratelimit.Config{
		DefaultRequestsPerMinute: cfg.Sources.DefaultRequestsPerMinute,
		RequestsPerMinute:        make(map[catalog.Source]int, len(cfg.Sources.RequestsPerMinute)),
	}
	for src, rpm := range cfg.Sources.RequestsPerMinute {
		limiterCfg.RequestsPerMinute[catalog.Source(src)] = rpm
	}
	limiter := ratelimit.New(limiterCfg, a.Clock)

	ids := uuid.New()
	a.Scheduler = scheduler.New(cat, limiter, resultStore, ids, a.Clock, logger.Named("scheduler"), scheduler.Config{
		MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
		DefaultRetryLimit: cfg.Scheduler.DefaultRetryLimit,
	})
	a.Tracker = tracker.New(attemptStore, ids, a.Clock)

	pub, err := a.buildPublisher(ctx)
	if err != nil {
		return nil, err
	}
	a.Publisher = pub

	adapters := source.BuildRegistry(cfg.Sources, cfg.FetchTimeout(), a.Clock, logger.Named("source"))
	a.Pool = worker.New(a.Scheduler, adapters, a.Tracker, pub, a.Clock, worker.Config{
		Workers:      cfg.Scheduler.MaxConcurrentJobs,
		BatchSize:    cfg.Scheduler.BatchSize,
		PollInterval: cfg.PollInterval(),
		FetchTimeout: cfg.FetchTimeout(),
		Topic:        cfg.PubSub.TopicName,
	}, logger.Named("worker"))

	a.Scheduler.InitializeFromCatalog()
	if err := a.Scheduler.RestoreFailed(ctx); err != nil {
		logger.Warn("restore failed jobs", zap.Error(err))
	}

	logger.Info("application services initialized",
		zap.Int("series", cat.Len()),
		zap.Int("workers", cfg.Scheduler.MaxConcurrentJobs),
	)
	return a, nil
}

func (a *App) buildStores(ctx context.Context) (tracker.Store, scheduler.ResultStore, error) {
	if a.Config.DB.DSN == "" {
		a.Logger.Info("db.dsn not set, using in-memory stores")
		return memory.NewAttemptStore(), memory.NewResultStore(), nil
	}

	attempts, err := postgres.NewAttemptStore(ctx, a.Config.DB.DSN, int32(a.Config.DB.MaxOpenConns))
	if err != nil {
		return nil, nil, fmt.Errorf("init attempt store: %w", err)
	}
	results, err := postgres.NewResultStore(ctx, a.Config.DB.DSN, int32(a.Config.DB.MaxOpenConns))
	if err != nil {
		attempts.Close()
		return nil, nil, fmt.Errorf("init result store: %w", err)
	}
	a.closers = append(a.closers, attempts.Close, results.Close)
	a.Logger.Info("connected to postgres")
	return attempts, results, nil
}

func (a *App) buildPublisher(ctx context.Context) (publisher.Publisher, error) {
	if !a.Config.PubSub.Enabled {
		a.Logger.Info("pubsub disabled, crawl events kept in memory")
		return pubmemory.New(), nil
	}
	pub, err := pubgcp.Connect(ctx, a.Config.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("init pubsub publisher: %w", err)
	}
	a.closers = append(a.closers, func() {
		if cerr := pub.Close(); cerr != nil {
			a.Logger.Warn("close pubsub publisher", zap.Error(cerr))
		}
	})
	a.Logger.Info("connected to pubsub", zap.String("topic", a.Config.PubSub.TopicName))
	return pub, nil
}

// Close gracefully shuts down all services in the App container.
func (a *App) Close() {
	a.Logger.Info("shutting down application services")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	// Best effort, stdout sync fails on some platforms.
	_ = a.Logger.Sync()
}
