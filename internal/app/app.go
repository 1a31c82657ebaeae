// Package app builds the long-lived services of a crawl from configuration and
// acts as the dependency container for the CLI.
package app

import (
	"context"
	"fmt"

	pubsubv2 "cloud.google.com/go/pubsub/v2"
	gcsstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/trending-crawler/internal/archive"
	"github.com/JakeFAU/trending-crawler/internal/checkpoint"
	"github.com/JakeFAU/trending-crawler/internal/config"
	"github.com/JakeFAU/trending-crawler/internal/coordinator"
	"github.com/JakeFAU/trending-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/trending-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/trending-crawler/internal/hash/sha256"
	"github.com/JakeFAU/trending-crawler/internal/jobsource"
	"github.com/JakeFAU/trending-crawler/internal/metrics"
	"github.com/JakeFAU/trending-crawler/internal/output"
	"github.com/JakeFAU/trending-crawler/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/trending-crawler/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/trending-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/trending-crawler/internal/reconcile"
	"github.com/JakeFAU/trending-crawler/internal/report"
	"github.com/JakeFAU/trending-crawler/internal/storage/gcs"
	"github.com/JakeFAU/trending-crawler/internal/storage/local"
	"github.com/JakeFAU/trending-crawler/internal/storage/postgres"
	"github.com/JakeFAU/trending-crawler/internal/storage/redis"
	"github.com/JakeFAU/trending-crawler/internal/trending"
)

// App holds the shared services of a crawl. It is built once at startup.
type App struct {
	cfg         config.Config
	logger      *zap.Logger
	jobs        *jobsource.Trending
	checkpoints *checkpoint.Store
	executor    crawler.Executor
	reconciler  *reconcile.CSVReconciler
	reports     *report.FileWriter
	archiver    *archive.Archiver
	publisher   crawler.Publisher
	closers     []func()
}

// New creates an App from cfg. It fails fast when a configured backend cannot
// be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	a := &App{
		cfg:    cfg,
		logger: logger,
		jobs: jobsource.New(jobsource.Config{
			BaseURL:         cfg.Trending.BaseURL,
			Languages:       cfg.Trending.Languages,
			Periods:         cfg.Trending.Periods,
			SpokenLanguages: cfg.Trending.SpokenLanguages,
		}),
		reconciler: reconcile.New(logger.Named("reconcile")),
	}

	backend, err := a.checkpointBackend(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.checkpoints = checkpoint.NewStore(backend, sha256.New(), logger.Named("checkpoint"))

	a.reports, err = report.NewFileWriter(cfg.Paths.MetricsJSON)
	if err != nil {
		a.Close()
		return nil, err
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Scraper.UserAgent,
		RespectRobots: cfg.Scraper.RespectRobots,
		Timeout:       cfg.Scraper.Timeout,
	})
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Scraper.RequestsPerSecond,
		DefaultBurst: cfg.Scraper.Burst,
	})
	a.executor = trending.New(fetcher, limiter, trending.Config{
		UserAgent:      cfg.Scraper.UserAgent,
		AcceptLanguage: cfg.Scraper.AcceptLanguage,
		Referer:        cfg.Scraper.Referer,
		SleepMin:       cfg.Scraper.SleepMin,
		SleepMax:       cfg.Scraper.SleepMax,
		FetchDetails:   cfg.Scraper.FetchDetails,
		RetryBaseDelay: cfg.Scraper.BackoffInitial,
		RetryMaxDelay:  cfg.Scraper.BackoffMax,
	}, logger)

	if cfg.Archive.Enabled {
		if a.archiver, err = a.buildArchiver(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	if cfg.Notify.Enabled {
		if a.publisher, err = a.buildPublisher(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *App) checkpointBackend(ctx context.Context) (checkpoint.Backend, error) {
	cfg := a.cfg.Checkpoint
	switch cfg.Backend {
	case "", "file":
		a.logger.Info("using file checkpoint backend", zap.String("path", a.cfg.Paths.Checkpoint))
		backend, err := checkpoint.NewFileBackend(a.cfg.Paths.Checkpoint)
		if err != nil {
			return nil, fmt.Errorf("init file checkpoint: %w", err)
		}
		return backend, nil
	case "postgres":
		a.logger.Info("using postgres checkpoint backend", zap.String("table", cfg.Postgres.Table))
		store, err := postgres.NewCheckpointStore(ctx, postgres.CheckpointStoreConfig{
			DSN:      cfg.Postgres.DSN,
			Table:    cfg.Postgres.Table,
			Name:     cfg.Name,
			MaxConns: cfg.Postgres.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres checkpoint: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "redis":
		a.logger.Info("using redis checkpoint backend", zap.String("addr", cfg.Redis.Addr))
		store, err := redis.NewCheckpointStore(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.Key,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("init redis checkpoint: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := store.Close(); err != nil {
				a.logger.Warn("close redis", zap.Error(err))
			}
		})
		return store, nil
	default:
		return nil, fmt.Errorf("unknown checkpoint backend: %s", cfg.Backend)
	}
}

func (a *App) buildArchiver(ctx context.Context) (*archive.Archiver, error) {
	cfg := a.cfg.Archive
	var store crawler.BlobStore
	switch cfg.Provider {
	case "local":
		blobs, err := local.New(local.Config{BaseDir: cfg.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local archive: %w", err)
		}
		store = blobs
	case "gcs":
		client, err := gcsstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		blobs, err := gcs.New(client, gcs.Config{Bucket: cfg.GCSBucket})
		if err != nil {
			return nil, err
		}
		if err := blobs.CheckBucket(ctx); err != nil {
			return nil, err
		}
		store = blobs
	default:
		return nil, fmt.Errorf("unknown archive provider: %s", cfg.Provider)
	}
	a.logger.Info("archiving run artifacts", zap.String("provider", cfg.Provider))
	return archive.New(store, cfg.Prefix, a.logger.Named("archive")), nil
}

func (a *App) buildPublisher(ctx context.Context) (crawler.Publisher, error) {
	cfg := a.cfg.Notify
	switch cfg.Provider {
	case "memory":
		return memorypublisher.New(), nil
	case "pubsub":
		client, err := pubsubv2.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("init pubsub client: %w", err)
		}
		pub := pubsubpublisher.New(client.Publisher(cfg.Topic))
		a.closers = append(a.closers, func() {
			pub.Stop()
			_ = client.Close()
		})
		return pub, nil
	default:
		return nil, fmt.Errorf("unknown notify provider: %s", cfg.Provider)
	}
}

// Coordinator builds a coordinator for one run. workers overrides the
// configured pool size when positive.
func (a *App) Coordinator(workers int) (*coordinator.Coordinator, error) {
	if workers <= 0 {
		workers = a.cfg.Scheduler.Workers
	}
	cfg := a.cfg
	return coordinator.New(coordinator.Config{
		Workers:               workers,
		MaxRetries:            cfg.Scraper.MaxRetries,
		OutputPath:            cfg.Paths.OutputCSV,
		MetricsPath:           cfg.Paths.MetricsJSON,
		DedupeKey:             cfg.Output.DedupeKey,
		SortKeys:              cfg.Output.SortKeys,
		RetryFailedNextRun:    cfg.Scheduler.RetryFailedNextRun,
		ResetOutputOnFreshRun: cfg.Scheduler.ResetOutputOnFreshRun,
		NotifyTopic:           cfg.Notify.Topic,
	}, coordinator.Dependencies{
		Executor:    a.executor,
		Checkpoints: a.checkpoints,
		OpenSink: func() (crawler.OutputSink, error) {
			return output.NewCSVSink(cfg.Paths.OutputCSV, cfg.Output.Fields, a.logger.Named("output"))
		},
		Reconciler: a.reconciler,
		Reports:    a.reports,
		Archiver:   a.archiver,
		Publisher:  a.publisher,
	}, a.logger)
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Jobs returns the trending job source.
func (a *App) Jobs() crawler.JobSource {
	return a.jobs
}

// Checkpoints returns the checkpoint store.
func (a *App) Checkpoints() *checkpoint.Store {
	return a.checkpoints
}

// Reconciler returns the output reconciler.
func (a *App) Reconciler() crawler.Reconciler {
	return a.reconciler
}

// Close releases backend connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	_ = a.logger.Sync()
}
