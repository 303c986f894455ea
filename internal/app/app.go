// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"net/http"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/distro-catalog-crawler/internal/api"
	"github.com/JakeFAU/distro-catalog-crawler/internal/catalog"
	"github.com/JakeFAU/distro-catalog-crawler/internal/clock/system"
	"github.com/JakeFAU/distro-catalog-crawler/internal/config"
	"github.com/JakeFAU/distro-catalog-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/distro-catalog-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/distro-catalog-crawler/internal/id/uuid"
	"github.com/JakeFAU/distro-catalog-crawler/internal/metrics"
	"github.com/JakeFAU/distro-catalog-crawler/internal/pipeline"
	"github.com/JakeFAU/distro-catalog-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/distro-catalog-crawler/internal/proxypool"
	"github.com/JakeFAU/distro-catalog-crawler/internal/publisher"
	memorypublisher "github.com/JakeFAU/distro-catalog-crawler/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/distro-catalog-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/distro-catalog-crawler/internal/runner"
	"github.com/JakeFAU/distro-catalog-crawler/internal/storage/gcs"
	"github.com/JakeFAU/distro-catalog-crawler/internal/storage/local"
	"github.com/JakeFAU/distro-catalog-crawler/internal/storage/postgres"
	"github.com/JakeFAU/distro-catalog-crawler/internal/telemetry"
)

// memoryEventLimit caps notifications retained when no Pub/Sub topic is configured.
const memoryEventLimit = 64

// App holds the shared, long-lived services for one process: the snapshot
// store, the optional mirrors, the pipeline and the runner that drives it.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	store  *local.SnapshotStore
	runner *runner.Runner
	checks []api.ReadyCheck
	events *memorypublisher.Publisher

	closers []func()
}

// New builds every service from cfg. Background runs started by the runner
// derive from ctx. scrapedBy is stamped into snapshot metadata.
func New(ctx context.Context, cfg config.Config, scrapedBy string, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	a := &App{cfg: cfg, logger: logger}

	tp, err := telemetry.InitTracerProvider(ctx, "distrocrawler", cfg.Scraper.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := tp.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	})

	store, err := local.New(local.Config{Path: cfg.Storage.SnapshotPath})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize snapshot store: %w", err)
	}
	a.store = store
	logger.Info("snapshot store ready", zap.String("path", store.Path()))

	sinks, err := a.buildSinks(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:        cfg.Scraper.UserAgent,
		Timeout:          cfg.RequestTimeout(),
		ProxyTimeout:     cfg.ProxyTimeout(),
		MaxProxyAttempts: cfg.Proxy.MaxAttempts,
	}, logger.Named("fetcher"))

	markers := extract.Markers{
		RankingHeader:    cfg.Markers.RankingHeader,
		CategoryLabel:    cfg.Markers.CategoryLabel,
		ReleaseDateLabel: cfg.Markers.ReleaseDateLabel,
		PopularityPhrase: cfg.Markers.PopularityPhrase,
		RatingLabel:      cfg.Markers.RatingLabel,
	}
	ranking, err := extract.NewRankingExtractor(cfg.Scraper.BaseURL, markers, logger.Named("ranking"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to build ranking extractor: %w", err)
	}
	seeds, err := extract.DefaultSeeds()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load seed list: %w", err)
	}

	deps := pipeline.Deps{
		Fetcher: fetcher,
		Ranking: ranking,
		Detail:  extract.NewDetailExtractor(markers, logger.Named("detail")),
		Seeds:   seeds,
		Limiter: ratelimit.New(ratelimit.Config{Interval: cfg.Delay()}),
		Store:   store,
		Sinks:   sinks,
		Clock:   system.New(),
		IDs:     uuid.New(),
		Logger:  logger.Named("pipeline"),
	}
	if cfg.Proxy.Enabled {
		deps.Pools = proxypool.NewLoader(proxypool.Config{
			Sources:      proxypool.SourcesFromMap(cfg.Proxy.Sources),
			PerSourceCap: cfg.Proxy.PerSourceCap,
			PoolSize:     cfg.Proxy.PoolSize,
			Timeout:      cfg.RequestTimeout(),
		}, fetcher, nil, logger.Named("proxypool"))
	}

	orchestrator, err := pipeline.New(pipeline.Config{
		RankingURL:      cfg.RankingURL(),
		BaseURL:         cfg.Scraper.BaseURL,
		DefaultLimit:    cfg.Scraper.Limit,
		RequestTimeout:  cfg.RequestTimeout(),
		RunBudget:       cfg.RunBudget(),
		UseProxies:      cfg.Proxy.Enabled,
		ProxyForRanking: cfg.Proxy.UseForRanking,
		Source:          cfg.Scraper.BaseURL,
		Version:         cfg.Scraper.Version,
	}, deps)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	a.runner, err = runner.New(ctx, runner.Config{
		DefaultLimit: cfg.Scraper.Limit,
		FreshFor:     cfg.FreshFor(),
		ScrapedBy:    scrapedBy,
	}, orchestrator, store, deps.Clock, logger.Named("runner"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to build runner: %w", err)
	}

	logger.Info("application services initialized",
		zap.Bool("proxies", cfg.Proxy.Enabled),
		zap.Int("sinks", len(sinks)),
		zap.Int("seeds", len(seeds)),
	)
	return a, nil
}

// buildSinks wires the optional best-effort destinations in the order they
// receive each snapshot: bucket mirror, history archive, notification.
func (a *App) buildSinks(ctx context.Context) ([]catalog.SnapshotSink, error) {
	cfg := a.cfg
	var sinks []catalog.SnapshotSink
	location := "file://" + a.store.Path()

	if cfg.Storage.GCSBucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gcs client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		mirror, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket, Object: cfg.Storage.GCSObject})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, mirror)
		location = mirror.URI()
		a.logger.Info("mirroring snapshots to gcs", zap.String("uri", location))
	}

	if cfg.DB.DSN != "" {
		history, err := postgres.NewHistoryStore(ctx, postgres.HistoryStoreConfig{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: cfg.DB.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize history store: %w", err)
		}
		a.closers = append(a.closers, history.Close)
		if err := history.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to prepare history table: %w", err)
		}
		sinks = append(sinks, history)
		a.checks = append(a.checks, history.Ping)
		a.logger.Info("archiving snapshots to postgres", zap.String("table", cfg.DB.Table))
	}

	var pub catalog.Publisher
	topic := cfg.PubSub.TopicName
	if topic != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize pubsub client: %w", err)
		}
		p := pubsubpublisher.New(client)
		a.closers = append(a.closers, p.Close)
		pub = p
		a.logger.Info("publishing snapshot events", zap.String("topic", topic))
	} else {
		a.events = memorypublisher.NewBounded(memoryEventLimit)
		pub = a.events
		topic = "snapshots"
	}
	notifier, err := publisher.NewNotifier(pub, topic, location)
	if err != nil {
		return nil, err
	}
	sinks = append(sinks, notifier)
	return sinks, nil
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the configuration the services were built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Store exposes the primary snapshot store.
func (a *App) Store() *local.SnapshotStore {
	return a.store
}

// Runner exposes the trigger used by every entry point.
func (a *App) Runner() *runner.Runner {
	return a.runner
}

// Events returns the in-process notification log, or nil when Pub/Sub is configured.
func (a *App) Events() *memorypublisher.Publisher {
	return a.events
}

// Handler builds the REST surface over the runner and store.
func (a *App) Handler() http.Handler {
	srv := api.NewServer(a.runner, a.store, api.Options{
		TriggerLimit:   a.cfg.Scraper.TriggerLimit,
		RequestTimeout: a.cfg.RequestTimeout(),
	}, a.logger.Named("api"), a.checks...)
	return srv.Handler()
}

// Close waits for in-flight runs, then releases clients in reverse order of creation.
func (a *App) Close() {
	a.logger.Info("shutting down application services")
	if a.runner != nil {
		a.runner.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
}
