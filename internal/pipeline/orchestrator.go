package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/JakeFAU/distro-catalog-crawler/internal/catalog"
	"github.com/JakeFAU/distro-catalog-crawler/internal/extract"
	"github.com/JakeFAU/distro-catalog-crawler/internal/metrics"
	"github.com/JakeFAU/distro-catalog-crawler/internal/proxypool"
)

var tracer = otel.Tracer("github.com/JakeFAU/distro-catalog-crawler/internal/pipeline")

// Config captures run-level knobs.
type Config struct {
	RankingURL      string
	BaseURL         string
	DefaultLimit    int
	RequestTimeout  time.Duration
	RunBudget       time.Duration
	UseProxies      bool
	ProxyForRanking bool
	Source          string
	Version         string
}

// PoolLoader builds a fresh proxy pool for a run.
type PoolLoader interface {
	Load(ctx context.Context) *proxypool.Pool
}

// Waiter paces detail fetches.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Fetcher catalog.Fetcher
	Ranking *extract.RankingExtractor
	Detail  *extract.DetailExtractor
	Seeds   []extract.Seed
	Pools   PoolLoader
	Limiter Waiter
	Store   catalog.SnapshotStore
	Sinks   []catalog.SnapshotSink
	Clock   catalog.Clock
	IDs     catalog.IDGenerator
	Logger  *zap.Logger
}

// Request describes one invocation.
type Request struct {
	Limit     int
	ScrapedBy string
}

// Result is the outcome of a run that reached persistence. Discarded reports
// a run cut short before any record was parsed; the stored snapshot was left
// untouched and Snapshot is empty.
type Result struct {
	RunID     string
	Snapshot  catalog.Snapshot
	Discarded bool
}

// Orchestrator sequences a scrape run.
type Orchestrator struct {
	cfg  Config
	deps Deps
}

// New validates deps and builds an Orchestrator.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("pipeline: fetcher is required")
	case deps.Ranking == nil || deps.Detail == nil:
		return nil, errors.New("pipeline: extractors are required")
	case deps.Store == nil:
		return nil, errors.New("pipeline: snapshot store is required")
	case deps.Clock == nil:
		return nil, errors.New("pipeline: clock is required")
	case cfg.RankingURL == "":
		return nil, errors.New("pipeline: ranking url is required")
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 100
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Orchestrator{cfg: cfg, deps: deps}, nil
}

// run carries the mutable state of one invocation.
type run struct {
	id        string
	limit     int
	scrapedBy string
	started   time.Time
	pool      *proxypool.Pool
	entries   []catalog.RankedEntry
	records   []catalog.DistroRecord
	attempted int
	fallback  bool
	partial   bool
	discarded bool
	snapshot  catalog.Snapshot
	logger    *zap.Logger
}

// Run executes Idle → Ranking → Detailing → Finalizing → Done. A configured
// run budget bounds the network stages; on expiry the records gathered so far
// are persisted as a partial snapshot.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	r := &run{
		limit:     req.Limit,
		scrapedBy: req.ScrapedBy,
		started:   time.Now(),
	}
	if r.limit <= 0 {
		r.limit = o.cfg.DefaultLimit
	}
	if o.deps.IDs != nil {
		id, err := o.deps.IDs.NewID()
		if err != nil {
			o.deps.Logger.Warn("run id unavailable", zap.Error(err))
		}
		r.id = id
	}
	r.logger = o.deps.Logger.With(zap.String("run_id", r.id), zap.Int("limit", r.limit))

	ctx, span := tracer.Start(ctx, "pipeline.run")
	span.SetAttributes(attribute.String("run.id", r.id), attribute.Int("run.limit", r.limit))
	defer span.End()

	runCtx := ctx
	if o.cfg.RunBudget > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.cfg.RunBudget)
		defer cancel()
	}

	var err error
	for st := stateIdle; st != stateDone; {
		r.logger.Debug("pipeline state", zap.Stringer("state", st))
		span.AddEvent(st.String())
		switch st {
		case stateIdle:
			st = stateRanking
		case stateRanking:
			o.rank(runCtx, r)
			st = stateDetailing
		case stateDetailing:
			o.detail(runCtx, r)
			st = stateFinalizing
		case stateFinalizing:
			// Persistence outlives the run budget so a partial snapshot still lands.
			err = o.finalize(context.WithoutCancel(ctx), r)
			st = stateDone
		}
	}

	result := "success"
	switch {
	case err != nil:
		result = "failed"
	case r.discarded:
		result = "discarded"
	case r.partial:
		result = "partial"
	}
	metrics.ObserveRun(result, time.Since(r.started))
	span.SetAttributes(
		attribute.String("run.result", result),
		attribute.Int("run.attempted", r.attempted),
		attribute.Bool("run.fallback", r.fallback),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		r.logger.Error("run failed", zap.Error(err))
		return Result{RunID: r.id}, err
	}
	if r.discarded {
		return Result{RunID: r.id, Discarded: true}, nil
	}
	r.logger.Info("run complete",
		zap.Int("total", r.snapshot.Total),
		zap.Int("attempted", r.attempted),
		zap.Float64("success_rate", r.snapshot.Metadata.SuccessRate),
		zap.Bool("fallback", r.fallback),
		zap.Bool("partial", r.partial),
		zap.Duration("elapsed", time.Since(r.started)),
	)
	return Result{RunID: r.id, Snapshot: r.snapshot}, nil
}

func (o *Orchestrator) rank(ctx context.Context, r *run) {
	if o.cfg.UseProxies && o.deps.Pools != nil {
		r.pool = o.deps.Pools.Load(ctx)
	}

	req := catalog.FetchRequest{URL: o.cfg.RankingURL, Timeout: o.cfg.RequestTimeout}
	if o.cfg.ProxyForRanking && r.pool != nil {
		req.Proxies = r.pool
	}
	resp, err := o.deps.Fetcher.Fetch(ctx, req)
	if err == nil {
		r.entries = o.deps.Ranking.Parse(resp.Body, r.limit)
	} else {
		r.logger.Warn("ranking fetch failed", zap.Error(fmt.Errorf("%w: %w", catalog.ErrPipelineExhaustion, err)))
	}
	if len(r.entries) > 0 {
		r.logger.Info("ranking parsed", zap.Int("entries", len(r.entries)), zap.String("egress", resp.Egress))
		return
	}

	r.fallback = true
	r.entries = extract.BuildFallback(o.deps.Seeds, r.limit, o.cfg.BaseURL)
	metrics.ObserveRankingFallback()
	r.logger.Warn("using seed fallback", zap.Int("entries", len(r.entries)))
}

func (o *Orchestrator) detail(ctx context.Context, r *run) {
	for i, entry := range r.entries {
		if ctx.Err() != nil {
			r.partial = true
			r.logger.Warn("run budget exhausted", zap.Int("remaining", len(r.entries)-i))
			return
		}
		r.attempted++
		if rec, ok := o.detailOne(ctx, r, entry); ok {
			r.records = append(r.records, rec)
		}
		if i == len(r.entries)-1 || o.deps.Limiter == nil {
			continue
		}
		if err := o.deps.Limiter.Wait(ctx); err != nil {
			r.partial = true
			r.logger.Warn("run budget exhausted", zap.Int("remaining", len(r.entries)-i-1), zap.Error(err))
			return
		}
	}
	// The deadline may land during the last fetch.
	if ctx.Err() != nil {
		r.partial = true
	}
}

func (o *Orchestrator) detailOne(ctx context.Context, r *run, entry catalog.RankedEntry) (catalog.DistroRecord, bool) {
	log := r.logger.With(zap.String("id", entry.Identifier), zap.Int("rank", entry.Rank))

	req := catalog.FetchRequest{URL: entry.DetailURL, Timeout: o.cfg.RequestTimeout}
	if r.pool != nil {
		req.Proxies = r.pool
	}
	resp, err := o.deps.Fetcher.Fetch(ctx, req)
	if err != nil {
		metrics.ObserveRecord("fetch_error")
		log.Warn("detail fetch failed", zap.Error(err))
		return catalog.DistroRecord{}, false
	}

	rec, ok := o.deps.Detail.Parse(resp.Body, entry.Identifier)
	if !ok {
		metrics.ObserveRecord("parse_error")
		log.Warn("detail page not recognized", zap.Error(catalog.ErrParse), zap.String("egress", resp.Egress))
		return catalog.DistroRecord{}, false
	}
	if rec.PopularityRank == nil {
		rank := entry.Rank
		rec.PopularityRank = &rank
	}
	metrics.ObserveRecord("parsed")
	log.Debug("detail parsed", zap.String("egress", resp.Egress), zap.Int("attempts", resp.Attempts))
	return *rec, true
}

func (o *Orchestrator) finalize(ctx context.Context, r *run) error {
	if r.partial && len(r.records) == 0 {
		r.discarded = true
		r.logger.Warn("run stopped before any record was parsed; keeping previous snapshot",
			zap.Int("attempted", r.attempted),
			zap.Bool("fallback", r.fallback),
		)
		return nil
	}

	snap := catalog.NewSnapshot(o.deps.Clock.Now().UTC(), r.records, r.attempted, catalog.SnapshotMetadata{
		Source:         o.cfg.Source,
		Scraper:        "distrocrawler",
		Version:        o.cfg.Version,
		RunID:          r.id,
		LimitRequested: r.limit,
		FallbackUsed:   r.fallback,
		Partial:        r.partial,
	})
	snap.ScrapedBy = r.scrapedBy

	if err := o.deps.Store.Save(ctx, snap); err != nil {
		if !errors.Is(err, catalog.ErrPersistence) {
			err = &catalog.PersistenceError{Err: err}
		}
		return err
	}
	r.snapshot = snap

	for _, sink := range o.deps.Sinks {
		if err := sink.Save(ctx, snap); err != nil {
			r.logger.Warn("snapshot sink failed", zap.String("sink", fmt.Sprintf("%T", sink)), zap.Error(err))
		}
	}
	return nil
}
