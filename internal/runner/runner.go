// Package runner owns the trigger side of the scraper: it starts pipeline runs
// in the background, never more than one at a time, and answers status queries
// from the snapshot store.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/distro-catalog-crawler/internal/catalog"
	"github.com/JakeFAU/distro-catalog-crawler/internal/pipeline"
)

// Trigger outcomes.
const (
	StatusStarted        = "started"
	StatusAlreadyRunning = "already_running"
	StatusFresh          = "fresh"
)

// Pipeline executes a single run.
type Pipeline interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// SnapshotReader loads the latest snapshot.
type SnapshotReader interface {
	Load(ctx context.Context) (catalog.Snapshot, error)
}

// Config controls trigger behavior.
type Config struct {
	DefaultLimit int
	FreshFor     time.Duration
	ScrapedBy    string
}

// TriggerResult is returned by StartRun.
type TriggerResult struct {
	Status  string `json:"status"`
	Limit   int    `json:"limit"`
	Force   bool   `json:"force"`
	Message string `json:"message"`
}

// RunSummary describes the most recent finished run.
type RunSummary struct {
	RunID      string    `json:"-"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Partial    bool      `json:"partial"`
	Discarded  bool      `json:"discarded,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// State reports whether a run is in flight and how the last one ended.
type State struct {
	Running bool        `json:"running"`
	LastRun *RunSummary `json:"last_run,omitempty"`
}

// Runner starts pipeline runs on demand.
type Runner struct {
	cfg      Config
	pipeline Pipeline
	reader   SnapshotReader
	clock    catalog.Clock
	logger   *zap.Logger
	base     context.Context

	mu      sync.Mutex
	running bool
	last    *RunSummary
	wg      sync.WaitGroup
}

// New builds a Runner. Background runs derive from ctx and stop when it is canceled.
func New(ctx context.Context, cfg Config, p Pipeline, reader SnapshotReader, clock catalog.Clock, logger *zap.Logger) (*Runner, error) {
	if p == nil {
		return nil, errors.New("runner: pipeline is required")
	}
	if reader == nil {
		return nil, errors.New("runner: snapshot reader is required")
	}
	if clock == nil {
		return nil, errors.New("runner: clock is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 100
	}
	return &Runner{cfg: cfg, pipeline: p, reader: reader, clock: clock, logger: logger, base: ctx}, nil
}

// StartRun launches a background run unless one is in flight or, without
// force, the current snapshot is still fresh. A limit <= 0 uses the default.
func (r *Runner) StartRun(limit int, force bool) TriggerResult {
	if limit <= 0 {
		limit = r.cfg.DefaultLimit
	}
	res := TriggerResult{Limit: limit, Force: force}

	if !force {
		if age, ok := r.snapshotAge(); ok && age < r.cfg.FreshFor {
			res.Status = StatusFresh
			res.Message = fmt.Sprintf("snapshot is %s old; pass force to refresh", age.Truncate(time.Second))
			return res
		}
	}

	if !r.begin() {
		res.Status = StatusAlreadyRunning
		res.Message = "a scrape is already in progress"
		return res
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_, _ = r.execute(r.base, limit)
	}()

	res.Status = StatusStarted
	res.Message = "scrape started in background"
	r.logger.Info("run triggered", zap.Int("limit", limit), zap.Bool("force", force))
	return res
}

// RunNow executes a run in the caller's goroutine, honoring single-flight.
func (r *Runner) RunNow(ctx context.Context, limit int) (pipeline.Result, error) {
	if limit <= 0 {
		limit = r.cfg.DefaultLimit
	}
	if !r.begin() {
		return pipeline.Result{}, catalog.ErrRunInProgress
	}
	return r.execute(ctx, limit)
}

// Wait blocks until background runs have returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// State returns the in-flight flag and last run summary.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := State{Running: r.running}
	if r.last != nil {
		last := *r.last
		st.LastRun = &last
	}
	return st
}

// Status summarizes the stored snapshot.
func (r *Runner) Status(ctx context.Context) (catalog.Status, error) {
	snap, err := r.reader.Load(ctx)
	if errors.Is(err, catalog.ErrNoSnapshot) {
		return catalog.Status{}, nil
	}
	if err != nil {
		return catalog.Status{}, err
	}
	return catalog.StatusOf(snap), nil
}

func (r *Runner) begin() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return false
	}
	r.running = true
	return true
}

func (r *Runner) execute(ctx context.Context, limit int) (pipeline.Result, error) {
	started := r.clock.Now()
	res, err := r.pipeline.Run(ctx, pipeline.Request{Limit: limit, ScrapedBy: r.cfg.ScrapedBy})

	summary := &RunSummary{
		RunID:      res.RunID,
		StartedAt:  started,
		FinishedAt: r.clock.Now(),
		Total:      res.Snapshot.Total,
		Partial:    res.Snapshot.Metadata.Partial || res.Discarded,
		Discarded:  res.Discarded,
	}
	if err != nil {
		summary.Error = err.Error()
		r.logger.Error("run failed", zap.String("run_id", res.RunID), zap.Error(err))
	}

	r.mu.Lock()
	r.running = false
	r.last = summary
	r.mu.Unlock()
	return res, err
}

func (r *Runner) snapshotAge() (time.Duration, bool) {
	if r.cfg.FreshFor <= 0 {
		return 0, false
	}
	snap, err := r.reader.Load(r.base)
	if err != nil {
		return 0, false
	}
	return r.clock.Now().Sub(snap.ScrapedAt), true
}
