// Package coordinator owns the pending-job queue, dispatches one job at a
// time to each worker and drives the run to completion.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/trending-crawler/internal/archive"
	"github.com/JakeFAU/trending-crawler/internal/clock/system"
	"github.com/JakeFAU/trending-crawler/internal/crawler"
	"github.com/JakeFAU/trending-crawler/internal/id/uuid"
)

// Config is the immutable run configuration.
type Config struct {
	Workers               int
	MaxRetries            int
	OutputPath            string
	MetricsPath           string
	DedupeKey             string
	SortKeys              []string
	RetryFailedNextRun    bool
	ResetOutputOnFreshRun bool
	NotifyTopic           string
}

// SinkOpener opens the output sink. It is called after any fresh-run reset.
type SinkOpener func() (crawler.OutputSink, error)

// Dependencies are the collaborators of a run. Archiver and Publisher are
// optional.
type Dependencies struct {
	Executor    crawler.Executor
	Checkpoints crawler.CheckpointStore
	OpenSink    SinkOpener
	Reconciler  crawler.Reconciler
	Reports     crawler.ReportWriter
	Archiver    *archive.Archiver
	Publisher   crawler.Publisher
	Clock       crawler.Clock
	IDs         crawler.IDGenerator
}

// Coordinator runs the dispatch loop. Only the coordinator goroutine touches
// the output sink and the checkpoint store.
type Coordinator struct {
	cfg    Config
	deps   Dependencies
	logger *zap.Logger

	mu     sync.RWMutex
	status crawler.RunStatus
}

// New validates the configuration and constructs a Coordinator.
func New(cfg Config, deps Dependencies, logger *zap.Logger) (*Coordinator, error) {
	if cfg.Workers < 1 {
		return nil, crawler.ErrNoWorkers
	}
	if cfg.OutputPath == "" {
		return nil, fmt.Errorf("output path is required")
	}
	if deps.Executor == nil || deps.Checkpoints == nil || deps.OpenSink == nil ||
		deps.Reconciler == nil || deps.Reports == nil {
		return nil, fmt.Errorf("coordinator requires executor, checkpoints, sink, reconciler and report writer")
	}
	if cfg.DedupeKey == "" {
		cfg.DedupeKey = "slug"
	}
	if len(cfg.SortKeys) == 0 {
		cfg.SortKeys = []string{"source_url"}
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.IDs == nil {
		deps.IDs = uuid.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		cfg:    cfg,
		deps:   deps,
		logger: logger.Named("coordinator"),
		status: crawler.RunStatus{State: crawler.RunStateIdle, Workers: cfg.Workers},
	}, nil
}

// Snapshot returns the current run status.
func (c *Coordinator) Snapshot() crawler.RunStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status.Clone()
}

func (c *Coordinator) update(fn func(*crawler.RunStatus)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.status)
}

func (c *Coordinator) setState(state crawler.RunState) {
	c.update(func(s *crawler.RunStatus) { s.State = state })
}

// Run executes every pending job of the source and returns the combined
// report. A returned error after the dispatch loop has drained leaves the
// checkpoint and the per-job output valid for a resumed run.
func (c *Coordinator) Run(ctx context.Context, source crawler.JobSource) (crawler.CombinedReport, error) {
	jobs := source.Generate()
	runID, err := c.deps.IDs.NewID()
	if err != nil {
		return crawler.CombinedReport{}, fmt.Errorf("run id: %w", err)
	}
	started := c.deps.Clock.Now()
	logger := c.logger.With(zap.String("run_id", runID))

	state, pending, err := c.deps.Checkpoints.Load(ctx, jobs)
	if err != nil {
		c.setState(crawler.RunStateFailed)
		return crawler.CombinedReport{}, fmt.Errorf("load checkpoint: %w", err)
	}
	logger.Info("run starting",
		zap.Int("jobs", len(state.AllJobs)),
		zap.Int("completed", len(state.Completed)),
		zap.Int("pending", len(pending)),
		zap.Int("workers", c.cfg.Workers),
	)

	if err := c.resetOutput(state, logger); err != nil {
		c.setState(crawler.RunStateFailed)
		return crawler.CombinedReport{}, err
	}

	sink, err := c.deps.OpenSink()
	if err != nil {
		c.setState(crawler.RunStateFailed)
		return crawler.CombinedReport{}, fmt.Errorf("open output: %w", err)
	}

	slots := make([]crawler.SlotState, c.cfg.Workers)
	for i := range slots {
		slots[i] = crawler.SlotIdleStart
	}
	c.update(func(s *crawler.RunStatus) {
		*s = crawler.RunStatus{
			RunID:     runID,
			State:     crawler.RunStateRunning,
			Workers:   c.cfg.Workers,
			JobsTotal: len(state.AllJobs),
			Completed: len(state.Completed),
			Pending:   len(pending),
			Slots:     slots,
			StartedAt: started,
		}
	})

	reports, err := c.dispatch(ctx, &state, pending, sink, logger)
	if closeErr := sink.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("close output: %w", closeErr)
	}
	if err != nil {
		c.setState(crawler.RunStateFailed)
		return crawler.CombinedReport{}, err
	}

	c.setState(crawler.RunStateDraining)
	combined, err := c.finish(ctx, runID, started, reports, logger)
	if err != nil {
		c.setState(crawler.RunStateFailed)
		return combined, err
	}
	c.setState(crawler.RunStateDone)
	return combined, nil
}

// resetOutput deletes the previous output when nothing is checkpointed yet, so
// a fresh pass does not append to a finished table.
func (c *Coordinator) resetOutput(state crawler.CheckpointState, logger *zap.Logger) error {
	if len(state.Completed) > 0 || !c.cfg.ResetOutputOnFreshRun {
		return nil
	}
	err := os.Remove(c.cfg.OutputPath)
	switch {
	case err == nil:
		logger.Info("fresh run detected, removed existing output", zap.String("path", c.cfg.OutputPath))
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("reset output: %w", err)
	}
}
