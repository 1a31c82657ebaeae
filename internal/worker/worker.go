// Package worker implements the per-rank job execution loop.
package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/trending-crawler/internal/crawler"
)

// Config controls Worker behavior.
type Config struct {
	MaxRetries int
}

// Worker pulls dispatches from its mailbox, runs the executor and reports
// every outcome back to the coordinator inbox.
type Worker struct {
	rank     int
	mailbox  crawler.Queue[crawler.Dispatch]
	inbox    crawler.Queue[crawler.Result]
	executor crawler.Executor
	clock    crawler.Clock
	cfg      Config
	report   crawler.WorkerReport
	logger   *zap.Logger
}

// New constructs a Worker.
func New(
	rank int,
	mailbox crawler.Queue[crawler.Dispatch],
	inbox crawler.Queue[crawler.Result],
	executor crawler.Executor,
	clock crawler.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	return &Worker{
		rank:     rank,
		mailbox:  mailbox,
		inbox:    inbox,
		executor: executor,
		clock:    clock,
		cfg:      cfg,
		report:   crawler.WorkerReport{Worker: rank},
		logger:   logger.With(zap.Int("rank", rank)),
	}
}

// Rank returns the worker's rank.
func (w *Worker) Rank() int {
	return w.rank
}

// Run blocks until the sentinel is received and acknowledged, or ctx ends.
// A job interrupted by cancellation is not reported.
func (w *Worker) Run(ctx context.Context) error {
	for {
		dispatch, err := w.mailbox.Dequeue(ctx)
		if err != nil {
			return fmt.Errorf("worker %d receive: %w", w.rank, err)
		}
		if dispatch.Sentinel {
			w.logger.Debug("sentinel received")
			closed := crawler.Result{Rank: w.rank, Closed: true, Report: w.report.Clone()}
			if err := w.inbox.Enqueue(ctx, closed); err != nil {
				return fmt.Errorf("worker %d close: %w", w.rank, err)
			}
			return nil
		}

		result := w.process(ctx, dispatch.Job)
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("worker %d job %s: %w", w.rank, dispatch.Job, err)
		}
		if err := w.inbox.Enqueue(ctx, result); err != nil {
			return fmt.Errorf("worker %d send: %w", w.rank, err)
		}
	}
}

func (w *Worker) process(ctx context.Context, job crawler.JobID) crawler.Result {
	w.logger.Info("executing job", zap.String("job", string(job)))
	start := w.clock.Now()
	outcome := w.executor.Execute(ctx, job, w.cfg.MaxRetries)
	elapsed := w.clock.Now().Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}

	w.report.JobsTotal++
	w.report.Retries += int64(outcome.Retries)
	w.report.ParseErrors += int64(outcome.ParseErrors)
	w.report.TotalTimeS += elapsed.Seconds()
	w.report.Samples++

	result := crawler.Result{Rank: w.rank, Job: job, Elapsed: elapsed}
	if outcome.Succeeded() {
		w.report.JobsSuccess++
		w.report.Incr("records", int64(len(outcome.Records)))
		result.Records = outcome.Records
		w.logger.Info("job succeeded",
			zap.String("job", string(job)),
			zap.Int("records", len(outcome.Records)),
			zap.Duration("elapsed", elapsed),
		)
	} else {
		w.report.JobsFailed++
		result.Failed = true
		w.logger.Warn("job failed",
			zap.String("job", string(job)),
			zap.Int("retries", outcome.Retries),
			zap.Error(outcome.Err),
		)
	}
	result.Report = w.report.Clone()
	return result
}

