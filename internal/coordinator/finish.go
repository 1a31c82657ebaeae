package coordinator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/trending-crawler/internal/crawler"
	"github.com/JakeFAU/trending-crawler/internal/metrics"
	"github.com/JakeFAU/trending-crawler/internal/report"
)

// finish reconciles the output, persists the combined report and runs the
// optional archive and notification steps.
func (c *Coordinator) finish(
	ctx context.Context,
	runID string,
	started time.Time,
	reports map[int]crawler.WorkerReport,
	logger *zap.Logger,
) (crawler.CombinedReport, error) {
	combined := report.Combine(runID, report.ByRank(reports)...)
	combined.Workers = c.cfg.Workers
	combined.StartedAt = started

	dups, err := c.deps.Reconciler.Reconcile(ctx, c.cfg.OutputPath, c.cfg.DedupeKey, c.cfg.SortKeys)
	if err != nil {
		return combined, fmt.Errorf("reconcile output: %w", err)
	}
	metrics.ObserveDuplicatesRemoved(dups)
	combined.DuplicatesRemoved = dups

	combined.FinishedAt = c.deps.Clock.Now()
	combined.ElapsedS = combined.FinishedAt.Sub(started).Seconds()
	if err := c.deps.Reports.Write(ctx, combined); err != nil {
		return combined, fmt.Errorf("persist report: %w", err)
	}

	if c.deps.Archiver != nil {
		if _, err := c.deps.Archiver.Upload(ctx, runID, c.cfg.OutputPath, c.cfg.MetricsPath); err != nil {
			logger.Warn("archive failed", zap.Error(err))
		}
	}
	if c.deps.Publisher != nil && c.cfg.NotifyTopic != "" {
		if id, err := c.deps.Publisher.Publish(ctx, c.cfg.NotifyTopic, combined); err != nil {
			logger.Warn("completion notification failed", zap.Error(err))
		} else {
			logger.Debug("completion notification published", zap.String("message_id", id))
		}
	}

	logger.Info("run complete",
		zap.Int64("jobs_total", combined.JobsTotal),
		zap.Int64("jobs_success", combined.JobsSuccess),
		zap.Int64("jobs_failed", combined.JobsFailed),
		zap.Int64("retries", combined.Retries),
		zap.Int("duplicates_removed", combined.DuplicatesRemoved),
		zap.Float64("avg_time_s", combined.AvgTimeS),
		zap.Float64("elapsed_s", combined.ElapsedS),
	)
	return combined, nil
}
