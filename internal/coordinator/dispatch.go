package coordinator

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/trending-crawler/internal/crawler"
	"github.com/JakeFAU/trending-crawler/internal/metrics"
	"github.com/JakeFAU/trending-crawler/internal/queue/memory"
	"github.com/JakeFAU/trending-crawler/internal/worker"
)

// dispatch runs the worker pool until every worker has acknowledged the
// sentinel and returns the latest report of each rank.
func (c *Coordinator) dispatch(
	ctx context.Context,
	state *crawler.CheckpointState,
	pending []crawler.JobID,
	sink crawler.OutputSink,
	logger *zap.Logger,
) (map[int]crawler.WorkerReport, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	// Each worker holds at most one undelivered result, so the shared inbox
	// never blocks a sender.
	inbox := memory.NewQueue[crawler.Result](c.cfg.Workers)
	mailboxes := make([]*memory.Queue[crawler.Dispatch], c.cfg.Workers)
	for rank := range mailboxes {
		mailboxes[rank] = memory.NewQueue[crawler.Dispatch](1)
		w := worker.New(rank, mailboxes[rank], inbox, c.deps.Executor, c.deps.Clock,
			worker.Config{MaxRetries: c.cfg.MaxRetries}, logger)
		g.Go(func() error {
			return w.Run(gctx)
		})
	}
	metrics.SetActiveWorkers(c.cfg.Workers)

	d := &dispatcher{
		coordinator: c,
		queue:       append([]crawler.JobID(nil), pending...),
		mailboxes:   mailboxes,
	}
	reports := make(map[int]crawler.WorkerReport, c.cfg.Workers)

	loopErr := func() error {
		for rank := range mailboxes {
			if err := d.send(gctx, rank); err != nil {
				return err
			}
		}

		closed := 0
		for closed < c.cfg.Workers {
			res, err := inbox.Dequeue(gctx)
			if err != nil {
				return fmt.Errorf("receive result: %w", err)
			}
			// Reports are cumulative, so the latest one per rank supersedes
			// earlier snapshots.
			reports[res.Rank] = res.Report

			if res.Closed {
				closed++
				metrics.SetActiveWorkers(c.cfg.Workers - closed)
				c.update(func(s *crawler.RunStatus) {
					s.ClosedWorkers = closed
					s.Slots[res.Rank] = crawler.SlotClosed
				})
				logger.Debug("worker closed", zap.Int("rank", res.Rank))
				continue
			}

			if err := c.accept(ctx, state, sink, res, logger); err != nil {
				return err
			}
			if err := d.send(gctx, res.Rank); err != nil {
				return err
			}
		}
		return nil
	}()
	if loopErr != nil {
		cancel()
		_ = g.Wait()
		metrics.SetActiveWorkers(0)
		return nil, loopErr
	}

	for _, mb := range mailboxes {
		mb.Close()
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("worker pool: %w", err)
	}
	return reports, nil
}

type dispatcher struct {
	coordinator *Coordinator
	queue       []crawler.JobID
	mailboxes   []*memory.Queue[crawler.Dispatch]
}

// next pops the head of the pending queue, or the sentinel once it is empty.
func (d *dispatcher) next() crawler.Dispatch {
	if len(d.queue) == 0 {
		return crawler.SentinelDispatch()
	}
	job := d.queue[0]
	d.queue = d.queue[1:]
	return crawler.Dispatch{Job: job}
}

func (d *dispatcher) send(ctx context.Context, rank int) error {
	msg := d.next()
	d.coordinator.update(func(s *crawler.RunStatus) {
		s.Slots[rank] = crawler.SlotDispatched
	})
	if err := d.mailboxes[rank].Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("dispatch to worker %d: %w", rank, err)
	}
	metrics.ObserveDispatch(msg.Sentinel)
	pending := len(d.queue)
	d.coordinator.update(func(s *crawler.RunStatus) {
		s.Pending = pending
		if !msg.Sentinel {
			s.InFlight++
		}
		s.Slots[rank] = crawler.SlotAwaitingResult
	})
	return nil
}

// accept persists a job result: records first, then the checkpoint, so a crash
// between the two can only duplicate rows, never lose a completion.
func (c *Coordinator) accept(
	ctx context.Context,
	state *crawler.CheckpointState,
	sink crawler.OutputSink,
	res crawler.Result,
	logger *zap.Logger,
) error {
	outcome := metrics.OutcomeSuccess
	if res.Failed {
		outcome = metrics.OutcomeFailed
	}
	metrics.ObserveResult(outcome, res.Elapsed)

	if len(res.Records) > 0 {
		if err := sink.AppendRecords(res.Records); err != nil {
			return fmt.Errorf("append records for %s: %w", res.Job, err)
		}
		if err := sink.Flush(); err != nil {
			return fmt.Errorf("flush records for %s: %w", res.Job, err)
		}
	}

	if !res.Failed || !c.cfg.RetryFailedNextRun {
		state.MarkCompleted(res.Job)
		if err := c.deps.Checkpoints.Save(ctx, *state); err != nil {
			return fmt.Errorf("checkpoint %s: %w", res.Job, err)
		}
		metrics.ObserveCheckpointSave()
	}

	completed := len(state.Completed)
	c.update(func(s *crawler.RunStatus) {
		s.Completed = completed
		s.InFlight--
	})
	logger.Info("result accepted",
		zap.Int("rank", res.Rank),
		zap.String("job", string(res.Job)),
		zap.String("outcome", outcome),
		zap.Int("records", len(res.Records)),
		zap.Int("completed", completed),
	)
	return nil
}
