// Package dispatcher pulls queued scrape jobs and hands them to the
// orchestrator.
package dispatcher

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/gemfetch/jewelcrawler/internal/pipeline"
)

// Runner executes one job to completion.
type Runner interface {
	Run(ctx context.Context, jobID, url string) error
}

// Dispatcher runs a fixed pool of job workers over the queue.
type Dispatcher struct {
	queue   pipeline.Queue
	runner  Runner
	workers int
	logger  *zap.Logger
}

// New constructs a Dispatcher.
func New(queue pipeline.Queue, runner Runner, workers int, logger *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		queue:   queue,
		runner:  runner,
		workers: workers,
		logger:  logger,
	}
}

// Start launches the worker pool and blocks until the context ends and all
// in-flight jobs drain.
func (d *Dispatcher) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			d.loop(ctx, worker)
		}(i)
	}
	wg.Wait()
}

func (d *Dispatcher) loop(ctx context.Context, worker int) {
	for {
		item, err := d.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
				errors.Is(err, pipeline.ErrQueueClosed) {
				return
			}
			d.logger.Warn("dequeue failed", zap.Int("worker", worker), zap.Error(err))
			if ctx.Err() != nil {
				return
			}
			continue
		}
		if err := d.runner.Run(ctx, item.JobID, item.URL); err != nil {
			d.logger.Error("job run failed",
				zap.Int("worker", worker),
				zap.String("job_id", item.JobID),
				zap.Error(err))
		}
	}
}
