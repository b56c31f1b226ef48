// Package worker runs the pool of goroutines that claim queued jobs and
// feed them through the pipeline processor.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/leadboost/leadboost/internal/config"
	"github.com/leadboost/leadboost/internal/model"
	"github.com/leadboost/leadboost/internal/pipeline"
)

// Claimer hands out due jobs. ClaimJob returns (nil, nil) when nothing is
// due.
type Claimer interface {
	ClaimJob(ctx context.Context) (*model.Job, error)
}

// Processor runs one claimed job to completion.
type Processor interface {
	Process(ctx context.Context, job *model.Job) pipeline.Outcome
}

// Pool polls the store for due jobs across N workers. Each worker holds at
// most one job at a time.
type Pool struct {
	claimer      Claimer
	processor    Processor
	pollInterval time.Duration
	concurrency  int
}

// NewPool creates a pool from worker configuration.
func NewPool(claimer Claimer, processor Processor, cfg config.WorkerConfig) *Pool {
	pollInterval := time.Duration(cfg.PollIntervalSecs) * time.Second
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 3
	}
	return &Pool{
		claimer:      claimer,
		processor:    processor,
		pollInterval: pollInterval,
		concurrency:  concurrency,
	}
}

// Run blocks until the context is cancelled. Workers finish their current
// job before exiting; context cancellation is a clean shutdown, not an
// error.
func (p *Pool) Run(ctx context.Context) error {
	zap.L().Info("worker: starting pool",
		zap.Int("concurrency", p.concurrency),
		zap.Duration("poll_interval", p.pollInterval),
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.concurrency; i++ {
		workerID := i
		g.Go(func() error {
			return p.runWorker(gctx, workerID)
		})
	}

	err := g.Wait()
	zap.L().Info("worker: pool stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Pool) runWorker(ctx context.Context, workerID int) error {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.processNext(ctx, workerID)
		}
	}
}

func (p *Pool) processNext(ctx context.Context, workerID int) {
	job, err := p.claimer.ClaimJob(ctx)
	if err != nil {
		if ctx.Err() == nil {
			zap.L().Error("worker: claim job failed",
				zap.Int("worker_id", workerID),
				zap.Error(err),
			)
		}
		return
	}
	if job == nil {
		return
	}

	zap.L().Info("worker: claimed job",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID),
		zap.String("lead_id", job.LeadID),
		zap.Int("attempt", job.Attempts),
	)

	outcome := p.processor.Process(ctx, job)

	zap.L().Info("worker: job finished",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID),
		zap.String("status", outcome.Status),
	)
}
