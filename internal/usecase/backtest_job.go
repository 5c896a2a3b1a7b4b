package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"QuantBench/internal/domain/models"
	pkgcache "QuantBench/pkg/cache"
	applogger "QuantBench/pkg/logger"
	"QuantBench/pkg/queue"
)

// JobTypeBacktest is the queue message type for async backtest runs.
const JobTypeBacktest = "backtest_run"

// ErrJobNotFound is returned when polling an unknown job id.
var ErrJobNotFound = errors.New("backtest job not found")

const jobCachePrefix = "backtest:job:"

// AsyncBacktest runs backtests through the Redis queue. It is both the
// enqueue-side API for handlers and the queue.Job the worker side registers;
// job state lives in the cache so any instance can answer polls.
type AsyncBacktest struct {
	runner    *BacktestRunner
	publisher queue.QueueService
	cache     pkgcache.Service
	ttl       time.Duration
	log       *applogger.Logger
}

type backtestJobPayload struct {
	JobID   string                 `json:"job_id"`
	Request models.BacktestRequest `json:"request"`
}

// NewAsyncBacktest creates the async runner.
func NewAsyncBacktest(runner *BacktestRunner, publisher queue.QueueService, cache pkgcache.Service, ttl time.Duration, log *applogger.Logger) *AsyncBacktest {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AsyncBacktest{runner: runner, publisher: publisher, cache: cache, ttl: ttl, log: log}
}

// Enqueue queues one run and returns the job id to poll.
func (a *AsyncBacktest) Enqueue(ctx context.Context, req *models.BacktestRequest) (string, error) {
	jobID := uuid.NewString()
	if err := a.setState(ctx, &models.JobState{JobID: jobID, Status: models.JobQueued}); err != nil {
		return "", fmt.Errorf("record job state: %w", err)
	}
	if err := a.publisher.PublishMessage(ctx, JobTypeBacktest, backtestJobPayload{JobID: jobID, Request: *req}); err != nil {
		_ = a.setState(ctx, &models.JobState{JobID: jobID, Status: models.JobFailed, Error: err.Error()})
		return "", fmt.Errorf("enqueue backtest: %w", err)
	}
	return jobID, nil
}

// State returns the current job state.
func (a *AsyncBacktest) State(ctx context.Context, jobID string) (*models.JobState, error) {
	var state models.JobState
	if err := a.cache.Get(ctx, jobCachePrefix+jobID, &state); err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("load job %s: %w", jobID, err)
	}
	return &state, nil
}

// Name implements queue.Job.
func (a *AsyncBacktest) Name() string { return "backtest-runner" }

// Type implements queue.Job.
func (a *AsyncBacktest) Type() string { return JobTypeBacktest }

// Handle implements queue.Job: it executes the queued run and records the
// terminal state.
func (a *AsyncBacktest) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[backtestJobPayload](payload)
	if err != nil {
		return fmt.Errorf("parse backtest payload: %w", err)
	}
	if err := a.setState(ctx, &models.JobState{JobID: p.JobID, Status: models.JobRunning}); err != nil {
		a.log.Warn("record running state", applogger.Error(err))
	}

	result, err := a.runner.Run(ctx, &p.Request)
	if err != nil {
		_ = a.setState(ctx, &models.JobState{JobID: p.JobID, Status: models.JobFailed, Error: err.Error()})
		return err
	}
	return a.setState(ctx, &models.JobState{JobID: p.JobID, Status: models.JobCompleted, Result: result})
}

func (a *AsyncBacktest) setState(ctx context.Context, state *models.JobState) error {
	return a.cache.Set(ctx, jobCachePrefix+state.JobID, state, a.ttl)
}

var _ queue.Job = (*AsyncBacktest)(nil)
