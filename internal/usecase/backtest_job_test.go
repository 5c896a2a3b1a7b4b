package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"QuantBench/internal/domain/models"
	pkgcache "QuantBench/pkg/cache"
)

type capturePublisher struct {
	msgType string
	payload interface{}
	err     error
}

func (p *capturePublisher) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	p.msgType = msgType
	p.payload = payload
	return p.err
}

func TestAsyncBacktestLifecycle(t *testing.T) {
	runner := testRunner(t)
	pub := &capturePublisher{}
	cache := pkgcache.NewMemoryCache()
	a := NewAsyncBacktest(runner, pub, cache, time.Minute, testLogger(t))

	ctx := context.Background()
	jobID, err := a.Enqueue(ctx, testRequest())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if pub.msgType != JobTypeBacktest {
		t.Fatalf("expected message type %q, got %q", JobTypeBacktest, pub.msgType)
	}

	state, err := a.State(ctx, jobID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.Status != models.JobQueued {
		t.Fatalf("expected queued, got %s", state.Status)
	}

	// Worker side: process the captured payload.
	if err := a.Handle(ctx, pub.payload); err != nil {
		t.Fatalf("handle: %v", err)
	}

	state, err = a.State(ctx, jobID)
	if err != nil {
		t.Fatalf("state after handle: %v", err)
	}
	if state.Status != models.JobCompleted {
		t.Fatalf("expected completed, got %s (%s)", state.Status, state.Error)
	}
	if state.Result == nil || state.Result.RunID == "" {
		t.Fatalf("expected a result on the completed job")
	}
}

func TestAsyncBacktestEnqueueFailure(t *testing.T) {
	runner := testRunner(t)
	pub := &capturePublisher{err: errors.New("redis down")}
	a := NewAsyncBacktest(runner, pub, pkgcache.NewMemoryCache(), time.Minute, testLogger(t))

	if _, err := a.Enqueue(context.Background(), testRequest()); err == nil {
		t.Fatalf("expected enqueue error")
	}
}

func TestAsyncBacktestUnknownJob(t *testing.T) {
	runner := testRunner(t)
	a := NewAsyncBacktest(runner, &capturePublisher{}, pkgcache.NewMemoryCache(), time.Minute, testLogger(t))

	if _, err := a.State(context.Background(), "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestAsyncBacktestFailedRun(t *testing.T) {
	runner := testRunner(t)
	pub := &capturePublisher{}
	cache := pkgcache.NewMemoryCache()
	a := NewAsyncBacktest(runner, pub, cache, time.Minute, testLogger(t))

	ctx := context.Background()
	req := testRequest()
	req.Strategy = "alchemy" // invalid, run will fail on the worker side
	jobID, err := a.Enqueue(ctx, req)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := a.Handle(ctx, pub.payload); err == nil {
		t.Fatalf("expected handle error")
	}

	state, err := a.State(ctx, jobID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.Status != models.JobFailed || state.Error == "" {
		t.Fatalf("expected failed state with error, got %s (%q)", state.Status, state.Error)
	}
}
