// Package jobs runs background pipeline stages. Handlers submit work and
// respond immediately; the runner executes the stage on a bounded worker
// pool with panic recovery and drains outstanding work on shutdown. Stage
// outcomes are only observable through the rows the stage updates and the
// status events it publishes.
package jobs

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	jobsInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "carevisit_jobs_inflight",
		Help: "Number of background jobs currently executing.",
	})
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carevisit_jobs_total",
		Help: "Background jobs by name and outcome.",
	}, []string{"name", "outcome"})
)

// Dispatcher is the submission interface handed to services. Submit never
// blocks the caller; it reports false when the job could not be accepted.
type Dispatcher interface {
	Submit(name string, fn func(ctx context.Context)) bool
}

type job struct {
	name string
	fn   func(ctx context.Context)
}

// Runner is a bounded worker pool executing submitted jobs.
type Runner struct {
	logger  zerolog.Logger
	queue   chan job
	workers int

	mu      sync.Mutex
	started bool
	closed  bool
	wg      sync.WaitGroup
	baseCtx context.Context
}

// NewRunner creates a Runner with the given worker count and queue depth.
func NewRunner(workers, queueSize int, logger zerolog.Logger) *Runner {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Runner{
		logger:  logger.With().Str("component", "jobs").Logger(),
		queue:   make(chan job, queueSize),
		workers: workers,
	}
}

// Start launches the worker goroutines. ctx is the base context handed to
// every job; cancelling it signals jobs to wind down.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.baseCtx = ctx

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for j := range r.queue {
		r.run(j)
	}
}

func (r *Runner) run(j job) {
	jobsInflight.Inc()
	start := time.Now()
	outcome := "ok"

	defer func() {
		if rec := recover(); rec != nil {
			var stack [4096]byte
			n := runtime.Stack(stack[:], false)
			r.logger.Error().
				Str("job", j.name).
				Str("panic", fmt.Sprintf("%v", rec)).
				Str("stack", string(stack[:n])).
				Msg("job panicked")
			outcome = "panic"
		}
		jobsInflight.Dec()
		jobsTotal.WithLabelValues(j.name, outcome).Inc()
		r.logger.Debug().Str("job", j.name).Dur("duration", time.Since(start)).Msg("job finished")
	}()

	j.fn(r.baseCtx)
}

// Submit enqueues a job without blocking. It returns false when the runner
// is shut down or the queue is full; callers treat that as a stage failure
// and record it on the row.
func (r *Runner) Submit(name string, fn func(ctx context.Context)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || !r.started {
		return false
	}

	// The closed check and the send stay under one lock so Shutdown cannot
	// close the queue between them. The default arm keeps the critical
	// section non-blocking.
	select {
	case r.queue <- job{name: name, fn: fn}:
		return true
	default:
		r.logger.Warn().Str("job", name).Msg("job queue full, submission rejected")
		return false
	}
}

// Shutdown stops accepting work and waits for in-flight jobs to finish or
// for ctx to expire.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("jobs did not drain before deadline: %w", ctx.Err())
	}
}

// Sync executes jobs inline on the caller's goroutine. Used in tests to make
// pipeline stages deterministic.
type Sync struct{}

func (Sync) Submit(_ string, fn func(ctx context.Context)) bool {
	fn(context.Background())
	return true
}
