// Package queue provides the bounded in-process job queue that decouples scan
// uploads from their OCR + matching work. Capacity is the backpressure limit:
// submissions past it fail fast instead of piling up unbounded goroutines.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned when the queue is at capacity.
	ErrQueueFull = errors.New("processing queue is full")

	// ErrStopped is returned when the pool is no longer accepting jobs.
	ErrStopped = errors.New("processing queue is stopped")
)

// Job identifies one scan to process.
type Job struct {
	ScanID uuid.UUID
}

// Handler processes one job. It must not panic-propagate or return; all
// failure reporting happens through the scan record.
type Handler func(ctx context.Context, job Job)

type Config struct {
	Workers  int
	Capacity int
}

// Pool runs a fixed number of workers over a bounded job channel.
type Pool struct {
	jobs    chan Job
	workers int
	logger  *zap.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

func NewPool(cfg Config, logger *zap.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 16
	}
	return &Pool{
		jobs:    make(chan Job, cfg.Capacity),
		workers: cfg.Workers,
		logger:  logger,
	}
}

// Start launches the worker goroutines. The provided context bounds the
// lifetime of all job executions.
func (p *Pool) Start(ctx context.Context, handler Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i, handler)
	}
	p.logger.Info("Worker pool started",
		zap.Int("workers", p.workers),
		zap.Int("capacity", cap(p.jobs)),
	)
}

func (p *Pool) worker(ctx context.Context, id int, handler Handler) {
	defer p.wg.Done()
	for job := range p.jobs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("Job handler panicked",
						zap.Int("worker", id),
						zap.String("scan_id", job.ScanID.String()),
						zap.Any("panic", r),
					)
				}
			}()
			handler(ctx, job)
		}()
	}
}

// Submit enqueues a job without blocking. Returns ErrQueueFull at capacity.
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrStopped
	}
	p.mu.Unlock()

	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for in-flight jobs to drain.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.jobs)
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}
