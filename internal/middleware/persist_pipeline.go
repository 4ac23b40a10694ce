package middleware

import (
	"context"
	"sync"
	"time"

	domrepo "HelixPull/internal/domain/repository"
	applogger "HelixPull/pkg/logger"
)

// Job is one deferred storage write.
type Job func(ctx context.Context)

// PersistPipeline decouples the hot stream path from storage. Dispatch
// never blocks: when the buffer is full the job is dropped and counted,
// trading persistence gaps for ingestion latency.
type PersistPipeline struct {
	jobs    chan Job
	workers int
	timeout time.Duration
	logger  *applogger.Logger
	metrics domrepo.Metrics

	mu      sync.Mutex
	started bool
	closed  bool
	wg      sync.WaitGroup
}

func NewPersistPipeline(workers, bufferSize int, log *applogger.Logger, metrics domrepo.Metrics) *PersistPipeline {
	if workers <= 0 {
		workers = 4
	}
	if bufferSize <= 0 {
		bufferSize = 2000
	}
	return &PersistPipeline{
		jobs:    make(chan Job, bufferSize),
		workers: workers,
		timeout: 10 * time.Second,
		logger:  log,
		metrics: metrics,
	}
}

// Start launches the worker pool. Safe to call once.
func (p *PersistPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.logger.Info("persist pipeline started",
		applogger.Int("workers", p.workers),
		applogger.Int("buffer", cap(p.jobs)),
	)
}

func (p *PersistPipeline) worker(ctx context.Context) {
	defer p.wg.Done()
	for job := range p.jobs {
		jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		job(jobCtx)
		cancel()
	}
}

// Dispatch queues a job, reporting whether it was accepted. The mutex is
// held across the send so Stop cannot close the channel between the closed
// check and the enqueue; the send never blocks, so the hold is brief.
func (p *PersistPipeline) Dispatch(job Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}

	select {
	case p.jobs <- job:
		return true
	default:
		if p.metrics != nil {
			p.metrics.RecordError("persist_drop")
		}
		return false
	}
}

// Stop drains queued jobs and waits for the workers, bounded by ctx.
func (p *PersistPipeline) Stop(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.logger.Info("persist pipeline drained")
	case <-ctx.Done():
		p.logger.Warn("persist pipeline stop timed out")
	}
}
