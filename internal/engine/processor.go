package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrProcessorClosed is returned by Submit after Close.
var ErrProcessorClosed = errors.New("processor is closed")

// Handler processes one job.
type Handler interface {
	ProcessBatch(ctx context.Context, job Job) error
}

// ProcessorConfig sizes the worker pool.
type ProcessorConfig struct {
	Workers   int
	QueueSize int
}

// DefaultProcessorConfig returns the default pool size.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		Workers:   2,
		QueueSize: 64,
	}
}

// Processor runs submitted jobs on a fixed pool of workers. Jobs are never
// cancelled once accepted; Close waits for the queue to drain.
type Processor struct {
	handler Handler
	ctx     context.Context
	logger  *slog.Logger
	jobs    chan Job

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewProcessor starts cfg.Workers workers. Jobs run under ctx, not under the
// context of the request that submitted them.
func NewProcessor(ctx context.Context, handler Handler, cfg ProcessorConfig, logger *slog.Logger) *Processor {
	def := DefaultProcessorConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = def.QueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Processor{
		handler: handler,
		ctx:     context.WithoutCancel(ctx),
		logger:  logger,
		jobs:    make(chan Job, cfg.QueueSize),
	}

	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker(i)
	}
	return p
}

func (p *Processor) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobs {
		p.logger.Debug("worker processing batch",
			"worker_id", id,
			"upload_id", job.UploadID,
			"rows", len(job.Candidates))

		if err := p.handler.ProcessBatch(p.ctx, job); err != nil {
			p.logger.Warn("batch failed",
				"worker_id", id,
				"upload_id", job.UploadID,
				"error", err)
		}
	}
}

// Submit queues job. It blocks while the queue is full until ctx is done.
func (p *Processor) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrProcessorClosed
	}

	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued jobs not yet picked up by a worker.
func (p *Processor) Pending() int {
	return len(p.jobs)
}

// Close stops accepting jobs and waits for every queued job to finish.
// It is safe to call more than once.
func (p *Processor) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	p.wg.Wait()
}
