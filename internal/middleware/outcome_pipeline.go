package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"AOWI/internal/domain/models"
	domrepo "AOWI/internal/domain/repository"
	applogger "AOWI/pkg/logger"
)

// OutcomePipeline sits between the dispatch loop and external result sinks.
// It buffers result batches and writes them to every sink in the background,
// retrying each write with capped exponential backoff. Sink failures are
// counted and logged, never returned to the caller.
type OutcomePipeline struct {
	sinks      []domrepo.ResultSink
	metrics    domrepo.Metrics
	log        *applogger.Logger
	bufSize    int
	maxRetries int
	backoffMin time.Duration
	backoffMax time.Duration

	queue chan []models.Result
	done  chan struct{}

	mu      sync.Mutex
	started bool
	closed  bool
	runCtx  context.Context
	abort   context.CancelFunc
}

type PipelineOption func(*OutcomePipeline)

// WithBufferSize sets how many batches may wait for the sinks.
func WithBufferSize(n int) PipelineOption {
	return func(p *OutcomePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithRetry sets per-sink retry attempts and the backoff range.
func WithRetry(max int, backoffMin, backoffMax time.Duration) PipelineOption {
	return func(p *OutcomePipeline) {
		if max >= 0 {
			p.maxRetries = max
		}
		if backoffMin > 0 {
			p.backoffMin = backoffMin
		}
		if backoffMax >= p.backoffMin {
			p.backoffMax = backoffMax
		}
	}
}

func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *OutcomePipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// NewOutcomePipeline creates a pipeline. With no sinks it accepts and discards batches.
func NewOutcomePipeline(sinks []domrepo.ResultSink, metrics domrepo.Metrics, opts ...PipelineOption) *OutcomePipeline {
	p := &OutcomePipeline{
		sinks:      sinks,
		metrics:    metrics,
		log:        applogger.Nop(),
		bufSize:    256,
		maxRetries: 3,
		backoffMin: 50 * time.Millisecond,
		backoffMax: 2 * time.Second,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.queue = make(chan []models.Result, p.bufSize)
	return p
}

// Start launches the background writer. Writes outlive ctx cancellation so that
// Drain can flush after shutdown begins; only a Drain timeout aborts them.
func (p *OutcomePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.runCtx, p.abort = context.WithCancel(context.WithoutCancel(ctx))
	go p.run()
}

func (p *OutcomePipeline) run() {
	defer close(p.done)
	for batch := range p.queue {
		start := time.Now()
		for _, sink := range p.sinks {
			p.write(sink, batch)
		}
		p.metrics.RecordLatency("pipeline_flush", time.Since(start).Seconds())
	}
}

func (p *OutcomePipeline) write(sink domrepo.ResultSink, batch []models.Result) {
	backoff := p.backoffMin
	for attempt := 0; ; attempt++ {
		err := sink.Write(p.runCtx, batch)
		if err == nil {
			return
		}
		p.metrics.RecordError("pipeline_sink_" + sink.Name())
		if attempt >= p.maxRetries || p.runCtx.Err() != nil {
			p.log.Error("outcome sink write failed",
				applogger.String("sink", sink.Name()),
				applogger.Int("results", len(batch)),
				applogger.Int("attempts", attempt+1),
				applogger.Error(err),
			)
			return
		}
		p.log.Warn("outcome sink write retry",
			applogger.String("sink", sink.Name()),
			applogger.Int("attempt", attempt+1),
			applogger.Duration("backoff_ms", backoff),
			applogger.Error(err),
		)
		t := time.NewTimer(backoff)
		select {
		case <-p.runCtx.Done():
			t.Stop()
		case <-t.C:
		}
		backoff *= 2
		if backoff > p.backoffMax {
			backoff = p.backoffMax
		}
	}
}

// Forward queues a batch without blocking. A full buffer drops the batch.
func (p *OutcomePipeline) Forward(_ context.Context, results []models.Result) {
	if len(results) == 0 {
		return
	}
	batch := append([]models.Result(nil), results...)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.metrics.RecordError("pipeline_closed")
		return
	}
	select {
	case p.queue <- batch:
	default:
		p.metrics.RecordError("pipeline_buffer_full")
		p.log.Warn("outcome buffer full, dropping batch", applogger.Int("results", len(batch)))
	}
}

// Drain stops intake and waits for queued batches to be written. If ctx ends
// first, in-flight retries are aborted and ctx's error is returned.
func (p *OutcomePipeline) Drain(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	started := p.started
	p.mu.Unlock()

	if !started {
		p.Start(ctx)
	}

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		p.abort()
		<-p.done
		return ctx.Err()
	}
}

// Pending returns the number of queued batches.
func (p *OutcomePipeline) Pending() int { return len(p.queue) }

// Close releases every sink.
func (p *OutcomePipeline) Close() error {
	var errs []error
	for _, s := range p.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
