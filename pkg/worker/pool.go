// Package worker runs jobs on a fixed number of goroutines fed by a bounded
// queue. Submit never blocks: a full queue is reported as ErrQueueFull so the
// caller can shed load.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/semql/errors"
	"github.com/c360/semql/metric"
)

// Pool processes jobs of type T.
type Pool[T any] struct {
	name      string
	workers   int
	queueSize int
	process   func(context.Context, T) error
	queue     chan T
	registry  *metric.MetricsRegistry
	metrics   *poolMetrics

	mu      sync.Mutex
	started bool
	closing bool
	wg      sync.WaitGroup

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// Option configures a Pool.
type Option[T any] func(*Pool[T])

// WithMetrics registers the pool's collectors with registry under the pool
// name.
func WithMetrics[T any](registry *metric.MetricsRegistry) Option[T] {
	return func(p *Pool[T]) {
		p.registry = registry
	}
}

// NewPool creates a pool. Non-positive sizes fall back to 10 workers and a
// queue of 1000.
func NewPool[T any](name string, workers, queueSize int, process func(context.Context, T) error, opts ...Option[T]) (*Pool[T], error) {
	if process == nil {
		return nil, errors.WrapInvalid(ErrNilProcessor, "Pool", "NewPool", "processor is required")
	}
	if workers <= 0 {
		workers = 10
	}
	if queueSize <= 0 {
		queueSize = 1000
	}

	p := &Pool[T]{
		name:      name,
		workers:   workers,
		queueSize: queueSize,
		process:   process,
		queue:     make(chan T, queueSize),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.registry != nil {
		m, err := newPoolMetrics(p.registry, name)
		if err != nil {
			return nil, err
		}
		p.metrics = m
	}
	return p, nil
}

// Submit queues job without blocking.
func (p *Pool[T]) Submit(job T) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return ErrPoolNotStarted
	}
	if p.closing {
		return ErrPoolStopped
	}

	select {
	case p.queue <- job:
		p.submitted.Add(1)
		p.metrics.queued(len(p.queue))
		return nil
	default:
		p.dropped.Add(1)
		p.metrics.finished("dropped", 0)
		return ErrQueueFull
	}
}

// Start launches the workers. They exit when ctx is cancelled or the pool is
// stopped.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.started = true
	return nil
}

// Stop closes the queue and waits up to timeout for queued jobs to finish.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.mu.Lock()
	if !p.started || p.closing {
		p.mu.Unlock()
		return nil
	}
	p.closing = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrStopTimeout
	}
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

// Stats returns the current counters.
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.queue),
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Failed:     p.failed.Load(),
		Dropped:    p.dropped.Load(),
	}
}

func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.queue:
			if !ok {
				return
			}
			p.metrics.queued(len(p.queue))
			p.run(ctx, job)
		}
	}
}

func (p *Pool[T]) run(ctx context.Context, job T) {
	start := time.Now()
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		p.processed.Add(1)
		status := "ok"
		if err != nil {
			p.failed.Add(1)
			status = "error"
		}
		p.metrics.finished(status, time.Since(start))
	}()
	err = p.process(ctx, job)
}

// poolMetrics is nil when the pool has no registry; its methods then do
// nothing.
type poolMetrics struct {
	depth    prometheus.Gauge
	jobs     *prometheus.CounterVec
	duration prometheus.Histogram
}

func newPoolMetrics(registry *metric.MetricsRegistry, name string) (*poolMetrics, error) {
	m := &poolMetrics{
		depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "semql",
			Subsystem: name,
			Name:      "queue_depth",
			Help:      "Jobs waiting for a worker",
		}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "semql",
			Subsystem: name,
			Name:      "jobs_total",
			Help:      "Jobs by outcome (ok, error, dropped)",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "semql",
			Subsystem: name,
			Name:      "job_duration_seconds",
			Help:      "Time spent processing one job",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 5.0},
		}),
	}
	for metricName, c := range map[string]prometheus.Collector{
		"queue_depth":  m.depth,
		"jobs":         m.jobs,
		"job_duration": m.duration,
	} {
		if err := registry.Register("worker."+name, metricName, c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *poolMetrics) queued(depth int) {
	if m == nil {
		return
	}
	m.depth.Set(float64(depth))
}

func (m *poolMetrics) finished(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(status).Inc()
	if status != "dropped" {
		m.duration.Observe(d.Seconds())
	}
}
