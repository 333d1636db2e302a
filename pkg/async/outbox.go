package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/workspaces/pkg/observability"
)

var (
	// ErrOutboxFull is returned by Enqueue when the queue has no free slot
	ErrOutboxFull = errors.New("outbox queue is full")
	// ErrOutboxClosed is returned by Enqueue after Close
	ErrOutboxClosed = errors.New("outbox is closed")
)

// OutboxConfig configures an Outbox
type OutboxConfig struct {
	Name           string
	QueueSize      int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	AttemptTimeout time.Duration
}

// DefaultOutboxConfig returns the settings used when config leaves them zero
func DefaultOutboxConfig(name string) OutboxConfig {
	return OutboxConfig{
		Name:           name,
		QueueSize:      1024,
		MaxAttempts:    5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		AttemptTimeout: 10 * time.Second,
	}
}

func (c OutboxConfig) withDefaults() OutboxConfig {
	d := DefaultOutboxConfig(c.Name)
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = d.AttemptTimeout
	}
	return c
}

// OutboxMetrics are optional Prometheus collectors updated by the outbox
type OutboxMetrics struct {
	Pending   prometheus.Gauge
	Delivered prometheus.Counter
	Failed    prometheus.Counter
	Dropped   prometheus.Counter
}

// OutboxStats is a point-in-time view of the outbox counters
type OutboxStats struct {
	Pending   int64  `json:"pending"`
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
}

type outboxJob struct {
	name string
	fn   func(context.Context) error
}

// Outbox delivers write-behind jobs in enqueue order on a single worker.
// Each job is retried with exponential backoff up to MaxAttempts; a job that
// returns a backoff.Permanent error is not retried. Pending counts jobs that
// are queued or in flight.
type Outbox struct {
	cfg     OutboxConfig
	logger  *observability.Logger
	metrics OutboxMetrics

	queue chan outboxJob
	done  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool

	pending   atomic.Int64
	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// OutboxOption configures an Outbox
type OutboxOption func(*Outbox)

// WithOutboxMetrics attaches Prometheus collectors
func WithOutboxMetrics(metrics OutboxMetrics) OutboxOption {
	return func(o *Outbox) {
		o.metrics = metrics
	}
}

// NewOutbox creates an outbox and starts its worker
func NewOutbox(cfg OutboxConfig, logger *observability.Logger, opts ...OutboxOption) *Outbox {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	o := &Outbox{
		cfg:    cfg,
		logger: logger.WithField("outbox", cfg.Name),
		queue:  make(chan outboxJob, cfg.QueueSize),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(o)
	}

	go o.run()
	return o
}

// Enqueue schedules fn without blocking. It fails with ErrOutboxFull when
// the queue is saturated and ErrOutboxClosed after Close.
func (o *Outbox) Enqueue(name string, fn func(context.Context) error) error {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return ErrOutboxClosed
	}

	o.addPending(1)
	select {
	case o.queue <- outboxJob{name: name, fn: fn}:
		return nil
	default:
		o.addPending(-1)
		o.dropped.Add(1)
		if o.metrics.Dropped != nil {
			o.metrics.Dropped.Inc()
		}
		o.logger.WithField("job", name).Warn("Outbox full, dropping write")
		return ErrOutboxFull
	}
}

// Pending returns the number of queued or in-flight jobs
func (o *Outbox) Pending() int64 {
	return o.pending.Load()
}

// Stats returns the outbox counters
func (o *Outbox) Stats() OutboxStats {
	return OutboxStats{
		Pending:   o.pending.Load(),
		Delivered: o.delivered.Load(),
		Failed:    o.failed.Load(),
		Dropped:   o.dropped.Load(),
	}
}

// Flush waits until every job enqueued so far has been delivered or
// abandoned, or ctx is done
func (o *Outbox) Flush(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		if o.pending.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close stops accepting jobs and drains the queue. If ctx ends first the
// in-flight job is cancelled and the remaining jobs are abandoned.
func (o *Outbox) Close(ctx context.Context) error {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
	o.mu.Unlock()

	select {
	case <-o.done:
		o.cancel()
		return nil
	case <-ctx.Done():
		o.cancel()
		<-o.done
		return ctx.Err()
	}
}

func (o *Outbox) run() {
	defer close(o.done)
	for job := range o.queue {
		o.deliver(job)
	}
}

func (o *Outbox) deliver(job outboxJob) {
	defer o.addPending(-1)

	logger := o.logger.WithField("job", job.name)

	if o.ctx.Err() != nil {
		o.abandon(logger, o.ctx.Err(), 0)
		return
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = o.cfg.InitialBackoff
	expo.MaxInterval = o.cfg.MaxBackoff
	expo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(o.cfg.MaxAttempts-1)), o.ctx)

	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		return o.attempt(job)
	}, policy, func(err error, wait time.Duration) {
		logger.WithError(err).WithField("attempt", attempts).Debugf("Outbox write failed, retrying in %s", wait)
	})
	if err != nil {
		o.abandon(logger, err, attempts)
		return
	}

	o.delivered.Add(1)
	if o.metrics.Delivered != nil {
		o.metrics.Delivered.Inc()
	}
}

func (o *Outbox) attempt(job outboxJob) (err error) {
	ctx, cancel := context.WithTimeout(o.ctx, o.cfg.AttemptTimeout)
	defer cancel()

	defer func() {
		if panicErr := observability.PanicError(recover()); panicErr != nil {
			err = backoff.Permanent(panicErr)
		}
	}()

	return job.fn(ctx)
}

func (o *Outbox) abandon(logger *observability.Logger, err error, attempts int) {
	o.failed.Add(1)
	if o.metrics.Failed != nil {
		o.metrics.Failed.Inc()
	}
	logger.WithError(err).WithField("attempts", attempts).Error("Outbox write abandoned")
}

func (o *Outbox) addPending(delta int64) {
	v := o.pending.Add(delta)
	if o.metrics.Pending != nil {
		o.metrics.Pending.Set(float64(v))
	}
}
