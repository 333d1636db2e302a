package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() OutboxConfig {
	return OutboxConfig{
		Name:           "test",
		QueueSize:      16,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		AttemptTimeout: time.Second,
	}
}

func flush(t *testing.T, o *Outbox) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, o.Flush(ctx))
}

func TestOutbox_DeliversInOrder(t *testing.T) {
	o := NewOutbox(fastConfig(), nil)
	defer o.Close(context.Background())

	var mu sync.Mutex
	var got []int
	for i := 0; i < 10; i++ {
		i := i
		require.NoError(t, o.Enqueue("write", func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, i)
			return nil
		}))
	}

	flush(t, o)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
	assert.Equal(t, OutboxStats{Pending: 0, Delivered: 10}, o.Stats())
}

func TestOutbox_RetriesThenSucceeds(t *testing.T) {
	o := NewOutbox(fastConfig(), nil)
	defer o.Close(context.Background())

	calls := atomic.Int32{}
	require.NoError(t, o.Enqueue("flaky", func(ctx context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("connection refused")
		}
		return nil
	}))

	flush(t, o)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, uint64(1), o.Stats().Delivered)
	assert.Zero(t, o.Stats().Failed)
}

func TestOutbox_BoundedRetry(t *testing.T) {
	registry := prometheus.NewRegistry()
	failed := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_outbox_failed_total"})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_outbox_pending"})
	registry.MustRegister(failed, pending)

	o := NewOutbox(fastConfig(), nil, WithOutboxMetrics(OutboxMetrics{Failed: failed, Pending: pending}))
	defer o.Close(context.Background())

	calls := atomic.Int32{}
	require.NoError(t, o.Enqueue("down", func(ctx context.Context) error {
		calls.Add(1)
		return errors.New("still down")
	}))

	flush(t, o)
	assert.Equal(t, int32(3), calls.Load(), "MaxAttempts bounds the tries")
	assert.Equal(t, uint64(1), o.Stats().Failed)
	assert.Equal(t, 1.0, testutil.ToFloat64(failed))
	assert.Equal(t, 0.0, testutil.ToFloat64(pending))
}

func TestOutbox_PermanentErrorStopsRetry(t *testing.T) {
	o := NewOutbox(fastConfig(), nil)
	defer o.Close(context.Background())

	calls := atomic.Int32{}
	require.NoError(t, o.Enqueue("bad record", func(ctx context.Context) error {
		calls.Add(1)
		return backoff.Permanent(errors.New("schema mismatch"))
	}))

	flush(t, o)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(1), o.Stats().Failed)
}

func TestOutbox_PanicIsContained(t *testing.T) {
	o := NewOutbox(fastConfig(), nil)
	defer o.Close(context.Background())

	require.NoError(t, o.Enqueue("panics", func(ctx context.Context) error { panic("boom") }))
	delivered := atomic.Bool{}
	require.NoError(t, o.Enqueue("after", func(ctx context.Context) error {
		delivered.Store(true)
		return nil
	}))

	flush(t, o)
	assert.True(t, delivered.Load(), "worker survives a panicking job")
	assert.Equal(t, uint64(1), o.Stats().Failed)
}

func TestOutbox_FullQueueDrops(t *testing.T) {
	cfg := fastConfig()
	cfg.QueueSize = 1
	o := NewOutbox(cfg, nil)

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, o.Enqueue("blocking", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	require.NoError(t, o.Enqueue("queued", func(ctx context.Context) error { return nil }))
	assert.Equal(t, int64(2), o.Pending())

	err := o.Enqueue("overflow", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrOutboxFull)
	assert.Equal(t, uint64(1), o.Stats().Dropped)
	assert.Equal(t, int64(2), o.Pending())

	close(release)
	require.NoError(t, o.Close(context.Background()))
	assert.Zero(t, o.Pending())
}

func TestOutbox_Close(t *testing.T) {
	o := NewOutbox(fastConfig(), nil)

	delivered := atomic.Int32{}
	for i := 0; i < 5; i++ {
		require.NoError(t, o.Enqueue("write", func(ctx context.Context) error {
			delivered.Add(1)
			return nil
		}))
	}

	require.NoError(t, o.Close(context.Background()))
	assert.Equal(t, int32(5), delivered.Load(), "close drains the queue")
	assert.ErrorIs(t, o.Enqueue("late", func(ctx context.Context) error { return nil }), ErrOutboxClosed)
	require.NoError(t, o.Close(context.Background()), "close is idempotent")
}

func TestOutbox_CloseTimeout(t *testing.T) {
	o := NewOutbox(fastConfig(), nil)

	started := make(chan struct{})
	require.NoError(t, o.Enqueue("slow", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, o.Close(ctx), context.DeadlineExceeded)
	assert.Zero(t, o.Pending())
}
