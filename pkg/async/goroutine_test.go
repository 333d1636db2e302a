package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/platinummonkey/workspaces/pkg/observability"
	"github.com/stretchr/testify/assert"
)

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("background task did not finish")
	}
}

func TestSafeGo_Success(t *testing.T) {
	executed := atomic.Bool{}

	done := SafeGo(context.Background(), observability.NewNopLogger(), time.Second, "test task", func(ctx context.Context) error {
		executed.Store(true)
		return nil
	})

	waitDone(t, done)
	assert.True(t, executed.Load())
}

func TestSafeGo_WithError(t *testing.T) {
	executed := atomic.Bool{}

	done := SafeGo(context.Background(), nil, time.Second, "test task", func(ctx context.Context) error {
		executed.Store(true)
		return errors.New("test error")
	})

	waitDone(t, done)
	assert.True(t, executed.Load(), "error is logged, not fatal")
}

func TestSafeGo_Timeout(t *testing.T) {
	completed := atomic.Bool{}

	done := SafeGo(context.Background(), nil, 50*time.Millisecond, "test task", func(ctx context.Context) error {
		select {
		case <-time.After(500 * time.Millisecond):
			completed.Store(true)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	waitDone(t, done)
	assert.False(t, completed.Load())
}

func TestSafeGo_Panic(t *testing.T) {
	done := SafeGo(context.Background(), nil, time.Second, "panicking task", func(ctx context.Context) error {
		panic("boom")
	})

	waitDone(t, done)
}

func TestSafeGo_OutlivesParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ran := atomic.Bool{}

	done := SafeGo(context.WithoutCancel(parent), nil, time.Second, "detached", func(ctx context.Context) error {
		time.Sleep(20 * time.Millisecond)
		if ctx.Err() == nil {
			ran.Store(true)
		}
		return nil
	})
	cancel()

	waitDone(t, done)
	assert.True(t, ran.Load())
}
