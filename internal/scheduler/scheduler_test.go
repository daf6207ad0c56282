package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTasksTickIndependently(t *testing.T) {
	var fast, slow int64

	s := New(
		Task{Name: "fast", Interval: 20 * time.Millisecond, Run: func(ctx context.Context) error {
			atomic.AddInt64(&fast, 1)
			return nil
		}},
		Task{Name: "slow", Interval: 30 * time.Millisecond, Run: func(ctx context.Context) error {
			atomic.AddInt64(&slow, 1)
			time.Sleep(80 * time.Millisecond)
			return nil
		}},
	)
	s.Start(context.Background())
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&fast) >= 5 && atomic.LoadInt64(&slow) >= 1
	}, 2*time.Second, 10*time.Millisecond, "a slow task must not stall a fast one")
}

func TestPanickingTaskResumes(t *testing.T) {
	var runs int64

	s := New(Task{Name: "flaky", Interval: 15 * time.Millisecond, Run: func(ctx context.Context) error {
		atomic.AddInt64(&runs, 1)
		panic("boom")
	}})
	s.Start(context.Background())
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&runs) >= 3
	}, 2*time.Second, 10*time.Millisecond, "task should keep ticking after panics")
}

func TestErrSkipIsNotFatal(t *testing.T) {
	var runs int64

	s := New(Task{Name: "idle", Interval: 15 * time.Millisecond, Run: func(ctx context.Context) error {
		atomic.AddInt64(&runs, 1)
		return ErrSkip
	}})
	s.Start(context.Background())
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&runs) >= 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStopHaltsWithinOneTick(t *testing.T) {
	var runs int64

	s := New(Task{Name: "counter", Interval: 20 * time.Millisecond, Run: func(ctx context.Context) error {
		atomic.AddInt64(&runs, 1)
		return nil
	}})
	s.Start(context.Background())

	assert.Eventually(t, func() bool { return atomic.LoadInt64(&runs) >= 1 }, 2*time.Second, 5*time.Millisecond)

	stopped := time.Now()
	s.Stop()
	assert.Less(t, time.Since(stopped), time.Second, "Stop should return promptly")

	after := atomic.LoadInt64(&runs)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt64(&runs), "no ticks after Stop")
}

func TestStopIsIdempotent(t *testing.T) {
	s := New(Task{Name: "noop", Interval: time.Hour, Run: func(ctx context.Context) error { return nil }})
	s.Start(context.Background())
	s.Stop()
	s.Stop()
}

func TestContextCancelStopsTasks(t *testing.T) {
	var runs int64
	ctx, cancel := context.WithCancel(context.Background())

	s := New(Task{Name: "counter", Interval: 15 * time.Millisecond, Run: func(ctx context.Context) error {
		atomic.AddInt64(&runs, 1)
		return nil
	}})
	s.Start(ctx)

	assert.Eventually(t, func() bool { return atomic.LoadInt64(&runs) >= 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	time.Sleep(50 * time.Millisecond)

	after := atomic.LoadInt64(&runs)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt64(&runs), "no ticks after cancellation")

	s.Stop()
}
