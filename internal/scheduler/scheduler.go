// Package scheduler runs the daemon's periodic tasks: heartbeat, trait
// evolution, bridge polling, status snapshots. Each task gets its own
// goroutine and ticker so a slow tick in one never delays the others.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"nova/internal/logging"
)

// ErrSkip marks a tick that found nothing to do. Skips are not failures;
// they log at debug level only.
var ErrSkip = errors.New("tick skipped")

// Task is one periodic job. Run is called once per tick with the
// scheduler's context; returning ErrSkip records a no-op tick.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler owns the task goroutines. Tasks observe Stop (or context
// cancellation) within one tick.
type Scheduler struct {
	tasks  []Task
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// New builds a scheduler over the given tasks. Nothing runs until Start.
func New(tasks ...Task) *Scheduler {
	return &Scheduler{
		tasks:  tasks,
		stopCh: make(chan struct{}),
	}
}

// Start launches one goroutine per task. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, task)
	}
	logging.Scheduler("Started %d periodic tasks", len(s.tasks))
}

// Stop halts all tasks and waits for in-flight ticks to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	logging.Scheduler("All periodic tasks stopped")
}

func (s *Scheduler) loop(ctx context.Context, task Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()
	logging.SchedulerDebug("Task %s running every %s", task.Name, task.Interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runOnce(ctx, task)
		}
	}
}

// runOnce executes a single tick. A panic is caught and logged and the
// tick is abandoned; the task resumes at its next scheduled time.
func (s *Scheduler) runOnce(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			logging.SchedulerError("Task %s panicked, tick skipped: %v", task.Name, r)
		}
	}()

	start := time.Now()
	err := task.Run(ctx)
	switch {
	case err == nil:
		logging.SchedulerDebug("Task %s completed in %v", task.Name, time.Since(start).Round(time.Millisecond))
	case errors.Is(err, ErrSkip):
		logging.SchedulerDebug("Task %s skipped this tick", task.Name)
	default:
		logging.SchedulerError("Task %s failed: %v", task.Name, err)
	}
}
