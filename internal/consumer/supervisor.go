package consumer

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"marketplace/pkg/log"
)

// ErrTaskPanicked the task panicked; the supervisor recovered and backs off
var ErrTaskPanicked = errors.New("consumer: task panicked")

// Task one unit of background work. It reports how many items it handled,
// zero meaning there was nothing to do.
type Task func(ctx context.Context) (int, error)

// SupervisorConfig polling cadence
type SupervisorConfig struct {
	// Interval delay between runs that found work
	Interval time.Duration
	// IdleInterval upper bound the delay stretches to while runs find nothing
	IdleInterval time.Duration
	// MaxBackoff upper bound of the exponential delay after failures
	MaxBackoff time.Duration
}

// Supervisor runs a task repeatedly until stopped. Failures and panics back
// off exponentially, idle runs stretch the interval, and Stop waits for the
// running task to return.
type Supervisor struct {
	name   string
	task   Task
	cfg    SupervisorConfig
	logger *logrus.Entry

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	// loop goroutine only
	failures int
	idle     time.Duration
}

// NewSupervisor creates a supervisor for task
func NewSupervisor(name string, task Task, cfg SupervisorConfig) *Supervisor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.IdleInterval < cfg.Interval {
		cfg.IdleInterval = cfg.Interval
	}
	if cfg.MaxBackoff < cfg.Interval {
		cfg.MaxBackoff = cfg.Interval
	}
	return &Supervisor{
		name:   name,
		task:   task,
		cfg:    cfg,
		logger: log.WithComponent(name),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Name returns the supervisor name
func (s *Supervisor) Name() string {
	return s.name
}

// Start launches the loop. The first run happens immediately.
func (s *Supervisor) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.logger.Info("Starting background task")
	go s.loop(ctx)
}

// Stop signals the loop and waits for it to exit
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if s.started.Load() {
		<-s.doneCh
	}
}

// Done is closed once the loop has exited
func (s *Supervisor) Done() <-chan struct{} {
	return s.doneCh
}

func (s *Supervisor) loop(ctx context.Context) {
	defer close(s.doneCh)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Background task context cancelled")
			return
		case <-s.stopCh:
			s.logger.Info("Background task stopped")
			return
		case <-timer.C:
		}

		n, err := s.runOnce(ctx)
		if err != nil && ctx.Err() == nil {
			s.logger.WithError(err).WithField("failures", s.failures+1).Error("Background task failed")
		} else if n > 0 {
			s.logger.WithField("handled", n).Debug("Background task run")
		}
		timer.Reset(s.nextDelay(n, err))
	}
}

func (s *Supervisor) runOnce(ctx context.Context) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("stack", string(debug.Stack())).Error("Background task panicked")
			n, err = 0, fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return s.task(ctx)
}

// nextDelay computes the wait before the next run from the outcome of the
// last one
func (s *Supervisor) nextDelay(n int, err error) time.Duration {
	if err != nil {
		s.failures++
		s.idle = 0
		return backoff(s.cfg.Interval, s.cfg.MaxBackoff, s.failures)
	}
	s.failures = 0
	if n > 0 {
		s.idle = 0
		return s.cfg.Interval
	}
	if s.idle == 0 {
		s.idle = s.cfg.Interval
	} else {
		s.idle *= 2
	}
	if s.idle > s.cfg.IdleInterval {
		s.idle = s.cfg.IdleInterval
	}
	return s.idle
}

// backoff returns base * 2^attempt capped at max
func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	return d
}
