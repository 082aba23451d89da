// Package poller drives the client-side refresh loops of the inbox view.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/socialhub/social-platform/pkg/logger"
	"github.com/socialhub/social-platform/pkg/metrics"
)

// Key identifies a polling task: what is refreshed and for which subject.
type Key struct {
	Concern string
	Subject string
}

// Task is one refresh call. It must honor ctx cancellation.
type Task func(ctx context.Context) error

type entry struct {
	cancel context.CancelFunc
}

// Scheduler runs keyed periodic tasks. Each task runs at most one call at a
// time; ticks arriving while a call is in flight are dropped.
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[Key]*entry
	wg     sync.WaitGroup
	logger *logger.Logger
}

// NewScheduler creates an empty scheduler.
func NewScheduler(log *logger.Logger) *Scheduler {
	return &Scheduler{tasks: make(map[Key]*entry), logger: log}
}

// Schedule starts fn for key, calling it now and then every interval.
// A task already registered under key is canceled first.
func (s *Scheduler) Schedule(key Key, interval time.Duration, fn Task) {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if old, ok := s.tasks[key]; ok {
		old.cancel()
	}
	e := &entry{cancel: cancel}
	s.tasks[key] = e
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(ctx, key, interval, fn)
}

// Cancel stops the task registered under key, if any.
func (s *Scheduler) Cancel(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.tasks[key]; ok {
		e.cancel()
		delete(s.tasks, key)
	}
}

// CancelConcern stops every task of the given concern.
func (s *Scheduler) CancelConcern(concern string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.tasks {
		if key.Concern == concern {
			e.cancel()
			delete(s.tasks, key)
		}
	}
}

// Scheduled reports whether a task is registered under key.
func (s *Scheduler) Scheduled(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[key]
	return ok
}

// Keys returns the registered task keys.
func (s *Scheduler) Keys() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]Key, 0, len(s.tasks))
	for key := range s.tasks {
		keys = append(keys, key)
	}
	return keys
}

// Stop cancels every task and waits for in-flight calls to return.
// The scheduler can be reused afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for key, e := range s.tasks {
		e.cancel()
		delete(s.tasks, key)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, key Key, interval time.Duration, fn Task) {
	defer s.wg.Done()

	var busy atomic.Bool
	fire := func() {
		if !busy.CompareAndSwap(false, true) {
			metrics.PollTicksSkipped.WithLabelValues(key.Concern).Inc()
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer busy.Store(false)

			err := fn(ctx)
			if ctx.Err() != nil {
				return
			}
			metrics.RecordPoll(key.Concern, err)
			if err != nil {
				s.logger.Debug("poll failed",
					zap.String("concern", key.Concern),
					zap.String("subject", key.Subject),
					zap.Error(err),
				)
			}
		}()
	}

	fire()
	if interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fire()
		}
	}
}
