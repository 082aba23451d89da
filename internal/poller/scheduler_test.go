package poller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/socialhub/social-platform/pkg/logger"
	"github.com/socialhub/social-platform/pkg/metrics"
)

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

func TestScheduleRunsImmediatelyAndOnTicks(t *testing.T) {
	s := NewScheduler(logger.NewNop())
	defer s.Stop()

	var calls atomic.Int32
	s.Schedule(Key{Concern: "tick"}, 10*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	eventually(t, func() bool { return calls.Load() >= 3 }, "three calls")
}

func TestScheduleReplacesTaskWithSameKey(t *testing.T) {
	s := NewScheduler(logger.NewNop())
	defer s.Stop()

	key := Key{Concern: "messages", Subject: "c1"}
	firstCanceled := make(chan struct{})
	s.Schedule(key, time.Hour, func(ctx context.Context) error {
		<-ctx.Done()
		close(firstCanceled)
		return ctx.Err()
	})

	var second atomic.Int32
	s.Schedule(key, time.Hour, func(ctx context.Context) error {
		second.Add(1)
		return nil
	})

	select {
	case <-firstCanceled:
	case <-time.After(2 * time.Second):
		t.Fatal("replaced task was not canceled")
	}
	eventually(t, func() bool { return second.Load() == 1 }, "replacement ran")
	if got := len(s.Keys()); got != 1 {
		t.Errorf("expected 1 task, got %d", got)
	}
}

func TestCancelStopsTicks(t *testing.T) {
	s := NewScheduler(logger.NewNop())
	defer s.Stop()

	key := Key{Concern: "presence", Subject: "u1"}
	var calls atomic.Int32
	s.Schedule(key, 5*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})
	eventually(t, func() bool { return calls.Load() >= 2 }, "ticks before cancel")

	s.Cancel(key)
	if s.Scheduled(key) {
		t.Fatal("task still scheduled after Cancel")
	}
	time.Sleep(20 * time.Millisecond)
	settled := calls.Load()
	time.Sleep(30 * time.Millisecond)
	if calls.Load() != settled {
		t.Errorf("task kept running after Cancel: %d -> %d", settled, calls.Load())
	}
}

func TestCancelConcern(t *testing.T) {
	s := NewScheduler(logger.NewNop())
	defer s.Stop()

	noop := func(ctx context.Context) error { return nil }
	s.Schedule(Key{Concern: ConcernPresence, Subject: "a"}, time.Hour, noop)
	s.Schedule(Key{Concern: ConcernPresence, Subject: "b"}, time.Hour, noop)
	s.Schedule(Key{Concern: ConcernBadges}, time.Hour, noop)

	s.CancelConcern(ConcernPresence)

	keys := s.Keys()
	if len(keys) != 1 || keys[0].Concern != ConcernBadges {
		t.Errorf("unexpected keys after CancelConcern: %v", keys)
	}
}

func TestAtMostOneCallInFlight(t *testing.T) {
	s := NewScheduler(logger.NewNop())

	const concern = "slow-test"
	skippedBefore := testutil.ToFloat64(metrics.PollTicksSkipped.WithLabelValues(concern))

	release := make(chan struct{})
	var inFlight, maxInFlight, calls atomic.Int32
	s.Schedule(Key{Concern: concern}, 2*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})

	eventually(t, func() bool {
		return testutil.ToFloat64(metrics.PollTicksSkipped.WithLabelValues(concern)) >= skippedBefore+3
	}, "skipped ticks while blocked")

	if calls.Load() != 1 {
		t.Errorf("expected a single call while blocked, got %d", calls.Load())
	}
	close(release)
	s.Stop()

	if maxInFlight.Load() != 1 {
		t.Errorf("max in flight = %d, want 1", maxInFlight.Load())
	}
}

func TestStopWaitsForInFlightCalls(t *testing.T) {
	s := NewScheduler(logger.NewNop())

	started := make(chan struct{})
	var finished atomic.Bool
	s.Schedule(Key{Concern: "stop"}, time.Hour, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
		return nil
	})

	<-started
	s.Stop()
	if !finished.Load() {
		t.Error("Stop returned before the in-flight call finished")
	}
	if len(s.Keys()) != 0 {
		t.Error("tasks left after Stop")
	}
}
