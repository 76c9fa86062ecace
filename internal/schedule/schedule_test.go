package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunnerRunsRoutine(t *testing.T) {
	var runs atomic.Int64
	r := NewRunner(nil, Func{
		RoutineName:  "tick",
		TickInterval: 5 * time.Millisecond,
		Fn: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	r.Start(context.Background())
	defer r.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("routine ran %d times, want at least 2", runs.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunnerFailureKeepsSchedule(t *testing.T) {
	var runs atomic.Int64
	r := NewRunner(nil, Func{
		RoutineName:  "flaky",
		TickInterval: 5 * time.Millisecond,
		Fn: func(context.Context) error {
			runs.Add(1)
			return errors.New("boom")
		},
	})
	r.Start(context.Background())
	defer r.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("failing routine stopped after %d runs", runs.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunnerStartIdempotent(t *testing.T) {
	var runs atomic.Int64
	r := NewRunner(nil, Func{
		RoutineName:  "once",
		TickInterval: 10 * time.Millisecond,
		Fn: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	r.Start(context.Background())
	r.Start(context.Background())
	defer r.Stop()

	time.Sleep(35 * time.Millisecond)
	// A doubled Start would roughly double the observed run count.
	if n := runs.Load(); n > 5 {
		t.Fatalf("routine ran %d times in 35ms at a 10ms interval, Start looks duplicated", n)
	}
}

func TestRunnerStopWaits(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	r := NewRunner(nil, Func{
		RoutineName:  "slow",
		TickInterval: time.Millisecond,
		Fn: func(context.Context) error {
			select {
			case started <- struct{}{}:
			default:
			}
			<-release
			finished.Store(true)
			return nil
		},
	})
	r.Start(context.Background())
	<-started
	close(release)
	r.Stop()

	if !finished.Load() {
		t.Fatal("Stop returned before the in-flight run finished")
	}
}

func TestRunnerStopWithoutStart(t *testing.T) {
	r := NewRunner(nil)
	r.Stop() // must not panic or block
}
