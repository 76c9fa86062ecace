// Package schedule runs named maintenance routines on fixed intervals.
// Routines are owned by a service's lifecycle: Start launches them, Stop
// cancels them. A failing routine logs and keeps its schedule; it never
// takes the process down.
package schedule

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Routine is one periodic maintenance task.
type Routine interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context) error
}

type Runner struct {
	logger   *zap.Logger
	routines []Routine

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner(logger *zap.Logger, routines ...Routine) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger, routines: routines}
}

func (r *Runner) Register(routine Routine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routines = append(r.routines, routine)
}

// Start launches one goroutine per routine. Calling Start twice without an
// intervening Stop is a no-op.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	for _, routine := range r.routines {
		r.wg.Add(1)
		go r.loop(runCtx, routine)
	}
}

func (r *Runner) loop(ctx context.Context, routine Routine) {
	defer r.wg.Done()
	ticker := time.NewTicker(routine.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := routine.Run(ctx); err != nil {
			r.logger.Warn("maintenance routine failed",
				zap.String("routine", routine.Name()),
				zap.Error(err))
		}
	}
}

// Stop cancels every routine and waits for in-flight runs to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	r.wg.Wait()
}

// Func adapts a closure into a Routine.
type Func struct {
	RoutineName  string
	TickInterval time.Duration
	Fn           func(ctx context.Context) error
}

func (f Func) Name() string            { return f.RoutineName }
func (f Func) Interval() time.Duration { return f.TickInterval }
func (f Func) Run(ctx context.Context) error {
	return f.Fn(ctx)
}
