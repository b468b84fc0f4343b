// Package watch keeps a checkout root fresh by re-running the dependency
// synchronization on a schedule and whenever the root manifests change.
package watch

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"git.home.luguber.info/inful/depsync/internal/logfields"
	"git.home.luguber.info/inful/depsync/internal/observability"
)

// TriggerRerun names the trailing run of a run that received triggers while active.
const TriggerRerun = "rerun"

// RunFunc performs one synchronization run. trigger names what caused it.
type RunFunc func(ctx context.Context, trigger string) error

// Runner executes RunFunc so that at most one run is in flight. Triggers arriving
// while a run is active join it and mark it dirty; a dirty run is repeated once it
// finishes so that changes made after it read the manifests are not lost.
type Runner struct {
	fn     RunFunc
	group  singleflight.Group
	active atomic.Bool
	dirty  atomic.Bool
	runs   atomic.Int64
	fails  atomic.Int64
}

func NewRunner(fn RunFunc) *Runner { return &Runner{fn: fn} }

// Trigger runs or joins the current run. Errors are logged and the error of the
// last run is returned to every caller that shared it; watch mode keeps going
// either way.
func (r *Runner) Trigger(ctx context.Context, trigger string) error {
	if r.active.Load() {
		r.dirty.Store(true)
	}
	_, err, shared := r.group.Do("run", func() (any, error) {
		r.active.Store(true)
		defer r.active.Store(false)
		for {
			r.dirty.Store(false)
			err := r.once(ctx, trigger)
			if !r.dirty.Load() || ctx.Err() != nil {
				return nil, err
			}
			trigger = TriggerRerun
			observability.InfoContext(ctx, "Triggers arrived during the run, running again")
		}
	})
	if shared {
		observability.DebugContext(ctx, "Trigger joined an active run", slog.String("trigger", trigger))
	}
	return err
}

func (r *Runner) once(ctx context.Context, trigger string) error {
	r.runs.Add(1)
	observability.InfoContext(ctx, "Watch run started", slog.String("trigger", trigger))
	err := r.fn(ctx, trigger)
	if err != nil {
		r.fails.Add(1)
		observability.ErrorContext(ctx, "Watch run failed", slog.String("trigger", trigger), logfields.Error(err))
	}
	return err
}

// Runs is the number of runs started so far.
func (r *Runner) Runs() int64 { return r.runs.Load() }

// Failures is the number of runs that returned an error.
func (r *Runner) Failures() int64 { return r.fails.Load() }
