package watch

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/depsync/internal/logfields"
	"git.home.luguber.info/inful/depsync/internal/observability"
)

// Options configure Run.
type Options struct {
	Interval time.Duration
	// Dir and Files select the manifests whose changes trigger a run; no files
	// disables the watcher.
	Dir      string
	Files    []string
	Debounce time.Duration
}

// Run synchronizes once immediately, then on every interval and manifest change,
// until ctx is canceled. Failed runs never end the loop.
func Run(ctx context.Context, opts Options, fn RunFunc) error {
	runner := NewRunner(fn)
	sched, err := NewScheduler(runner)
	if err != nil {
		return err
	}
	if _, err := sched.Every(ctx, opts.Interval, true); err != nil {
		_ = sched.Stop()
		return err
	}

	var mw *ManifestWatcher
	if len(opts.Files) > 0 {
		mw, err = NewManifestWatcher(opts.Dir, runner, opts.Files...)
		if err != nil {
			_ = sched.Stop()
			return err
		}
		if err := mw.WithDebounce(opts.Debounce).Start(ctx); err != nil {
			_ = mw.Stop()
			_ = sched.Stop()
			return err
		}
	}

	sched.Start()
	<-ctx.Done()

	if mw != nil {
		if err := mw.Stop(); err != nil {
			observability.WarnContext(ctx, "Manifest watcher did not close cleanly", logfields.Error(err))
		}
	}
	if err := sched.Stop(); err != nil {
		return err
	}
	slog.Info("Watch stopped", slog.Int64("runs", runner.Runs()), slog.Int64("failed_runs", runner.Failures()))
	return nil
}
