package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/depsync/internal/logfields"
)

const (
	TriggerManifest = "manifest"

	DefaultDebounce = 2 * time.Second
)

// ManifestWatcher triggers a run when one of the watched files in a directory is
// written, created or renamed. Bursts of events collapse into one run after the
// debounce delay.
type ManifestWatcher struct {
	dir      string
	files    map[string]bool
	runner   *Runner
	debounce time.Duration
	watcher  *fsnotify.Watcher
	pending  chan struct{}
	stop     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// NewManifestWatcher watches the named files of dir.
func NewManifestWatcher(dir string, runner *Runner, files ...string) (*ManifestWatcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch directory: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	set := make(map[string]bool, len(files))
	for _, f := range files {
		set[f] = true
	}
	return &ManifestWatcher{
		dir:      abs,
		files:    set,
		runner:   runner,
		debounce: DefaultDebounce,
		watcher:  w,
		pending:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}, nil
}

func (mw *ManifestWatcher) WithDebounce(d time.Duration) *ManifestWatcher {
	if d > 0 {
		mw.debounce = d
	}
	return mw
}

// Start watches the directory rather than the files so that editors replacing a
// file by rename are still seen.
func (mw *ManifestWatcher) Start(ctx context.Context) error {
	if err := mw.watcher.Add(mw.dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", mw.dir, err)
	}
	slog.Info("Starting manifest watcher", logfields.Path(mw.dir), logfields.Duration(mw.debounce))
	mw.wg.Add(2)
	go mw.watchLoop(ctx)
	go mw.triggerLoop(ctx)
	return nil
}

// Stop ends both loops and closes the underlying watcher. It is safe to call twice.
func (mw *ManifestWatcher) Stop() error {
	var err error
	mw.once.Do(func() {
		close(mw.stop)
		err = mw.watcher.Close()
		mw.wg.Wait()
	})
	return err
}

func (mw *ManifestWatcher) watchLoop(ctx context.Context) {
	defer mw.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-mw.stop:
			return
		case ev, ok := <-mw.watcher.Events:
			if !ok {
				return
			}
			if !mw.files[filepath.Base(ev.Name)] {
				continue
			}
			if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Rename) {
				slog.Debug("Manifest change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
				mw.signal()
			}
		case err, ok := <-mw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Manifest watcher error", logfields.Error(err))
		}
	}
}

func (mw *ManifestWatcher) signal() {
	select {
	case mw.pending <- struct{}{}:
	default:
	}
}

func (mw *ManifestWatcher) triggerLoop(ctx context.Context) {
	defer mw.wg.Done()
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-mw.stop:
			return
		case <-mw.pending:
			if timer == nil {
				timer = time.NewTimer(mw.debounce)
			} else {
				timer.Reset(mw.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			_ = mw.runner.Trigger(ctx, TriggerManifest)
		}
	}
}
