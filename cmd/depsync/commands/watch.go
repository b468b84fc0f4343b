package commands

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/depsync/internal/logfields"
	"git.home.luguber.info/inful/depsync/internal/manifest"
	"git.home.luguber.info/inful/depsync/internal/requirements"
	"git.home.luguber.info/inful/depsync/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	SyncFlags `embed:""`

	Interval time.Duration `help:"Time between scheduled runs" default:"1h"`
	Debounce time.Duration `help:"Quiet period after a manifest change before running" default:"2s"`
	NoNotify bool          `name:"no-notify" help:"Do not watch the root manifests for changes"`
}

func (c *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	if err := c.apply(cfg); err != nil {
		return err
	}
	ctx := g.context()
	s := newSession(ctx, cfg, c.DryRun)
	defer s.close()

	opts := watch.Options{Interval: c.Interval, Dir: cfg.BuildRoot, Debounce: c.Debounce}
	if !c.NoNotify {
		opts.Files = []string{manifest.FileName, requirements.FileName}
	}
	slog.Info("Watching dependencies",
		logfields.Path(cfg.BuildRoot),
		slog.Duration("interval", c.Interval),
		slog.Bool("notify", !c.NoNotify))

	return watch.Run(ctx, opts, func(ctx context.Context, trigger string) error {
		report, err := s.run(ctx)
		if report != nil {
			printReport(g.out(), report)
		}
		return err
	})
}
