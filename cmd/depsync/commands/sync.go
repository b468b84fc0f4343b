package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/depsync/internal/config"
	"git.home.luguber.info/inful/depsync/internal/foundation/errors"
	"git.home.luguber.info/inful/depsync/internal/git"
	"git.home.luguber.info/inful/depsync/internal/history"
	"git.home.luguber.info/inful/depsync/internal/installer"
	"git.home.luguber.info/inful/depsync/internal/logfields"
	"git.home.luguber.info/inful/depsync/internal/manifest"
	"git.home.luguber.info/inful/depsync/internal/metrics"
	"git.home.luguber.info/inful/depsync/internal/traversal"
)

// SyncFlags are the run options shared by sync and watch. Zero values keep the
// configured setting.
type SyncFlags struct {
	CheckoutRoot string `arg:"" optional:"" name:"checkout-root" help:"Directory receiving one checkout per project (default $DEPS_DIR or ~/dependencies)" type:"path"`
	BuildRoot    string `arg:"" optional:"" name:"build-root" help:"Directory holding the root oca_dependencies.txt (default $TRAVIS_BUILD_DIR or the working directory)" type:"path"`

	Jobs        int    `short:"j" help:"Number of repositories synchronized concurrently"`
	Installer   string `help:"Requirement installer (auto|uv|pip)" enum:",auto,uv,pip" default:""`
	Staleness   string `help:"Age of the refresh marker that forces every install, e.g. 24h"`
	SkipInstall bool   `name:"skip-install" help:"Only synchronize repositories"`
	DryRun      bool   `name:"dry-run" help:"Decide installs without running the installer"`
	MetricsFile string `name:"metrics-file" help:"Write Prometheus metrics in textfile format to this path" type:"path"`
	History     string `help:"SQLite run history database" type:"path"`
}

func (f *SyncFlags) apply(cfg *config.Config) error {
	if f.CheckoutRoot != "" {
		cfg.CheckoutRoot = f.CheckoutRoot
	}
	if f.BuildRoot != "" {
		cfg.BuildRoot = f.BuildRoot
	}
	if f.Jobs > 0 {
		cfg.Jobs = f.Jobs
	}
	if f.Installer != "" {
		cfg.Install.Installer = f.Installer
	}
	if f.Staleness != "" {
		cfg.Staleness = f.Staleness
	}
	if f.SkipInstall {
		cfg.Install.Skip = true
	}
	if f.MetricsFile != "" {
		cfg.Metrics.TextFile = f.MetricsFile
	}
	if f.History != "" {
		cfg.History.Path = f.History
	}
	return cfg.Finalize()
}

// session holds everything a run needs that outlives a single run.
type session struct {
	cfg       *config.Config
	client    *git.Client
	installer installer.Installer
	registry  *prometheus.Registry
	recorder  metrics.Recorder
	ledger    history.Ledger
	dryRun    bool
}

func newSession(ctx context.Context, cfg *config.Config, dryRun bool) *session {
	s := &session{cfg: cfg, recorder: metrics.NoopRecorder{}, ledger: history.NopLedger{}, dryRun: dryRun}
	if cfg.Metrics.TextFile != "" {
		s.registry = prometheus.NewRegistry()
		s.recorder = metrics.NewPrometheusRecorder(s.registry)
	}
	if cfg.History.Path != "" {
		l, err := history.Open(cfg.History.Path)
		if err != nil {
			slog.Warn("Run history disabled", logfields.Path(cfg.History.Path), logfields.Error(err))
		} else {
			s.ledger = l
		}
	}
	s.client = git.NewClient(cfg.CheckoutRoot).WithConfig(cfg.Git).WithRecorder(s.recorder)
	if !cfg.Install.Skip {
		s.installer = installer.Select(ctx, cfg.Install, installer.ExecRunner{})
	}
	return s
}

func (s *session) close() {
	if err := s.ledger.Close(); err != nil {
		slog.Warn("Failed to close run history", logfields.Error(err))
	}
}

func (s *session) orchestrator() *traversal.Orchestrator {
	opts := traversal.Options{
		CheckoutRoot: s.cfg.CheckoutRoot,
		BuildRoot:    s.cfg.BuildRoot,
		Defaults:     manifest.DefaultsFrom(s.cfg.Defaults),
		Staleness:    s.cfg.StalenessDuration(),
		Jobs:         s.cfg.Jobs,
		SkipInstall:  s.cfg.Install.Skip,
		DryRun:       s.dryRun,
	}
	return traversal.New(opts, s.client, s.installer).
		WithRecorder(s.recorder).
		WithLedger(s.ledger).
		WithLogger(slog.Default())
}

// run performs one traversal and flushes metrics. Metrics are written even when
// the run fails so the failure is visible to the collector.
func (s *session) run(ctx context.Context) (*traversal.Report, error) {
	report, err := s.orchestrator().Run(ctx)
	if s.registry != nil {
		if werr := metrics.WriteTextFile(s.registry, s.cfg.Metrics.TextFile); werr != nil {
			slog.Warn("Failed to write metrics textfile", logfields.Path(s.cfg.Metrics.TextFile), logfields.Error(werr))
		}
	}
	return report, err
}

// SyncCmd implements the 'sync' command.
type SyncCmd struct {
	SyncFlags `embed:""`
}

func (c *SyncCmd) Run(g *Global, root *CLI) error {
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

	report, err := s.run(ctx)
	if report != nil {
		printReport(g.out(), report)
	}
	if err != nil {
		if _, ok := errors.AsClassified(err); ok {
			return err
		}
		return errors.WrapError(err, errors.CategoryGit, "dependency synchronization aborted").Fatal().Build()
	}
	return nil
}

func printReport(w io.Writer, r *traversal.Report) {
	changed := color.New(color.FgGreen).SprintFunc()
	warn := color.New(color.FgYellow).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()

	for _, s := range r.Synced {
		state := "unchanged"
		switch {
		case s.Cloned:
			state = changed("cloned")
		case s.Changed:
			state = changed("updated")
		}
		_, _ = fmt.Fprintf(w, "%-30s %-10s %s\n", s.Name, s.Ref, state)
	}
	for _, in := range r.Installs {
		switch {
		case in.Err != nil:
			_, _ = fmt.Fprintf(w, "%s %s: %v\n", bad("install failed"), in.Manifest, in.Err)
		case in.Installed:
			_, _ = fmt.Fprintf(w, "%s %s (%s)\n", changed("installed"), in.Manifest, in.Reason)
		case in.Reason != "":
			_, _ = fmt.Fprintf(w, "%s %s (%s)\n", warn("would install"), in.Manifest, in.Reason)
		}
	}
	summary := fmt.Sprintf("%d synchronized, %d already present, %d requirement files, %d install failures in %s",
		len(r.Synced), len(r.Seeded), len(r.Requirements), r.InstallFailures(), r.Duration.Round(time.Millisecond))
	if r.InstallFailures() > 0 {
		summary = warn(summary)
	}
	_, _ = fmt.Fprintln(w, summary)
}
