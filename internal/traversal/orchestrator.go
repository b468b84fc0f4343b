package traversal

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/depsync/internal/git"
	"git.home.luguber.info/inful/depsync/internal/history"
	"git.home.luguber.info/inful/depsync/internal/installer"
	"git.home.luguber.info/inful/depsync/internal/logfields"
	"git.home.luguber.info/inful/depsync/internal/manifest"
	"git.home.luguber.info/inful/depsync/internal/metrics"
	"git.home.luguber.info/inful/depsync/internal/observability"
	"git.home.luguber.info/inful/depsync/internal/requirements"
)

// Synchronizer brings one project checkout up to date.
type Synchronizer interface {
	Sync(ctx context.Context, name, url, ref string) (git.Result, error)
}

// Options configure a run.
type Options struct {
	CheckoutRoot string
	BuildRoot    string
	Defaults     manifest.Defaults
	// Staleness is the age of the refresh marker that forces every install.
	Staleness time.Duration
	// Jobs bounds concurrent synchronizations; 1 keeps the run strictly sequential.
	Jobs        int
	SkipInstall bool
	// DryRun decides installs without running the installer.
	DryRun bool
	// Now overrides the marker clock.
	Now func() time.Time
}

// Orchestrator drives a run. It holds no state between runs.
type Orchestrator struct {
	opts      Options
	sync      Synchronizer
	installer installer.Installer
	recorder  metrics.Recorder
	ledger    history.Ledger
	logger    *slog.Logger
}

func New(opts Options, sync Synchronizer, inst installer.Installer) *Orchestrator {
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}
	return &Orchestrator{
		opts:      opts,
		sync:      sync,
		installer: inst,
		recorder:  metrics.NoopRecorder{},
		ledger:    history.NopLedger{},
		logger:    slog.Default(),
	}
}

func (o *Orchestrator) WithRecorder(r metrics.Recorder) *Orchestrator {
	o.recorder = metrics.OrNoop(r)
	return o
}

func (o *Orchestrator) WithLedger(l history.Ledger) *Orchestrator {
	if l == nil {
		l = history.NopLedger{}
	}
	o.ledger = l
	return o
}

func (o *Orchestrator) WithLogger(l *slog.Logger) *Orchestrator {
	if l != nil {
		o.logger = l
	}
	return o
}

// run holds the state of one traversal; only the coordinating goroutine touches it.
type run struct {
	report    *Report
	processed map[string]manifest.Declaration
	seeded    map[string]bool
	enqueued  map[string]bool
	queue     []string
	reqSeen   map[string]bool
	installed requirements.InstalledIndex
}

// Run performs one complete traversal followed by the install phase. A
// synchronization error aborts the run and is returned with the partial report.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	runID := observability.RunIDFrom(ctx)
	if runID == "" {
		runID = observability.NewRunID()
		ctx = observability.WithRunID(ctx, runID)
	}
	st := &run{
		report:    &Report{RunID: runID},
		processed: map[string]manifest.Declaration{},
		seeded:    map[string]bool{},
		enqueued:  map[string]bool{},
		reqSeen:   map[string]bool{},
	}
	o.record(ctx, history.TypeRunStarted, "", history.RunPayload{CheckoutRoot: o.opts.CheckoutRoot, BuildRoot: o.opts.BuildRoot})
	o.log(ctx, slog.LevelInfo, "Dependency run started",
		slog.String("checkout_root", o.opts.CheckoutRoot),
		slog.String("build_root", o.opts.BuildRoot),
		slog.Int("jobs", o.opts.Jobs))

	o.snapshotInstalled(ctx, st)
	err := o.traverse(ctx, st)
	if err == nil {
		err = o.install(ctx, st)
	}

	st.report.Duration = time.Since(start)
	o.recorder.SetProcessedProjects(st.report.Processed())
	o.recorder.ObserveRunDuration(st.report.Duration)
	finished := history.RunPayload{
		CheckoutRoot: o.opts.CheckoutRoot,
		BuildRoot:    o.opts.BuildRoot,
		Forced:       st.report.Forced,
		AnyChanged:   st.report.AnyChanged,
		Synced:       len(st.report.Synced),
		Installs:     len(st.report.Installs),
		DurationMS:   st.report.Duration.Milliseconds(),
	}
	if err != nil {
		finished.Error = err.Error()
	}
	o.record(ctx, history.TypeRunFinished, "", finished)
	if err != nil {
		return st.report, err
	}
	o.log(ctx, slog.LevelInfo, "Dependency run finished",
		slog.Int("synced", len(st.report.Synced)),
		slog.Int("seeded", len(st.report.Seeded)),
		slog.Int("install_failures", st.report.InstallFailures()),
		logfields.Changed(st.report.AnyChanged),
		logfields.Duration(st.report.Duration))
	return st.report, nil
}

func (o *Orchestrator) traverse(ctx context.Context, st *run) error {
	ctx, phase := observability.StartPhase(ctx, "traverse")

	o.enqueueManifest(st, filepath.Join(o.opts.BuildRoot, manifest.FileName))
	o.addRequirements(st, o.opts.BuildRoot)
	o.seed(ctx, st)

	// Each wave holds the manifests discovered by the previous one, which keeps
	// the walk breadth-first.
	for len(st.queue) > 0 {
		if err := ctx.Err(); err != nil {
			phase.End(err)
			return err
		}
		wave := st.queue
		st.queue = nil

		var tasks []manifest.Declaration
		for _, path := range wave {
			tasks = append(tasks, o.selectNew(ctx, st, path)...)
		}
		outcomes, err := o.syncAll(ctx, tasks)
		for _, out := range outcomes {
			if out.Name == "" {
				continue
			}
			st.report.Synced = append(st.report.Synced, out)
			st.report.AnyChanged = st.report.AnyChanged || out.Changed
			o.enqueueManifest(st, filepath.Join(out.Path, manifest.FileName))
			o.addRequirements(st, out.Path)
		}
		if err != nil {
			phase.End(err)
			return err
		}
	}
	phase.End(nil, slog.Int("projects", len(st.processed)))
	return nil
}

// seed marks every visible directory of the checkout root as processed and queues
// its manifest. A missing checkout root seeds nothing.
func (o *Orchestrator) seed(ctx context.Context, st *run) {
	entries, err := os.ReadDir(o.opts.CheckoutRoot)
	if err != nil {
		if !os.IsNotExist(err) {
			o.log(ctx, slog.LevelWarn, "Cannot list checkout root", logfields.Path(o.opts.CheckoutRoot), logfields.Error(err))
		}
		return
	}
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if _, ok := st.processed[name]; ok {
			continue
		}
		st.processed[name] = manifest.Declaration{Name: name}
		st.seeded[name] = true
		st.report.Seeded = append(st.report.Seeded, name)
		dir := filepath.Join(o.opts.CheckoutRoot, name)
		if head, err := git.ReadRepoHead(dir); err == nil {
			o.log(ctx, slog.LevelDebug, "Existing checkout", logfields.Project(name), logfields.Commit(head))
		}
		o.enqueueManifest(st, filepath.Join(dir, manifest.FileName))
		o.addRequirements(st, dir)
	}
	if len(st.report.Seeded) > 0 {
		o.log(ctx, slog.LevelDebug, "Seeded existing checkouts", slog.Int("count", len(st.report.Seeded)))
	}
}

// selectNew parses one manifest and returns the declarations that are new to the run,
// marking them processed. The first declaration of a name wins.
func (o *Orchestrator) selectNew(ctx context.Context, st *run, path string) []manifest.Declaration {
	decls, err := manifest.ParseFile(path, o.opts.Defaults)
	if err != nil {
		o.log(ctx, slog.LevelWarn, "Manifest partially read", logfields.Manifest(path), logfields.Error(err))
	}
	var fresh []manifest.Declaration
	for _, d := range decls {
		prev, seen := st.processed[d.Name]
		if seen {
			if !st.seeded[d.Name] && (prev.URL != d.URL || prev.Ref != d.Ref) {
				o.log(ctx, slog.LevelWarn, "Conflicting declaration ignored",
					logfields.Project(d.Name),
					logfields.Manifest(path),
					slog.String("kept_url", prev.URL),
					slog.String("kept_ref", prev.Ref),
					logfields.URL(d.URL),
					logfields.Ref(d.Ref))
			}
			continue
		}
		st.processed[d.Name] = d
		fresh = append(fresh, d)
	}
	return fresh
}

// syncAll synchronizes tasks with at most Jobs workers. Outcomes keep task order;
// entries of tasks that did not complete have an empty Name. The first error stops
// tasks that have not started yet.
func (o *Orchestrator) syncAll(ctx context.Context, tasks []manifest.Declaration) ([]SyncOutcome, error) {
	outcomes := make([]SyncOutcome, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Jobs)
	for i, d := range tasks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pctx := observability.WithProject(gctx, d.Name)
			start := time.Now()
			res, err := o.sync.Sync(pctx, d.Name, d.URL, d.Ref)
			if err != nil {
				o.log(pctx, slog.LevelError, "Synchronization failed", logfields.URL(d.URL), logfields.Ref(d.Ref), logfields.Error(err))
				return err
			}
			outcomes[i] = SyncOutcome{
				Name:     d.Name,
				URL:      d.URL,
				Ref:      d.Ref,
				Path:     res.Path,
				Head:     res.Head,
				Changed:  res.Changed,
				Cloned:   res.Cloned,
				Duration: time.Since(start),
			}
			o.record(pctx, history.TypeRepoSynced, d.Name, history.SyncPayload{
				URL: d.URL, Ref: d.Ref, Commit: res.Head, Changed: res.Changed, Cloned: res.Cloned,
			})
			return nil
		})
	}
	return outcomes, g.Wait()
}

func (o *Orchestrator) enqueueManifest(st *run, path string) {
	key := cleanPath(path)
	if st.enqueued[key] {
		return
	}
	st.enqueued[key] = true
	st.queue = append(st.queue, key)
}

func (o *Orchestrator) addRequirements(st *run, dir string) {
	path := cleanPath(filepath.Join(dir, requirements.FileName))
	if st.reqSeen[path] {
		return
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return
	}
	st.reqSeen[path] = true
	st.report.Requirements = append(st.report.Requirements, path)
}

func cleanPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

func (o *Orchestrator) log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	o.logger.LogAttrs(ctx, level, msg, append(observability.ContextAttrs(ctx), attrs...)...)
}

// record appends to the ledger; failures are logged and otherwise ignored.
func (o *Orchestrator) record(ctx context.Context, eventType, project string, payload any) {
	e, err := history.NewEvent(observability.RunIDFrom(ctx), eventType, project, payload)
	if err == nil {
		err = o.ledger.Append(ctx, e)
	}
	if err != nil {
		o.log(ctx, slog.LevelWarn, "Failed to record run history", slog.String("event", eventType), logfields.Error(err))
	}
}
