package traversal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/depsync/internal/git"
	"git.home.luguber.info/inful/depsync/internal/history"
	"git.home.luguber.info/inful/depsync/internal/manifest"
	"git.home.luguber.info/inful/depsync/internal/marker"
)

var ocaDefaults = manifest.Defaults{Owner: "OCA", Ref: "8.0"}

func options(buildRoot, checkoutRoot string) Options {
	return Options{BuildRoot: buildRoot, CheckoutRoot: checkoutRoot, Defaults: ocaDefaults, Jobs: 1}
}

func TestRunResolvesDefaultURLAndRef(t *testing.T) {
	build, deps := layout(t, "proj-a\n")
	fs := newFakeSync(deps)

	report, err := New(options(build, deps), fs, nil).Run(context.Background())
	require.NoError(t, err)

	call, ok := fs.call("proj-a")
	require.True(t, ok)
	assert.Equal(t, "https://github.com/OCA/proj-a.git", call.URL)
	assert.Equal(t, "8.0", call.Ref)
	assert.True(t, report.AnyChanged)
	assert.NotEmpty(t, report.RunID)
}

func TestRunDeduplicatesAndTerminatesOnCycles(t *testing.T) {
	build, deps := layout(t, "a\nb\n")
	fs := newFakeSync(deps)
	fs.projects["a"] = map[string]string{"oca_dependencies.txt": "b\nc\n"}
	fs.projects["b"] = map[string]string{"oca_dependencies.txt": "a\n"}
	fs.projects["c"] = map[string]string{"oca_dependencies.txt": "a\nb\nc\n"}

	report, err := New(options(build, deps), fs, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, fs.names(), "breadth-first, each project once")
	assert.Len(t, report.Synced, 3)
}

func TestRunFirstDeclarationWins(t *testing.T) {
	build, deps := layout(t, "web https://example.com/first.git 9.0\n")
	fs := newFakeSync(deps)
	fs.projects["web"] = map[string]string{"oca_dependencies.txt": "web https://example.com/second.git 10.0\n"}
	writeFile(t, filepath.Join(build, "oca_dependencies.txt"), "web https://example.com/first.git 9.0\nweb https://example.com/dup.git\n")

	_, err := New(options(build, deps), fs, nil).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, fs.calls, 1)
	assert.Equal(t, "https://example.com/first.git", fs.calls[0].URL)
	assert.Equal(t, "9.0", fs.calls[0].Ref)
}

func TestRunSeedsExistingCheckouts(t *testing.T) {
	build, deps := layout(t, "")
	writeFile(t, filepath.Join(deps, "proj-b", "oca_dependencies.txt"), "proj-c\n")
	writeFile(t, filepath.Join(deps, ".hidden", "oca_dependencies.txt"), "never\n")
	require.NoError(t, marker.New(deps, 0).Touch())
	fs := newFakeSync(deps)

	report, err := New(options(build, deps), fs, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"proj-c"}, fs.names())
	assert.Equal(t, []string{"proj-b"}, report.Seeded)
}

func TestRunSeededNameIsNotResynchronized(t *testing.T) {
	build, deps := layout(t, "proj-b\n")
	require.NoError(t, os.MkdirAll(filepath.Join(deps, "proj-b"), 0o750))
	fs := newFakeSync(deps)

	_, err := New(options(build, deps), fs, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fs.names())
}

func TestRunAbortsOnSynchronizationFailure(t *testing.T) {
	build, deps := layout(t, "a\nb\nc\n")
	fs := newFakeSync(deps)
	fs.projects["a"] = map[string]string{"oca_dependencies.txt": "d\n"}
	fs.fail["b"] = &git.RemoteDivergedError{Op: "update", URL: "u", Ref: "8.0", Err: errors.New("diverged")}
	inst := newFakeInstaller(nil)

	report, err := New(options(build, deps), fs, inst).Run(context.Background())
	require.Error(t, err)

	var diverged *git.RemoteDivergedError
	assert.True(t, errors.As(err, &diverged))
	assert.Equal(t, []string{"a", "b"}, fs.names(), "no entry after the failure is processed")
	assert.Len(t, report.Synced, 1)
	assert.Empty(t, inst.installs, "install phase must not run after a fatal error")
}

func TestRunConcurrentJobsSyncEachProjectOnce(t *testing.T) {
	var root string
	for i := 0; i < 20; i++ {
		root += fmt.Sprintf("p%02d\n", i)
	}
	build, deps := layout(t, root)
	fs := newFakeSync(deps)
	for i := 0; i < 20; i++ {
		// Every project re-declares its neighbours.
		fs.projects[fmt.Sprintf("p%02d", i)] = map[string]string{
			"oca_dependencies.txt": fmt.Sprintf("p%02d\np%02d\nq%02d\n", (i+1)%20, (i+19)%20, i),
		}
	}
	opts := options(build, deps)
	opts.Jobs = 4

	report, err := New(opts, fs, nil).Run(context.Background())
	require.NoError(t, err)

	names := fs.names()
	sort.Strings(names)
	seen := map[string]bool{}
	for _, n := range names {
		assert.False(t, seen[n], "project %s synchronized twice", n)
		seen[n] = true
	}
	assert.Len(t, names, 40)
	assert.Len(t, report.Synced, 40)
}

func TestRunStalenessForcesInstall(t *testing.T) {
	build, deps := layout(t, "a\n")
	fs := newFakeSync(deps)
	fs.projects["a"] = map[string]string{"requirements.txt": "bar\n"}
	inst := newFakeInstaller(map[string]string{"bar": "1.0"})
	now := time.Unix(1_700_000_000, 0)
	opts := options(build, deps)
	opts.Now = func() time.Time { return now }

	report, err := New(opts, fs, inst).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Forced, "missing marker forces refresh")
	require.Len(t, inst.installs, 1)
	assert.Equal(t, reasonForced, report.Installs[0].Reason)

	now = now.Add(time.Hour)
	report, err = New(opts, fs, inst).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Forced)
	assert.Len(t, inst.installs, 1, "satisfied unconstrained requirement is skipped")
	assert.False(t, report.Installs[0].Installed)

	now = now.Add(25 * time.Hour)
	report, err = New(opts, fs, inst).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Forced)
	assert.Len(t, inst.installs, 2)
}

func TestRunConstraintGating(t *testing.T) {
	build, deps := layout(t, "a\nb\n")
	require.NoError(t, marker.New(deps, 0).Touch())
	fs := newFakeSync(deps)
	fs.projects["a"] = map[string]string{"requirements.txt": "foo==1.0\n"}
	fs.projects["b"] = map[string]string{"requirements.txt": "bar\n"}
	inst := newFakeInstaller(map[string]string{"foo": "1.0", "bar": "2.0"})

	report, err := New(options(build, deps), fs, inst).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, inst.installs, 1)
	assert.Equal(t, filepath.Join(deps, "a", "requirements.txt"), inst.installs[0])
	require.Len(t, report.Installs, 2)
	assert.Equal(t, "constrained:foo", report.Installs[0].Reason)
	assert.False(t, report.Installs[1].Installed)
}

func TestRunSnapshotsInstalledPackagesBeforeSynchronizing(t *testing.T) {
	build, deps := layout(t, "a\nb\n")
	fs := newFakeSync(deps)
	fs.projects["a"] = map[string]string{"requirements.txt": "foo\n"}
	inst := newFakeInstaller(map[string]string{})
	var listedAtSync []int
	fs.onSync = func(string) { listedAtSync = append(listedAtSync, inst.listCount()) }
	require.NoError(t, marker.New(deps, 0).Touch())

	report, err := New(options(build, deps), fs, inst).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{1, 1}, listedAtSync, "inventory is taken before the first synchronization")
	assert.Equal(t, 1, inst.listCount(), "inventory is taken once per run")
	require.Len(t, report.Installs, 1)
	assert.Equal(t, "missing:foo", report.Installs[0].Reason)
}

func TestRunSkipInstallNeverListsPackages(t *testing.T) {
	build, deps := layout(t, "a\n")
	inst := newFakeInstaller(nil)
	opts := options(build, deps)
	opts.SkipInstall = true

	_, err := New(opts, newFakeSync(deps), inst).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, inst.listCount())
}

func TestRunInstallFailureContinues(t *testing.T) {
	build, deps := layout(t, "a\nb\n")
	fs := newFakeSync(deps)
	fs.projects["a"] = map[string]string{"requirements.txt": "x\n"}
	fs.projects["b"] = map[string]string{"requirements.txt": "y\n"}
	inst := newFakeInstaller(nil)
	inst.fail[filepath.Join(deps, "a", "requirements.txt")] = true
	inst.listErr = errors.New("pip missing")

	report, err := New(options(build, deps), fs, inst).Run(context.Background())
	require.NoError(t, err, "install failures are not fatal")

	assert.Len(t, inst.installs, 2)
	assert.Equal(t, 1, report.InstallFailures())
	assert.True(t, report.Installs[1].Installed)
}

func TestRunIncludesBuildRootRequirements(t *testing.T) {
	build, deps := layout(t, "")
	writeFile(t, filepath.Join(build, "requirements.txt"), "root-dep\n")
	inst := newFakeInstaller(nil)
	opts := options(build, deps)
	opts.DryRun = true

	report, err := New(opts, newFakeSync(deps), inst).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(build, "requirements.txt")}, report.Requirements)
	assert.Empty(t, inst.installs, "dry run never calls the installer")
	assert.Equal(t, reasonForced, report.Installs[0].Reason)
	_, statErr := os.Stat(filepath.Join(deps, marker.FileName))
	assert.True(t, os.IsNotExist(statErr), "dry run leaves the refresh marker untouched")
}

func TestRunSkipInstallLeavesMarkerAlone(t *testing.T) {
	build, deps := layout(t, "a\n")
	opts := options(build, deps)
	opts.SkipInstall = true

	_, err := New(opts, newFakeSync(deps), newFakeInstaller(nil)).Run(context.Background())
	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(deps, marker.FileName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunRecordsHistory(t *testing.T) {
	build, deps := layout(t, "a\n")
	fs := newFakeSync(deps)
	fs.projects["a"] = map[string]string{"requirements.txt": "x==1\n"}
	ledger, err := history.Open(":memory:")
	require.NoError(t, err)
	defer func() { _ = ledger.Close() }()

	report, err := New(options(build, deps), fs, newFakeInstaller(nil)).WithLedger(ledger).Run(context.Background())
	require.NoError(t, err)

	events, err := ledger.ByRun(context.Background(), report.RunID)
	require.NoError(t, err)
	var types []string
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{
		history.TypeRunStarted,
		history.TypeRepoSynced,
		history.TypeRequirementsInstalled,
		history.TypeRunFinished,
	}, types)
}

func TestRunCanceledContext(t *testing.T) {
	build, deps := layout(t, "a\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(options(build, deps), newFakeSync(deps), nil).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
