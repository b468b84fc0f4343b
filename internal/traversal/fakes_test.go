package traversal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"git.home.luguber.info/inful/depsync/internal/git"
	"git.home.luguber.info/inful/depsync/internal/requirements"
)

type syncCall struct {
	Name, URL, Ref string
}

// fakeSync materializes <root>/<name> from a fixture of files per project.
type fakeSync struct {
	mu        sync.Mutex
	root      string
	projects  map[string]map[string]string
	fail      map[string]error
	unchanged map[string]bool
	calls     []syncCall
	onSync    func(name string)
}

func newFakeSync(root string) *fakeSync {
	return &fakeSync{root: root, projects: map[string]map[string]string{}, fail: map[string]error{}, unchanged: map[string]bool{}}
}

func (f *fakeSync) Sync(_ context.Context, name, url, ref string) (git.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, syncCall{Name: name, URL: url, Ref: ref})
	err := f.fail[name]
	files := f.projects[name]
	unchanged := f.unchanged[name]
	onSync := f.onSync
	f.mu.Unlock()

	if onSync != nil {
		onSync(name)
	}
	if err != nil {
		return git.Result{}, err
	}
	dir := filepath.Join(f.root, name)
	for rel, content := range files {
		full := filepath.Join(dir, rel)
		if mkErr := os.MkdirAll(filepath.Dir(full), 0o750); mkErr != nil {
			return git.Result{}, mkErr
		}
		if wErr := os.WriteFile(full, []byte(content), 0o600); wErr != nil {
			return git.Result{}, wErr
		}
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return git.Result{}, err
	}
	return git.Result{Path: dir, Changed: !unchanged, Cloned: !unchanged, Head: "0123456789abcdef"}, nil
}

func (f *fakeSync) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Name)
	}
	return out
}

func (f *fakeSync) call(name string) (syncCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.Name == name {
			return c, true
		}
	}
	return syncCall{}, false
}

type fakeInstaller struct {
	mu        sync.Mutex
	installed map[string]string
	fail      map[string]bool
	listErr   error
	installs  []string
	listed    int
}

func newFakeInstaller(installed map[string]string) *fakeInstaller {
	return &fakeInstaller{installed: installed, fail: map[string]bool{}}
}

func (f *fakeInstaller) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listed
}

func (f *fakeInstaller) Name() string { return "fake" }

func (f *fakeInstaller) Install(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installs = append(f.installs, path)
	if f.fail[path] {
		return errors.New("install exploded")
	}
	return nil
}

func (f *fakeInstaller) Installed(context.Context) (requirements.InstalledIndex, error) {
	f.mu.Lock()
	f.listed++
	f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return requirements.NewInstalledIndex(f.installed), nil
}

// layout prepares a build root and a checkout root inside a temp dir.
func layout(t *testing.T, rootManifest string) (buildRoot, checkoutRoot string) {
	t.Helper()
	tmp := t.TempDir()
	buildRoot = filepath.Join(tmp, "build")
	checkoutRoot = filepath.Join(tmp, "deps")
	if err := os.MkdirAll(buildRoot, 0o750); err != nil {
		t.Fatal(err)
	}
	if rootManifest != "" {
		writeFile(t, filepath.Join(buildRoot, "oca_dependencies.txt"), rootManifest)
	}
	return buildRoot, checkoutRoot
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}
