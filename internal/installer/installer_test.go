package installer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/depsync/internal/config"
	ferrors "git.home.luguber.info/inful/depsync/internal/foundation/errors"
)

type call struct {
	dir  string
	name string
	args []string
}

type fakeRunner struct {
	mu      sync.Mutex
	calls   []call
	onPath  map[string]bool
	outputs map[string][]byte
	fail    map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{onPath: map[string]bool{}, outputs: map[string][]byte{}, fail: map[string]error{}}
}

func (f *fakeRunner) Run(_ context.Context, dir, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{dir: dir, name: name, args: args})
	key := name + " " + strings.Join(args, " ")
	for prefix, err := range f.fail {
		if strings.HasPrefix(key, prefix) {
			return nil, err
		}
	}
	for prefix, out := range f.outputs {
		if strings.HasPrefix(key, prefix) {
			return out, nil
		}
	}
	return nil, nil
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	if f.onPath[name] {
		return "/usr/bin/" + name, nil
	}
	return "", errors.New("not found")
}

func TestSelectAutoPrefersUV(t *testing.T) {
	r := newFakeRunner()
	r.onPath["uv"] = true

	inst := Select(context.Background(), config.InstallConfig{Installer: "auto"}, r)
	assert.Equal(t, "uv", inst.Name())
}

func TestSelectAutoFallsBackToPip(t *testing.T) {
	r := newFakeRunner()
	inst := Select(context.Background(), config.InstallConfig{Installer: "auto", Python: "python3"}, r)
	assert.Equal(t, "pip", inst.Name())

	r.onPath["uv"] = true
	r.fail["uv --version"] = errors.New("broken uv")
	inst = Select(context.Background(), config.InstallConfig{Installer: "auto"}, r)
	assert.Equal(t, "pip", inst.Name())
}

func TestSelectExplicit(t *testing.T) {
	r := newFakeRunner()
	assert.Equal(t, "uv", Select(context.Background(), config.InstallConfig{Installer: "uv"}, r).Name())
	assert.Equal(t, "pip", Select(context.Background(), config.InstallConfig{Installer: "PIP"}, r).Name())
	assert.Empty(t, r.calls, "explicit selection must not probe")
}

func TestInstallCommands(t *testing.T) {
	r := newFakeRunner()
	ctx := context.Background()

	require.NoError(t, NewUV(r, 0).Install(ctx, "/deps/web/requirements.txt"))
	require.NoError(t, NewPip(r, "python3", 0).Install(ctx, "/deps/web/requirements.txt"))

	require.Len(t, r.calls, 2)
	assert.Equal(t, call{dir: "/deps/web", name: "uv", args: []string{"pip", "install", "-r", "/deps/web/requirements.txt"}}, r.calls[0])
	assert.Equal(t, call{dir: "/deps/web", name: "python3", args: []string{"-m", "pip", "install", "-r", "/deps/web/requirements.txt"}}, r.calls[1])
}

func TestInstallFailureIsClassified(t *testing.T) {
	r := newFakeRunner()
	r.fail["uv pip install"] = errors.New("exit status 1")

	err := NewUV(r, 0).Install(context.Background(), "/x/requirements.txt")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryInstall))
}

func TestInstalledParsesJSON(t *testing.T) {
	r := newFakeRunner()
	r.outputs["python -m pip list --format=json"] = []byte(`[{"name":"Requests","version":"2.31.0"},{"name":"typing_extensions","version":"4.9.0"}]`)

	idx, err := NewPip(r, "", 0).Installed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.31.0", idx["requests"])
	assert.True(t, idx.Has("typing-extensions"))
}

func TestInstalledBadJSON(t *testing.T) {
	r := newFakeRunner()
	r.outputs["uv pip list"] = []byte("not json")
	_, err := NewUV(r, 0).Installed(context.Background())
	require.Error(t, err)
}
