// Package installer runs the Python package installer against requirement files.
//
// Two strategies exist: uv (preferred when present) and pip through the configured
// interpreter. Select probes the environment once and returns the strategy to use.
package installer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/depsync/internal/config"
	"git.home.luguber.info/inful/depsync/internal/foundation/errors"
	"git.home.luguber.info/inful/depsync/internal/logfields"
	"git.home.luguber.info/inful/depsync/internal/requirements"
)

// Installer installs requirement files and reports the installed package inventory.
type Installer interface {
	Name() string
	Install(ctx context.Context, manifestPath string) error
	Installed(ctx context.Context) (requirements.InstalledIndex, error)
}

// command describes how a strategy invokes its tool.
type command struct {
	name   string
	bin    string
	prefix []string
	runner Runner
	// timeout bounds every invocation.
	timeout time.Duration
}

func (c *command) Name() string { return c.name }

func (c *command) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	timeout := c.timeout
	if timeout <= 0 {
		timeout = config.DefaultInstallTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.runner.Run(ctx, dir, c.bin, append(append([]string{}, c.prefix...), args...)...)
}

func (c *command) Install(ctx context.Context, manifestPath string) error {
	// Run from the manifest's directory so relative "-r" includes resolve.
	_, err := c.run(ctx, filepath.Dir(manifestPath), "install", "-r", manifestPath)
	if err != nil {
		return errors.InstallError("requirement install failed").
			WithCause(err).
			WithContext("installer", c.name).
			WithContext("manifest", manifestPath).
			Build()
	}
	return nil
}

type listedPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func (c *command) Installed(ctx context.Context) (requirements.InstalledIndex, error) {
	out, err := c.run(ctx, "", "list", "--format=json")
	if err != nil {
		return nil, errors.InstallError("listing installed packages failed").
			WithCause(err).
			WithContext("installer", c.name).
			Build()
	}
	return parseList(out)
}

func parseList(out []byte) (requirements.InstalledIndex, error) {
	var pkgs []listedPackage
	if err := json.Unmarshal(out, &pkgs); err != nil {
		return nil, fmt.Errorf("decode package list: %w", err)
	}
	raw := make(map[string]string, len(pkgs))
	for _, p := range pkgs {
		raw[p.Name] = p.Version
	}
	return requirements.NewInstalledIndex(raw), nil
}

// NewUV returns the uv strategy: "uv pip install -r FILE".
func NewUV(runner Runner, timeout time.Duration) Installer {
	return &command{name: "uv", bin: "uv", prefix: []string{"pip"}, runner: runner, timeout: timeout}
}

// NewPip returns the pip strategy: "PYTHON -m pip install -r FILE".
func NewPip(runner Runner, python string, timeout time.Duration) Installer {
	if python == "" {
		python = config.DefaultPython
	}
	return &command{name: "pip", bin: python, prefix: []string{"-m", "pip"}, runner: runner, timeout: timeout}
}

// Select returns the configured installer. "auto" uses uv when it is on PATH and
// answers "uv --version", and pip otherwise.
func Select(ctx context.Context, cfg config.InstallConfig, runner Runner) Installer {
	if runner == nil {
		runner = ExecRunner{}
	}
	timeout := cfg.TimeoutDuration()
	switch strings.ToLower(cfg.Installer) {
	case "uv":
		return NewUV(runner, timeout)
	case "pip":
		return NewPip(runner, cfg.Python, timeout)
	}
	if uvAvailable(ctx, runner) {
		slog.Debug("Using uv for requirement installs", logfields.Installer("uv"))
		return NewUV(runner, timeout)
	}
	slog.Debug("uv not available, falling back to pip", logfields.Installer("pip"))
	return NewPip(runner, cfg.Python, timeout)
}

func uvAvailable(ctx context.Context, runner Runner) bool {
	if _, err := runner.LookPath("uv"); err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := runner.Run(ctx, "", "uv", "--version")
	return err == nil
}
