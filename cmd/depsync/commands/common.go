package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/depsync/internal/config"
	"git.home.luguber.info/inful/depsync/internal/observability"
)

// Global carries process wiring shared by all commands.
type Global struct {
	Ctx    context.Context
	Out    io.Writer
	Getenv func(string) string
}

func (g *Global) context() context.Context {
	if g.Ctx == nil {
		return context.Background()
	}
	return g.Ctx
}

func (g *Global) getenv(key string) string {
	if g.Getenv == nil {
		return os.Getenv(key)
	}
	return g.Getenv(key)
}

func (g *Global) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition & global flags.
type CLI struct {
	Config    string `short:"c" help:"Configuration file (.yaml, .yml or .toml)" type:"path"`
	Verbose   bool   `short:"v" help:"Enable debug logging"`
	LogFormat string `name:"log-format" help:"Log output format (text|json|pretty)" enum:",text,json,pretty" default:""`

	Sync    SyncCmd    `cmd:"" default:"withargs" help:"Synchronize dependency repositories and install requirements"`
	Watch   WatchCmd   `cmd:"" help:"Re-synchronize periodically and whenever the root manifests change"`
	Addons  AddonsCmd  `cmd:"" help:"List addons directories or module names below the given paths"`
	History HistoryCmd `cmd:"" help:"Show recent run history"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// AfterApply runs after flag parsing; setup logging once. Logs go to stderr so
// stdout stays machine readable for the addons command.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := observability.ParseLevel(firstSet(os.Getenv(config.EnvLogLevel), "info"))
	if c.Verbose {
		level = slog.LevelDebug
	}
	format := firstSet(c.LogFormat, os.Getenv(config.EnvLogFormat), "text")
	slog.SetDefault(observability.NewLogger(format, level, os.Stderr))
	return nil
}

// loadConfig reads the configuration and re-applies the flags that override it.
func (c *CLI) loadConfig(g *Global) (*config.Config, error) {
	cfg, err := config.Load(c.Config, g.getenv)
	if err != nil {
		return nil, err
	}
	if c.LogFormat != "" {
		cfg.Logging.Format = c.LogFormat
	}
	if c.Verbose {
		cfg.Logging.Level = "debug"
	}
	slog.SetDefault(observability.NewLogger(cfg.Logging.Format, observability.ParseLevel(cfg.Logging.Level), os.Stderr))
	return cfg, nil
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
