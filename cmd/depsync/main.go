package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/depsync/cmd/depsync/commands"
	"git.home.luguber.info/inful/depsync/internal/config"
	"git.home.luguber.info/inful/depsync/internal/foundation/errors"
	"git.home.luguber.info/inful/depsync/internal/version"
)

func main() {
	config.LoadEnvFiles()

	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("depsync"),
		kong.Description("Clone and update the repositories named in oca_dependencies.txt, recursively, and install their Python requirements."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := parser.Run(&commands.Global{Ctx: ctx, Out: os.Stdout, Getenv: os.Getenv}, cli)
	cancel()

	os.Exit(errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err))
}
