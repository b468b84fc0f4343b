package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"git.home.luguber.info/inful/depsync/internal/foundation/errors"
	"git.home.luguber.info/inful/depsync/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int    `short:"n" help:"Number of events to show" default:"50"`
	RunID string `name:"run" help:"Show every event of this run id instead"`
	Path  string `help:"SQLite run history database (default: history.path from the configuration)" type:"path"`
}

func (c *HistoryCmd) Run(g *Global, root *CLI) error {
	path := c.Path
	if path == "" {
		cfg, err := root.loadConfig(g)
		if err != nil {
			return err
		}
		path = cfg.History.Path
	}
	if path == "" {
		return errors.ConfigError("no run history configured; set history.path, DEPSYNC_HISTORY or --path").Build()
	}
	ledger, err := history.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = ledger.Close() }()

	var events []history.Event
	if c.RunID != "" {
		events, err = ledger.ByRun(g.context(), c.RunID)
	} else {
		events, err = ledger.Recent(g.context(), c.Limit)
	}
	if err != nil {
		return err
	}
	for _, e := range events {
		printEvent(g.out(), e)
	}
	return nil
}

var eventColors = map[string]*color.Color{
	history.TypeRunStarted:            color.New(color.Bold),
	history.TypeRunFinished:           color.New(color.Bold),
	history.TypeRepoSynced:            color.New(color.FgCyan),
	history.TypeRequirementsInstalled: color.New(color.FgGreen),
	history.TypeRequirementsSkipped:   color.New(color.FgYellow),
	history.TypeRequirementsFailed:    color.New(color.FgRed),
}

func printEvent(w io.Writer, e history.Event) {
	c, ok := eventColors[e.Type]
	if !ok {
		c = color.New(color.Reset)
	}
	runID := e.RunID
	if len(runID) > 8 {
		runID = runID[:8]
	}
	_, _ = fmt.Fprintf(w, "%s %s %s %s\n",
		e.Timestamp.Local().Format("2006-01-02 15:04:05"),
		runID,
		c.Sprintf("%-22s", e.Type),
		describe(e))
}

// describe renders the interesting payload fields of e on one line.
func describe(e history.Event) string {
	switch e.Type {
	case history.TypeRepoSynced:
		var p history.SyncPayload
		if json.Unmarshal(e.Payload, &p) != nil {
			return e.Project
		}
		state := "unchanged"
		if p.Cloned {
			state = "cloned"
		} else if p.Changed {
			state = "updated"
		}
		commit := p.Commit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		return fmt.Sprintf("%s %s@%s %s", e.Project, p.Ref, commit, state)
	case history.TypeRequirementsInstalled, history.TypeRequirementsSkipped, history.TypeRequirementsFailed:
		var p history.InstallPayload
		if json.Unmarshal(e.Payload, &p) != nil {
			return ""
		}
		if p.Error != "" {
			return fmt.Sprintf("%s: %s", p.Manifest, p.Error)
		}
		if p.Reason != "" {
			return fmt.Sprintf("%s (%s)", p.Manifest, p.Reason)
		}
		return p.Manifest
	default:
		var p history.RunPayload
		if json.Unmarshal(e.Payload, &p) != nil {
			return ""
		}
		if e.Type == history.TypeRunStarted {
			return p.BuildRoot + " -> " + p.CheckoutRoot
		}
		s := fmt.Sprintf("synced=%d installs=%d forced=%t changed=%t %dms", p.Synced, p.Installs, p.Forced, p.AnyChanged, p.DurationMS)
		if p.Error != "" {
			s += " error: " + p.Error
		}
		return s
	}
}
