package commands

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/depsync/internal/addons"
)

// AddonsCmd implements the 'addons' command.
type AddonsCmd struct {
	Modules bool     `short:"m" help:"List module names instead of addons directories"`
	Exclude []string `short:"e" sep:"," help:"Comma separated entries to leave out"`
	Changed string   `help:"Only list modules changed between this revision and HEAD of each path"`
	Paths   []string `arg:"" name:"path" help:"Directories to search"`
}

func (c *AddonsCmd) Run(g *Global) error {
	var found []string
	for _, p := range c.Paths {
		switch {
		case c.Changed != "":
			changed, err := addons.ChangedModules(g.context(), p, c.Changed)
			if err != nil {
				return fmt.Errorf("changed modules of %s: %w", p, err)
			}
			found = append(found, changed...)
		case c.Modules:
			found = append(found, addons.Modules(p)...)
		default:
			found = append(found, addons.AddonsPaths(p)...)
		}
	}
	_, err := fmt.Fprintln(g.out(), strings.Join(addons.Filter(found, c.Exclude), ","))
	return err
}
