package commands

import (
	"fmt"

	"git.home.luguber.info/inful/docweave/internal/config"
	ferrors "git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool   `help:"Overwrite existing configuration file"`
	Dir   string `arg:"" optional:"" help:"Project directory" default:"." type:"path"`
}

func (i *InitCmd) Run(g *Global, _ *CLI) error {
	return RunInit(g, i.Dir, i.Force)
}

func RunInit(g *Global, dir string, force bool) error {
	path, err := config.Init(dir, force)
	if err != nil {
		_, _ = fmt.Fprintln(g.out(), "Initialization failed")
		return ferrors.WrapError(err, ferrors.CategoryConfig, "cannot initialize project").
			WithContext("dir", dir).
			Build()
	}
	_, _ = fmt.Fprintf(g.out(), "Wrote configuration to %s\n", path)
	return nil
}
