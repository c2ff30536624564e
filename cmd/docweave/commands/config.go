package commands

import (
	"fmt"

	"git.home.luguber.info/inful/docweave/internal/confnode"
	ferrors "git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

// ConfigCmd implements the 'config' command.
type ConfigCmd struct {
	RunFlags `embed:""`

	Format     string `short:"F" help:"Output format (yaml, json, toml)" enum:"yaml,json,toml" default:"yaml"`
	Unredacted bool   `help:"Show secret values"`
}

func (c *ConfigCmd) Run(g *Global, root *CLI) error {
	conf, err := root.loadConfig(c.Runstate())
	if err != nil {
		return err
	}
	data, err := confnode.Encode(confnode.Format(c.Format), conf.Dict(!c.Unredacted))
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryOutput, "cannot encode configuration").
			WithContext("format", c.Format).
			Build()
	}
	_, err = fmt.Fprint(g.out(), string(data))
	return err
}
