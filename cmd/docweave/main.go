package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docweave/cmd/docweave/commands"
	ferrors "git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("docweave"),
		kong.Description("Build structured documentation content from YAML sources."),
		kong.UsageOnError(),
		kong.Vars{"version": version.Version},
	)
	err := parser.Run(&commands.Global{Logger: slog.Default(), Out: os.Stdout}, cli)
	ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
