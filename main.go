package main

import (
	"errors"
	"os"

	"github.com/fyralabs/katsu/internal/cmd"
	"github.com/fyralabs/katsu/internal/utils"
	"github.com/fyralabs/katsu/internal/version"
	"github.com/urfave/cli/v2"
)

// Declarative image composition for Fyra OS builds.
func main() {
	app := cli.NewApp()
	app.Name = "katsu"
	app.Usage = "declarative OS image builder"
	app.Version = version.GetVersion()
	app.Authors = []*cli.Author{{Name: "Fyra Labs"}}
	app.Copyright = "Fyra Labs"
	app.Commands = cmd.Commands
	app.Action = func(c *cli.Context) error {
		return cli.ShowAppHelp(c)
	}

	if err := app.Run(os.Args); err != nil {
		v := version.Get()
		utils.Log.Err(err).Str("version", v.Version).Msg("katsu failed")
		var exitErr *utils.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode > 0 {
			os.Exit(exitErr.ExitCode)
		}
		os.Exit(1)
	}
}
