package main

import (
	"github.com/alecthomas/kong"
	"github.com/lox/tourneykit/sdk"
)

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Server  ServerCmd        `cmd:"" help:"Run the sandbox tournament server"`
	Play    PlayCmd          `cmd:"" help:"Play the dice demo in the terminal"`
	Swarm   SwarmCmd         `cmd:"" help:"Run headless dice players against a server"`
	Draws   DrawsCmd         `cmd:"" help:"Print the synchronized draws for a match seed"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("tourneykit"),
		kong.Description("Tournament sandbox server and client tools"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": sdk.Version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
