package main

import (
	"NetDeviation/internal/commands"
	"os"

	"github.com/urfave/cli"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	app := cli.NewApp()
	app.Name = "netdev"
	app.Usage = "Measure how simulated attacks deviate traffic from a captured baseline."
	app.Version = Version

	app.Commands = commands.Commands()

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}
