// Command fintrackctl is the operator tool: it inspects exchange rates,
// converts amounts, mints API tokens, migrates the SQLite schema and
// authorizes the report worker against Google Sheets.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"fintrack/internal/cli"
)

func main() {
	cli.LoadEnvFile()
	cli.SetupLogger(os.Getenv("LOG_LEVEL"), "fintrackctl")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range commands(os.Stdout) {
		commander.Register(c, "")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
