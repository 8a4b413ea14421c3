package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/cfengine/cf-bottom/pkg/cmd"
	"github.com/cfengine/cf-bottom/pkg/logging"
)

func main() {
	app := cli.NewApp()
	app.Name = "cf-bottom"
	app.Usage = "a GitHub, Jenkins and Slack bot for CFEngine pull requests"
	app.Description = "cf-bottom watches open pull requests, triggers Jenkins builds when " +
		"trusted people ask for them in comments, approves pull requests vouched for by " +
		"maintainers, reports on aging pull requests and answers commands on Slack."
	app.Commands = cmd.RootCommands
	app.Flags = cmd.RootFlags
	// Disable the built-in -v flag (version), to avoid collisions with the
	// verbosity flags.
	app.HideVersion = true
	app.Before = func(c *cli.Context) error {
		configureLogging(c)
		return nil
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func configureLogging(c *cli.Context) {
	if logging.IsTerminal() {
		logging.ConsoleMode()
	} else {
		logging.ProductionMode()
	}

	// The LOG_LEVEL environment variable takes precedence.
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		var l zapcore.Level
		if err := l.UnmarshalText([]byte(level)); err != nil {
			panic(err)
		}
		logging.SetLevel(l)
		return
	}

	switch {
	case c.Bool("v"), c.Bool("vv"):
		logging.SetLevel(zapcore.DebugLevel)
	default:
		// level remains at default (INFO).
	}
}
