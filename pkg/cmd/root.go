package cmd

import "github.com/urfave/cli/v2"

// RootCommands collects all subcommands of the cf-bottom CLI.
var RootCommands = cli.Commands{
	&RunCommand,
	&DaemonCommand,
	&TalkCommand,
	&TriggerCommand,
	&BuildsCommand,
	&HealthcheckCommand,
}

var RootFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:  "v",
		Usage: "verbose output (equivalent to DEBUG log level)",
	},
	&cli.BoolFlag{
		Name:  "vv",
		Usage: "super verbose output (equivalent to DEBUG log level for now, it may accommodate TRACE in the future)",
	},
	&cli.BoolFlag{
		Name:  "passive",
		Usage: "log what would be posted to GitHub, Jenkins and Slack instead of posting (same as TOM=PASSIVE)",
	},
	&cli.StringFlag{
		Name:  "endpoint",
		Usage: "set the daemon endpoint URI (overrides .env.toml)",
	},
}
