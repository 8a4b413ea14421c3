package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
)

// RunCommand defines the `run` command.
var RunCommand = cli.Command{
	Name:   "run",
	Usage:  "look at all open pull requests once: trigger requested builds, approve and write reports",
	Action: runCommand,
}

func runCommand(c *cli.Context) error {
	ctx, cancel := context.WithCancel(ProcessContext())
	defer cancel()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	col := newCollector(cfg)
	summary, err := newScanFunc(cfg, st, newJenkins(cfg), col)(ctx)

	fmt.Fprintf(c.App.Writer, "looked at %d pull requests in %d repositories, %d errors\n", summary.Pulls, summary.Repos, summary.Errors)
	if col.Len() > 0 {
		fmt.Fprintln(c.App.Writer, col.Summary())
	}
	return err
}
