package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
)

var HealthcheckCommand = cli.Command{
	Name:   "healthcheck",
	Usage:  "checks that the daemon is up, and optionally starts a scan",
	Action: healthcheckCommand,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "scan",
			Usage: "ask the daemon to look at all open pull requests now, and wait for it",
		},
	},
}

func healthcheckCommand(c *cli.Context) error {
	ctx, cancel := context.WithCancel(ProcessContext())
	defer cancel()

	cl, _, err := setupClient(c)
	if err != nil {
		return err
	}
	defer cl.Close()

	h, err := cl.Healthcheck(ctx)
	if err != nil {
		return fmt.Errorf("daemon is not healthy: %w", err)
	}

	last := h.LastScan
	if last == "" {
		last = "never"
	}
	fmt.Fprintf(c.App.Writer, "status: %s, scanning: %t, last scan: %s\n", h.Status, h.Scanning, last)

	if !c.Bool("scan") {
		return nil
	}
	summary, err := cl.Scan(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "looked at %d pull requests in %d repositories, %d errors\n", summary.Pulls, summary.Repos, summary.Errors)
	return nil
}
