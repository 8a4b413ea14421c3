package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/cfengine/cf-bottom/pkg/daemon"
	"github.com/cfengine/cf-bottom/pkg/logging"
	"github.com/cfengine/cf-bottom/pkg/slack"
	"github.com/cfengine/cf-bottom/pkg/vcs"
)

// DaemonCommand defines the `daemon` command.
var DaemonCommand = cli.Command{
	Name:   "daemon",
	Usage:  "start a long-running daemon that answers Slack and scans pull requests on a schedule",
	Action: daemonCommand,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "listen",
			Usage: "address to listen on (overrides .env.toml)",
		},
		&cli.StringFlag{
			Name:  "schedule",
			Usage: "cron spec of scheduled scans, e.g. '@every 5m'; 'off' disables them (overrides .env.toml)",
		},
	},
}

func daemonCommand(c *cli.Context) error {
	ctx, cancel := context.WithCancel(ProcessContext())
	defer cancel()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if l := c.String("listen"); l != "" {
		cfg.Daemon.Listen = l
	}
	if s := c.String("schedule"); s != "" {
		cfg.Daemon.Schedule = s
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	col := newCollector(cfg)
	scanner := daemon.NewScanner(newScanFunc(cfg, st, newJenkins(cfg), col))

	dispatcher := slack.NewDispatcher(slack.NewClient(cfg.Secrets.SlackBotToken, cfg.Slack.APIURL, cfg.Passive))
	slack.RegisterCommands(dispatcher, slack.Services{
		Store:     st,
		Reports:   col,
		Checkouts: &vcs.Checkouts{Dir: cfg.Git.Checkouts},
		Scan:      scanner.Scan,
	})

	srv, err := daemon.New(daemon.Options{
		Listen:        cfg.Daemon.Listen,
		Store:         st,
		Dispatcher:    dispatcher,
		Scanner:       scanner,
		SigningSecret: cfg.Secrets.SlackSigningSecret,
		ReadToken:     cfg.Secrets.SlackReadToken,
	})
	if err != nil {
		return err
	}

	if spec := cfg.Daemon.Schedule; spec != "" && spec != "off" {
		if err := scanner.Start(ctx, spec); err != nil {
			return err
		}
		defer scanner.Stop()
	}

	exiting := make(chan struct{})
	defer close(exiting)

	go func() {
		select {
		case <-ctx.Done():
		case <-exiting:
			// no need to shutdown in this case.
			return
		}

		logging.S().Infow("shutting down daemon")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logging.S().Fatalw("failed to shut down daemon", "err", err)
		}
		logging.S().Infow("daemon stopped")
	}()

	logging.S().Infow("listen and serve", "addr", srv.Addr())
	err = srv.Serve()
	if err == http.ErrServerClosed {
		err = nil
	}
	return err
}
