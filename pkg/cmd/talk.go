package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/msoap/byline"
	"github.com/urfave/cli/v2"

	"github.com/cfengine/cf-bottom/pkg/daemon"
	"github.com/cfengine/cf-bottom/pkg/logging"
	"github.com/cfengine/cf-bottom/pkg/slack"
	"github.com/cfengine/cf-bottom/pkg/store"
	"github.com/cfengine/cf-bottom/pkg/vcs"
)

// TalkCommand defines the `talk` command.
var TalkCommand = cli.Command{
	Name:  "talk",
	Usage: "answer one Slack event read from stdin, or chat with the bot on the terminal",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "interactive",
			Aliases: []string{"i"},
			Usage:   "read commands from the terminal and print the replies",
		},
		&cli.BoolFlag{
			Name:  "scan",
			Usage: "allow the scan command, which looks at all open pull requests",
		},
	},
	Action: talkCommand,
}

// consoleUser is who the bot thinks it is talking to in interactive mode.
const consoleUser = "you"

func talkCommand(c *cli.Context) error {
	ctx := ProcessContext()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	// The daemon holds the store while it runs.
	st, err := openStore(cfg)
	if err != nil {
		logging.S().Debugw("answering without build records", "err", err)
	} else {
		defer st.Close()
	}

	var out slack.Poster = &slack.Console{W: c.App.Writer}
	if !c.Bool("interactive") {
		out = slack.NewClient(cfg.Secrets.SlackBotToken, cfg.Slack.APIURL, cfg.Passive)
	}

	col := newCollector(cfg)
	services := slack.Services{
		Store:     st,
		Reports:   col,
		Checkouts: &vcs.Checkouts{Dir: cfg.Git.Checkouts},
	}
	if c.Bool("scan") {
		services.Scan = daemon.NewScanner(newScanFunc(cfg, st, newJenkins(cfg), col)).Scan
	}
	d := slack.NewDispatcher(out)
	slack.RegisterCommands(d, services)

	if c.Bool("interactive") {
		return chat(c, d, st)
	}

	body, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("failed to read event from stdin: %w", err)
	}
	in, err := slack.ParseEvent(body, cfg.Secrets.SlackReadToken, "")
	if err != nil {
		return err
	}
	if in.Challenge != "" {
		fmt.Fprintln(c.App.Writer, in.Challenge)
		return nil
	}
	return d.Dispatch(ctx, in.Conversation, in.Text)
}

func chat(c *cli.Context, d *slack.Dispatcher, st *store.Store) error {
	ctx := ProcessContext()
	conv := slack.Conversation{Channel: "console", User: consoleUser, BotID: "cf-bottom"}

	w := c.App.Writer
	if st == nil {
		fmt.Fprintln(w, "Build records are unavailable, the daemon holds them.")
	}
	fmt.Fprintf(w, "Say %q for a list of commands, %q to leave.\n> ", "help", "quit")

	return byline.NewReader(os.Stdin).MapStringErr(func(line string) (string, error) {
		text := strings.TrimSpace(line)
		switch text {
		case "":
		case "quit", "exit":
			return "", io.EOF
		default:
			if err := d.Dispatch(ctx, conv, text); err != nil {
				return "", err
			}
		}
		fmt.Fprint(w, "> ")
		return "", byline.ErrOmitLine
	}).Discard()
}
