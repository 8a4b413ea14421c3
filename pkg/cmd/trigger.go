package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/logrusorgru/aurora"
	"github.com/mitchellh/go-wordwrap"
	"github.com/urfave/cli/v2"

	"github.com/cfengine/cf-bottom/pkg/bot"
	"github.com/cfengine/cf-bottom/pkg/logging"
	"github.com/cfengine/cf-bottom/pkg/trigger"
)

// TriggerCommand defines the `trigger` command.
var TriggerCommand = cli.Command{
	Name:      "trigger",
	Usage:     "show the build a trigger comment would start, without starting it",
	ArgsUsage: "<comment>",
	Action:    triggerCommand,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "repo",
			Usage:    "short name of the repository of the pull request, e.g. core",
			Required: true,
		},
		&cli.IntFlag{
			Name:     "pr",
			Usage:    "number of the pull request",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "branch",
			Usage: "base branch of the pull request",
			Value: "master",
		},
		&cli.StringFlag{
			Name:  "title",
			Usage: "title of the pull request",
		},
		&cli.StringFlag{
			Name:  "author",
			Usage: "who wrote the trigger comment",
			Value: "cf-bottom",
		},
		&cli.StringSliceFlag{
			Name:  "merge-with",
			Usage: "pull requests to build along, as URLs or owner/repo#number; can be repeated",
		},
		&cli.StringFlag{
			Name:  "jenkins-url",
			Usage: "base URL of the Jenkins instance",
			Value: "https://ci.cfengine.com/",
		},
		&cli.GenericFlag{
			Name:  "format",
			Usage: "output format: text or json",
			Value: &EnumValue{Allowed: []string{"text", "json"}, Default: "text"},
		},
	},
}

type dryRun struct {
	Job         string                 `json:"job"`
	Path        string                 `json:"path"`
	Revisions   string                 `json:"revisions"`
	Description string                 `json:"description"`
	BadgeText   string                 `json:"badge_text,omitempty"`
	Params      map[string]interface{} `json:"params"`
}

func triggerCommand(c *cli.Context) error {
	req := trigger.Request{
		Repo:      c.String("repo"),
		Number:    c.Int("pr"),
		MergeWith: bot.MergeWith(c.String("repo"), strings.Join(c.StringSlice("merge-with"), " ")),
		Branch:    c.String("branch"),
		Title:     c.String("title"),
		Author:    c.String("author"),
		Comment:   strings.Join(c.Args().Slice(), " "),
	}
	plan := trigger.Derive(c.String("jenkins-url"), req)

	if enumFlag(c, "format") == "json" {
		out, err := json.MarshalIndent(dryRun{
			Job:         plan.Job.Name,
			Path:        plan.Path,
			Revisions:   plan.Revisions.String(),
			Description: plan.Description,
			BadgeText:   plan.BadgeText,
			Params:      plan.Params.Map(),
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, string(out))
		return nil
	}

	au := aurora.NewAurora(logging.IsTerminal())
	w := c.App.Writer
	fmt.Fprintf(w, "%s %s\n", au.Bold("job:"), au.Cyan(plan.Job.Name))
	fmt.Fprintf(w, "%s %s\n", au.Bold("path:"), plan.Path)
	fmt.Fprintf(w, "%s %s\n", au.Bold("revisions:"), plan.Revisions.String())
	fmt.Fprintf(w, "%s\n", au.Bold("description:"))
	for _, line := range strings.Split(wordwrap.WrapString(plan.Description, 80), "\n") {
		fmt.Fprintf(w, "    %s\n", line)
	}
	if plan.BadgeText != "" {
		fmt.Fprintf(w, "%s %s\n", au.Bold("badge:"), plan.BadgeText)
	}
	fmt.Fprintf(w, "%s\n", au.Bold("params:"))
	for _, p := range plan.Params.List() {
		v := au.Green(p.Value.Text())
		if p.Value.Kind() == trigger.KindBool {
			v = au.Yellow(p.Value.Text())
		}
		fmt.Fprintf(w, "    %s=%s\n", p.Name, v)
	}
	return nil
}
