package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/cfengine/cf-bottom/pkg/store"
)

// BuildsCommand defines the `builds` command.
var BuildsCommand = cli.Command{
	Name:      "builds",
	Usage:     "list triggered builds, or show the history of one",
	ArgsUsage: "[id]",
	Action:    buildsCommand,
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "limit",
			Usage: "how many builds to list, newest first; 0 lists all",
			Value: 20,
		},
		&cli.BoolFlag{
			Name:  "local",
			Usage: "read the build records directly instead of asking the daemon",
		},
	},
}

func buildsCommand(c *cli.Context) error {
	var (
		id    = c.Args().First()
		limit = c.Int("limit")
	)

	var records []*store.Record
	if c.Bool("local") {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		if id != "" {
			r, err := st.Get(id)
			if err != nil {
				return err
			}
			return printHistory(c.App.Writer, r)
		}
		if records, err = st.List(limit); err != nil {
			return err
		}
	} else {
		cl, _, err := setupClient(c)
		if err != nil {
			return err
		}
		defer cl.Close()

		ctx := ProcessContext()
		if id != "" {
			r, err := cl.Build(ctx, id)
			if err != nil {
				return err
			}
			return printHistory(c.App.Writer, r)
		}
		if records, err = cl.Builds(ctx, limit); err != nil {
			return err
		}
	}

	if len(records) == 0 {
		fmt.Fprintln(c.App.Writer, "no builds triggered yet")
		return nil
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tJOB\tPULL REQUEST\tAUTHOR\tSTATE\tCREATED\tBUILD")
	for _, r := range records {
		build := "-"
		if r.Result != nil {
			build = "#" + r.Result.Number
		}
		fmt.Fprintf(tw, "%s\t%s\t%s#%d\t%s\t%s\t%s\t%s\n",
			r.ID, r.Job, r.Repo, r.Number, r.Author, r.State().State, humanize.Time(r.Created), build)
	}
	return tw.Flush()
}

func printHistory(w io.Writer, r *store.Record) error {
	fmt.Fprintf(w, "%s\n%s\n\n", r.Description, r.PullRequest)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "job:\t%s\n", r.Job)
	fmt.Fprintf(tw, "path:\t%s\n", r.Path)
	if r.Location != "" {
		fmt.Fprintf(tw, "queue item:\t%s\n", r.Location)
	}
	if r.Result != nil {
		fmt.Fprintf(tw, "build:\t#%s %s\n", r.Result.Number, r.Result.URL)
	}
	fmt.Fprintln(tw)
	for _, s := range r.States {
		fmt.Fprintf(tw, "%s\t%s\t(%s)\t%s\n", s.State, s.Entered.Format("2006-01-02 15:04:05"), humanize.Time(s.Entered), s.Note)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if r.Params != nil {
		fmt.Fprintln(w)
		for _, p := range r.Params.List() {
			fmt.Fprintf(w, "%s=%s\n", p.Name, p.Value.Text())
		}
	}
	return nil
}
