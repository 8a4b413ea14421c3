package slack

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/cfengine/cf-bottom/pkg/bot"
	"github.com/cfengine/cf-bottom/pkg/reports"
	"github.com/cfengine/cf-bottom/pkg/store"
	"github.com/cfengine/cf-bottom/pkg/vcs"
)

const recentBuilds = 10

// Services are what the chat commands operate on. Commands whose service
// is nil are not registered.
type Services struct {
	Store     *store.Store
	Reports   *reports.Collector
	Checkouts *vcs.Checkouts
	Scan      func(ctx context.Context) (bot.Summary, error)
}

// RegisterCommands registers the bot commands on d.
func RegisterCommands(d *Dispatcher, s Services) {
	if s.Store != nil {
		d.Register("builds", "", "List recently triggered builds", func(ctx context.Context, _ Conversation, _ string) (string, error) {
			records, err := s.Store.List(recentBuilds)
			if err != nil {
				return "", err
			}
			if len(records) == 0 {
				return "I haven't triggered any builds yet.", nil
			}
			lines := make([]string, 0, len(records))
			for _, r := range records {
				lines = append(lines, FormatRecord(r))
			}
			return strings.Join(lines, "\n"), nil
		})
		d.Register("build", "id", "Show the history of one triggered build", func(ctx context.Context, _ Conversation, id string) (string, error) {
			r, err := s.Store.Get(id)
			if err != nil {
				return "", err
			}
			return FormatHistory(r), nil
		})
	}
	if s.Reports != nil {
		d.Register("report", "", "Summarize open pull requests seen in the last scan", func(context.Context, Conversation, string) (string, error) {
			return s.Reports.Summary(), nil
		})
	}
	if s.Checkouts != nil {
		d.Register("head", "repo", "Show HEAD of a local checkout", func(_ context.Context, _ Conversation, repo string) (string, error) {
			h, err := s.Checkouts.Head(repo)
			if err != nil {
				return "", err
			}
			return h.String(), nil
		})
	}
	if s.Scan != nil {
		d.Register("scan", "", "Look at all open pull requests now", func(ctx context.Context, _ Conversation, _ string) (string, error) {
			summary, err := s.Scan(ctx)
			if err != nil && summary.Pulls == 0 {
				return "", err
			}
			return fmt.Sprintf("Looked at %d pull requests in %d repositories, %d errors.", summary.Pulls, summary.Repos, summary.Errors), nil
		})
	}
}

// FormatRecord renders a build record on one line.
func FormatRecord(r *store.Record) string {
	line := fmt.Sprintf("`%s` %s %s#%d by %s: %s, %s", r.ID, r.Job, r.Repo, r.Number, r.Author, r.State().State, humanize.Time(r.Created))
	if r.Result != nil {
		line += " " + r.Result.URL
	}
	return line
}

// FormatHistory renders a build record with its state history.
func FormatHistory(r *store.Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s*\n%s\n", r.Description, r.PullRequest)
	fmt.Fprintf(&sb, "job: %s\n", r.Job)
	for _, s := range r.States {
		fmt.Fprintf(&sb, "- %s %s", s.Entered.Format("2006-01-02 15:04:05"), s.State)
		if s.Note != "" {
			fmt.Fprintf(&sb, " (%s)", s.Note)
		}
		sb.WriteString("\n")
	}
	if r.Result != nil {
		fmt.Fprintf(&sb, "build #%s: %s\n", r.Result.Number, r.Result.URL)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
