package reports

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/cfengine/cf-bottom/pkg/github"
	"github.com/cfengine/cf-bottom/pkg/logging"
)

const (
	DefaultAgeDays          = 14
	DefaultLimit            = 10
	DefaultDependabotPrefix = "dependabot"
)

// Report file names, without extension.
const (
	OpenPRs       = "open_prs"
	AgedPRs       = "aged_prs"
	DependabotPRs = "dependabot_prs"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// PR is one pull request entry of a report.
type PR struct {
	URL     string    `json:"url" yaml:"url"`
	Title   string    `json:"title" yaml:"title"`
	Created time.Time `json:"created" yaml:"created"`
	Author  string    `json:"author" yaml:"author"`
}

// List is the content of a report file.
type List struct {
	Count   int  `json:"count" yaml:"count"`
	OpenPRs []PR `json:"open_prs" yaml:"open_prs"`
}

type Options struct {
	// AgeDays is the age after which a pull request counts as aged.
	AgeDays int
	// Limit truncates every list.
	Limit            int
	DependabotPrefix string
	Format           Format
}

// Collector gathers the pull requests seen during a pass and sorts them
// into the open, aged and dependabot reports.
type Collector struct {
	sync.Mutex
	opts Options
	prs  []PR

	// now is overridden in tests.
	now func() time.Time
}

func NewCollector(opts Options) *Collector {
	if opts.AgeDays <= 0 {
		opts.AgeDays = DefaultAgeDays
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.DependabotPrefix == "" {
		opts.DependabotPrefix = DefaultDependabotPrefix
	}
	if opts.Format == "" {
		opts.Format = FormatJSON
	}
	return &Collector{opts: opts, now: time.Now}
}

// LogPR adds a pull request to the collection.
func (c *Collector) LogPR(pr *github.PullRequest) {
	c.Lock()
	defer c.Unlock()
	c.prs = append(c.prs, PR{
		URL:     pr.HTMLURL,
		Title:   pr.Title,
		Created: pr.CreatedAt,
		Author:  pr.Author(),
	})
}

// Reset forgets every collected pull request.
func (c *Collector) Reset() {
	c.Lock()
	defer c.Unlock()
	c.prs = nil
}

func (c *Collector) Len() int {
	c.Lock()
	defer c.Unlock()
	return len(c.prs)
}

// Lists returns the three reports, keyed by file name. Aged pull requests
// are those older than the configured age; dependabot pull requests are the
// aged ones opened by dependabot.
func (c *Collector) Lists() map[string]List {
	c.Lock()
	defer c.Unlock()

	var open, aged, dependabot []PR
	cutoff := c.now().Add(-time.Duration(c.opts.AgeDays) * 24 * time.Hour)
	for _, pr := range c.prs {
		open = append(open, pr)
		if pr.Created.After(cutoff) {
			continue
		}
		aged = append(aged, pr)
		if strings.HasPrefix(pr.Author, c.opts.DependabotPrefix) {
			dependabot = append(dependabot, pr)
		}
	}
	return map[string]List{
		OpenPRs:       c.truncate(open),
		AgedPRs:       c.truncate(aged),
		DependabotPRs: c.truncate(dependabot),
	}
}

func (c *Collector) truncate(prs []PR) List {
	if len(prs) > c.opts.Limit {
		prs = prs[:c.opts.Limit]
	}
	if prs == nil {
		prs = []PR{}
	}
	return List{Count: len(prs), OpenPRs: prs}
}

// Summary is a one line, human readable account of the collection.
func (c *Collector) Summary() string {
	lists := c.Lists()

	c.Lock()
	total := len(c.prs)
	var oldest time.Time
	for _, pr := range c.prs {
		if oldest.IsZero() || pr.Created.Before(oldest) {
			oldest = pr.Created
		}
	}
	c.Unlock()

	if total == 0 {
		return "No open pull requests."
	}
	return fmt.Sprintf("%d open pull requests, %d older than %d days (%d by dependabot), oldest opened %s.",
		total,
		lists[AgedPRs].Count,
		c.opts.AgeDays,
		lists[DependabotPRs].Count,
		humanize.RelTime(oldest, c.now(), "ago", "from now"))
}

// Dump writes the reports into dir. Nothing is written when no pull
// requests were collected.
func (c *Collector) Dump(dir string) error {
	if c.Len() == 0 {
		logging.S().Debugw("no pull requests collected, skipping reports")
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create reports directory %s: %w", dir, err)
	}
	for name, list := range c.Lists() {
		data, err := Encode(list, c.opts.Format)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, name+"."+string(c.opts.Format))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write report %s: %w", path, err)
		}
		logging.S().Infow("wrote report", "path", path, "count", list.Count)
	}
	return nil
}

// Encode renders a list in the given format.
func Encode(list List, format Format) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return json.MarshalIndent(list, "", "  ")
	case FormatYAML:
		return yaml.Marshal(list)
	default:
		return nil, fmt.Errorf("unknown report format: %s", format)
	}
}
