package cmd

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"

	"github.com/cfengine/cf-bottom/pkg/bot"
	"github.com/cfengine/cf-bottom/pkg/config"
	"github.com/cfengine/cf-bottom/pkg/daemon"
	"github.com/cfengine/cf-bottom/pkg/daemon/client"
	"github.com/cfengine/cf-bottom/pkg/github"
	"github.com/cfengine/cf-bottom/pkg/jenkins"
	"github.com/cfengine/cf-bottom/pkg/logging"
	"github.com/cfengine/cf-bottom/pkg/reports"
	"github.com/cfengine/cf-bottom/pkg/store"
)

func loadConfig(c *cli.Context) (*config.EnvConfig, error) {
	cfg := &config.EnvConfig{}
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	if c.Bool("passive") {
		cfg.Passive = true
	}
	if cfg.Passive {
		logging.S().Infow("running in passive mode, nothing will be posted")
	}
	return cfg, nil
}

func setupClient(c *cli.Context) (*client.Client, *config.EnvConfig, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	endpoint := c.String("endpoint")
	if endpoint == "" {
		endpoint = cfg.Daemon.Listen
	}
	return client.New(endpoint), cfg, nil
}

func openStore(cfg *config.EnvConfig) (*store.Store, error) {
	st, err := store.Open(cfg.Dirs().Store(), cfg.Daemon.MaxRecords)
	if err != nil {
		return nil, fmt.Errorf("failed to open build records at %s (is the daemon running?): %w", cfg.Dirs().Store(), err)
	}
	return st, nil
}

func newJenkins(cfg *config.EnvConfig) *jenkins.Client {
	return jenkins.New(jenkins.Options{
		URL:          cfg.Jenkins.URL,
		User:         cfg.Secrets.JenkinsUser,
		Token:        cfg.Secrets.JenkinsToken,
		Crumb:        cfg.Secrets.JenkinsCrumb,
		Passive:      cfg.Passive,
		PollInterval: cfg.Jenkins.PollInterval.Duration,
		MaxAttempts:  cfg.Jenkins.MaxAttempts,
		PollTimeout:  cfg.Jenkins.Timeout.Duration,
	})
}

func newCollector(cfg *config.EnvConfig) *reports.Collector {
	return reports.NewCollector(reports.Options{
		AgeDays: cfg.Reports.AgeDays,
		Limit:   cfg.Reports.Limit,
		Format:  reports.Format(cfg.Reports.Format),
	})
}

func botOptions(cfg *config.EnvConfig) bot.Options {
	return bot.Options{
		Username:           cfg.Bot.Username,
		Admin:              cfg.Bot.Admin,
		Trusted:            cfg.Bot.Trusted,
		TriggerWords:       cfg.Bot.TriggerWords,
		Features:           cfg.Bot.Features,
		Orgs:               cfg.Bot.Orgs,
		Maintainers:        cfg.Bot.Maintainers,
		DefaultMaintainers: cfg.Bot.DefaultMaintainers,
		Greetings:          cfg.Bot.Greetings,
		BuildCacheURL:      cfg.Jenkins.BuildCacheURL,
	}
}

// newScanFunc returns the pass shared by the run and daemon commands. Each
// pass gets a fresh GitHub client, so that cached responses never outlive
// it, and ends with the open pull request reports being written.
func newScanFunc(cfg *config.EnvConfig, st *store.Store, ci *jenkins.Client, col *reports.Collector) daemon.ScanFunc {
	return func(ctx context.Context) (bot.Summary, error) {
		gh, err := github.New(github.Options{
			APIURL:    cfg.GitHub.APIURL,
			Token:     cfg.Secrets.GitHubToken,
			UserAgent: cfg.Bot.Username,
			CacheSize: cfg.GitHub.CacheSize,
			Passive:   cfg.Passive,
		})
		if err != nil {
			return bot.Summary{}, err
		}

		col.Reset()
		b := bot.New(botOptions(cfg), gh, ci, st, col)
		summary, err := b.Run(ctx)

		if b.Enabled(bot.FeatureReportOpenPRs) {
			if derr := col.Dump(cfg.Reports.Dir); derr != nil {
				err = multierror.Append(err, fmt.Errorf("failed to write reports: %w", derr))
			}
		}
		return summary, err
	}
}
