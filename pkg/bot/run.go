package bot

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/cfengine/cf-bottom/pkg/github"
	"github.com/cfengine/cf-bottom/pkg/logging"
)

// Summary describes one pass over all watched repositories.
type Summary struct {
	Repos  int `json:"repos"`
	Pulls  int `json:"pulls"`
	Errors int `json:"errors"`
}

// HandlePR runs every enabled feature on one pull request.
func (b *Bot) HandlePR(ctx context.Context, pr *github.PullRequest) error {
	logging.S().Infow("looking at pull request", "title", pr.Title, "url", pr.HTMLURL)

	var merr *multierror.Error
	if b.Enabled(FeatureApprovePRs) {
		merr = multierror.Append(merr, b.Review(ctx, pr))
	}
	if b.Enabled(FeatureTriggerJenkins) {
		merr = multierror.Append(merr, b.HandleComments(ctx, pr))
	}
	if b.Enabled(FeatureReportOpenPRs) && b.reports != nil {
		b.reports.LogPR(pr)
	}
	return merr.ErrorOrNil()
}

// Repos returns the full names of all watched repositories: those of the
// configured organizations followed by those with configured maintainers.
func (b *Bot) Repos(ctx context.Context) ([]string, error) {
	var repos []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			repos = append(repos, name)
		}
	}
	for _, org := range b.opts.Orgs {
		rs, err := b.github.OrgRepos(ctx, org)
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories of %s: %w", org, err)
		}
		for _, r := range rs {
			add(r.FullName)
		}
	}
	var extra []string
	for repo := range b.opts.Maintainers {
		extra = append(extra, repo)
	}
	sort.Strings(extra)
	for _, repo := range extra {
		add(repo)
	}
	return repos, nil
}

// Run fetches the open pull requests of every watched repository and
// handles them one by one. Failures on single pull requests do not stop the
// pass; they are collected in the returned error.
func (b *Bot) Run(ctx context.Context) (Summary, error) {
	repos, err := b.Repos(ctx)
	if err != nil {
		return Summary{}, err
	}

	pulls := make([][]github.PullRequest, len(repos))
	g, gctx := errgroup.WithContext(ctx)
	for i, repo := range repos {
		i, repo := i, repo
		g.Go(func() error {
			logging.S().Debugw("fetching pull requests", "repo", repo)
			ps, err := b.github.Pulls(gctx, repo)
			if err != nil {
				return fmt.Errorf("failed to fetch pull requests of %s: %w", repo, err)
			}
			pulls[i] = ps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{Repos: len(repos)}, err
	}

	var all []github.PullRequest
	for _, ps := range pulls {
		all = append(all, ps...)
	}
	summary := Summary{Repos: len(repos), Pulls: len(all)}
	if len(all) == 0 {
		logging.S().Warnw("could not find any open pull requests", "repos", len(repos))
	} else {
		logging.S().Infow("found open pull requests", "count", len(all))
	}

	var merr *multierror.Error
	for i := range all {
		if err := ctx.Err(); err != nil {
			merr = multierror.Append(merr, err)
			break
		}
		if err := b.HandlePR(ctx, &all[i]); err != nil {
			logging.S().Errorw("failed to handle pull request", "pr", all[i].String(), "err", err)
			merr = multierror.Append(merr, err)
			summary.Errors++
		}
	}

	if summary.Errors == 0 {
		logging.S().Infow("pass successful", "repos", summary.Repos, "pulls", summary.Pulls)
	} else {
		logging.S().Errorw("pass encountered errors", "errors", summary.Errors)
	}
	return summary, merr.ErrorOrNil()
}
