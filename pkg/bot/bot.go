package bot

import (
	"context"
	"errors"
	"strings"

	"github.com/cfengine/cf-bottom/pkg/github"
	"github.com/cfengine/cf-bottom/pkg/jenkins"
	"github.com/cfengine/cf-bottom/pkg/logging"
	"github.com/cfengine/cf-bottom/pkg/store"
	"github.com/cfengine/cf-bottom/pkg/trigger"
)

// Features that can be switched on in the [bot] section of the config.
const (
	FeatureTriggerJenkins = "trigger_jenkins_from_gh_comments"
	FeatureApprovePRs     = "approve_prs"
	FeatureReportOpenPRs  = "report_open_prs"
)

const DefaultAdmin = "olehermanse"

// DefaultTriggerWords are the words that make a mention trigger a build.
var DefaultTriggerWords = []string{"jenkins", "pipeline", "build", "test", "trigger", "label"}

// CodeHost is the subset of the GitHub client the bot needs.
type CodeHost interface {
	OrgRepos(ctx context.Context, org string) ([]github.Repository, error)
	Pulls(ctx context.Context, repo string) ([]github.PullRequest, error)
	Comments(ctx context.Context, pr *github.PullRequest) ([]github.Comment, error)
	Reviews(ctx context.Context, pr *github.PullRequest) ([]github.Review, error)
	PostComment(ctx context.Context, url, body string) error
	PostReview(ctx context.Context, url, body, event string) error
}

// CI is the subset of the Jenkins client the bot needs.
type CI interface {
	URL() string
	Submit(ctx context.Context, path string, params *trigger.Params) (string, error)
	WaitForBuild(ctx context.Context, location string, onState func(jenkins.PollState, int)) (jenkins.Build, error)
}

// PRLogger receives every pull request the bot looks at, when the
// report_open_prs feature is on.
type PRLogger interface {
	LogPR(pr *github.PullRequest)
}

type Options struct {
	// Username is the GitHub login of the bot.
	Username string
	// Admin is pinged when an untrusted user asks for a build.
	Admin        string
	Trusted      []string
	TriggerWords []string
	Features     []string

	Orgs []string
	// Maintainers maps full repository names to their maintainers.
	Maintainers        map[string][]string
	DefaultMaintainers []string

	Greetings     []string
	BuildCacheURL string
}

// Bot reacts to pull requests: it triggers Jenkins builds when trusted
// users ask for them, approves pull requests maintainers trust, and feeds
// open pull request reports.
type Bot struct {
	opts     Options
	github   CodeHost
	jenkins  CI
	store    *store.Store
	reports  PRLogger
	composer *trigger.Composer
}

// New returns a bot. The store and reports may be nil.
func New(opts Options, gh CodeHost, ci CI, st *store.Store, reports PRLogger) *Bot {
	if opts.Admin == "" {
		opts.Admin = DefaultAdmin
	}
	if len(opts.TriggerWords) == 0 {
		opts.TriggerWords = DefaultTriggerWords
	}
	return &Bot{
		opts:     opts,
		github:   gh,
		jenkins:  ci,
		store:    st,
		reports:  reports,
		composer: trigger.NewComposer(ci.URL(), opts.BuildCacheURL, opts.Greetings),
	}
}

// Enabled reports whether feature is switched on.
func (b *Bot) Enabled(feature string) bool {
	return contains(b.opts.Features, feature)
}

func (b *Bot) Username() string {
	return b.opts.Username
}

func (b *Bot) Store() *store.Store {
	return b.store
}

// comment posts body on the pull request. Passive clients only log.
func (b *Bot) comment(ctx context.Context, pr *github.PullRequest, body string) error {
	err := b.github.PostComment(ctx, pr.CommentsURL, body)
	if errors.Is(err, github.ErrPassive) {
		return nil
	}
	if err != nil {
		return err
	}
	logging.S().Infow("commented", "pr", pr.String(), "body", body)
	return nil
}

func (b *Bot) trusted(user string) bool {
	return contains(b.opts.Trusted, user)
}

func (b *Bot) maintainers(repo string) []string {
	if m, ok := b.opts.Maintainers[repo]; ok {
		return m
	}
	return b.opts.DefaultMaintainers
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsWord(body string, words []string) bool {
	body = strings.ToLower(body)
	for _, w := range words {
		if strings.Contains(body, strings.ToLower(w)) {
			return true
		}
	}
	return false
}
