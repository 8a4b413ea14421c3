package config

import (
	"time"
)

// EnvConfig contains the environment configuration. It is populated by
// coalescing values from these sources, in descending order of precedence:
//
//  1. $CFBOTTOM_HOME/.env.toml.
//  2. default fallbacks.
//
// Secrets never live in .env.toml; they are read from the process
// environment and the optional $CFBOTTOM_HOME/.env file.
type EnvConfig struct {
	dirs Directories

	Bot     BotConfig     `toml:"bot"`
	GitHub  GitHubConfig  `toml:"github"`
	Jenkins JenkinsConfig `toml:"jenkins"`
	Slack   SlackConfig   `toml:"slack"`
	Daemon  DaemonConfig  `toml:"daemon"`
	Reports ReportsConfig `toml:"reports"`
	Git     GitConfig     `toml:"git"`

	Secrets Secrets `toml:"-"`
	// Passive makes every client log what it would post instead of posting.
	Passive bool `toml:"-"`
}

func (e EnvConfig) Dirs() Directories {
	return e.dirs
}

type BotConfig struct {
	Username     string   `toml:"username" validate:"required"`
	Admin        string   `toml:"admin"`
	Orgs         []string `toml:"orgs"`
	Trusted      []string `toml:"trusted"`
	TriggerWords []string `toml:"trigger_words"`
	Features     []string `toml:"features" validate:"dive,oneof=trigger_jenkins_from_gh_comments approve_prs report_open_prs"`
	Greetings    []string `toml:"greetings"`
	// Maintainers maps full repository names to their maintainers. These
	// repositories are watched in addition to those of Orgs.
	Maintainers        map[string][]string `toml:"maintainers"`
	DefaultMaintainers []string            `toml:"reviewers"`
}

type GitHubConfig struct {
	APIURL    string `toml:"api_url" validate:"required,url"`
	CacheSize int    `toml:"cache_size" validate:"gte=0"`
}

type JenkinsConfig struct {
	URL           string   `toml:"url" validate:"required,url"`
	BuildCacheURL string   `toml:"buildcache_url" validate:"omitempty,url"`
	PollInterval  Duration `toml:"poll_interval"`
	MaxAttempts   int      `toml:"max_attempts" validate:"gte=0"`
	Timeout       Duration `toml:"timeout"`
}

type SlackConfig struct {
	APIURL string `toml:"api_url" validate:"omitempty,url"`
}

type DaemonConfig struct {
	Listen     string `toml:"listen" validate:"required"`
	Schedule   string `toml:"schedule"`
	MaxRecords int    `toml:"max_records" validate:"gte=0"`
}

type ReportsConfig struct {
	Dir     string `toml:"dir"`
	Format  string `toml:"format" validate:"omitempty,oneof=json yaml"`
	AgeDays int    `toml:"age_days" validate:"gte=0"`
	Limit   int    `toml:"limit" validate:"gte=0"`
}

type GitConfig struct {
	// Checkouts is a directory with one checkout per repository.
	Checkouts string `toml:"checkouts"`
}

// Secrets are the credentials of the bot.
type Secrets struct {
	GitHubToken        string
	JenkinsUser        string
	JenkinsToken       string
	JenkinsCrumb       string
	SlackBotToken      string
	SlackSigningSecret string
	SlackReadToken     string
}

// Duration is a time.Duration that decodes from strings such as "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
