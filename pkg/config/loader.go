package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/imdario/mergo"

	"github.com/cfengine/cf-bottom/pkg/logging"
)

const (
	EnvHomeDir = "CFBOTTOM_HOME"
	// EnvPassive set to "PASSIVE" makes the bot log instead of posting.
	EnvPassive = "TOM"

	DefaultListenAddr = "localhost:8042"
	DefaultSchedule   = "@every 5m"
)

var validate = validator.New()

// Defaults are the fallbacks merged into every loaded configuration.
func Defaults() EnvConfig {
	return EnvConfig{
		Bot: BotConfig{
			Username: "cf-bottom",
			Admin:    "olehermanse",
		},
		GitHub: GitHubConfig{
			APIURL:    "https://api.github.com",
			CacheSize: 512,
		},
		Jenkins: JenkinsConfig{
			URL:           "https://ci.cfengine.com/",
			BuildCacheURL: "http://buildcache.cfengine.com",
			PollInterval:  Duration{time.Second},
		},
		Daemon: DaemonConfig{
			Listen:     DefaultListenAddr,
			Schedule:   DefaultSchedule,
			MaxRecords: 500,
		},
		Reports: ReportsConfig{
			Format:  "json",
			AgeDays: 14,
			Limit:   10,
		},
	}
}

// Load reads the configuration from the home directory, merges the
// defaults, loads secrets and validates the result.
func (e *EnvConfig) Load() error {
	// calculate home directory; use env var, or fall back to $HOME/cf-bottom
	// otherwise.
	var home string
	if v, ok := os.LookupEnv(EnvHomeDir); ok {
		home = v
	} else {
		v, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to obtain user home dir: %w", err)
		}
		home = filepath.Join(v, "cf-bottom")
	}

	switch fi, err := os.Stat(home); {
	case os.IsNotExist(err):
		logging.S().Infof("creating home directory at %s", home)
		if err := os.MkdirAll(home, 0o700); err != nil {
			return fmt.Errorf("failed to create home directory at %s: %w", home, err)
		}
	case err != nil:
		return fmt.Errorf("failed to stat home directory %s: %w", home, err)
	case !fi.IsDir():
		return fmt.Errorf("home path is not a directory %s", home)
	default:
		logging.S().Debugf("using home directory: %s", home)
	}

	e.dirs = Directories{home}
	for _, d := range []string{e.dirs.Store(), e.dirs.Reports()} {
		if err := ensureDir(d); err != nil {
			return fmt.Errorf("failed to check/create directory %s: %w", d, err)
		}
	}

	// parse the .env.toml file, if it exists.
	f := filepath.Join(home, ".env.toml")
	if _, err := os.Stat(f); err == nil {
		if _, err = toml.DecodeFile(f, e); err != nil {
			return fmt.Errorf("found .env.toml at %s, but failed to parse: %w", f, err)
		}
		logging.S().Infof(".env.toml loaded from: %s", f)
	} else {
		logging.S().Infof("no .env.toml found at %s; running with defaults", f)
	}

	if err := e.applyDefaults(); err != nil {
		return err
	}

	secrets, err := LoadSecrets(filepath.Join(home, ".env"))
	if err != nil {
		return err
	}
	e.Secrets = secrets
	e.Passive = e.Passive || os.Getenv(EnvPassive) == "PASSIVE"

	return e.Validate()
}

func (e *EnvConfig) applyDefaults() error {
	if err := mergo.Merge(e, Defaults()); err != nil {
		return fmt.Errorf("failed to apply config defaults: %w", err)
	}
	if e.Reports.Dir == "" {
		e.Reports.Dir = e.dirs.Reports()
	}
	if e.Git.Checkouts == "" {
		e.Git.Checkouts = e.dirs.Checkouts()
	}
	return nil
}

// Validate checks the configuration against its struct tags.
func (e *EnvConfig) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ensureDir checks whether the specified path is a directory, and if not it
// attempts to create it.
func ensureDir(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return os.MkdirAll(path, 0o700)
	}
	if !fi.IsDir() {
		return fmt.Errorf("path %s exists, and it is not a directory", path)
	}
	return nil
}
