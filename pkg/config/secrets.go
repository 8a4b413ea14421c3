package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/cfengine/cf-bottom/pkg/logging"
)

// Secret variable names.
const (
	EnvGitHubToken        = "GITHUB_TOKEN"
	EnvJenkinsUser        = "JENKINS_USER"
	EnvJenkinsToken       = "JENKINS_TOKEN"
	EnvJenkinsCrumb       = "JENKINS_CRUMB"
	EnvSlackBotToken      = "SLACK_BOT_TOKEN"
	EnvSlackSigningSecret = "SLACK_SIGNING_SECRET"
	EnvSlackReadToken     = "SLACK_READ_TOKEN"
)

// LoadSecrets reads the secrets from the process environment, overlaid with
// the dotenv file at path if it exists. The file must not be readable by
// group or others.
func LoadSecrets(path string) (Secrets, error) {
	file := map[string]string{}
	switch fi, err := os.Stat(path); {
	case os.IsNotExist(err):
	case err != nil:
		return Secrets{}, err
	case fi.Mode().Perm()&0o066 != 0:
		return Secrets{}, fmt.Errorf("invalid file mode '%o' on secrets file '%s'", fi.Mode().Perm(), path)
	default:
		if file, err = godotenv.Read(path); err != nil {
			return Secrets{}, fmt.Errorf("failed to read secrets from %s: %w", path, err)
		}
		logging.S().Debugf("secrets loaded from: %s", path)
	}

	get := func(key string) string {
		if v, ok := file[key]; ok {
			return v
		}
		return os.Getenv(key)
	}
	return Secrets{
		GitHubToken:        get(EnvGitHubToken),
		JenkinsUser:        get(EnvJenkinsUser),
		JenkinsToken:       get(EnvJenkinsToken),
		JenkinsCrumb:       get(EnvJenkinsCrumb),
		SlackBotToken:      get(EnvSlackBotToken),
		SlackSigningSecret: get(EnvSlackSigningSecret),
		SlackReadToken:     get(EnvSlackReadToken),
	}, nil
}
