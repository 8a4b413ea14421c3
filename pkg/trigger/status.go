package trigger

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
)

const DefaultBuildCacheURL = "http://buildcache.cfengine.com"

// DefaultGreetings open the status comment when none are configured.
var DefaultGreetings = []string{"Alright", "Sure"}

// Composer renders the comment posted on a pull request once Jenkins has
// assigned a build number.
type Composer struct {
	// JenkinsURL is the base URL of the Jenkins instance, used verbatim as a
	// prefix (including its trailing slash).
	JenkinsURL    string
	BuildCacheURL string
	Greetings     []string
}

func NewComposer(jenkinsURL, buildCacheURL string, greetings []string) *Composer {
	if buildCacheURL == "" {
		buildCacheURL = DefaultBuildCacheURL
	}
	if len(greetings) == 0 {
		greetings = DefaultGreetings
	}
	return &Composer{
		JenkinsURL:    jenkinsURL,
		BuildCacheURL: strings.TrimSuffix(buildCacheURL, "/"),
		Greetings:     greetings,
	}
}

// Greeting picks one of the configured greetings.
func (c *Composer) Greeting() string {
	if len(c.Greetings) == 0 {
		return DefaultGreetings[0]
	}
	return c.Greetings[rand.Intn(len(c.Greetings))]
}

// JobName extracts the job name from the URL of build number on the
// configured Jenkins instance.
func (c *Composer) JobName(number, buildURL string) (string, error) {
	re, err := regexp.Compile("^" + regexp.QuoteMeta(c.JenkinsURL) + `job/([-a-z0-9.]+)/` + regexp.QuoteMeta(number))
	if err != nil {
		return "", err
	}
	m := re.FindStringSubmatch(buildURL)
	if m == nil {
		return "", fmt.Errorf("build url %s does not match %s", buildURL, re)
	}
	return m[1], nil
}

// StatusComment renders the build badge comment for build number at
// buildURL. badgeText, when not empty, is shown under the badge.
func (c *Composer) StatusComment(number, buildURL, badgeText string) (string, error) {
	job, err := c.JobName(number, buildURL)
	if err != nil {
		return "", err
	}

	icon := fmt.Sprintf("%s/buildStatus/icon?job=%s&build=%s", c.JenkinsURL, job, number)
	link := fmt.Sprintf("%s/job/%s/%s/", c.JenkinsURL, job, number)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s, I triggered a build:\n\n", c.Greeting())
	fmt.Fprintf(&sb, "[![Build Status](%s)](%s)", icon, link)
	if badgeText != "" {
		sb.WriteString("\n\n" + badgeText)
	}
	fmt.Fprintf(&sb, "\n\n**Jenkins:** %s", buildURL)

	if !strings.Contains(job, "fast-build-and-deploy-docs") {
		fmt.Fprintf(&sb, "\n\n**Packages:** %s/packages/testing-pr/jenkins-%s-%s/", c.BuildCacheURL, job, number)
	}
	if strings.Contains(job, "build-and-deploy-docs") {
		fmt.Fprintf(&sb, "\n\n**Documentation:** %s/packages/build-documentation-pr/jenkins-%s-%s/output/_site/", c.BuildCacheURL, job, number)
	}
	return sb.String(), nil
}
