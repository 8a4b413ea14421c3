package trigger

import (
	"fmt"
	"strings"
)

// JobKind classifies the Jenkins jobs the bot can trigger.
type JobKind int

const (
	// KindPipeline is the regular pull request pipeline.
	KindPipeline JobKind = iota
	// KindDocs builds packages and deploys documentation.
	KindDocs
	// KindFastDocs only rebuilds the documentation.
	KindFastDocs
)

func (k JobKind) String() string {
	return [...]string{
		"pipeline",
		"docs",
		"fast-docs",
	}[k]
}

const (
	PipelineJob       = "pr-pipeline"
	docsJobPrefix     = "build-and-deploy-docs-"
	fastDocsJobPrefix = "fast-build-and-deploy-docs-"
)

// slowRepos need a full package build before docs can be generated.
var slowRepos = []string{"core", "enterprise", "nova", "masterfiles"}

var (
	fastDocsRepos = []string{
		"documentation",
		"documentation-generator",
	}
	pipelineRepos = []string{
		"core",
		"enterprise",
		"nova",
		"masterfiles",
		"documentation",
		"documentation-generator",
		"libntech",
		"buildscripts",
		"mission-portal",
		"ldap",
		"mender-qa",
	}
)

// Job is the Jenkins job selected for a trigger event.
type Job struct {
	Name string
	Kind JobKind
	// Branch is the base branch as given by the pull request.
	Branch string
	// NoTests is the effective no-tests flag once job selection rules have
	// been applied to the requested one.
	NoTests bool
	// ClearFilter forces an empty configurations filter so that every default
	// configuration is built.
	ClearFilter bool
}

// SelectJob decides which job to trigger for the revision set.
func SelectJob(revs *RevisionSet, d Directives, branch string) Job {
	job := Job{
		Name:    PipelineJob,
		Kind:    KindPipeline,
		Branch:  branch,
		NoTests: d.NoTests,
	}
	switch {
	case d.Docs && revs.HasAny(slowRepos...):
		job.Name = docsJobPrefix + branch
		job.Kind = KindDocs
		job.NoTests = true
	case d.Docs:
		job.Name = fastDocsJobPrefix + branch
		job.Kind = KindFastDocs
	case revs.Has("documentation"):
		job.Name = docsJobPrefix + branch
		job.Kind = KindDocs
		job.NoTests = false
		job.ClearFilter = true
	}
	return job
}

// Path returns the buildWithParameters endpoint of the job on the Jenkins
// instance at baseURL. baseURL is expected to end with a slash.
func (j Job) Path(baseURL string) string {
	return fmt.Sprintf("%sjob/%s/buildWithParameters/api/json", baseURL, j.Name)
}

// IsDocs reports whether the job deploys documentation.
func (j Job) IsDocs() bool {
	return j.Kind == KindDocs || j.Kind == KindFastDocs
}

// BaseBranch returns the BASE_BRANCH value for the job, and false for jobs
// that do not take one.
func (j Job) BaseBranch() (string, bool) {
	if j.Kind == KindFastDocs {
		return "", false
	}
	return NormalizeBranch(j.Branch), true
}

// Accepts reports whether the job takes a revision parameter for repo.
func (j Job) Accepts(repo string) bool {
	accepted := pipelineRepos
	if j.Kind == KindFastDocs {
		accepted = fastDocsRepos
	}
	for _, r := range accepted {
		if r == repo {
			return true
		}
	}
	return false
}

// NormalizeBranch appends ".x" to release branch names. The documentation
// repository uses plain version branches ("3.18") while the rest of the
// pipeline expects "3.18.x".
func NormalizeBranch(branch string) string {
	if branch == "master" || strings.HasSuffix(branch, ".x") {
		return branch
	}
	return branch + ".x"
}
