package trigger

// Request carries everything known about a trigger event.
type Request struct {
	// Repo is the short name of the repository of the pull request.
	Repo   string
	Number int
	// MergeWith lists pull requests in other repositories to build along.
	MergeWith []Reference
	Branch    string
	Title     string
	// Author is the login of whoever wrote the trigger comment.
	Author  string
	Comment string
}

// Plan is the fully derived build: what to trigger and what to report.
type Plan struct {
	Revisions   *RevisionSet
	Directives  Directives
	Job         Job
	Path        string
	Params      *Params
	Description string
	BadgeText   string
}

// Derive computes the build plan for a trigger event against the Jenkins
// instance at jenkinsURL. It has no side effects.
func Derive(jenkinsURL string, req Request) Plan {
	revs := NewRevisionSet(req.Repo, req.Number, req.MergeWith...)
	d := ParseDirectives(req.Comment, req.Repo)
	job := SelectJob(revs, d, req.Branch)
	desc := Describe(req.Title, req.Author, revs, job, d)

	return Plan{
		Revisions:   revs,
		Directives:  d,
		Job:         job,
		Path:        job.Path(jenkinsURL),
		Params:      EncodeParams(revs, job, d, desc),
		Description: desc,
		BadgeText:   BadgeText(d),
	}
}
