package trigger

import "strconv"

// Parameter names understood by the Jenkins jobs.
const (
	ParamBuildDesc    = "BUILD_DESC"
	ParamBaseBranch   = "BASE_BRANCH"
	ParamDocsBranch   = "DOCS_BRANCH"
	ParamBranch       = "BRANCH"
	ParamRunOnExotics = "RUN_ON_EXOTICS"
	ParamNoTests      = "NO_TESTS"
)

// revisionParams names the revision parameter of every repository the
// pipeline knows about. Names must stay unique.
var revisionParams = map[string]string{
	"core":                    "CORE_REV",
	"enterprise":              "ENTERPRISE_REV",
	"nova":                    "NOVA_REV",
	"masterfiles":             "MASTERFILES_REV",
	"documentation":           "DOCS_REV",
	"documentation-generator": "DOCS_GEN_REV",
	"libntech":                "LIBNTECH_REV",
	"buildscripts":            "BUILDSCRIPTS_REV",
	"mission-portal":          "MISSION_PORTAL_REV",
	"ldap":                    "LDAP_REV",
	"mender-qa":               "MENDER_QA_REV",
}

// RevisionParam returns the Jenkins parameter carrying the pull request
// number for repo.
func RevisionParam(repo string) (string, bool) {
	name, ok := revisionParams[repo]
	return name, ok
}

// EncodeParams derives the buildWithParameters payload for job.
//
// Repositories the job does not accept are left out. Settings requested
// through a label directive never replace parameters derived here, except
// for the configurations filter. BUILD_DESC is always the last parameter.
func EncodeParams(revs *RevisionSet, job Job, d Directives, description string) *Params {
	p := NewParams()

	if d.Exotics {
		p.Set(ParamRunOnExotics, Bool(true))
	}
	if job.IsDocs() {
		p.Set(ParamDocsBranch, String("pr"))
	}
	if job.Kind == KindFastDocs {
		p.Set(ParamBranch, String("pr"))
	}
	if job.ClearFilter {
		p.Set(ConfigurationsFilter, String(""))
	}

	for _, ref := range revs.References() {
		if !job.Accepts(ref.Repo) {
			continue
		}
		name, ok := RevisionParam(ref.Repo)
		if !ok {
			continue
		}
		p.Set(name, String(strconv.Itoa(ref.Number)))
	}

	if branch, ok := job.BaseBranch(); ok {
		p.Set(ParamBaseBranch, String(branch))
	}
	if job.NoTests && job.Kind != KindFastDocs {
		p.Set(ParamNoTests, Bool(true))
	}

	if d.Params != nil {
		for _, prm := range d.Params.List() {
			if prm.Name == ParamBuildDesc {
				continue
			}
			if prm.Name == ConfigurationsFilter {
				p.Set(prm.Name, prm.Value)
				continue
			}
			p.SetDefault(prm.Name, prm.Value)
		}
	}

	p.Set(ParamBuildDesc, String(description))
	return p
}
