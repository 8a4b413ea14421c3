package trigger

import (
	"regexp"
	"strings"
)

// ConfigurationsFilter is the Jenkins parameter holding the label expression
// that selects build configurations.
const ConfigurationsFilter = "CONFIGURATIONS_FILTER"

var (
	// label: KEY=VALUE, FLAG, ...
	labelDirectiveRe = regexp.MustCompile(`(?i)label:[ \t]*([^\n]*)`)
	// label contains('x') || label == 'y'
	labelExpressionRe = regexp.MustCompile(`(?i)\b(label\s*(?:contains\s*\(|==|!=)[^\n]*)`)
)

// Directives are the build options requested in a trigger comment.
type Directives struct {
	Exotics bool
	NoTests bool
	Docs    bool

	// Params holds the settings requested through a label directive, with
	// upper-cased names.
	Params *Params
}

// ParseDirectives extracts build directives from a comment body. repo is the
// short name of the repository the comment was made in; pull requests to the
// documentation repositories always request a docs build. Unrecognized or
// malformed phrases leave the corresponding directive unset.
func ParseDirectives(body, repo string) Directives {
	lower := strings.ToLower(body)
	d := Directives{
		Exotics: strings.Contains(lower, "exotic"),
		NoTests: strings.Contains(lower, "no test"),
		Docs:    strings.Contains(lower, "docs") || strings.HasPrefix(repo, "documentation"),
		Params:  NewParams(),
	}

	if m := labelDirectiveRe.FindStringSubmatch(body); m != nil {
		parseLabel(strings.TrimSpace(m[1]), d.Params)
	} else if m := labelExpressionRe.FindStringSubmatch(body); m != nil {
		setFilter(m[1], d.Params)
	}
	return d
}

// parseLabel interprets the text after "label:". A boolean label expression
// is passed through to Jenkins as the configurations filter; anything else is
// read as a comma separated list of KEY=VALUE settings and bare flags.
func parseLabel(s string, params *Params) {
	s = strings.TrimRight(s, "; \t")
	if isLabelExpression(s) {
		setFilter(s, params)
		return
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i := strings.Index(part, "="); i >= 0 {
			key := strings.ToUpper(strings.TrimSpace(part[:i]))
			if key == "" {
				continue
			}
			params.Set(key, String(strings.TrimSpace(part[i+1:])))
			continue
		}
		params.Set(strings.ToUpper(part), String("true"))
	}
}

func setFilter(expr string, params *Params) {
	expr = strings.TrimRight(strings.TrimSpace(expr), "; \t")
	if expr == "" {
		return
	}
	params.Set(ConfigurationsFilter, String(expr))
}

func isLabelExpression(s string) bool {
	for _, op := range []string{"==", "!=", "||", "&&", "(", "'", `"`} {
		if strings.Contains(s, op) {
			return true
		}
	}
	return false
}
