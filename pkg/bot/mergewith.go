package bot

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	giturls "github.com/whilp/git-urls"

	"github.com/cfengine/cf-bottom/pkg/trigger"
)

var (
	pullURLRe   = regexp.MustCompile(`https?://github\.com/[^\s)\]]+/pull/\d+`)
	shorthandRe = regexp.MustCompile(`(?:^|[\s(,])[A-Za-z0-9_.-]+/([A-Za-z0-9_.-]+)#(\d+)\b`)
)

// MergeWith finds the pull requests that should be built together with a
// pull request in repo. Texts are scanned in order for pull request URLs
// and owner/repo#N references; the first reference to a repository wins
// and references to repo itself are ignored.
func MergeWith(repo string, texts ...string) []trigger.Reference {
	seen := map[string]bool{repo: true}
	var refs []trigger.Reference
	add := func(r string, n int) {
		if seen[r] {
			return
		}
		seen[r] = true
		refs = append(refs, trigger.Reference{Repo: r, Number: n})
	}

	for _, text := range texts {
		type match struct {
			pos  int
			repo string
			n    int
		}
		var matches []match
		for _, loc := range pullURLRe.FindAllStringIndex(text, -1) {
			if r, n, ok := parsePullURL(text[loc[0]:loc[1]]); ok {
				matches = append(matches, match{loc[0], r, n})
			}
		}
		for _, m := range shorthandRe.FindAllStringSubmatchIndex(text, -1) {
			n, err := strconv.Atoi(text[m[4]:m[5]])
			if err != nil {
				continue
			}
			matches = append(matches, match{m[0], text[m[2]:m[3]], n})
		}
		sort.SliceStable(matches, func(i, j int) bool { return matches[i].pos < matches[j].pos })
		for _, m := range matches {
			add(m.repo, m.n)
		}
	}
	return refs
}

// parsePullURL extracts the repository name and number from a pull request
// URL such as https://github.com/cfengine/nova/pull/12.
func parsePullURL(raw string) (string, int, bool) {
	u, err := giturls.Parse(raw)
	if err != nil {
		return "", 0, false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 4 || parts[2] != "pull" {
		return "", 0, false
	}
	n, err := strconv.Atoi(parts[3])
	if err != nil {
		return "", 0, false
	}
	return parts[1], n, true
}
