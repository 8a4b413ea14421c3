package trigger

import (
	"fmt"
	"strings"
)

// Describe composes the BUILD_DESC text shown in Jenkins, e.g.
//
//	Fix leak @alice (core#42 nova#43 3.15.x) - WITH EXOTICS [NO TESTS]
func Describe(title, user string, revs *RevisionSet, job Job, d Directives) string {
	var desc string
	if title == "" {
		desc = fmt.Sprintf("Unnamed build (%s)", user)
	} else {
		tokens := make([]string, 0, revs.Len()+1)
		for _, ref := range describeOrder(revs, job) {
			tokens = append(tokens, ref.String())
		}
		tokens = append(tokens, job.Branch)
		desc = fmt.Sprintf("%s @%s (%s)", title, user, strings.Join(tokens, " "))
	}

	if d.Exotics {
		desc += " - WITH EXOTICS"
	}
	// Keyed to what the job will do, not to what the comment asked for.
	if job.NoTests && job.Kind != KindFastDocs {
		desc += " [NO TESTS]"
	}
	return desc
}

// describeOrder lists documentation first for docs jobs triggered from the
// documentation repository, and keeps the set order otherwise.
func describeOrder(revs *RevisionSet, job Job) []Reference {
	refs := revs.References()
	if !job.IsDocs() || revs.Primary() != "documentation" {
		return refs
	}
	out := make([]Reference, 0, len(refs))
	for _, ref := range refs {
		if ref.Repo == "documentation" {
			out = append(out, ref)
		}
	}
	for _, ref := range refs {
		if ref.Repo != "documentation" {
			out = append(out, ref)
		}
	}
	return out
}

// BadgeText is the note shown under the build badge in the status comment.
// It reflects what the comment asked for, not what the job selection made
// of it.
func BadgeText(d Directives) string {
	var text string
	if d.Exotics {
		text = "(with exotics)"
	}
	if d.NoTests {
		text += " [NO TESTS]"
	}
	return text
}
