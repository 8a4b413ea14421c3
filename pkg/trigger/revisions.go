package trigger

import (
	"fmt"
	"strings"
)

// Reference points at a pull request in another repository that has to be
// built together with the primary one.
type Reference struct {
	Repo   string
	Number int
}

func (r Reference) String() string {
	return fmt.Sprintf("%s#%d", r.Repo, r.Number)
}

// RevisionSet maps repository short names to pull request numbers. Keys are
// unique and keep the order in which they were added; the first key is the
// primary pull request.
type RevisionSet struct {
	repos []string
	revs  map[string]int
}

// NewRevisionSet builds the set for a primary pull request and the pull
// requests it must be merged with. A merge-with entry never replaces a
// repository that is already present.
func NewRevisionSet(repo string, number int, mergeWith ...Reference) *RevisionSet {
	s := &RevisionSet{revs: make(map[string]int)}
	s.Add(repo, number)
	for _, ref := range mergeWith {
		s.Add(ref.Repo, ref.Number)
	}
	return s
}

// Add inserts repo unless it is already present, and reports whether it did.
func (s *RevisionSet) Add(repo string, number int) bool {
	if _, ok := s.revs[repo]; ok {
		return false
	}
	s.revs[repo] = number
	s.repos = append(s.repos, repo)
	return true
}

func (s *RevisionSet) Get(repo string) (int, bool) {
	n, ok := s.revs[repo]
	return n, ok
}

func (s *RevisionSet) Has(repo string) bool {
	_, ok := s.revs[repo]
	return ok
}

// HasAny reports whether any of repos is in the set.
func (s *RevisionSet) HasAny(repos ...string) bool {
	for _, r := range repos {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// Primary returns the repository of the triggering pull request.
func (s *RevisionSet) Primary() string {
	if len(s.repos) == 0 {
		return ""
	}
	return s.repos[0]
}

// Repos returns the repository names in insertion order.
func (s *RevisionSet) Repos() []string {
	out := make([]string, len(s.repos))
	copy(out, s.repos)
	return out
}

func (s *RevisionSet) Len() int {
	return len(s.repos)
}

// References returns the set as an ordered list of references.
func (s *RevisionSet) References() []Reference {
	out := make([]Reference, 0, len(s.repos))
	for _, r := range s.repos {
		out = append(out, Reference{Repo: r, Number: s.revs[r]})
	}
	return out
}

func (s *RevisionSet) String() string {
	refs := s.References()
	parts := make([]string, 0, len(refs))
	for _, ref := range refs {
		parts = append(parts, ref.String())
	}
	return strings.Join(parts, " ")
}
