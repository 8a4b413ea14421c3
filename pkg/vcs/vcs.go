// Package vcs inspects local git checkouts of the watched repositories.
package vcs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var ErrNoCheckout = errors.New("no checkout")

// Head describes the current state of a checkout.
type Head struct {
	Repo    string
	Hash    string
	Branch  string
	Subject string
	// Tag is the most recent tag pointing at an ancestor of HEAD, if any.
	Tag string
}

func (h Head) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", h.Repo, shortHash(h.Hash))
	if h.Branch != "" {
		fmt.Fprintf(&sb, " on %s", h.Branch)
	}
	if h.Tag != "" {
		fmt.Fprintf(&sb, " (tag %s)", h.Tag)
	}
	if h.Subject != "" {
		fmt.Fprintf(&sb, " %q", h.Subject)
	}
	return sb.String()
}

// Checkouts is a directory holding one git checkout per repository, named
// after the repository.
type Checkouts struct {
	Dir string
}

// Repos lists the repositories that have a checkout.
func (c *Checkouts) Repos() ([]string, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return nil, err
	}
	var repos []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(c.Dir, e.Name(), ".git")); err == nil {
			repos = append(repos, e.Name())
		}
	}
	sort.Strings(repos)
	return repos, nil
}

// Head reports the HEAD of the checkout of repo.
func (c *Checkouts) Head(repo string) (Head, error) {
	if repo == "" || strings.ContainsAny(repo, `/\`) || repo == "." || repo == ".." {
		return Head{}, fmt.Errorf("invalid repository name: %q", repo)
	}
	path := filepath.Join(c.Dir, repo)
	r, err := git.PlainOpen(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return Head{}, fmt.Errorf("%w: %s", ErrNoCheckout, repo)
	}
	if err != nil {
		return Head{}, fmt.Errorf("failed to open %s: %w", path, err)
	}

	ref, err := r.Head()
	if err != nil {
		return Head{}, fmt.Errorf("failed to resolve HEAD of %s: %w", repo, err)
	}
	head := Head{Repo: repo, Hash: ref.Hash().String()}
	if ref.Name().IsBranch() {
		head.Branch = ref.Name().Short()
	}

	commit, err := r.CommitObject(ref.Hash())
	if err != nil {
		return Head{}, fmt.Errorf("failed to read HEAD commit of %s: %w", repo, err)
	}
	head.Subject = strings.SplitN(strings.TrimSpace(commit.Message), "\n", 2)[0]

	head.Tag, err = latestTag(r, commit)
	if err != nil {
		return Head{}, err
	}
	return head, nil
}

// latestTag walks the history from commit and returns the first tag found.
func latestTag(r *git.Repository, commit *object.Commit) (string, error) {
	tags := make(map[plumbing.Hash][]string)
	iter, err := r.Tags()
	if err != nil {
		return "", err
	}
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		hash := ref.Hash()
		// annotated tags point at a tag object.
		if tag, err := r.TagObject(hash); err == nil {
			hash = tag.Target
		}
		tags[hash] = append(tags[hash], ref.Name().Short())
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(tags) == 0 {
		return "", nil
	}

	var found string
	commits := object.NewCommitPreorderIter(commit, nil, nil)
	err = commits.ForEach(func(c *object.Commit) error {
		if names, ok := tags[c.Hash]; ok {
			sort.Strings(names)
			found = names[len(names)-1]
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return "", err
	}
	return found, nil
}

var errStop = errors.New("stop")

func shortHash(h string) string {
	if len(h) > 10 {
		return h[:10]
	}
	return h
}
