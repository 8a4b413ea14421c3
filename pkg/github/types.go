package github

import (
	"strings"
	"time"
)

type User struct {
	Login string `json:"login"`
}

type Label struct {
	Name string `json:"name"`
}

type Repository struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	URL      string `json:"url"`
	Archived bool   `json:"archived"`
}

type Ref struct {
	Ref  string     `json:"ref"`
	User User       `json:"user"`
	Repo Repository `json:"repo"`
}

// PullRequest is the subset of the GitHub pull request object used by the
// bot.
type PullRequest struct {
	Number      int       `json:"number"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	URL         string    `json:"url"`
	HTMLURL     string    `json:"html_url"`
	CommentsURL string    `json:"comments_url"`
	User        User      `json:"user"`
	Base        Ref       `json:"base"`
	Labels      []Label   `json:"labels"`
	Draft       bool      `json:"draft"`
	CreatedAt   time.Time `json:"created_at"`

	RequestedReviewers []User `json:"requested_reviewers"`
}

// Author is the login of whoever opened the pull request.
func (pr *PullRequest) Author() string {
	return pr.User.Login
}

// Repo is the full name of the base repository, e.g. "cfengine/core".
func (pr *PullRequest) Repo() string {
	return pr.Base.Repo.FullName
}

// ShortRepo is the base repository name without its owner, e.g. "core".
func (pr *PullRequest) ShortRepo() string {
	return pr.Base.Repo.Name
}

func (pr *PullRequest) BaseBranch() string {
	return pr.Base.Ref
}

// ReviewsURL is where reviews of the pull request are listed and posted.
func (pr *PullRequest) ReviewsURL() string {
	return pr.URL + "/reviews"
}

// HasLabel reports whether the pull request carries label, ignoring case.
func (pr *PullRequest) HasLabel(label string) bool {
	for _, l := range pr.Labels {
		if strings.EqualFold(l.Name, label) {
			return true
		}
	}
	return false
}

func (pr *PullRequest) String() string {
	return pr.Title + " (" + pr.HTMLURL + ")"
}

// Comment is an issue comment on a pull request.
type Comment struct {
	ID        int64     `json:"id"`
	Body      string    `json:"body"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Comment) Author() string {
	return c.User.Login
}

// Mentions reports whether the comment mentions login.
func (c *Comment) Mentions(login string) bool {
	return strings.Contains(c.Body, "@"+login)
}

// Review states reported by GitHub.
const (
	ReviewApproved         = "APPROVED"
	ReviewChangesRequested = "CHANGES_REQUESTED"
	ReviewCommented        = "COMMENTED"
)

// Review events accepted when posting a review.
const (
	EventApprove        = "APPROVE"
	EventRequestChanges = "REQUEST_CHANGES"
	EventComment        = "COMMENT"
)

type Review struct {
	ID    int64  `json:"id"`
	User  User   `json:"user"`
	State string `json:"state"`
	Body  string `json:"body"`
}

func (r *Review) Author() string {
	return r.User.Login
}
