package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/cfengine/cf-bottom/pkg/github"
	"github.com/cfengine/cf-bottom/pkg/jenkins"
	"github.com/cfengine/cf-bottom/pkg/logging"
	"github.com/cfengine/cf-bottom/pkg/store"
	"github.com/cfengine/cf-bottom/pkg/trigger"
)

// Request returns the trigger request for comment on pr. Pull requests
// referenced in the pull request body or the comment are built along.
func (b *Bot) Request(pr *github.PullRequest, comment *github.Comment) trigger.Request {
	return trigger.Request{
		Repo:      pr.ShortRepo(),
		Number:    pr.Number,
		MergeWith: MergeWith(pr.ShortRepo(), pr.Body, comment.Body),
		Branch:    pr.BaseBranch(),
		Title:     pr.Title,
		Author:    comment.Author(),
		Comment:   comment.Body,
	}
}

// TriggerBuild derives the build for comment, submits it to Jenkins, waits
// for the build number and posts the status comment on pr. Every step is
// recorded in the store. In passive mode nothing is posted and the record
// ends in StatePassive.
func (b *Bot) TriggerBuild(ctx context.Context, pr *github.PullRequest, comment *github.Comment) (*store.Record, error) {
	req := b.Request(pr, comment)
	plan := trigger.Derive(b.jenkins.URL(), req)

	rec := store.NewRecord(pr.HTMLURL, comment.Author(), req, plan)
	b.record(rec.ID, func(s *store.Store) error { return s.Put(rec) })

	logging.S().Infow("triggering build",
		"id", rec.ID,
		"pr", pr.String(),
		"job", plan.Job.Name,
		"revisions", plan.Revisions.String(),
		"params", plan.Params.Encode())

	location, err := b.jenkins.Submit(ctx, plan.Path, plan.Params)
	if errors.Is(err, jenkins.ErrPassive) {
		b.record(rec.ID, func(s *store.Store) error { return s.AppendState(rec.ID, store.StatePassive, "") })
		return rec, nil
	}
	if err != nil {
		b.record(rec.ID, func(s *store.Store) error { return s.AppendState(rec.ID, store.StateFailed, err.Error()) })
		return rec, fmt.Errorf("failed to trigger %s for %s: %w", plan.Job.Name, pr, err)
	}
	rec.Location = location
	b.record(rec.ID, func(s *store.Store) error { return s.SetLocation(rec.ID, location) })

	build, err := b.jenkins.WaitForBuild(ctx, location, func(state jenkins.PollState, attempt int) {
		switch state {
		case jenkins.StateQueued:
			b.record(rec.ID, func(s *store.Store) error { return s.AppendState(rec.ID, store.StateQueued, "") })
		case jenkins.StatePolling:
			// only the first poll is recorded, the rest is noise.
			if attempt == 1 {
				b.record(rec.ID, func(s *store.Store) error { return s.AppendState(rec.ID, store.StatePolling, "") })
			}
		case jenkins.StateTimedOut:
			b.record(rec.ID, func(s *store.Store) error {
				return s.AppendState(rec.ID, store.StateTimedOut, "after "+strconv.Itoa(attempt)+" attempts")
			})
		}
	})
	if err != nil {
		if !errors.Is(err, jenkins.ErrPollTimeout) && !errors.Is(err, jenkins.ErrCancelled) {
			b.record(rec.ID, func(s *store.Store) error { return s.AppendState(rec.ID, store.StateFailed, err.Error()) })
		}
		return rec, fmt.Errorf("build of %s was not started: %w", pr, err)
	}
	rec.Result = &store.Result{Number: build.Number, URL: build.URL}
	b.record(rec.ID, func(s *store.Store) error { return s.SetResult(rec.ID, *rec.Result) })
	logging.S().Infow("triggered build", "id", rec.ID, "number", build.Number, "url", build.URL)

	body, err := b.composer.StatusComment(build.Number, build.URL, plan.BadgeText)
	if err != nil {
		return rec, err
	}
	return rec, b.comment(ctx, pr, body)
}

// record applies fn to the store, if there is one. Store failures are
// logged; they never fail a build.
func (b *Bot) record(id string, fn func(s *store.Store) error) {
	if b.store == nil {
		return
	}
	if err := fn(b.store); err != nil {
		logging.S().Warnw("failed to record build state", "id", id, "err", err)
	}
}
