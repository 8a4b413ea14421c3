package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/cfengine/cf-bottom/pkg/github"
	"github.com/cfengine/cf-bottom/pkg/logging"
)

// Review approves pr on behalf of the bot when the bot is one of the
// repository maintainers, has not reviewed pr yet, and another maintainer
// already approved it.
func (b *Bot) Review(ctx context.Context, pr *github.PullRequest) error {
	maintainers := b.maintainers(pr.Repo())
	if !contains(maintainers, b.opts.Username) {
		return nil
	}

	reviews, err := b.github.Reviews(ctx, pr)
	if err != nil {
		return fmt.Errorf("failed to get reviews of %s: %w", pr, err)
	}

	var approvals []string
	for _, r := range reviews {
		switch r.State {
		case github.ReviewApproved:
			approvals = append(approvals, r.Author())
		case github.ReviewChangesRequested:
			if r.Author() == b.opts.Username {
				logging.S().Infow("already denied", "pr", pr.String())
				return nil
			}
		}
	}
	if contains(approvals, b.opts.Username) {
		return nil
	}

	for _, person := range approvals {
		if !contains(maintainers, person) {
			continue
		}
		logging.S().Infow("approving", "pr", pr.String(), "approvals", approvals)
		err := b.github.PostReview(ctx, pr.ReviewsURL(), fmt.Sprintf("I trust @%s, approved!", person), github.EventApprove)
		if err != nil && !errors.Is(err, github.ErrPassive) {
			return fmt.Errorf("failed to approve %s: %w", pr, err)
		}
		return nil
	}
	return nil
}
