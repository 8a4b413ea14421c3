package bot

import (
	"context"
	"fmt"

	"github.com/cfengine/cf-bottom/pkg/github"
	"github.com/cfengine/cf-bottom/pkg/logging"
)

// HandleMention answers a comment mentioning the bot. Untrusted authors are
// refused, trigger words start a build, anything else gets a shrug.
func (b *Bot) HandleMention(ctx context.Context, pr *github.PullRequest, comment *github.Comment) error {
	author := comment.Author()
	if !b.trusted(author) {
		logging.S().Infow("denying mention", "author", author, "pr", pr.String())
		return b.comment(ctx, pr, fmt.Sprintf("@%s : I'm sorry, I cannot do that. @%s please help.", author, b.opts.Admin))
	}
	if containsWord(comment.Body, b.opts.TriggerWords) {
		_, err := b.TriggerBuild(ctx, pr, comment)
		return err
	}
	return b.comment(ctx, pr, fmt.Sprintf("I'm not sure I understand, @%s.", author))
}

// HandleComments scans the comments of pr from newest to oldest, handling
// every mention of the bot, and stops at the bot's own latest comment.
func (b *Bot) HandleComments(ctx context.Context, pr *github.PullRequest) error {
	comments, err := b.github.Comments(ctx, pr)
	if err != nil {
		return fmt.Errorf("failed to get comments of %s: %w", pr, err)
	}
	for i := len(comments) - 1; i >= 0; i-- {
		c := &comments[i]
		if c.Author() == b.opts.Username {
			return nil
		}
		if c.Mentions(b.opts.Username) {
			if err := b.HandleMention(ctx, pr, c); err != nil {
				return err
			}
		}
	}
	return nil
}
