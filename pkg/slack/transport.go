package slack

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/slack-go/slack"

	"github.com/cfengine/cf-bottom/pkg/logging"
)

// Client posts messages through the Slack Web API.
type Client struct {
	api     *slack.Client
	passive bool
}

// NewClient returns a client using the bot token. apiURL overrides the
// Slack API endpoint when not empty.
func NewClient(token, apiURL string, passive bool) *Client {
	var opts []slack.Option
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	return &Client{api: slack.New(token, opts...), passive: passive}
}

// Post sends text to channel. Passive clients only log it.
func (c *Client) Post(ctx context.Context, channel, text string) error {
	if c.passive {
		logging.S().Infow("would post to slack", "channel", channel, "text", text)
		return nil
	}
	_, _, err := c.api.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("failed to post to slack channel %s: %w", channel, err)
	}
	return nil
}

// Console writes messages to a terminal instead of Slack, for the
// interactive talk mode.
type Console struct {
	sync.Mutex
	W io.Writer
}

func (c *Console) Post(_ context.Context, _, text string) error {
	c.Lock()
	defer c.Unlock()
	_, err := fmt.Fprintln(c.W, text)
	return err
}
