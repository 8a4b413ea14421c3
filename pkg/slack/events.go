package slack

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/slack-go/slack/slackevents"

	"github.com/cfengine/cf-bottom/pkg/logging"
)

var (
	// ErrIgnored is returned for events that carry no user command.
	ErrIgnored = errors.New("event ignored")
	// ErrUnauthorized is returned when the verification token does not match.
	ErrUnauthorized = errors.New("unauthorized slack event")
)

// Incoming is a parsed Slack event.
type Incoming struct {
	// Challenge is set for URL verification requests, which must be
	// answered with it.
	Challenge string

	Conversation
	// Text is the message with the bot mention removed.
	Text string
}

// ParseEvent parses an Events API payload, as delivered to the webhook or
// piped to the talk command. When readToken is not empty, the payload token
// must match it. botID is used to strip mentions when the payload does not
// name the bot itself.
func ParseEvent(body []byte, readToken, botID string) (*Incoming, error) {
	ev, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		return nil, fmt.Errorf("failed to parse slack event: %w", err)
	}
	if readToken == "" {
		logging.S().Warnw("no read token configured, trusting incoming slack event")
	} else if !(slackevents.TokenComparator{VerificationToken: readToken}).Verify(ev.Token) {
		return nil, ErrUnauthorized
	}

	switch ev.Type {
	case slackevents.URLVerification:
		v, ok := ev.Data.(*slackevents.EventsAPIURLVerificationEvent)
		if !ok {
			return nil, fmt.Errorf("unexpected url verification payload %T", ev.Data)
		}
		return &Incoming{Challenge: v.Challenge}, nil
	case slackevents.CallbackEvent:
	default:
		return nil, fmt.Errorf("%w: event type %s", ErrIgnored, ev.Type)
	}

	if cb, ok := ev.Data.(*slackevents.EventsAPICallbackEvent); ok && len(cb.AuthedUsers) > 0 {
		botID = cb.AuthedUsers[0]
	}

	in := &Incoming{Conversation: Conversation{BotID: botID}}
	switch e := ev.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		in.Channel, in.User, in.Text = e.Channel, e.User, e.Text
	case *slackevents.MessageEvent:
		in.Channel, in.User, in.Text = e.Channel, e.User, e.Text
	default:
		return nil, fmt.Errorf("%w: inner event %s", ErrIgnored, ev.InnerEvent.Type)
	}
	if in.User == "" {
		// not a user-generated message, probably a bot.
		return nil, fmt.Errorf("%w: not a user message", ErrIgnored)
	}
	in.Text = StripMention(in.Text, botID)
	return in, nil
}

// StripMention removes every "<@bot>" prefix, with an optional colon, from
// text.
func StripMention(text, botID string) string {
	if botID == "" {
		return text
	}
	re := regexp.MustCompile(`<@` + regexp.QuoteMeta(botID) + `> *:? *`)
	return re.ReplaceAllString(text, "")
}
