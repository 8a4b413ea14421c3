package slack

import (
	"context"
	"fmt"
	"regexp"
	"runtime/debug"
	"sort"
	"strings"
	"sync"

	"github.com/cfengine/cf-bottom/pkg/logging"
)

var commandRe = regexp.MustCompile(`^ *([^:]*)(?:: *([^ ]*))?`)

// Poster delivers a message to a channel.
type Poster interface {
	Post(ctx context.Context, channel, text string) error
}

// Conversation identifies where a command came from and where its replies
// go.
type Conversation struct {
	Channel string
	User    string
	// BotID is the Slack user ID of the bot, used in help texts.
	BotID string
}

// HandlerFunc runs a command. arg is empty for commands without a
// parameter. The returned text is posted back to the conversation.
type HandlerFunc func(ctx context.Context, conv Conversation, arg string) (string, error)

type command struct {
	keyword string
	param   string
	help    string
	handler HandlerFunc
}

// Dispatcher maps Slack messages of the form "keyword" or
// "keyword: argument" to registered commands.
type Dispatcher struct {
	sync.RWMutex
	out Poster
	// commands without (0) and with (1) a parameter.
	commands [2]map[string]command
	order    []command
}

// NewDispatcher returns a dispatcher posting replies to out, with the help
// command registered.
func NewDispatcher(out Poster) *Dispatcher {
	d := &Dispatcher{
		out:      out,
		commands: [2]map[string]command{{}, {}},
	}
	d.Register("help", "", "Show this text", func(context.Context, Conversation, string) (string, error) {
		return d.Help(), nil
	})
	return d
}

// Register adds a command. A non-empty param makes the command take one
// argument; the same keyword may be registered with and without one.
func (d *Dispatcher) Register(keyword, param, help string, h HandlerFunc) {
	d.Lock()
	defer d.Unlock()
	c := command{keyword: keyword, param: param, help: help, handler: h}
	n := 0
	if param != "" {
		n = 1
	}
	d.commands[n][keyword] = c
	d.order = append(d.order, c)
}

// Help lists the registered commands.
func (d *Dispatcher) Help() string {
	d.RLock()
	defer d.RUnlock()
	lines := []string{"List of commands bot recognises (prefix each command with bot name)"}
	for _, c := range d.order {
		if c.param != "" {
			lines = append(lines, fmt.Sprintf("%s: _%s_\n-  %s", c.keyword, strings.ToUpper(c.param), c.help))
		} else {
			lines = append(lines, fmt.Sprintf("%s\n-  %s", c.keyword, c.help))
		}
	}
	return strings.Join(lines, "\n\n")
}

// Keywords returns the registered keywords, sorted.
func (d *Dispatcher) Keywords() []string {
	d.RLock()
	defer d.RUnlock()
	var out []string
	for _, c := range d.order {
		out = append(out, c.keyword)
	}
	sort.Strings(out)
	return out
}

// Dispatch parses text and runs the matching command, posting its reply. A
// failing or panicking command is reported back to the user.
func (d *Dispatcher) Dispatch(ctx context.Context, conv Conversation, text string) error {
	m := commandRe.FindStringSubmatch(text)
	keyword, arg := m[1], m[2]
	n := 0
	if arg != "" {
		n = 1
	}

	d.RLock()
	c, ok := d.commands[n][keyword]
	d.RUnlock()

	logging.S().Debugw("slack command", "keyword", keyword, "arg", arg, "known", ok, "user", conv.User)
	if !ok {
		return d.reply(ctx, conv, fmt.Sprintf(`Unknown command. Say "<@%s> help" for list of known commands`, conv.BotID), false)
	}

	reply, err := run(ctx, c, conv, arg)
	if err != nil {
		logging.S().Warnw("slack command failed", "keyword", keyword, "err", err)
		return d.reply(ctx, conv, fmt.Sprintf("I crashed on your command:\n```\n%s\n```", err), true)
	}
	if reply == "" {
		return nil
	}
	return d.reply(ctx, conv, reply, false)
}

func run(ctx context.Context, c command, conv Conversation, arg string) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return c.handler(ctx, conv, arg)
}

func (d *Dispatcher) reply(ctx context.Context, conv Conversation, text string, mention bool) error {
	if mention && conv.User != "" {
		text = fmt.Sprintf("<@%s>: %s", conv.User, text)
	}
	logging.S().Infow("slack reply", "channel", conv.Channel, "text", text)
	if conv.Channel == "" {
		return nil
	}
	return d.out.Post(ctx, conv.Channel, text)
}
