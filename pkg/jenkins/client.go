package jenkins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/cfengine/cf-bottom/pkg/logging"
	"github.com/cfengine/cf-bottom/pkg/trigger"
)

// ErrPassive is returned by Submit when the client only logs what it would
// have posted.
var ErrPassive = errors.New("passive mode, nothing was posted")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP response %d from Jenkins for %s %s", e.Code, e.Method, e.URL)
}

// Options configures a Client.
type Options struct {
	// URL is the base URL of the Jenkins instance, with a trailing slash.
	URL   string
	User  string
	Token string
	// Crumb is sent as the Jenkins-Crumb header when set.
	Crumb string

	Passive bool

	PollInterval time.Duration
	MaxAttempts  int
	PollTimeout  time.Duration

	HTTPClient *http.Client
}

// Client triggers parameterized builds and follows them through the queue.
type Client struct {
	opts   Options
	client *http.Client
}

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	if !strings.HasSuffix(opts.URL, "/") {
		opts.URL += "/"
	}
	return &Client{opts: opts, client: hc}
}

// URL returns the base URL of the Jenkins instance.
func (c *Client) URL() string {
	return c.opts.URL
}

// Submit posts params to a buildWithParameters path and returns the queue
// item location Jenkins answers with.
func (c *Client) Submit(ctx context.Context, path string, params *trigger.Params) (string, error) {
	if c.opts.Passive {
		logging.S().Infow("would post to jenkins", "path", path, "params", params.Encode())
		return "", ErrPassive
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, path, strings.NewReader(params.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to post to jenkins: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(req, resp); err != nil {
		logging.S().Errorw("unexpected HTTP response from jenkins", "code", resp.StatusCode, "headers", resp.Header, "err", err)
		return "", err
	}

	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", fmt.Errorf("jenkins accepted %s but returned no queue location", path)
	}
	logging.S().Debugw("build queued", "path", path, "location", loc)
	return loc, nil
}

// QueueItem fetches the queue item at location.
func (c *Client) QueueItem(ctx context.Context, location string) (*QueueItem, error) {
	if !strings.HasSuffix(location, "/") {
		location += "/"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location+"api/json", nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(req, resp); err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode queue item: %w", err)
	}

	item := new(QueueItem)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           item,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode queue item: %w", err)
	}
	return item, nil
}

// WaitForBuild polls the queue item at location until Jenkins starts the
// build, honouring the configured interval and budgets.
func (c *Client) WaitForBuild(ctx context.Context, location string, onState func(PollState, int)) (Build, error) {
	logging.S().Debugw("waiting for queue item", "location", location)
	p := &Poller{
		Fetch:       c.QueueItem,
		Interval:    c.opts.PollInterval,
		MaxAttempts: c.opts.MaxAttempts,
		Timeout:     c.opts.PollTimeout,
		OnState:     onState,
	}
	return p.Wait(ctx, location)
}

func (c *Client) authorize(req *http.Request) {
	if c.opts.User != "" || c.opts.Token != "" {
		req.SetBasicAuth(c.opts.User, c.opts.Token)
	}
	if c.opts.Crumb != "" {
		req.Header.Set("Jenkins-Crumb", c.opts.Crumb)
	}
}

func checkStatus(req *http.Request, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{
		Method: req.Method,
		URL:    req.URL.String(),
		Code:   resp.StatusCode,
		Body:   string(body),
	}
}
