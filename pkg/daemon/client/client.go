package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cfengine/cf-bottom/pkg/bot"
	"github.com/cfengine/cf-bottom/pkg/store"
)

// ErrNotFound is returned when the daemon has no such build record.
var ErrNotFound = errors.New("not found")

// Client is the API client that performs all operations
// against a cf-bottom daemon.
type Client struct {
	// client used to send and receive http requests.
	client   *http.Client
	endpoint string
}

// Healthcheck is the response of the healthcheck endpoint.
type Healthcheck struct {
	Status   string `json:"status"`
	Scanning bool   `json:"scanning"`
	LastScan string `json:"last_scan,omitempty"`
}

// New initializes a new API client. endpoint is a host:port or a URL.
func New(endpoint string) *Client {
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	return &Client{
		client:   &http.Client{},
		endpoint: strings.TrimSuffix(endpoint, "/"),
	}
}

// Close the transport used by the client
func (c *Client) Close() error {
	if t, ok := c.client.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	return nil
}

// Builds lists up to limit recently triggered builds, newest first.
func (c *Client) Builds(ctx context.Context, limit int) ([]*store.Record, error) {
	var out []*store.Record
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	err := c.request(ctx, http.MethodGet, "/builds?"+q.Encode(), &out)
	return out, err
}

// Build fetches one build record.
func (c *Client) Build(ctx context.Context, id string) (*store.Record, error) {
	out := new(store.Record)
	err := c.request(ctx, http.MethodGet, "/builds/"+url.PathEscape(id), out)
	return out, err
}

// Scan asks the daemon to look at all open pull requests now, and waits
// for the scan to finish.
func (c *Client) Scan(ctx context.Context) (bot.Summary, error) {
	var out bot.Summary
	err := c.request(ctx, http.MethodPost, "/scan", &out)
	return out, err
}

func (c *Client) Healthcheck(ctx context.Context) (*Healthcheck, error) {
	out := new(Healthcheck)
	err := c.request(ctx, http.MethodGet, "/healthcheck", out)
	return out, err
}

func (c *Client) request(ctx context.Context, method string, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(body))
		}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, e.Error)
		}
		return fmt.Errorf("daemon responded %d to %s %s: %s", resp.StatusCode, method, path, e.Error)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
