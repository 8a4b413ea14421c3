package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/cfengine/cf-bottom/pkg/logging"
)

const (
	DefaultAPIURL    = "https://api.github.com"
	DefaultCacheSize = 512
)

// ErrPassive is returned by write operations when the client only logs what
// it would have posted.
var ErrPassive = errors.New("passive mode, nothing was posted")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP response %d from GitHub for %s %s", e.Code, e.Method, e.URL)
}

type Options struct {
	APIURL string
	Token  string
	// UserAgent is sent with every request; GitHub requires one.
	UserAgent string
	CacheSize int
	Passive   bool

	HTTPClient *http.Client
}

// Client talks to the GitHub REST API. GET responses are cached for the
// lifetime of the client, so a client should live for one scan.
type Client struct {
	opts   Options
	client *http.Client
	cache  *lru.Cache
}

func New(opts Options) (*Client, error) {
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	opts.APIURL = strings.TrimSuffix(opts.APIURL, "/")
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	cache, err := lru.New(opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create github cache: %w", err)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{opts: opts, client: hc, cache: cache}, nil
}

// URL resolves an API path such as "/orgs/cfengine/repos" against the API
// base URL. Absolute URLs are returned unchanged.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "/") {
		return c.opts.APIURL + path
	}
	return path
}

// Get fetches path and decodes the response into v. List responses are
// followed across pages through the Link header.
func (c *Client) Get(ctx context.Context, path string, v interface{}) error {
	data, err := c.get(ctx, c.URL(path))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	if cached, ok := c.cache.Get(u); ok {
		logging.S().Debugw("github cache hit", "url", u)
		return cached.([]byte), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	c.headers(req)

	logging.S().Debugw("github GET", "url", u)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(req, resp); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}

	if next := nextLink(resp.Header.Get("Link")); next != "" && isArray(data) {
		logging.S().Debugw("paginating", "from", u, "to", next)
		rest, err := c.get(ctx, next)
		if err != nil {
			return nil, err
		}
		if data, err = concatArrays(data, rest); err != nil {
			return nil, err
		}
	}

	c.cache.Add(u, data)
	return data, nil
}

// Post sends body as JSON to path.
func (c *Client) Post(ctx context.Context, path string, body interface{}) error {
	u := c.URL(path)
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	if c.opts.Passive {
		logging.S().Infow("would post to github", "url", u, "body", string(payload))
		return ErrPassive
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	c.headers(req)
	req.Header.Set("Content-Type", "application/json")

	logging.S().Debugw("github POST", "url", u)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", u, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(req, resp); err != nil {
		return err
	}
	// whatever was cached for this url is stale now.
	c.cache.Remove(u)
	return nil
}

// OrgRepos lists the repositories of an organization.
func (c *Client) OrgRepos(ctx context.Context, org string) ([]Repository, error) {
	var repos []Repository
	err := c.Get(ctx, "/orgs/"+org+"/repos", &repos)
	return repos, err
}

// Pulls lists the open pull requests of a repository, by full name.
func (c *Client) Pulls(ctx context.Context, repo string) ([]PullRequest, error) {
	var pulls []PullRequest
	err := c.Get(ctx, "/repos/"+repo+"/pulls", &pulls)
	return pulls, err
}

// Comments lists the issue comments of a pull request, oldest first.
func (c *Client) Comments(ctx context.Context, pr *PullRequest) ([]Comment, error) {
	var comments []Comment
	err := c.Get(ctx, pr.CommentsURL, &comments)
	return comments, err
}

func (c *Client) Reviews(ctx context.Context, pr *PullRequest) ([]Review, error) {
	var reviews []Review
	err := c.Get(ctx, pr.ReviewsURL(), &reviews)
	return reviews, err
}

// PostComment adds a comment at a comments url.
func (c *Client) PostComment(ctx context.Context, url, body string) error {
	return c.Post(ctx, url, map[string]string{"body": body})
}

// PostReview submits a review at a reviews url.
func (c *Client) PostReview(ctx context.Context, url, body, event string) error {
	return c.Post(ctx, url, map[string]string{"body": body, "event": event})
}

func (c *Client) headers(req *http.Request) {
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "token "+c.opts.Token)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
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

// nextLink extracts the rel="next" target of a Link header.
func nextLink(header string) string {
	for _, link := range strings.Split(header, ",") {
		if !strings.Contains(link, `rel="next"`) {
			continue
		}
		start, end := strings.Index(link, "<"), strings.Index(link, ">")
		if start >= 0 && end > start {
			return link[start+1 : end]
		}
	}
	return ""
}

func isArray(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func concatArrays(a, b []byte) ([]byte, error) {
	var first, rest []json.RawMessage
	if err := json.Unmarshal(a, &first); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, &rest); err != nil {
		return nil, err
	}
	return json.Marshal(append(first, rest...))
}
