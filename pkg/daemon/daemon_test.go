package daemon

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfengine/cf-bottom/pkg/bot"
	"github.com/cfengine/cf-bottom/pkg/daemon/client"
	"github.com/cfengine/cf-bottom/pkg/slack"
	"github.com/cfengine/cf-bottom/pkg/store"
	"github.com/cfengine/cf-bottom/pkg/trigger"
)

type message struct {
	channel, text string
}

type recorder chan message

func (r recorder) Post(_ context.Context, channel, text string) error {
	r <- message{channel, text}
	return nil
}

const helloEvent = `{
  "token": "read-token",
  "type": "event_callback",
  "authed_users": ["UBOT"],
  "event": {"type": "app_mention", "user": "U1", "text": "<@UBOT> hello", "channel": "C1"}
}`

func newTestDaemon(t *testing.T, opts Options) (*httptest.Server, *client.Client) {
	d := &Daemon{opts: opts}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	t.Cleanup(d.cancel)

	srv := httptest.NewServer(d.Handler())
	t.Cleanup(srv.Close)
	return srv, client.New(srv.URL)
}

func testStore(t *testing.T) (*store.Store, *store.Record) {
	st, err := store.NewInmem(0)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	req := trigger.Request{Repo: "core", Number: 42, Branch: "master", Title: "Fix", Author: "alice", Comment: "@cf-bottom build"}
	rec := store.NewRecord("https://github.com/cfengine/core/pull/42", "alice", req, trigger.Derive("https://ci.cfengine.com/", req))
	require.NoError(t, st.Put(rec))
	return st, rec
}

func TestBuilds(t *testing.T) {
	st, rec := testStore(t)
	_, c := newTestDaemon(t, Options{Store: st})

	records, err := c.Builds(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rec.ID, records[0].ID)
	assert.Equal(t, rec.Params.Encode(), records[0].Params.Encode())

	got, err := c.Build(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "pr-pipeline", got.Job)

	_, err = c.Build(context.Background(), "missing")
	assert.True(t, errors.Is(err, client.ErrNotFound))
}

func TestBuildsBadLimit(t *testing.T) {
	st, _ := testStore(t)
	srv, _ := newTestDaemon(t, Options{Store: st})

	resp, err := http.Get(srv.URL + "/builds?limit=many")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSlackEvent(t *testing.T) {
	out := make(recorder, 1)
	d := slack.NewDispatcher(out)
	d.Register("hello", "", "Say hello", func(_ context.Context, c slack.Conversation, _ string) (string, error) {
		return "Hello <@" + c.User + ">", nil
	})
	srv, _ := newTestDaemon(t, Options{Dispatcher: d, ReadToken: "read-token"})

	resp, err := http.Post(srv.URL+"/slack/events", "application/json", bytes.NewBufferString(helloEvent))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case m := <-out:
		assert.Equal(t, message{"C1", "Hello <@U1>"}, m)
	case <-time.After(5 * time.Second):
		t.Fatal("no reply posted")
	}
}

func TestSlackChallenge(t *testing.T) {
	srv, _ := newTestDaemon(t, Options{Dispatcher: slack.NewDispatcher(make(recorder, 1))})

	resp, err := http.Post(srv.URL+"/slack/events", "application/json",
		bytes.NewBufferString(`{"token": "x", "challenge": "abc123", "type": "url_verification"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "abc123", string(body))
}

func TestSlackRejectsBadToken(t *testing.T) {
	srv, _ := newTestDaemon(t, Options{Dispatcher: slack.NewDispatcher(make(recorder, 1)), ReadToken: "other"})

	resp, err := http.Post(srv.URL+"/slack/events", "application/json", bytes.NewBufferString(helloEvent))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSlackSigningSecret(t *testing.T) {
	out := make(recorder, 1)
	srv, _ := newTestDaemon(t, Options{Dispatcher: slack.NewDispatcher(out), SigningSecret: "s3cret"})

	post := func(secret string) int {
		ts := strconv.FormatInt(time.Now().Unix(), 10)
		mac := hmac.New(sha256.New, []byte(secret))
		fmt.Fprintf(mac, "v0:%s:%s", ts, helloEvent)
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/slack/events", bytes.NewBufferString(helloEvent))
		require.NoError(t, err)
		req.Header.Set("X-Slack-Request-Timestamp", ts)
		req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusUnauthorized, post("wrong"))
	assert.Equal(t, http.StatusOK, post("s3cret"))
	select {
	case m := <-out:
		assert.Contains(t, m.text, "Unknown command")
	case <-time.After(5 * time.Second):
		t.Fatal("no reply posted")
	}
}

func TestScanAndHealthcheck(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	s := NewScanner(func(ctx context.Context) (bot.Summary, error) {
		close(started)
		<-release
		return bot.Summary{Repos: 2, Pulls: 5}, nil
	})
	_, c := newTestDaemon(t, Options{Scanner: s})

	h, err := c.Healthcheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.False(t, h.Scanning)
	assert.Empty(t, h.LastScan)

	done := make(chan bot.Summary)
	go func() {
		summary, err := c.Scan(context.Background())
		assert.NoError(t, err)
		done <- summary
	}()
	<-started

	h, err = c.Healthcheck(context.Background())
	require.NoError(t, err)
	assert.True(t, h.Scanning)

	_, err = c.Scan(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")

	close(release)
	assert.Equal(t, bot.Summary{Repos: 2, Pulls: 5}, <-done)

	h, err = c.Healthcheck(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, h.LastScan)
}

func TestScanOutlivesCaller(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	finished := make(chan error, 1)
	s := NewScanner(func(ctx context.Context) (bot.Summary, error) {
		close(started)
		<-release
		finished <- ctx.Err()
		return bot.Summary{Repos: 1, Pulls: 1}, nil
	})
	_, c := newTestDaemon(t, Options{Scanner: s})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Scan(ctx)
		errCh <- err
	}()
	<-started

	cancel()
	require.Error(t, <-errCh)
	assert.True(t, s.Running())

	close(release)
	select {
	case err := <-finished:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not finish")
	}
}

func TestRoutesNeedServices(t *testing.T) {
	srv, _ := newTestDaemon(t, Options{})

	resp, err := http.Get(srv.URL + "/builds")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/healthcheck")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServeAndShutdown(t *testing.T) {
	d, err := New(Options{Listen: "localhost:0"})
	require.NoError(t, err)
	assert.NotZero(t, d.Port())

	errCh := make(chan error, 1)
	go func() { errCh <- d.Serve() }()

	c := client.New(d.Addr())
	require.Eventually(t, func() bool {
		_, err := c.Healthcheck(context.Background())
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
	assert.True(t, errors.Is(<-errCh, http.ErrServerClosed))
	assert.Error(t, d.Serve())
}
