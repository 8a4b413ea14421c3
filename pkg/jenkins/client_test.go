package jenkins

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfengine/cf-bottom/pkg/trigger"
)

type fakeJenkins struct {
	*httptest.Server
	pending int32
	polls   int32
	form    chan map[string]string
}

func newFakeJenkins(t *testing.T, pending int32) *fakeJenkins {
	f := &fakeJenkins{
		pending: pending,
		form:    make(chan map[string]string, 1),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/job/pr-pipeline/buildWithParameters/api/json", func(w http.ResponseWriter, r *http.Request) {
		user, token, ok := r.BasicAuth()
		if !ok || user != "test-jenkins-user" || token != "test-jenkins-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("Jenkins-Crumb") != "test-jenkins-crumb" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		assert.NoError(t, r.ParseForm())
		got := make(map[string]string)
		for k := range r.PostForm {
			got[k] = r.PostForm.Get(k)
		}
		f.form <- got
		w.Header().Set("Location", f.URL+"/queue/item/7/")
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/queue/item/7/api/json", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&f.polls, 1)
		w.Header().Set("Content-Type", "application/json")
		if n <= atomic.LoadInt32(&f.pending) {
			fmt.Fprint(w, `{"id": 7, "why": "Waiting for next available executor", "executable": null}`)
			return
		}
		fmt.Fprintf(w, `{"id": 7, "executable": {"number": 22, "url": "%s/job/pr-pipeline/22/"}}`, f.URL)
	})
	mux.HandleFunc("/queue/item/8/api/json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": 8, "cancelled": true}`)
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeJenkins) client(opts Options) *Client {
	opts.URL = f.URL + "/"
	opts.User = "test-jenkins-user"
	opts.Token = "test-jenkins-token"
	opts.Crumb = "test-jenkins-crumb"
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Millisecond
	}
	return New(opts)
}

func testParams() *trigger.Params {
	p := trigger.NewParams()
	p.Set("CORE_REV", trigger.String("42"))
	p.Set("RUN_ON_EXOTICS", trigger.Bool(true))
	p.Set("BUILD_DESC", trigger.String("Test PR Title @test-trusted-author (core#42 master)"))
	return p
}

func TestSubmitAndWait(t *testing.T) {
	f := newFakeJenkins(t, 2)
	c := f.client(Options{})

	loc, err := c.Submit(context.Background(), c.URL()+"job/pr-pipeline/buildWithParameters/api/json", testParams())
	require.NoError(t, err)
	assert.Equal(t, f.URL+"/queue/item/7/", loc)
	assert.Equal(t, map[string]string{
		"CORE_REV":       "42",
		"RUN_ON_EXOTICS": "true",
		"BUILD_DESC":     "Test PR Title @test-trusted-author (core#42 master)",
	}, <-f.form)

	var states []PollState
	build, err := c.WaitForBuild(context.Background(), loc, func(s PollState, _ int) {
		states = append(states, s)
	})
	require.NoError(t, err)
	assert.Equal(t, "22", build.Number)
	assert.Equal(t, f.URL+"/job/pr-pipeline/22/", build.URL)
	assert.Equal(t, []PollState{StateQueued, StatePolling, StatePolling, StatePolling, StateAssigned}, states)
	assert.EqualValues(t, 3, atomic.LoadInt32(&f.polls))
}

func TestSubmitRejected(t *testing.T) {
	f := newFakeJenkins(t, 0)
	c := New(Options{URL: f.URL + "/", User: "someone", Token: "wrong"})

	_, err := c.Submit(context.Background(), c.URL()+"job/pr-pipeline/buildWithParameters/api/json", testParams())
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Code)

	_, err = c.Submit(context.Background(), c.URL()+"job/missing/buildWithParameters/api/json", testParams())
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
}

func TestSubmitPassive(t *testing.T) {
	f := newFakeJenkins(t, 0)
	c := f.client(Options{Passive: true})

	_, err := c.Submit(context.Background(), c.URL()+"job/pr-pipeline/buildWithParameters/api/json", testParams())
	assert.True(t, errors.Is(err, ErrPassive))
	assert.Len(t, f.form, 0)
}

func TestWaitGivesUpAfterMaxAttempts(t *testing.T) {
	f := newFakeJenkins(t, 100)
	c := f.client(Options{MaxAttempts: 3})

	var last PollState
	_, err := c.WaitForBuild(context.Background(), f.URL+"/queue/item/7/", func(s PollState, _ int) { last = s })
	assert.True(t, errors.Is(err, ErrPollTimeout))
	assert.Equal(t, StateTimedOut, last)
	assert.EqualValues(t, 3, atomic.LoadInt32(&f.polls))
}

func TestWaitTimeout(t *testing.T) {
	f := newFakeJenkins(t, 1<<20)
	c := f.client(Options{PollTimeout: 50 * time.Millisecond})

	_, err := c.WaitForBuild(context.Background(), f.URL+"/queue/item/7/", nil)
	assert.True(t, errors.Is(err, ErrPollTimeout))
}

func TestWaitCancelled(t *testing.T) {
	f := newFakeJenkins(t, 1<<20)
	c := f.client(Options{})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	_, err := c.WaitForBuild(ctx, f.URL+"/queue/item/7/", nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestWaitQueueItemCancelled(t *testing.T) {
	f := newFakeJenkins(t, 0)
	c := f.client(Options{})

	_, err := c.WaitForBuild(context.Background(), f.URL+"/queue/item/8", nil)
	assert.True(t, errors.Is(err, ErrCancelled))
}

func TestPollerRetriesFetchErrors(t *testing.T) {
	calls := 0
	p := &Poller{
		Interval: time.Millisecond,
		Fetch: func(ctx context.Context, location string) (*QueueItem, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("connection reset")
			}
			return &QueueItem{Executable: &Build{Number: "5", URL: "u"}}, nil
		},
	}
	b, err := p.Wait(context.Background(), "loc")
	require.NoError(t, err)
	assert.Equal(t, Build{Number: "5", URL: "u"}, b)
	assert.Equal(t, 3, calls)
}
