package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfengine/cf-bottom/pkg/github"
	"github.com/cfengine/cf-bottom/pkg/jenkins"
	"github.com/cfengine/cf-bottom/pkg/store"
	"github.com/cfengine/cf-bottom/pkg/trigger"
)

const (
	botUsername   = "cf-bottom"
	jenkinsURL    = "https://ci.cfengine.com/"
	trustedAuthor = "test-trusted-author"
)

type posted struct {
	URL   string
	Body  string
	Event string
}

type fakeHost struct {
	sync.Mutex
	repos    map[string][]github.Repository
	pulls    map[string][]github.PullRequest
	comments map[string][]github.Comment
	reviews  map[string][]github.Review
	failRepo string
	passive  bool

	comment []posted
	review  []posted
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		repos:    make(map[string][]github.Repository),
		pulls:    make(map[string][]github.PullRequest),
		comments: make(map[string][]github.Comment),
		reviews:  make(map[string][]github.Review),
	}
}

func (f *fakeHost) OrgRepos(_ context.Context, org string) ([]github.Repository, error) {
	return f.repos[org], nil
}

func (f *fakeHost) Pulls(_ context.Context, repo string) ([]github.PullRequest, error) {
	if repo == f.failRepo {
		return nil, errors.New("boom")
	}
	return f.pulls[repo], nil
}

func (f *fakeHost) Comments(_ context.Context, pr *github.PullRequest) ([]github.Comment, error) {
	return f.comments[pr.CommentsURL], nil
}

func (f *fakeHost) Reviews(_ context.Context, pr *github.PullRequest) ([]github.Review, error) {
	return f.reviews[pr.ReviewsURL()], nil
}

func (f *fakeHost) PostComment(_ context.Context, url, body string) error {
	if f.passive {
		return github.ErrPassive
	}
	f.Lock()
	defer f.Unlock()
	f.comment = append(f.comment, posted{URL: url, Body: body})
	return nil
}

func (f *fakeHost) PostReview(_ context.Context, url, body, event string) error {
	if f.passive {
		return github.ErrPassive
	}
	f.Lock()
	defer f.Unlock()
	f.review = append(f.review, posted{URL: url, Body: body, Event: event})
	return nil
}

type submission struct {
	Path   string
	Params *trigger.Params
}

type fakeCI struct {
	submitted []submission
	passive   bool
	submitErr error
	waitErr   error
}

func (f *fakeCI) URL() string { return jenkinsURL }

func (f *fakeCI) Submit(_ context.Context, path string, params *trigger.Params) (string, error) {
	if f.passive {
		return "", jenkins.ErrPassive
	}
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = append(f.submitted, submission{path, params})
	return jenkinsURL + "queue/item/7/", nil
}

func (f *fakeCI) WaitForBuild(_ context.Context, _ string, onState func(jenkins.PollState, int)) (jenkins.Build, error) {
	onState(jenkins.StateQueued, 0)
	onState(jenkins.StatePolling, 1)
	if f.waitErr != nil {
		onState(jenkins.StateTimedOut, 1)
		return jenkins.Build{}, f.waitErr
	}
	onState(jenkins.StateAssigned, 1)
	path := f.submitted[len(f.submitted)-1].Path
	job := strings.TrimSuffix(path, "buildWithParameters/api/json")
	return jenkins.Build{Number: "22", URL: job + "22"}, nil
}

func testPR(repo string, number int, branch string) *github.PullRequest {
	return &github.PullRequest{
		Number:      number,
		Title:       "Test PR Title",
		URL:         "https://api.github.com/repos/cfengine/" + repo + "/pulls/" + strconv.Itoa(number),
		HTMLURL:     "https://github.com/cfengine/" + repo + "/pull/" + strconv.Itoa(number),
		CommentsURL: "https://github.com/cfengine/" + repo + "/pulls/" + strconv.Itoa(number) + "/comment_reference",
		User:        github.User{Login: "someone"},
		Base: github.Ref{
			Ref:  branch,
			Repo: github.Repository{Name: repo, FullName: "cfengine/" + repo},
		},
	}
}

func comment(author, body string) github.Comment {
	return github.Comment{Body: body, User: github.User{Login: author}}
}

func newTestBot(t *testing.T, opts Options) (*Bot, *fakeHost, *fakeCI, *store.Store) {
	if opts.Username == "" {
		opts.Username = botUsername
	}
	if opts.Trusted == nil {
		opts.Trusted = []string{trustedAuthor}
	}
	opts.Greetings = []string{"Predictably"}
	st, err := store.NewInmem(0)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	host, ci := newFakeHost(), &fakeCI{}
	return New(opts, host, ci, st, nil), host, ci, st
}

func TestTriggerBuildBasic(t *testing.T) {
	b, host, ci, st := newTestBot(t, Options{})
	pr := testPR("core", 42, "3.15.x")
	pr.Body = "Merge together:\nhttps://github.com/cfengine/nova/pull/43"
	c := comment(trustedAuthor, "@cf-bottom build please")

	rec, err := b.TriggerBuild(context.Background(), pr, &c)
	require.NoError(t, err)

	require.Len(t, ci.submitted, 1)
	assert.Equal(t, "https://ci.cfengine.com/job/pr-pipeline/buildWithParameters/api/json", ci.submitted[0].Path)
	assert.Equal(t, map[string]interface{}{
		"CORE_REV":    "42",
		"NOVA_REV":    "43",
		"BASE_BRANCH": "3.15.x",
		"BUILD_DESC":  "Test PR Title @test-trusted-author (core#42 nova#43 3.15.x)",
	}, ci.submitted[0].Params.Map())

	require.Len(t, host.comment, 1)
	assert.Equal(t, posted{
		URL:  "https://github.com/cfengine/core/pulls/42/comment_reference",
		Body: "Predictably, I triggered a build:\n\n[![Build Status](https://ci.cfengine.com//buildStatus/icon?job=pr-pipeline&build=22)](https://ci.cfengine.com//job/pr-pipeline/22/)\n\n**Jenkins:** https://ci.cfengine.com/job/pr-pipeline/22\n\n**Packages:** http://buildcache.cfengine.com/packages/testing-pr/jenkins-pr-pipeline-22/",
	}, host.comment[0])

	got, err := st.Get(rec.ID)
	require.NoError(t, err)
	var states []store.State
	for _, s := range got.States {
		states = append(states, s.State)
	}
	assert.Equal(t, []store.State{store.StateSubmitted, store.StateQueued, store.StatePolling, store.StateAssigned}, states)
	assert.Equal(t, "22", got.Result.Number)
	assert.Equal(t, "https://ci.cfengine.com/queue/item/7/", got.Location)
	assert.Equal(t, "https://github.com/cfengine/core/pull/42", got.PullRequest)
}

func TestTriggerBuildFastDocs(t *testing.T) {
	b, host, ci, _ := newTestBot(t, Options{})
	pr := testPR("documentation", 42, "3.18")
	c := comment(trustedAuthor, "@cf-bottom trigger please, with cfengine/documentation-generator#43")

	_, err := b.TriggerBuild(context.Background(), pr, &c)
	require.NoError(t, err)

	require.Len(t, ci.submitted, 1)
	assert.Equal(t, "https://ci.cfengine.com/job/fast-build-and-deploy-docs-3.18/buildWithParameters/api/json", ci.submitted[0].Path)
	require.Len(t, host.comment, 1)
	assert.Equal(t, "Predictably, I triggered a build:\n\n[![Build Status](https://ci.cfengine.com//buildStatus/icon?job=fast-build-and-deploy-docs-3.18&build=22)](https://ci.cfengine.com//job/fast-build-and-deploy-docs-3.18/22/)\n\n**Jenkins:** https://ci.cfengine.com/job/fast-build-and-deploy-docs-3.18/22\n\n**Documentation:** http://buildcache.cfengine.com/packages/build-documentation-pr/jenkins-fast-build-and-deploy-docs-3.18-22/output/_site/", host.comment[0].Body)
}

func TestTriggerBuildBadgeText(t *testing.T) {
	b, host, _, _ := newTestBot(t, Options{})
	pr := testPR("core", 42, "master")
	c := comment(trustedAuthor, "@cf-bottom jenkins with exotics please")

	_, err := b.TriggerBuild(context.Background(), pr, &c)
	require.NoError(t, err)
	require.Len(t, host.comment, 1)
	assert.Contains(t, host.comment[0].Body, "/22/)\n\n(with exotics)\n\n**Jenkins:**")
}

func TestTriggerBuildPassive(t *testing.T) {
	b, host, ci, st := newTestBot(t, Options{})
	ci.passive = true
	pr := testPR("core", 42, "master")
	c := comment(trustedAuthor, "@cf-bottom build")

	rec, err := b.TriggerBuild(context.Background(), pr, &c)
	require.NoError(t, err)
	assert.Empty(t, host.comment)

	got, err := st.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatePassive, got.State().State)
}

func TestTriggerBuildTimeout(t *testing.T) {
	b, host, ci, st := newTestBot(t, Options{})
	ci.waitErr = jenkins.ErrPollTimeout
	pr := testPR("core", 42, "master")
	c := comment(trustedAuthor, "@cf-bottom build")

	rec, err := b.TriggerBuild(context.Background(), pr, &c)
	require.Error(t, err)
	assert.True(t, errors.Is(err, jenkins.ErrPollTimeout))
	assert.Empty(t, host.comment)

	got, err := st.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StateTimedOut, got.State().State)
	assert.Nil(t, got.Result)
}

func TestTriggerBuildSubmitFailure(t *testing.T) {
	b, host, ci, st := newTestBot(t, Options{})
	ci.submitErr = errors.New("HTTP 500")
	pr := testPR("core", 42, "master")
	c := comment(trustedAuthor, "@cf-bottom build")

	rec, err := b.TriggerBuild(context.Background(), pr, &c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to trigger pr-pipeline")
	assert.Empty(t, host.comment)

	got, err := st.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StateFailed, got.State().State)
	assert.Contains(t, got.State().Note, "HTTP 500")
	assert.Empty(t, got.Location)
}

func TestHandleMention(t *testing.T) {
	cases := []struct {
		name      string
		author    string
		body      string
		triggered bool
		reply     string
	}{
		{"untrusted", "mallory", "@cf-bottom build", false, "@mallory : I'm sorry, I cannot do that. @olehermanse please help."},
		{"trigger word", trustedAuthor, "@cf-bottom please run the PIPELINE", true, ""},
		{"label only", trustedAuthor, "@cf-bottom label: FOO", true, ""},
		{"no trigger word", trustedAuthor, "@cf-bottom hello there", false, "I'm not sure I understand, @test-trusted-author."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, host, ci, _ := newTestBot(t, Options{})
			pr := testPR("core", 1, "master")
			c := comment(tc.author, tc.body)

			require.NoError(t, b.HandleMention(context.Background(), pr, &c))
			if tc.triggered {
				assert.Len(t, ci.submitted, 1)
				return
			}
			assert.Empty(t, ci.submitted)
			require.Len(t, host.comment, 1)
			assert.Equal(t, tc.reply, host.comment[0].Body)
		})
	}
}

func TestHandleCommentsStopsAtOwnComment(t *testing.T) {
	b, host, ci, _ := newTestBot(t, Options{Admin: "admin"})
	pr := testPR("core", 1, "master")
	host.comments[pr.CommentsURL] = []github.Comment{
		comment(trustedAuthor, "@cf-bottom build"),
		comment(botUsername, "Alright, I triggered a build"),
		comment("someone", "looks good"),
		comment("mallory", "@cf-bottom build"),
	}

	require.NoError(t, b.HandleComments(context.Background(), pr))
	assert.Empty(t, ci.submitted)
	require.Len(t, host.comment, 1)
	assert.Equal(t, "@mallory : I'm sorry, I cannot do that. @admin please help.", host.comment[0].Body)
}

func TestHandleCommentsNewestFirst(t *testing.T) {
	b, host, ci, _ := newTestBot(t, Options{})
	pr := testPR("core", 1, "master")
	host.comments[pr.CommentsURL] = []github.Comment{
		comment(trustedAuthor, "@cf-bottom what?"),
		comment(trustedAuthor, "@cf-bottom build with exotics"),
	}

	require.NoError(t, b.HandleComments(context.Background(), pr))
	require.Len(t, ci.submitted, 1)
	require.Len(t, host.comment, 2)
	assert.True(t, strings.HasPrefix(host.comment[0].Body, "Predictably, I triggered a build"))
	assert.Equal(t, "I'm not sure I understand, @test-trusted-author.", host.comment[1].Body)
}

func TestReview(t *testing.T) {
	approved := func(user string) github.Review {
		return github.Review{User: github.User{Login: user}, State: github.ReviewApproved}
	}
	cases := []struct {
		name        string
		maintainers []string
		reviews     []github.Review
		want        string
	}{
		{"maintainer approved", []string{botUsername, "alice"}, []github.Review{approved("bob"), approved("alice")}, "I trust @alice, approved!"},
		{"bot not maintainer", []string{"alice"}, []github.Review{approved("alice")}, ""},
		{"already approved", []string{botUsername, "alice"}, []github.Review{approved("alice"), approved(botUsername)}, ""},
		{"already denied", []string{botUsername, "alice"}, []github.Review{approved("alice"), {User: github.User{Login: botUsername}, State: github.ReviewChangesRequested}}, ""},
		{"no maintainer approval", []string{botUsername, "alice"}, []github.Review{approved("bob")}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, host, _, _ := newTestBot(t, Options{
				Maintainers: map[string][]string{"cfengine/core": tc.maintainers},
			})
			pr := testPR("core", 5, "master")
			host.reviews[pr.ReviewsURL()] = tc.reviews

			require.NoError(t, b.Review(context.Background(), pr))
			if tc.want == "" {
				assert.Empty(t, host.review)
				return
			}
			require.Len(t, host.review, 1)
			assert.Equal(t, posted{URL: pr.ReviewsURL(), Body: tc.want, Event: github.EventApprove}, host.review[0])
		})
	}
}

func TestReviewDefaultMaintainers(t *testing.T) {
	b, host, _, _ := newTestBot(t, Options{DefaultMaintainers: []string{botUsername, "alice"}})
	pr := testPR("buildscripts", 5, "master")
	host.reviews[pr.ReviewsURL()] = []github.Review{{User: github.User{Login: "alice"}, State: github.ReviewApproved}}

	require.NoError(t, b.Review(context.Background(), pr))
	assert.Len(t, host.review, 1)
}

type prLog struct{ prs []string }

func (l *prLog) LogPR(pr *github.PullRequest) { l.prs = append(l.prs, pr.HTMLURL) }

func TestRun(t *testing.T) {
	b, host, ci, _ := newTestBot(t, Options{
		Orgs:        []string{"cfengine"},
		Maintainers: map[string][]string{"NorthernTechHQ/nt-docs": {"alice"}},
		Features:    []string{FeatureTriggerJenkins, FeatureReportOpenPRs},
	})
	log := &prLog{}
	b.reports = log

	host.repos["cfengine"] = []github.Repository{{FullName: "cfengine/core"}, {FullName: "cfengine/nova"}}
	core := testPR("core", 1, "master")
	nova := testPR("nova", 2, "master")
	host.pulls["cfengine/core"] = []github.PullRequest{*core}
	host.pulls["cfengine/nova"] = []github.PullRequest{*nova}
	host.comments[core.CommentsURL] = []github.Comment{comment(trustedAuthor, "@cf-bottom build")}

	summary, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Repos: 3, Pulls: 2}, summary)
	assert.Len(t, ci.submitted, 1)
	assert.Equal(t, []string{core.HTMLURL, nova.HTMLURL}, log.prs)
}

func TestRunCollectsErrors(t *testing.T) {
	b, host, ci, _ := newTestBot(t, Options{
		Orgs:     []string{"cfengine"},
		Features: []string{FeatureTriggerJenkins},
	})
	ci.waitErr = jenkins.ErrPollTimeout
	host.repos["cfengine"] = []github.Repository{{FullName: "cfengine/core"}}
	one, two := testPR("core", 1, "master"), testPR("core", 2, "master")
	host.pulls["cfengine/core"] = []github.PullRequest{*one, *two}
	host.comments[one.CommentsURL] = []github.Comment{comment(trustedAuthor, "@cf-bottom build")}

	summary, err := b.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 2, summary.Pulls)
}

func TestRunFetchFailure(t *testing.T) {
	b, host, _, _ := newTestBot(t, Options{Orgs: []string{"cfengine"}})
	host.repos["cfengine"] = []github.Repository{{FullName: "cfengine/core"}}
	host.failRepo = "cfengine/core"

	_, err := b.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cfengine/core")
}

func TestPassiveHostIsNotAnError(t *testing.T) {
	b, host, _, _ := newTestBot(t, Options{})
	host.passive = true
	pr := testPR("core", 1, "master")
	c := comment("mallory", "@cf-bottom build")

	assert.NoError(t, b.HandleMention(context.Background(), pr, &c))
}
