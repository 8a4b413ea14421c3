package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/pborman/uuid"

	"github.com/cfengine/cf-bottom/pkg/logging"
	"github.com/cfengine/cf-bottom/pkg/slack"
	"github.com/cfengine/cf-bottom/pkg/store"
)

type Options struct {
	Listen string

	Store      *store.Store
	Dispatcher *slack.Dispatcher
	Scanner    *Scanner

	// SigningSecret, when set, is used to verify requests from Slack.
	SigningSecret string
	// ReadToken, when set, must match the token of incoming Slack events.
	ReadToken string
	// BotID is the Slack user ID of the bot, when Slack does not name it.
	BotID string
}

type Daemon struct {
	opts   Options
	server *http.Server
	l      net.Listener
	doneCh chan struct{}

	// ctx is the parent of background work started by requests.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Daemon and attaches the following handlers:
//
// * POST /slack/events: Slack Events API webhook; commands are dispatched in the background.
// * GET /builds: lists recently triggered builds, newest first.
// * GET /builds/{id}: shows one triggered build with its state history.
// * POST /scan: looks at all open pull requests now.
// * GET /healthcheck: reports whether the daemon is up and scanning.
// A type-safe client for this server can be found in the `pkg/daemon/client` package.
func New(opts Options) (srv *Daemon, err error) {
	srv = &Daemon{opts: opts}
	srv.ctx, srv.cancel = context.WithCancel(context.Background())

	srv.doneCh = make(chan struct{})
	srv.server = &http.Server{
		Handler:      srv.Handler(),
		WriteTimeout: 600 * time.Second,
		ReadTimeout:  60 * time.Second,
	}

	srv.l, err = net.Listen("tcp", opts.Listen)
	if err != nil {
		return nil, err
	}

	return srv, nil
}

// Handler returns the router of the daemon.
func (d *Daemon) Handler() http.Handler {
	r := mux.NewRouter()

	// Set a unique request ID.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Set("X-Request-ID", uuid.New()[:8])
			next.ServeHTTP(w, r)
		})
	})

	if d.opts.Dispatcher != nil {
		r.HandleFunc("/slack/events", d.slackHandler()).Methods("POST")
	}
	if d.opts.Store != nil {
		r.HandleFunc("/builds", d.buildsHandler()).Methods("GET")
		r.HandleFunc("/builds/{id}", d.buildHandler()).Methods("GET")
	}
	if d.opts.Scanner != nil {
		r.HandleFunc("/scan", d.scanHandler()).Methods("POST")
	}
	r.HandleFunc("/healthcheck", d.healthcheckHandler()).Methods("GET")
	return r
}

// Serve starts the server and blocks until the server is closed, either
// explicitly via Shutdown, or due to a fault condition. It propagates the
// non-nil err return value from http.Serve.
func (d *Daemon) Serve() error {
	select {
	case <-d.doneCh:
		return fmt.Errorf("tried to reuse a stopped server")
	default:
	}

	logging.S().Infow("daemon listening", "addr", d.Addr())
	return d.server.Serve(d.l)
}

func (d *Daemon) Addr() string {
	return d.l.Addr().String()
}

func (d *Daemon) Port() int {
	return d.l.Addr().(*net.TCPAddr).Port
}

// Shutdown stops accepting requests and waits for background work to
// finish, or for ctx to expire.
func (d *Daemon) Shutdown(ctx context.Context) error {
	defer close(d.doneCh)
	err := d.server.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	d.cancel()
	return err
}

// background runs fn outside of the request that started it.
func (d *Daemon) background(fn func(ctx context.Context)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn(d.ctx)
	}()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
