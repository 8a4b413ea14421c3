package daemon

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron"

	"github.com/cfengine/cf-bottom/pkg/bot"
	"github.com/cfengine/cf-bottom/pkg/logging"
)

var ErrScanInProgress = errors.New("a scan is already in progress")

// ScanFunc looks at all open pull requests once.
type ScanFunc func(ctx context.Context) (bot.Summary, error)

// Scanner runs scans on demand and on a cron schedule. At most one scan runs
// at a time; overlapping requests are refused.
type Scanner struct {
	scan    ScanFunc
	running int32

	mu   sync.Mutex
	last time.Time
	cron *cron.Cron
}

func NewScanner(scan ScanFunc) *Scanner {
	return &Scanner{scan: scan}
}

// Scan runs one scan, unless one is already running.
func (s *Scanner) Scan(ctx context.Context) (bot.Summary, error) {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return bot.Summary{}, ErrScanInProgress
	}
	defer atomic.StoreInt32(&s.running, 0)

	start := time.Now()
	summary, err := s.scan(ctx)

	s.mu.Lock()
	s.last = start
	s.mu.Unlock()

	logging.S().Infow("scan finished", "took", time.Since(start), "repos", summary.Repos, "pulls", summary.Pulls, "errors", summary.Errors)
	return summary, err
}

// Running reports whether a scan is in progress.
func (s *Scanner) Running() bool {
	return atomic.LoadInt32(&s.running) == 1
}

// Last returns when the last finished scan started.
func (s *Scanner) Last() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Start schedules scans according to a cron spec such as "@every 5m". The
// scans run until Stop is called or ctx is done.
func (s *Scanner) Start(ctx context.Context, spec string) error {
	c := cron.New()
	err := c.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		_, err := s.Scan(ctx)
		switch {
		case errors.Is(err, ErrScanInProgress):
			logging.S().Infow("skipping scheduled scan, previous one still running")
		case err != nil:
			logging.S().Warnw("scheduled scan failed", "err", err)
		}
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()

	c.Start()
	logging.S().Infow("scheduled scans", "spec", spec)
	return nil
}

// Stop stops scheduling scans. A scan in progress is not interrupted.
func (s *Scanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
}

type scanResult struct {
	summary bot.Summary
	err     error
}

func (d *Daemon) scanHandler() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logging.S().With("ruid", r.Header.Get("X-Request-ID"))

		log.Debugw("handle request", "command", "scan")
		defer log.Debugw("request handled", "command", "scan")

		// The scan outlives the request; submitted builds still get their
		// status comment.
		done := make(chan scanResult, 1)
		d.background(func(ctx context.Context) {
			summary, err := d.opts.Scanner.Scan(ctx)
			done <- scanResult{summary, err}
		})

		var res scanResult
		select {
		case res = <-done:
		case <-r.Context().Done():
			log.Infow("caller went away, scan continues", "err", r.Context().Err())
			return
		}

		switch {
		case errors.Is(res.err, ErrScanInProgress):
			writeError(w, http.StatusConflict, res.err)
		case res.err != nil && res.summary.Pulls == 0:
			writeError(w, http.StatusBadGateway, res.err)
		default:
			// errors on single pull requests are part of the summary.
			writeJSON(w, http.StatusOK, res.summary)
		}
	}
}
