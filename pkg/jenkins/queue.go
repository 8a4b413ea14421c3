package jenkins

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cfengine/cf-bottom/pkg/logging"
)

var (
	// ErrPollTimeout is returned when a queued build was not assigned within
	// the attempt or time budget of the poller.
	ErrPollTimeout = errors.New("timed out waiting for queued build")
	// ErrCancelled is returned when the queue item was cancelled in Jenkins.
	ErrCancelled = errors.New("queued build was cancelled")
)

const DefaultPollInterval = time.Second

// PollState (kind: int) is the state of a queued build as seen by the
// poller.
// StateQueued: the build was accepted and sits in the Jenkins queue.
// StatePolling: the poller is asking Jenkins about the queue item.
// StateAssigned: Jenkins started the build; number and url are known.
// StateTimedOut: the poller gave up, or its context was cancelled.
type PollState int

const (
	StateQueued PollState = iota
	StatePolling
	StateAssigned
	StateTimedOut
)

func (s PollState) String() string {
	return [...]string{
		"queued",
		"polling",
		"assigned",
		"timed-out",
	}[s]
}

// Build identifies a build that Jenkins has started.
type Build struct {
	Number string `json:"number" mapstructure:"number"`
	URL    string `json:"url" mapstructure:"url"`
}

// QueueItem is the subset of a Jenkins queue item the bot cares about.
type QueueItem struct {
	ID         int    `mapstructure:"id"`
	Why        string `mapstructure:"why"`
	Cancelled  bool   `mapstructure:"cancelled"`
	Executable *Build `mapstructure:"executable"`
}

// FetchFunc retrieves the current queue item at location.
type FetchFunc func(ctx context.Context, location string) (*QueueItem, error)

// Poller waits for a queue item to turn into a build.
type Poller struct {
	Fetch    FetchFunc
	Interval time.Duration
	// MaxAttempts bounds the number of polls; zero polls until the context
	// is done.
	MaxAttempts int
	// Timeout bounds the total wait; zero means no bound.
	Timeout time.Duration
	// OnState, when set, observes every state transition.
	OnState func(state PollState, attempt int)
}

// Wait polls location every interval until Jenkins assigns a build. Fetch
// errors are logged and retried within the attempt budget.
func (p *Poller) Wait(ctx context.Context, location string) (Build, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	p.transition(StateQueued, 0)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			p.transition(StateTimedOut, attempt-1)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return Build{}, fmt.Errorf("%w: %s after %d attempts", ErrPollTimeout, location, attempt-1)
			}
			return Build{}, ctx.Err()
		case <-ticker.C:
		}

		p.transition(StatePolling, attempt)
		item, err := p.Fetch(ctx, location)
		switch {
		case err != nil:
			lastErr = err
			logging.S().Warnw("failed to fetch queue item", "location", location, "attempt", attempt, "err", err)
		case item.Cancelled:
			p.transition(StateTimedOut, attempt)
			return Build{}, fmt.Errorf("%w: %s", ErrCancelled, location)
		case item.Executable != nil:
			p.transition(StateAssigned, attempt)
			logging.S().Debugw("queued build assigned", "location", location, "number", item.Executable.Number, "url", item.Executable.URL)
			return *item.Executable, nil
		default:
			logging.S().Infow("waiting for jenkins build in queue", "location", location, "attempt", attempt, "why", item.Why)
		}

		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			p.transition(StateTimedOut, attempt)
			if lastErr != nil {
				return Build{}, fmt.Errorf("%w: %s after %d attempts, last error: %v", ErrPollTimeout, location, attempt, lastErr)
			}
			return Build{}, fmt.Errorf("%w: %s after %d attempts", ErrPollTimeout, location, attempt)
		}
	}
}

func (p *Poller) transition(s PollState, attempt int) {
	if p.OnState != nil {
		p.OnState(s, attempt)
	}
}
