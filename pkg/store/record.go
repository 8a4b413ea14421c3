package store

import (
	"time"

	"github.com/rs/xid"

	"github.com/cfengine/cf-bottom/pkg/trigger"
)

// State (kind: int) represents the last known state of a triggered build.
// StateSubmitted: the bot is posting the parameters to Jenkins.
// StateQueued: Jenkins accepted the build and returned a queue item.
// StatePolling: the bot is waiting for the queue item to turn into a build.
// StateAssigned: Jenkins started the build; the record has a result.
// StateTimedOut: the bot gave up waiting on the queue.
// StateFailed: the build could not be submitted or reported.
// StatePassive: nothing was posted, the bot runs in passive mode.
type State int

const (
	StateSubmitted State = iota
	StateQueued
	StatePolling
	StateAssigned
	StateTimedOut
	StateFailed
	StatePassive
)

func (s State) String() string {
	return [...]string{
		"submitted",
		"queued",
		"polling",
		"assigned",
		"timed-out",
		"failed",
		"passive",
	}[s]
}

// Terminal reports whether no further transitions are expected.
func (s State) Terminal() bool {
	switch s {
	case StateAssigned, StateTimedOut, StateFailed, StatePassive:
		return true
	}
	return false
}

// DatedState is a state together with the time it was entered.
type DatedState struct {
	State   State     `json:"state"`
	Entered time.Time `json:"entered"`
	Note    string    `json:"note,omitempty"`
}

// Result is the Jenkins build a record ended up as.
type Result struct {
	Number string `json:"number"`
	URL    string `json:"url"`
}

// Record (kind: struct) is the persisted history of one trigger event. This
// schema is used in the leveldb store as well as in the daemon API.
type Record struct {
	Version     int             `json:"version"`
	ID          string          `json:"id"`
	Created     time.Time       `json:"created"`
	PullRequest string          `json:"pull_request"`
	Repo        string          `json:"repo"`
	Number      int             `json:"number"`
	Author      string          `json:"author"`
	Job         string          `json:"job"`
	Path        string          `json:"path"`
	Params      *trigger.Params `json:"params"`
	Description string          `json:"description"`
	Location    string          `json:"location,omitempty"`
	States      []DatedState    `json:"states"`
	Result      *Result         `json:"result,omitempty"`
}

// NewRecord returns a record for a derived build plan, with a fresh ID and
// in StateSubmitted.
func NewRecord(prURL, author string, req trigger.Request, plan trigger.Plan) *Record {
	now := time.Now()
	return &Record{
		Version:     1,
		ID:          xid.New().String(),
		Created:     now,
		PullRequest: prURL,
		Repo:        req.Repo,
		Number:      req.Number,
		Author:      author,
		Job:         plan.Job.Name,
		Path:        plan.Path,
		Params:      plan.Params,
		Description: plan.Description,
		States:      []DatedState{{State: StateSubmitted, Entered: now}},
	}
}

// State returns the latest state of the record.
func (r *Record) State() DatedState {
	if len(r.States) == 0 {
		return DatedState{State: StateSubmitted, Entered: r.Created}
	}
	return r.States[len(r.States)-1]
}
