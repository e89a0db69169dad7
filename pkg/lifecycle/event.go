// Package lifecycle turns a command into a tracked remote operation with a
// REQUESTED -> SUCCEEDED | FAILED transition.
package lifecycle

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/statesync/pkg/models"
)

// Phase is the lifecycle stage an Event reports.
type Phase int

const (
	PhaseRequested Phase = iota
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseRequested:
		return "requested"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Command is a request for an asynchronous remote operation. It is treated
// as immutable once dispatched.
type Command struct {
	ID      string
	Kind    models.CommandKind
	Payload interface{}
	// Term is the search term of a list query.
	Term string
	// OnProgress, if set, is called with a non-decreasing fraction in [0,1]
	// before the terminal event.
	OnProgress func(float64)
}

// Event is the tagged union of lifecycle transitions. Data is set only on
// PhaseSucceeded and Err only on PhaseFailed.
type Event struct {
	Phase   Phase
	Command Command
	Data    json.RawMessage
	Err     error

	// TrackPending marks events of a lifecycle that maintains the pending
	// flag of its resource.
	TrackPending bool
	// Term is set on a successful list query whose lifecycle propagates the
	// search term.
	Term *string
}

// Requested builds the event that starts a lifecycle.
func Requested(cmd Command, trackPending bool) Event {
	return Event{Phase: PhaseRequested, Command: cmd, TrackPending: trackPending}
}

// Succeeded builds a success terminal event.
func Succeeded(cmd Command, data json.RawMessage, trackPending bool) Event {
	return Event{Phase: PhaseSucceeded, Command: cmd, Data: data, TrackPending: trackPending}
}

// Failed builds a failure terminal event.
func Failed(cmd Command, err error, trackPending bool) Event {
	return Event{Phase: PhaseFailed, Command: cmd, Err: err, TrackPending: trackPending}
}

// Terminal reports whether the event ends the lifecycle.
func (e Event) Terminal() bool {
	return e.Phase == PhaseSucceeded || e.Phase == PhaseFailed
}

func (e Event) String() string {
	return fmt.Sprintf("%s/%s", e.Command.Kind, e.Phase)
}
