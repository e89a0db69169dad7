package lifecycle

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/grovetools/statesync/errors"
	"github.com/grovetools/statesync/pkg/api"
)

// Thunk executes the remote part of a command.
type Thunk func(ctx context.Context, cmd Command) (*api.Response, error)

// Remote returns a Thunk that builds a generic REST request for the command
// and performs it with caller.
func Remote(caller api.Caller) Thunk {
	return func(ctx context.Context, cmd Command) (*api.Response, error) {
		req, err := api.NewRequest(cmd.Kind, cmd.Payload, cmd.Term)
		if err != nil {
			return nil, err
		}
		req.OnProgress = cmd.OnProgress
		return caller.Call(ctx, req)
	}
}

// Lifecycle wraps a Thunk with the REQUESTED -> SUCCEEDED | FAILED
// transition. Exactly one terminal event is produced per executed command
// and there are no retries.
type Lifecycle struct {
	Call Thunk
	// TrackPending maintains the resource pending flag around the call.
	TrackPending bool
	// TrackTerm propagates Command.Term on success (list queries).
	TrackTerm bool
}

// Begin returns the REQUESTED event for cmd.
func (l *Lifecycle) Begin(cmd Command) Event {
	return Requested(cmd, l.TrackPending)
}

// Execute invokes the thunk and returns the terminal event. Errors and
// panics raised by the thunk become a FAILED event; nothing escapes.
func (l *Lifecycle) Execute(ctx context.Context, cmd Command) (ev Event) {
	progress := newMonotonicProgress(cmd.OnProgress)
	if progress != nil {
		cmd.OnProgress = progress.report
		defer progress.stop()
	}

	defer func() {
		if r := recover(); r != nil {
			ev = Failed(cmd, errors.RemoteCallPanic(cmd.Kind.String(), r), l.TrackPending)
		}
	}()

	if l.Call == nil {
		return Failed(cmd, errors.New(errors.ErrCodeInternal, "lifecycle has no call"), l.TrackPending)
	}

	resp, err := l.Call(ctx, cmd)
	if err != nil {
		if !errors.IsClass(err, errors.ClassRemoteCall) {
			err = errors.RemoteCallFailed(cmd.Kind.String(), err)
		}
		return Failed(cmd, err, l.TrackPending)
	}

	var data json.RawMessage
	if resp != nil {
		data = resp.Body
	}
	ev = Succeeded(cmd, data, l.TrackPending)
	if l.TrackTerm {
		term := cmd.Term
		ev.Term = &term
	}
	return ev
}

// Run emits the REQUESTED event, executes the command and emits the
// terminal event, which it also returns.
func (l *Lifecycle) Run(ctx context.Context, cmd Command, emit func(Event)) Event {
	emit(l.Begin(cmd))
	terminal := l.Execute(ctx, cmd)
	emit(terminal)
	return terminal
}

// monotonicProgress clamps progress reports to [0,1], never lets them go
// backwards and silences them once the call has settled.
type monotonicProgress struct {
	mu      sync.Mutex
	last    float64
	stopped bool
	fn      func(float64)
}

func newMonotonicProgress(fn func(float64)) *monotonicProgress {
	if fn == nil {
		return nil
	}
	return &monotonicProgress{last: -1, fn: fn}
}

func (p *monotonicProgress) report(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	if v < p.last {
		v = p.last
	}
	p.last = v
	p.fn(v)
}

func (p *monotonicProgress) stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
}
