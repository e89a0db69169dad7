// Package router binds command kinds to a request lifecycle and a
// concurrency policy.
package router

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/grovetools/statesync/errors"
	"github.com/grovetools/statesync/pkg/lifecycle"
	"github.com/grovetools/statesync/pkg/models"
	"github.com/grovetools/statesync/pkg/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Loop is the event loop routing decisions and state writes run on.
type Loop interface {
	// Do posts fn to the loop and reports false if the loop has stopped.
	Do(fn func()) bool
	// Apply dispatches an action; only called from the loop.
	Apply(a store.Action)
}

// Route binds one command kind.
type Route struct {
	Kind      models.CommandKind
	Lifecycle *lifecycle.Lifecycle
	Policy    Policy
	// After returns follow-up actions applied right after the terminal
	// event, e.g. closing a dialog once a create succeeded.
	After func(ev lifecycle.Event) []store.Action
}

// channel is the per-kind routing state. It is only touched on the loop.
type channel struct {
	route   Route
	limiter *rate.Limiter
	latest  *Token
}

// Router dispatches commands according to an immutable route table.
type Router struct {
	loop     Loop
	logger   *logrus.Entry
	now      func() time.Time
	channels map[models.CommandKind]*channel
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithClock replaces the clock used to timestamp command arrival.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

// New builds a router. Invalid or duplicate routes are configuration errors.
func New(loop Loop, routes []Route, opts ...Option) (*Router, error) {
	r := &Router{
		loop:     loop,
		logger:   logrus.NewEntry(logrus.StandardLogger()),
		now:      time.Now,
		channels: make(map[models.CommandKind]*channel, len(routes)),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, route := range routes {
		if route.Kind.IsZero() {
			return nil, errors.ConfigInvalid("route without a command kind")
		}
		if route.Lifecycle == nil {
			return nil, errors.ConfigInvalid("route has no lifecycle").WithDetail("kind", route.Kind.String())
		}
		if err := route.Policy.Validate(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid policy for "+route.Kind.String())
		}
		if _, exists := r.channels[route.Kind]; exists {
			return nil, errors.DuplicateRoute(route.Kind.String())
		}

		ch := &channel{route: route}
		if route.Policy.Type == PolicyRateLimited {
			ch.limiter = rate.NewLimiter(rate.Every(route.Policy.Window), 1)
		}
		r.channels[route.Kind] = ch
	}
	return r, nil
}

// Policy returns the policy registered for kind.
func (r *Router) Policy(kind models.CommandKind) (Policy, bool) {
	ch, ok := r.channels[kind]
	if !ok {
		return Policy{}, false
	}
	return ch.route.Policy, true
}

// Require checks that every kind has a route.
func (r *Router) Require(kinds ...models.CommandKind) error {
	for _, kind := range kinds {
		if _, ok := r.channels[kind]; !ok {
			return errors.MissingPolicy(kind.String())
		}
	}
	return nil
}

// Dispatch routes a command. It never blocks on the remote call; use the
// returned Ticket to observe the outcome. Kinds without a route are a
// configuration error.
func (r *Router) Dispatch(ctx context.Context, cmd lifecycle.Command) (*Ticket, error) {
	ch, ok := r.channels[cmd.Kind]
	if !ok {
		return nil, errors.MissingPolicy(cmd.Kind.String())
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}

	arrival := r.now()
	ticket := newTicket(cmd.ID, cmd.Kind)

	if !r.loop.Do(func() { r.admit(ctx, ch, cmd, arrival, ticket) }) {
		ticket.settle(Outcome{Status: StatusRejected})
		return ticket, errors.New(errors.ErrCodeInternal, "event loop is not running")
	}
	return ticket, nil
}

// admit makes the policy decision. Runs on the loop.
func (r *Router) admit(ctx context.Context, ch *channel, cmd lifecycle.Command, arrival time.Time, ticket *Ticket) {
	logger := r.logger.WithFields(logrus.Fields{
		"kind":       cmd.Kind.String(),
		"command_id": cmd.ID,
	})

	var token *Token
	switch ch.route.Policy.Type {
	case PolicyRateLimited:
		if !ch.limiter.AllowN(arrival, 1) {
			logger.WithField("window", ch.route.Policy.Window).Debug("Command rejected by rate limit")
			ticket.settle(Outcome{Status: StatusRejected})
			return
		}
	case PolicySerializeLatest:
		if ch.latest != nil {
			ch.latest.supersede()
		}
		token = newToken()
		ch.latest = token
		ctx = context.WithValue(ctx, tokenKey{}, token)
	}
	ticket.admit(token)

	lc := ch.route.Lifecycle
	r.loop.Apply(store.LifecycleAction(lc.Begin(cmd)))
	logger.Debug("Command accepted")

	go func() {
		ev := lc.Execute(ctx, cmd)
		if !r.loop.Do(func() { r.settle(ch, ev, token, ticket) }) {
			logger.Warn("Event loop stopped before command settled")
			ticket.settle(outcomeOf(ev))
		}
	}()
}

// settle applies the terminal event. Runs on the loop.
func (r *Router) settle(ch *channel, ev lifecycle.Event, token *Token, ticket *Ticket) {
	r.loop.Apply(store.LifecycleAction(ev))
	if ch.route.After != nil {
		for _, a := range ch.route.After(ev) {
			r.loop.Apply(a)
		}
	}
	if token != nil && ch.latest == token {
		ch.latest = nil
	}

	entry := r.logger.WithFields(logrus.Fields{
		"kind":       ev.Command.Kind.String(),
		"command_id": ev.Command.ID,
		"phase":      ev.Phase.String(),
	})
	if ev.Err != nil {
		entry.WithError(ev.Err).Debug("Command failed")
	} else {
		entry.Debug("Command settled")
	}
	ticket.settle(outcomeOf(ev))
}

func outcomeOf(ev lifecycle.Event) Outcome {
	if ev.Phase == lifecycle.PhaseFailed {
		return Outcome{Status: StatusFailed, Err: ev.Err}
	}
	return Outcome{Status: StatusSucceeded, Data: ev.Data}
}
