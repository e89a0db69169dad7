package router

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/grovetools/statesync/pkg/models"
)

// Status is the final state of a dispatched command.
type Status string

const (
	StatusRejected  Status = "rejected"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Outcome is what a Ticket resolves to. Rejected commands never executed
// and carry neither data nor error.
type Outcome struct {
	Status Status
	Data   json.RawMessage
	Err    error
}

// Token marks a SerializeLatest command as superseded once a newer command
// of the same kind is accepted. The router never interrupts the call; the
// token only makes staleness observable.
type Token struct {
	once sync.Once
	ch   chan struct{}
}

func newToken() *Token {
	return &Token{ch: make(chan struct{})}
}

// Superseded is closed when a newer command of the same kind is accepted.
func (t *Token) Superseded() <-chan struct{} {
	if t == nil {
		return nil
	}
	return t.ch
}

// IsSuperseded reports whether a newer command has been accepted.
func (t *Token) IsSuperseded() bool {
	if t == nil {
		return false
	}
	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}

func (t *Token) supersede() {
	t.once.Do(func() { close(t.ch) })
}

type tokenKey struct{}

// TokenFrom returns the token of the SerializeLatest command whose remote
// call is running with ctx.
func TokenFrom(ctx context.Context) (*Token, bool) {
	t, ok := ctx.Value(tokenKey{}).(*Token)
	return t, ok
}

// Ticket tracks one dispatched command.
type Ticket struct {
	ID   string
	Kind models.CommandKind

	token    *Token
	admitted chan struct{}
	done     chan struct{}
	once     sync.Once
	outcome  Outcome
}

func newTicket(id string, kind models.CommandKind) *Ticket {
	return &Ticket{
		ID:       id,
		Kind:     kind,
		admitted: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Token returns the cancellation token of a SerializeLatest command, or nil
// for other policies and rejected commands. It blocks until the routing
// decision has been made.
func (t *Ticket) Token() *Token {
	select {
	case <-t.admitted:
	case <-t.done:
	}
	return t.token
}

func (t *Ticket) admit(token *Token) {
	t.token = token
	close(t.admitted)
}

// Done is closed when the outcome is known.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the command settles or ctx ends.
func (t *Ticket) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		return t.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (t *Ticket) settle(o Outcome) {
	t.once.Do(func() {
		t.outcome = o
		close(t.done)
	})
}
