package lifecycle

import "github.com/grovetools/statesync/pkg/models"

// Pending is the set of resources with a pending-tracked command in flight.
// It is an immutable value: Transition returns a new set and never modifies
// its input.
type Pending map[models.ResourceKind]bool

// Get reports whether kind is pending.
func (p Pending) Get(kind models.ResourceKind) bool {
	return p[kind]
}

func (p Pending) with(kind models.ResourceKind, value bool) Pending {
	next := make(Pending, len(p)+1)
	for k, v := range p {
		next[k] = v
	}
	if value {
		next[kind] = true
	} else {
		delete(next, kind)
	}
	return next
}

// Transition is the pure pending-flag state machine. A pending-tracked
// REQUESTED sets the flag of the command's resource; a pending-tracked
// terminal event clears it unconditionally. Every other event leaves the
// state unchanged.
func Transition(p Pending, e Event) Pending {
	if !e.TrackPending {
		return p
	}
	resource := e.Command.Kind.Resource
	switch e.Phase {
	case PhaseRequested:
		if p.Get(resource) {
			return p
		}
		return p.with(resource, true)
	case PhaseSucceeded, PhaseFailed:
		if !p.Get(resource) {
			return p
		}
		return p.with(resource, false)
	}
	return p
}
