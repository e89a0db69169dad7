package store

import (
	"sync"

	"github.com/grovetools/statesync/pkg/lifecycle"
	"github.com/grovetools/statesync/pkg/models"
)

// Update is delivered to subscribers after an action has been applied.
type Update struct {
	Action Action
	State  State
}

// Store is the in-memory application state. Writes are expected to come
// from a single event loop; the lock only guards concurrent readers.
type Store struct {
	mu          sync.RWMutex
	state       State
	reducers    map[ActionType]Reducer
	subscribers map[chan Update]struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithReducer registers or replaces the reducer for an action type.
func WithReducer(t ActionType, r Reducer) Option {
	return func(s *Store) {
		s.reducers[t] = r
	}
}

// WithState seeds the store.
func WithState(state State) Option {
	return func(s *Store) {
		s.state = state
	}
}

// New creates a new Store instance.
func New(opts ...Option) *Store {
	s := &Store{
		state: State{
			Collections: make(map[models.ResourceKind]Collection),
			Pending:     lifecycle.Pending{},
		},
		reducers:    DefaultReducers(),
		subscribers: make(map[chan Update]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current state. The returned value is never
// modified afterwards.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Dispatch applies an action and notifies subscribers. Actions with no
// reducer are ignored and reported as not applied.
func (s *Store) Dispatch(a Action) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	reduce, ok := s.reducers[a.Type]
	if !ok {
		return false
	}
	s.state = reduce(s.state, a)

	u := Update{Action: a, State: s.state}
	for ch := range s.subscribers {
		select {
		case ch <- u:
		default:
			// Slow subscribers miss updates rather than stall the loop.
		}
	}
	return true
}

// Subscribe creates a new subscription channel for state updates.
func (s *Store) Subscribe() chan Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Update, 256)
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(ch chan Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[ch]; !ok {
		return
	}
	delete(s.subscribers, ch)
	close(ch)
}
