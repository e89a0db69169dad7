// Package engine runs the single event loop that owns all state writes.
package engine

import (
	"context"
	"sync"

	"github.com/grovetools/statesync/pkg/store"
	"github.com/sirupsen/logrus"
)

const queueSize = 256

// Engine serializes work onto one goroutine. Store writes and routing
// decisions posted through Do run one at a time, in posting order.
type Engine struct {
	store  *store.Store
	logger *logrus.Entry

	queue    chan func()
	stopping chan struct{}
	stopped  chan struct{}

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// New creates a new Engine instance.
func New(st *store.Store, logger *logrus.Entry) *Engine {
	return &Engine{
		store:    st,
		logger:   logger,
		queue:    make(chan func(), queueSize),
		stopping: make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start runs the loop and blocks until ctx is canceled. Work accepted by
// Do before the loop stops is still executed.
func (e *Engine) Start(ctx context.Context) {
	started := false
	e.once.Do(func() { started = true })
	if !started {
		e.logger.Warn("Engine already started")
		return
	}
	defer close(e.stopped)

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return
		case fn := <-e.queue:
			e.run(fn)
		}
	}
}

func (e *Engine) shutdown() {
	close(e.stopping)

	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	for {
		select {
		case fn := <-e.queue:
			e.run(fn)
		default:
			return
		}
	}
}

func (e *Engine) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithField("panic", r).Error("Recovered from panic in event loop")
		}
	}()
	fn()
}

// Do posts fn to the loop. It reports false once the loop has stopped, in
// which case fn never runs. Do must not be called from the loop itself.
func (e *Engine) Do(fn func()) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return false
	}
	select {
	case e.queue <- fn:
		return true
	case <-e.stopping:
		return false
	}
}

// Dispatch posts an action to be applied to the store on the loop.
func (e *Engine) Dispatch(a store.Action) bool {
	return e.Do(func() { e.Apply(a) })
}

// Apply applies an action immediately. Only call it from the loop.
func (e *Engine) Apply(a store.Action) {
	if !e.store.Dispatch(a) {
		e.logger.WithField("action", a.String()).Debug("No reducer for action")
	}
}

// Stopped is closed after the loop has exited.
func (e *Engine) Stopped() <-chan struct{} {
	return e.stopped
}

// Store returns the engine's state store.
func (e *Engine) Store() *store.Store {
	return e.store
}
