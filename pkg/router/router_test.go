package router

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grovetools/statesync/errors"
	"github.com/grovetools/statesync/internal/engine"
	"github.com/grovetools/statesync/pkg/api"
	"github.com/grovetools/statesync/pkg/lifecycle"
	"github.com/grovetools/statesync/pkg/models"
	"github.com/grovetools/statesync/pkg/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	createSamples = models.Kind(models.ResourceSamples, models.VerbCreate)
	findSamples   = models.Kind(models.ResourceSamples, models.VerbFind)
	removeFiles   = models.Kind(models.ResourceFiles, models.VerbRemove)
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func startEngine(t *testing.T) (*engine.Engine, *store.Store) {
	t.Helper()
	st := store.New()
	e := engine.New(st, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go e.Start(ctx)
	t.Cleanup(func() {
		cancel()
		<-e.Stopped()
	})
	return e, st
}

func wait(t *testing.T, ticket *Ticket) Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := ticket.Wait(ctx)
	require.NoError(t, err)
	return out
}

func terminalEvents(ch chan store.Update, kind models.CommandKind) func(n int) []lifecycle.Event {
	return func(n int) []lifecycle.Event {
		var out []lifecycle.Event
		timeout := time.After(2 * time.Second)
		for len(out) < n {
			select {
			case u := <-ch:
				ev := u.Action.Event
				if ev != nil && ev.Command.Kind == kind && ev.Terminal() {
					out = append(out, *ev)
				}
			case <-timeout:
				return out
			}
		}
		return out
	}
}

func assertNoTerminalEvent(t *testing.T, ch chan store.Update, kind models.CommandKind, d time.Duration) {
	t.Helper()
	timeout := time.After(d)
	for {
		select {
		case u := <-ch:
			if ev := u.Action.Event; ev != nil && ev.Command.Kind == kind && ev.Terminal() {
				t.Fatalf("unexpected terminal event %s", ev)
			}
		case <-timeout:
			return
		}
	}
}

func TestRateLimitedRejectsWithinWindow(t *testing.T) {
	const window = 500 * time.Millisecond
	e, st := startEngine(t)

	var calls int32
	lc := &lifecycle.Lifecycle{Call: func(ctx context.Context, cmd lifecycle.Command) (*api.Response, error) {
		atomic.AddInt32(&calls, 1)
		return &api.Response{Body: json.RawMessage(`{"id":"s1"}`)}, nil
	}}

	start := time.Unix(1000, 0)
	var now time.Time
	r, err := New(e, []Route{{Kind: createSamples, Lifecycle: lc, Policy: Throttle(window)}},
		WithLogger(quietLogger()),
		WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)

	sub := st.Subscribe()
	events := terminalEvents(sub, createSamples)

	dispatchAt := func(offset time.Duration) Outcome {
		now = start.Add(offset)
		ticket, err := r.Dispatch(context.Background(), lifecycle.Command{Kind: createSamples})
		require.NoError(t, err)
		return wait(t, ticket)
	}

	assert.Equal(t, StatusSucceeded, dispatchAt(0).Status)

	rejected := dispatchAt(window / 2)
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.Nil(t, rejected.Err)

	assert.Equal(t, StatusSucceeded, dispatchAt(window+time.Millisecond).Status)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Len(t, events(2), 2)
	assertNoTerminalEvent(t, sub, createSamples, 100*time.Millisecond)
}

func TestSerializeLatestAppliesInCompletionOrder(t *testing.T) {
	e, st := startEngine(t)

	gates := map[string]chan struct{}{
		"first":  make(chan struct{}),
		"second": make(chan struct{}),
	}
	var mu sync.Mutex
	tokens := map[string]*Token{}

	lc := &lifecycle.Lifecycle{
		TrackTerm: true,
		Call: func(ctx context.Context, cmd lifecycle.Command) (*api.Response, error) {
			tok, ok := TokenFrom(ctx)
			assert.True(t, ok)
			mu.Lock()
			tokens[cmd.Term] = tok
			mu.Unlock()

			<-gates[cmd.Term]
			return &api.Response{Body: json.RawMessage(`[{"id":"` + cmd.Term + `"}]`)}, nil
		},
	}
	r, err := New(e, []Route{{Kind: findSamples, Lifecycle: lc, Policy: Latest()}}, WithLogger(quietLogger()))
	require.NoError(t, err)

	sub := st.Subscribe()
	events := terminalEvents(sub, findSamples)

	first, err := r.Dispatch(context.Background(), lifecycle.Command{Kind: findSamples, Term: "first"})
	require.NoError(t, err)
	second, err := r.Dispatch(context.Background(), lifecycle.Command{Kind: findSamples, Term: "second"})
	require.NoError(t, err)

	secondToken := second.Token()
	assert.False(t, secondToken.IsSuperseded())
	assert.True(t, first.Token().IsSuperseded())

	close(gates["second"])
	assert.Equal(t, StatusSucceeded, wait(t, second).Status)
	close(gates["first"])
	assert.Equal(t, StatusSucceeded, wait(t, first).Status)

	got := events(2)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].Command.Term)
	assert.Equal(t, "first", got[1].Command.Term)

	state := st.Snapshot()
	assert.Equal(t, "first", state.Terms[models.ResourceSamples], "the later completion wins")
	_, ok := state.Document(models.ResourceSamples, "first")
	assert.True(t, ok)

	mu.Lock()
	defer mu.Unlock()
	assert.Same(t, first.Token(), tokens["first"])
}

func TestRunEveryExecutesConcurrently(t *testing.T) {
	e, st := startEngine(t)

	var started sync.WaitGroup
	started.Add(2)
	release := make(chan struct{})
	lc := &lifecycle.Lifecycle{
		TrackPending: true,
		Call: func(ctx context.Context, cmd lifecycle.Command) (*api.Response, error) {
			started.Done()
			<-release
			return &api.Response{}, nil
		},
	}
	r, err := New(e, []Route{{Kind: removeFiles, Lifecycle: lc, Policy: Every()}}, WithLogger(quietLogger()))
	require.NoError(t, err)

	a, err := r.Dispatch(context.Background(), lifecycle.Command{Kind: removeFiles, Payload: "f1"})
	require.NoError(t, err)
	b, err := r.Dispatch(context.Background(), lifecycle.Command{Kind: removeFiles, Payload: "f2"})
	require.NoError(t, err)

	started.Wait()
	assert.Nil(t, a.Token(), "only SerializeLatest commands carry a token")
	close(release)

	assert.Equal(t, StatusSucceeded, wait(t, a).Status)
	assert.Equal(t, StatusSucceeded, wait(t, b).Status)
	assert.False(t, st.Snapshot().Pending.Get(models.ResourceFiles))
}

func TestFailureAndAfterHook(t *testing.T) {
	e, st := startEngine(t)

	lc := &lifecycle.Lifecycle{Call: func(ctx context.Context, cmd lifecycle.Command) (*api.Response, error) {
		if cmd.Payload == "bad" {
			return nil, errors.RemoteCallStatus(cmd.Kind.String(), 400, "name taken")
		}
		return &api.Response{Body: json.RawMessage(`{"id":"s9"}`)}, nil
	}}
	route := Route{
		Kind:      createSamples,
		Lifecycle: lc,
		Policy:    Every(),
		After: func(ev lifecycle.Event) []store.Action {
			if ev.Phase != lifecycle.PhaseSucceeded {
				return nil
			}
			return []store.Action{store.PushState(map[string]interface{}{"createSample": false})}
		},
	}
	r, err := New(e, []Route{route}, WithLogger(quietLogger()))
	require.NoError(t, err)

	ticket, err := r.Dispatch(context.Background(), lifecycle.Command{Kind: createSamples, Payload: "bad"})
	require.NoError(t, err)
	out := wait(t, ticket)
	assert.Equal(t, StatusFailed, out.Status)
	assert.True(t, errors.Is(out.Err, errors.ErrCodeRemoteCallFailed))
	assert.Contains(t, st.Snapshot().Errors[createSamples], "status 400")
	assert.NotContains(t, st.Snapshot().RouteState, "createSample")

	ticket, err = r.Dispatch(context.Background(), lifecycle.Command{Kind: createSamples, Payload: "ok"})
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, wait(t, ticket).Status)
	assert.Equal(t, false, st.Snapshot().RouteState["createSample"])
}

func TestDispatchUnknownKind(t *testing.T) {
	e, _ := startEngine(t)
	r, err := New(e, nil, WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = r.Dispatch(context.Background(), lifecycle.Command{Kind: findSamples})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeMissingPolicy))
	assert.True(t, errors.IsClass(err, errors.ClassConfiguration))

	assert.True(t, errors.Is(r.Require(findSamples), errors.ErrCodeMissingPolicy))
}

func TestNewValidatesRoutes(t *testing.T) {
	lc := &lifecycle.Lifecycle{}
	tests := []struct {
		name   string
		routes []Route
		code   errors.ErrorCode
	}{
		{"duplicate", []Route{{Kind: findSamples, Lifecycle: lc, Policy: Latest()}, {Kind: findSamples, Lifecycle: lc, Policy: Every()}}, errors.ErrCodeDuplicateRoute},
		{"no lifecycle", []Route{{Kind: findSamples, Policy: Latest()}}, errors.ErrCodeConfigInvalid},
		{"no window", []Route{{Kind: createSamples, Lifecycle: lc, Policy: Policy{Type: PolicyRateLimited}}}, errors.ErrCodeConfigInvalid},
		{"no kind", []Route{{Lifecycle: lc, Policy: Latest()}}, errors.ErrCodeConfigInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(nil, tt.routes)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestDispatchAfterLoopStopped(t *testing.T) {
	st := store.New()
	e := engine.New(st, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go e.Start(ctx)
	cancel()
	<-e.Stopped()

	r, err := New(e, []Route{{Kind: findSamples, Lifecycle: &lifecycle.Lifecycle{}, Policy: Latest()}})
	require.NoError(t, err)

	ticket, err := r.Dispatch(context.Background(), lifecycle.Command{Kind: findSamples})
	require.Error(t, err)
	assert.Equal(t, StatusRejected, wait(t, ticket).Status)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("rate_limited", 300*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, Throttle(300*time.Millisecond), p)
	assert.Equal(t, "rate_limited(300ms)", p.String())

	p, err = ParsePolicy("run_every", time.Second)
	require.NoError(t, err)
	assert.Equal(t, Every(), p)

	_, err = ParsePolicy("sometimes", 0)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid))
}
