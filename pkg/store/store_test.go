package store

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/grovetools/statesync/pkg/lifecycle"
	"github.com/grovetools/statesync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func update(kind models.ResourceKind, data string) Action {
	return Action{Type: ActionDocumentUpdated, Resource: kind, Data: json.RawMessage(data)}
}

func remove(kind models.ResourceKind, data string) Action {
	return Action{Type: ActionDocumentRemoved, Resource: kind, Data: json.RawMessage(data)}
}

func seeded(t *testing.T) *Store {
	t.Helper()
	s := New()
	require.True(t, s.Dispatch(update(models.ResourceJobs, `{"id":"abc","state":"waiting","progress":0}`)))
	require.True(t, s.Dispatch(update(models.ResourceJobs, `{"id":"def","state":"complete"}`)))
	require.True(t, s.Dispatch(update(models.ResourceSamples, `{"id":"s1","name":"one"}`)))
	return s
}

func TestDocumentUpdateTouchesOnlyTarget(t *testing.T) {
	s := seeded(t)
	before := s.Snapshot()

	s.Dispatch(update(models.ResourceJobs, `{"id":"abc","state":"running"}`))
	after := s.Snapshot()

	job, ok := after.Document(models.ResourceJobs, "abc")
	require.True(t, ok)
	assert.Equal(t, "running", job["state"])
	assert.Equal(t, float64(0), job["progress"], "unmentioned fields are kept")

	assert.Equal(t, before.Collections[models.ResourceJobs]["def"], after.Collections[models.ResourceJobs]["def"])
	assert.Equal(t, before.Collections[models.ResourceSamples], after.Collections[models.ResourceSamples])
	assert.Equal(t, before.Pending, after.Pending)
	assert.Equal(t, before.Connection, after.Connection)

	old, _ := before.Document(models.ResourceJobs, "abc")
	assert.Equal(t, "waiting", old["state"], "snapshots are not modified by later writes")
}

func TestDocumentUpdateIsIdempotent(t *testing.T) {
	once := seeded(t)
	twice := seeded(t)

	frame := update(models.ResourceJobs, `{"id":"abc","state":"running"}`)
	once.Dispatch(frame)
	twice.Dispatch(frame)
	twice.Dispatch(frame)

	assert.Equal(t, once.Snapshot().Collections, twice.Snapshot().Collections)
}

func TestDocumentRemoveShapes(t *testing.T) {
	tests := []struct {
		name string
		data string
		left []string
	}{
		{"single id", `"abc"`, []string{"def"}},
		{"id list", `["abc","def"]`, nil},
		{"object", `{"id":"def"}`, []string{"abc"}},
		{"unknown id", `"zzz"`, []string{"abc", "def"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seeded(t)
			s.Dispatch(remove(models.ResourceJobs, tt.data))

			jobs := s.Snapshot().Collections[models.ResourceJobs]
			var left []string
			for id := range jobs {
				left = append(left, id)
			}
			assert.ElementsMatch(t, tt.left, left)
		})
	}
}

func TestLifecycleReducer(t *testing.T) {
	find := lifecycle.Command{Kind: models.Kind(models.ResourceFiles, models.VerbFind), Term: "fastq"}

	t.Run("pending and errors", func(t *testing.T) {
		s := New()
		s.Dispatch(LifecycleAction(lifecycle.Requested(find, true)))
		assert.True(t, s.Snapshot().Pending.Get(models.ResourceFiles))

		s.Dispatch(LifecycleAction(lifecycle.Failed(find, fmt.Errorf("bad gateway"), true)))
		state := s.Snapshot()
		assert.False(t, state.Pending.Get(models.ResourceFiles))
		assert.Equal(t, "bad gateway", state.Errors[find.Kind])

		s.Dispatch(LifecycleAction(lifecycle.Requested(find, true)))
		assert.NotContains(t, s.Snapshot().Errors, find.Kind, "a new request clears the previous error")
	})

	t.Run("find replaces collection and records term", func(t *testing.T) {
		s := New()
		s.Dispatch(update(models.ResourceFiles, `{"id":"stale"}`))

		ev := lifecycle.Succeeded(find, json.RawMessage(`{"documents":[{"id":"f1"},{"id":"f2"}],"page":1}`), false)
		term := "fastq"
		ev.Term = &term
		s.Dispatch(LifecycleAction(ev))

		state := s.Snapshot()
		assert.Len(t, state.Collections[models.ResourceFiles], 2)
		assert.JSONEq(t, `{"documents":[{"id":"f1"},{"id":"f2"}],"page":1}`, string(state.Lists[models.ResourceFiles]))
		assert.Equal(t, "fastq", state.Terms[models.ResourceFiles])
	})

	t.Run("get stores detail", func(t *testing.T) {
		s := New()
		get := lifecycle.Command{Kind: models.Kind(models.ResourceSamples, models.VerbGet), Payload: "s1"}
		s.Dispatch(LifecycleAction(lifecycle.Succeeded(get, json.RawMessage(`{"id":"s1","name":"one"}`), false)))

		state := s.Snapshot()
		assert.Equal(t, "one", state.Details[models.ResourceSamples]["name"])
		_, ok := state.Document(models.ResourceSamples, "s1")
		assert.True(t, ok)
	})

	t.Run("remove drops the document", func(t *testing.T) {
		s := seeded(t)
		rm := lifecycle.Command{Kind: models.Kind(models.ResourceJobs, models.VerbRemove), Payload: map[string]interface{}{"id": "abc"}}
		s.Dispatch(LifecycleAction(lifecycle.Succeeded(rm, nil, false)))

		_, ok := s.Snapshot().Document(models.ResourceJobs, "abc")
		assert.False(t, ok)
	})
}

func TestNavigationAndConnection(t *testing.T) {
	s := New()
	s.Dispatch(PushState(map[string]interface{}{"createSubtraction": true}))
	s.Dispatch(PushState(map[string]interface{}{"createSubtraction": false}))
	s.Dispatch(Navigate("/subtraction"))
	s.Dispatch(Action{Type: ActionChannelClosed})

	state := s.Snapshot()
	assert.Equal(t, false, state.RouteState["createSubtraction"])
	assert.Equal(t, "/subtraction", state.Location)
	assert.Equal(t, ConnectionClosed, state.Connection)
}

func TestDispatchUnknownActionIsIgnored(t *testing.T) {
	s := New()
	assert.False(t, s.Dispatch(Action{Type: "nope"}))
}

func TestWithReducer(t *testing.T) {
	s := New(WithReducer("custom", func(st State, a Action) State {
		st.Location = "custom"
		return st
	}))
	assert.True(t, s.Dispatch(Action{Type: "custom"}))
	assert.Equal(t, "custom", s.Snapshot().Location)
}

func TestSubscribe(t *testing.T) {
	s := New()
	ch := s.Subscribe()

	s.Dispatch(update(models.ResourceJobs, `{"id":"abc"}`))

	u := <-ch
	assert.Equal(t, ActionDocumentUpdated, u.Action.Type)
	_, ok := u.State.Document(models.ResourceJobs, "abc")
	assert.True(t, ok)

	s.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)
	s.Unsubscribe(ch)
}
