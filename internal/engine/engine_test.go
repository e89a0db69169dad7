package engine

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/statesync/pkg/models"
	"github.com/grovetools/statesync/pkg/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func TestDoRunsInOrder(t *testing.T) {
	e := New(store.New(), testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Start(ctx)

	var got []int
	done := make(chan struct{})
	for i := 0; i < 50; i++ {
		i := i
		require.True(t, e.Do(func() { got = append(got, i) }))
	}
	require.True(t, e.Do(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not drain")
	}
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestDispatchAppliesOnLoop(t *testing.T) {
	st := store.New()
	e := New(st, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go e.Start(ctx)

	require.True(t, e.Dispatch(store.Action{
		Type:     store.ActionDocumentUpdated,
		Resource: models.ResourceJobs,
		Data:     json.RawMessage(`{"id":"abc"}`),
	}))
	cancel()
	<-e.Stopped()

	_, ok := st.Snapshot().Document(models.ResourceJobs, "abc")
	assert.True(t, ok, "work accepted before shutdown is applied")
}

func TestDoAfterStopIsRefused(t *testing.T) {
	e := New(store.New(), testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go e.Start(ctx)
	cancel()
	<-e.Stopped()

	assert.False(t, e.Do(func() { t.Error("must not run") }))
}

func TestPanicDoesNotStopLoop(t *testing.T) {
	e := New(store.New(), testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Start(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	e.Do(func() { panic("boom") })
	e.Do(wg.Done)
	wg.Wait()
}
