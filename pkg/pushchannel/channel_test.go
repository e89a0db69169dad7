package pushchannel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/statesync/errors"
	"github.com/grovetools/statesync/pkg/entity"
	"github.com/grovetools/statesync/pkg/models"
	"github.com/grovetools/statesync/pkg/store"
	"github.com/grovetools/statesync/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	actions []store.Action
}

func (r *recorder) Dispatch(a store.Action) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, a)
	return true
}

func (r *recorder) all() []store.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]store.Action(nil), r.actions...)
}

func (r *recorder) count(t store.ActionType) int {
	n := 0
	for _, a := range r.all() {
		if a.Type == t {
			n++
		}
	}
	return n
}

// pushServer upgrades, writes frames in order and then closes if hangup
// is set, otherwise waits for the client to go away.
func pushServer(t *testing.T, frames []string, hangup bool) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		if hangup {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"), time.Now().Add(time.Second))
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func waitDone(t *testing.T, c *Channel) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close")
	}
}

func TestFramesRoutedInArrivalOrder(t *testing.T) {
	frames := []string{
		`{"interface":"jobs","operation":"update","data":{"id":"abc","state":"running"}}`,
		`{"interface":"references","operation":"update","data":{"id":"r1"}}`,
		`not json`,
		`{"interface":"status","operation":"remove","data":"x"}`,
		`{"interface":"samples","operation":"remove","data":["s1","s2"]}`,
		`{"interface":"jobs","operation":"update","data":{"id":"abc","state":"complete"}}`,
	}
	srv := pushServer(t, frames, true)

	rec := &recorder{}
	c := New(entity.DefaultRegistry(), rec, WithLogger(testutil.QuietLogger()))
	require.NoError(t, c.Open(context.Background(), testutil.WSURL(srv, "/ws")))
	waitDone(t, c)

	actions := rec.all()
	require.Len(t, actions, 5)
	assert.Equal(t, store.ActionChannelOpened, actions[0].Type)

	assert.Equal(t, store.ActionDocumentUpdated, actions[1].Type)
	assert.Equal(t, models.ResourceJobs, actions[1].Resource)
	assert.JSONEq(t, `{"id":"abc","state":"running"}`, string(actions[1].Data))

	assert.Equal(t, store.ActionDocumentRemoved, actions[2].Type)
	assert.Equal(t, models.ResourceSamples, actions[2].Resource)

	assert.JSONEq(t, `{"id":"abc","state":"complete"}`, string(actions[3].Data))
	assert.Equal(t, store.ActionChannelClosed, actions[4].Type)

	stats := c.Stats()
	assert.Equal(t, Stats{Received: 6, Routed: 3, Malformed: 1, Unrouted: 2}, stats)

	require.Error(t, c.Err())
	assert.True(t, errors.Is(c.Err(), errors.ErrCodeTransportClosed))
}

func TestHandshakeFailureIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	rec := &recorder{}
	c := New(entity.DefaultRegistry(), rec, WithLogger(testutil.QuietLogger()))
	err := c.Open(context.Background(), testutil.WSURL(srv, "/ws"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeTransportHandshake))
	assert.True(t, errors.IsClass(err, errors.ClassTransport))

	waitDone(t, c)
	assert.Equal(t, 1, rec.count(store.ActionChannelClosed))
	assert.Equal(t, 0, rec.count(store.ActionChannelOpened))

	err = c.Open(context.Background(), testutil.WSURL(srv, "/ws"))
	assert.Error(t, err, "a channel is single use")
	assert.Equal(t, 1, rec.count(store.ActionChannelClosed))
}

func TestCloseIsIdempotent(t *testing.T) {
	srv := pushServer(t, nil, false)

	rec := &recorder{}
	c := New(entity.DefaultRegistry(), rec, WithLogger(testutil.QuietLogger()))
	require.NoError(t, c.Open(context.Background(), testutil.WSURL(srv, "/ws")))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	waitDone(t, c)
	c.Close()

	assert.NoError(t, c.Err())
	assert.Equal(t, 1, rec.count(store.ActionChannelClosed))
}

func TestContextEndClosesChannel(t *testing.T) {
	srv := pushServer(t, nil, false)

	rec := &recorder{}
	c := New(entity.DefaultRegistry(), rec, WithLogger(testutil.QuietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.Listen(ctx, testutil.WSURL(srv, "/ws")) }()

	require.Eventually(t, func() bool { return rec.count(store.ActionChannelOpened) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return")
	}
	assert.Equal(t, 1, rec.count(store.ActionChannelClosed))
}

func TestOversizedFrameClosesChannel(t *testing.T) {
	big := `{"interface":"jobs","operation":"update","data":{"id":"abc","blob":"` + strings.Repeat("x", 2048) + `"}}`
	srv := pushServer(t, []string{big}, false)

	rec := &recorder{}
	c := New(entity.DefaultRegistry(), rec, WithLogger(testutil.QuietLogger()), WithMaxFrameBytes(1024))
	require.NoError(t, c.Open(context.Background(), testutil.WSURL(srv, "/ws")))
	waitDone(t, c)

	assert.Equal(t, 0, rec.count(store.ActionDocumentUpdated))
	assert.True(t, errors.Is(c.Err(), errors.ErrCodeTransportClosed))
}

func TestHandleFrameDispatchesOnce(t *testing.T) {
	rec := &recorder{}
	c := New(entity.DefaultRegistry(), rec, WithLogger(testutil.QuietLogger()))

	assert.True(t, c.HandleFrame([]byte(`{"interface":"files","operation":"remove","data":{"id":"f1"}}`)))
	assert.False(t, c.HandleFrame([]byte(`{"interface":"files","operation":"rename","data":{}}`)))
	assert.False(t, c.HandleFrame([]byte(`{"interface":"files","operation":"update"}`)))
	assert.Len(t, rec.all(), 1)
}

func TestPushURL(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{in: "http://localhost:9950", want: "ws://localhost:9950/ws"},
		{in: "https://virtool.example.org/api?x=1", want: "wss://virtool.example.org/ws"},
		{in: "wss://host/other", want: "wss://host/ws"},
		{in: "ftp://host", wantErr: true},
		{in: "http://", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := PushURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
