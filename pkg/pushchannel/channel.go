// Package pushchannel owns the websocket connection the server uses to
// push change notifications.
package pushchannel

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/statesync/errors"
	"github.com/grovetools/statesync/pkg/entity"
	"github.com/grovetools/statesync/pkg/models"
	"github.com/grovetools/statesync/pkg/store"
	"github.com/sirupsen/logrus"
)

// DefaultMaxFrameBytes bounds a single inbound frame.
const DefaultMaxFrameBytes = 4 << 20

const closeTimeout = time.Second

// Dispatcher receives the actions produced by the channel.
type Dispatcher interface {
	Dispatch(a store.Action) bool
}

// Stats counts frames seen by a channel.
type Stats struct {
	Received  uint64
	Routed    uint64
	Malformed uint64
	Unrouted  uint64
}

// Channel is a single-use push connection. It is the only reader, writer
// and closer of its websocket.
type Channel struct {
	registry *entity.Registry
	out      Dispatcher
	logger   *logrus.Entry

	dialer        *websocket.Dialer
	header        http.Header
	maxFrameBytes int64

	mu      sync.Mutex
	conn    *websocket.Conn
	opened  bool
	closing atomic.Bool

	finishOnce sync.Once
	done       chan struct{}
	err        error

	received, routed, malformed, unrouted atomic.Uint64
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the channel logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(c *Channel) {
		c.logger = logger
	}
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Channel) {
		c.dialer = d
	}
}

// WithHeader sets headers sent with the handshake.
func WithHeader(h http.Header) Option {
	return func(c *Channel) {
		c.header = h
	}
}

// WithMaxFrameBytes bounds inbound frames. Larger frames close the channel.
func WithMaxFrameBytes(n int64) Option {
	return func(c *Channel) {
		if n > 0 {
			c.maxFrameBytes = n
		}
	}
}

// New creates a channel that routes frames through registry into out.
func New(registry *entity.Registry, out Dispatcher, opts ...Option) *Channel {
	c := &Channel{
		registry:      registry,
		out:           out,
		logger:        logrus.NewEntry(logrus.StandardLogger()),
		dialer:        websocket.DefaultDialer,
		maxFrameBytes: DefaultMaxFrameBytes,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open performs the handshake and starts reading frames. A failed handshake
// is terminal: the channel is closed and the error returned. The read loop
// stops when ctx ends.
func (c *Channel) Open(ctx context.Context, endpoint string) error {
	c.mu.Lock()
	if c.opened {
		c.mu.Unlock()
		return errors.New(errors.ErrCodeInternal, "push channel already opened")
	}
	c.opened = true
	c.mu.Unlock()

	logger := c.logger.WithField("url", endpoint)
	conn, resp, err := c.dialer.DialContext(ctx, endpoint, c.header)
	if err != nil {
		herr := errors.HandshakeFailed(endpoint, err)
		if resp != nil {
			herr = herr.WithDetail("status", resp.StatusCode)
		}
		logger.WithError(err).Error("Push channel handshake failed")
		c.finish(herr)
		return herr
	}
	conn.SetReadLimit(c.maxFrameBytes)

	c.mu.Lock()
	if c.closing.Load() {
		c.mu.Unlock()
		conn.Close()
		return errors.ChannelClosed(nil)
	}
	c.conn = conn
	c.mu.Unlock()

	logger.Info("Push channel open")
	c.out.Dispatch(store.Action{Type: store.ActionChannelOpened})

	go c.readLoop(ctx, conn)
	return nil
}

// Listen opens the channel and blocks until it closes. Only a handshake
// failure is returned; a closed connection is reported through the state.
func (c *Channel) Listen(ctx context.Context, endpoint string) error {
	if err := c.Open(ctx, endpoint); err != nil {
		return err
	}
	<-c.done
	return nil
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if c.closing.Load() {
				c.finish(nil)
			} else {
				c.finish(errors.ChannelClosed(err))
			}
			conn.Close()
			return
		}

		switch messageType {
		case websocket.TextMessage, websocket.BinaryMessage:
			c.HandleFrame(data)
		default:
			c.logger.WithField("type", messageType).Debug("Ignoring non-data frame")
		}
	}
}

// HandleFrame parses and routes one frame. It reports whether a state
// dispatch happened. Malformed frames and unknown resources are dropped.
func (c *Channel) HandleFrame(raw []byte) bool {
	c.received.Add(1)

	n, err := models.ParseNotification(raw)
	if err != nil {
		c.malformed.Add(1)
		c.logger.WithError(errors.MalformedFrame(len(raw), err)).Warn("Dropping malformed push frame")
		return false
	}

	create, ok := c.registry.Lookup(n.Interface, n.Operation)
	if !ok {
		c.unrouted.Add(1)
		c.logger.WithError(errors.NoRoute(string(n.Interface), string(n.Operation))).Debug("Dropping unrouted push frame")
		return false
	}

	c.routed.Add(1)
	c.out.Dispatch(create(n.Data))
	return true
}

// Close sends a close frame and closes the connection. It is safe to call
// more than once and before Open.
func (c *Channel) Close() error {
	if !c.closing.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	conn := c.conn
	c.opened = true
	c.mu.Unlock()

	if conn == nil {
		c.finish(nil)
		return nil
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout)); err != nil {
		c.logger.WithError(err).Debug("Failed to send close frame")
	}
	return conn.Close()
}

// finish emits the single closed event.
func (c *Channel) finish(err error) {
	c.finishOnce.Do(func() {
		c.err = err
		if err != nil {
			c.logger.WithError(err).Warn("Push channel closed")
		} else {
			c.logger.Info("Push channel closed")
		}
		c.out.Dispatch(store.Action{Type: store.ActionChannelClosed, Payload: err})
		close(c.done)
	})
}

// Done is closed once the closed event has been emitted.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Err returns the transport error that closed the channel, or nil when it
// was closed locally. Only meaningful after Done.
func (c *Channel) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Stats returns frame counters.
func (c *Channel) Stats() Stats {
	return Stats{
		Received:  c.received.Load(),
		Routed:    c.routed.Load(),
		Malformed: c.malformed.Load(),
		Unrouted:  c.unrouted.Load(),
	}
}
