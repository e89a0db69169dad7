// Package client assembles the push channel, the command router and the
// central store into one running synchronization client.
package client

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/statesync/config"
	"github.com/grovetools/statesync/errors"
	"github.com/grovetools/statesync/internal/engine"
	"github.com/grovetools/statesync/logging"
	"github.com/grovetools/statesync/pkg/api"
	"github.com/grovetools/statesync/pkg/entity"
	"github.com/grovetools/statesync/pkg/lifecycle"
	"github.com/grovetools/statesync/pkg/models"
	"github.com/grovetools/statesync/pkg/pushchannel"
	"github.com/grovetools/statesync/pkg/router"
	"github.com/grovetools/statesync/pkg/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Client is a running synchronization client.
type Client struct {
	cfg     *config.Config
	logger  *logrus.Entry
	store   *store.Store
	engine  *engine.Engine
	router  *router.Router
	channel *pushchannel.Channel
	follow  *followUpDispatcher
	pushURL string
	push    bool
	watch   bool
}

type options struct {
	caller   api.Caller
	registry *entity.Registry
	routes   []router.Route
	now      func() time.Time
	dialer   *websocket.Dialer
	noPush   bool
	watch    bool
	follow   map[models.ResourceKind]models.CommandKind
	logger   *logrus.Entry
}

// Option configures a Client.
type Option func(*options)

// WithCaller replaces the HTTP API client used by the default routes.
func WithCaller(caller api.Caller) Option {
	return func(o *options) { o.caller = caller }
}

// WithRegistry replaces the default entity registry.
func WithRegistry(r *entity.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithRoutes replaces the default route table. The table must still bind
// every kind of DefaultKinds.
func WithRoutes(routes []router.Route) Option {
	return func(o *options) { o.routes = routes }
}

// WithClock sets the clock rate-limited routes measure arrivals with.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithDialer sets the websocket dialer of the push channel.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithoutPush runs the client without a push channel. Commands still
// update the state; server-side changes are not observed.
func WithoutPush() Option {
	return func(o *options) { o.noPush = true }
}

// WithConfigWatch reloads the logging settings when the config file changes.
func WithConfigWatch(enabled bool) Option {
	return func(o *options) { o.watch = enabled }
}

// WithPushFollowUps dispatches the mapped command whenever a document of
// the resource is pushed. See DefaultPushFollowUps.
func WithPushFollowUps(follow map[models.ResourceKind]models.CommandKind) Option {
	return func(o *options) { o.follow = follow }
}

// WithLogger sets the client logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(o *options) { o.logger = logger }
}

// New builds a client from cfg. Policy overrides in the config's policies
// section replace the defaults of the named kinds.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	o := options{logger: logging.NewLogger("statesync")}
	for _, opt := range opts {
		opt(&o)
	}

	if o.caller == nil {
		o.caller = api.NewClient(cfg.Server.URL, cfg.Server.Timeout(), api.WithLogger(logging.NewLogger("api")))
	}
	if o.registry == nil {
		o.registry = entity.DefaultRegistry()
	}
	var routes []router.Route
	if o.routes != nil {
		routes = append([]router.Route(nil), o.routes...)
	} else {
		routes = DefaultRoutes(o.caller)
	}

	overrides, err := policyOverrides(cfg)
	if err != nil {
		return nil, err
	}
	for kind := range overrides {
		if !hasRoute(routes, kind) {
			return nil, errors.ConfigInvalid("policy override for unrouted kind").WithDetail("kind", kind.String())
		}
	}
	applyOverrides(routes, overrides)
	for resource, kind := range o.follow {
		if !hasRoute(routes, kind) {
			return nil, errors.ConfigInvalid("push follow-up for unrouted kind").
				WithDetail("resource", string(resource)).
				WithDetail("kind", kind.String())
		}
	}

	pushURL := cfg.Server.PushURL
	if pushURL == "" {
		if pushURL, err = pushchannel.PushURL(cfg.Server.URL); err != nil {
			return nil, err
		}
	}

	st := store.New()
	eng := engine.New(st, logging.NewLogger("engine"))

	routerOpts := []router.Option{router.WithLogger(logging.NewLogger("router"))}
	if o.now != nil {
		routerOpts = append(routerOpts, router.WithClock(o.now))
	}
	r, err := router.New(eng, routes, routerOpts...)
	if err != nil {
		return nil, err
	}
	if err := r.Require(DefaultKinds()...); err != nil {
		return nil, err
	}

	channelOpts := []pushchannel.Option{
		pushchannel.WithLogger(logging.NewLogger("push")),
		pushchannel.WithMaxFrameBytes(cfg.Server.MaxFrameBytes),
	}
	if o.dialer != nil {
		channelOpts = append(channelOpts, pushchannel.WithDialer(o.dialer))
	}

	c := &Client{
		cfg:     cfg,
		logger:  o.logger,
		store:   st,
		engine:  eng,
		router:  r,
		pushURL: pushURL,
		push:    !o.noPush,
		watch:   o.watch,
	}
	var out pushchannel.Dispatcher = eng
	if len(o.follow) > 0 {
		c.follow = &followUpDispatcher{out: eng, router: r, follow: o.follow, logger: o.logger}
		out = c.follow
	}
	c.channel = pushchannel.New(o.registry, out, channelOpts...)
	return c, nil
}

func policyOverrides(cfg *config.Config) (map[models.CommandKind]router.Policy, error) {
	raw, err := cfg.Policies()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid policies section")
	}
	overrides := make(map[models.CommandKind]router.Policy, len(raw))
	for name, pc := range raw {
		kind, err := models.ParseCommandKind(name)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid policy kind")
		}
		p, err := router.ParsePolicy(pc.Policy, pc.Window)
		if err != nil {
			return nil, err
		}
		overrides[kind] = p
	}
	return overrides, nil
}

func hasRoute(routes []router.Route, kind models.CommandKind) bool {
	for _, r := range routes {
		if r.Kind == kind {
			return true
		}
	}
	return false
}

// Run starts the event loop and the push channel and blocks until ctx ends.
// A failed push handshake stops the client and is returned.
func (c *Client) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		c.engine.Start(gctx)
		return nil
	})
	if c.follow != nil {
		c.follow.ctx = gctx
	}
	if c.push {
		g.Go(func() error {
			return c.channel.Listen(gctx, c.pushURL)
		})
	}

	if c.watch && c.cfg.Path() != "" {
		w, err := config.NewWatcher(c.cfg.Path(), config.DefaultDebounce, logging.NewLogger("config"), c.reload)
		if err != nil {
			c.logger.WithError(err).Warn("Config watch disabled")
		} else {
			g.Go(func() error {
				return w.Start(gctx)
			})
		}
	}

	c.logger.WithField("push_url", c.pushURL).Debug("Client started")
	return g.Wait()
}

func (c *Client) reload(cfg *config.Config) {
	lc, err := cfg.Logging()
	if err != nil {
		c.logger.WithError(err).Warn("Ignoring invalid logging section")
	} else {
		logging.Configure(lc)
	}
	c.engine.Dispatch(store.Action{Type: store.ActionConfigReloaded, Payload: cfg.Path()})
	c.logger.WithField("path", cfg.Path()).Info("Configuration reloaded")
}

// Dispatch routes a command. See router.Router.Dispatch.
func (c *Client) Dispatch(ctx context.Context, cmd lifecycle.Command) (*router.Ticket, error) {
	return c.router.Dispatch(ctx, cmd)
}

// Call dispatches a command and waits for its outcome.
func (c *Client) Call(ctx context.Context, cmd lifecycle.Command) (router.Outcome, error) {
	ticket, err := c.Dispatch(ctx, cmd)
	if err != nil {
		return router.Outcome{}, err
	}
	return ticket.Wait(ctx)
}

// Snapshot returns the current state.
func (c *Client) Snapshot() store.State {
	return c.store.Snapshot()
}

// Subscribe returns a channel of state updates.
func (c *Client) Subscribe() chan store.Update {
	return c.store.Subscribe()
}

// Unsubscribe stops delivery to ch.
func (c *Client) Unsubscribe(ch chan store.Update) {
	c.store.Unsubscribe(ch)
}

// Router returns the command router.
func (c *Client) Router() *router.Router {
	return c.router
}

// Channel returns the push channel.
func (c *Client) Channel() *pushchannel.Channel {
	return c.channel
}

// PushURL returns the resolved push endpoint.
func (c *Client) PushURL() string {
	return c.pushURL
}
