package client

import (
	"context"

	"github.com/grovetools/statesync/pkg/lifecycle"
	"github.com/grovetools/statesync/pkg/models"
	"github.com/grovetools/statesync/pkg/pushchannel"
	"github.com/grovetools/statesync/pkg/router"
	"github.com/grovetools/statesync/pkg/store"
	"github.com/sirupsen/logrus"
)

// DefaultPushFollowUps re-lists files whenever a file is pushed, so the
// list keeps the server's ordering and filtering.
func DefaultPushFollowUps() map[models.ResourceKind]models.CommandKind {
	return map[models.ResourceKind]models.CommandKind{
		models.ResourceFiles: k(models.ResourceFiles, models.VerbFind),
	}
}

// followUpDispatcher forwards push actions to the event loop and dispatches
// a command through the router for every pushed change of a followed
// resource.
type followUpDispatcher struct {
	out    pushchannel.Dispatcher
	router *router.Router
	follow map[models.ResourceKind]models.CommandKind
	logger *logrus.Entry
	ctx    context.Context
}

func (d *followUpDispatcher) Dispatch(a store.Action) bool {
	if !d.out.Dispatch(a) {
		return false
	}
	if a.Type != store.ActionDocumentUpdated && a.Type != store.ActionDocumentRemoved {
		return true
	}
	kind, ok := d.follow[a.Resource]
	if !ok {
		return true
	}

	ctx := d.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := d.router.Dispatch(ctx, lifecycle.Command{Kind: kind}); err != nil {
		d.logger.WithError(err).WithField("kind", kind.String()).Warn("Push follow-up not dispatched")
	}
	return true
}
