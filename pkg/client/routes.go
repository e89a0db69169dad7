package client

import (
	"time"

	"github.com/grovetools/statesync/pkg/api"
	"github.com/grovetools/statesync/pkg/lifecycle"
	"github.com/grovetools/statesync/pkg/models"
	"github.com/grovetools/statesync/pkg/router"
	"github.com/grovetools/statesync/pkg/store"
)

const (
	createWindow = 500 * time.Millisecond
	removeWindow = 300 * time.Millisecond
)

type routeEntry struct {
	kind    models.CommandKind
	policy  router.Policy
	pending bool
	term    bool
	after   func(lifecycle.Event) []store.Action
}

func k(resource models.ResourceKind, verb models.Verb) models.CommandKind {
	return models.Kind(resource, verb)
}

var defaultTable = []routeEntry{
	{kind: k(models.ResourceSamples, models.VerbFind), policy: router.Latest(), term: true},
	{kind: k(models.ResourceJobs, models.VerbFind), policy: router.Latest(), term: true},
	{kind: k(models.ResourceSubtraction, models.VerbFind), policy: router.Latest(), term: true},
	{kind: k(models.ResourceAnalyses, models.VerbFind), policy: router.Latest(), term: true},
	{kind: k(models.ResourceFiles, models.VerbFind), policy: router.Latest(), pending: true},

	{kind: k(models.ResourceSamples, models.VerbGet), policy: router.Latest()},
	{kind: k(models.ResourceJobs, models.VerbGet), policy: router.Latest()},
	{kind: k(models.ResourceSubtraction, models.VerbGet), policy: router.Latest()},
	{kind: k(models.ResourceAnalyses, models.VerbGet), policy: router.Latest()},
	{kind: k(models.ResourceSettings, models.VerbGet), policy: router.Latest()},
	{kind: k(models.ResourceSubtraction, models.VerbShortlist), policy: router.Latest()},
	{
		kind:   k(models.ResourceSubtraction, models.VerbEdit),
		policy: router.Latest(),
		after:  onSuccess(store.PushState(map[string]interface{}{"editSubtraction": false})),
	},
	{kind: k(models.ResourceSettings, models.VerbUpdate), policy: router.Latest()},

	{
		kind:   k(models.ResourceSamples, models.VerbCreate),
		policy: router.Throttle(createWindow),
		after:  onSuccess(store.PushState(map[string]interface{}{"createSample": false})),
	},
	{
		kind:   k(models.ResourceSubtraction, models.VerbCreate),
		policy: router.Throttle(createWindow),
		after:  onSuccess(store.PushState(map[string]interface{}{"createSubtraction": false})),
	},
	{
		kind:   k(models.ResourceSubtraction, models.VerbRemove),
		policy: router.Throttle(removeWindow),
		after:  onSuccess(store.Navigate("/subtraction")),
	},
	{kind: k(models.ResourceSamples, models.VerbRemove), policy: router.Throttle(removeWindow)},

	{kind: k(models.ResourceFiles, models.VerbRemove), policy: router.Every(), pending: true},
	{kind: k(models.ResourceJobs, models.VerbRemove), policy: router.Every()},
	{kind: k(models.ResourceFiles, models.VerbUpload), policy: router.Every()},
}

// onSuccess returns an After hook that applies actions once the command
// succeeded.
func onSuccess(actions ...store.Action) func(lifecycle.Event) []store.Action {
	return func(ev lifecycle.Event) []store.Action {
		if ev.Phase != lifecycle.PhaseSucceeded {
			return nil
		}
		return actions
	}
}

// DefaultRoutes returns the standard route table with every command
// performed through caller.
func DefaultRoutes(caller api.Caller) []router.Route {
	call := lifecycle.Remote(caller)
	routes := make([]router.Route, 0, len(defaultTable))
	for _, e := range defaultTable {
		routes = append(routes, router.Route{
			Kind: e.kind,
			Lifecycle: &lifecycle.Lifecycle{
				Call:         call,
				TrackPending: e.pending,
				TrackTerm:    e.term,
			},
			Policy: e.policy,
			After:  e.after,
		})
	}
	return routes
}

// DefaultKinds lists the command kinds the standard route table binds.
func DefaultKinds() []models.CommandKind {
	kinds := make([]models.CommandKind, 0, len(defaultTable))
	for _, e := range defaultTable {
		kinds = append(kinds, e.kind)
	}
	return kinds
}

// applyOverrides replaces the policy of routes named in overrides.
func applyOverrides(routes []router.Route, overrides map[models.CommandKind]router.Policy) {
	for i := range routes {
		if p, ok := overrides[routes[i].Kind]; ok {
			routes[i].Policy = p
		}
	}
}
