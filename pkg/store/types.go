// Package store provides the central in-memory application state.
package store

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/statesync/pkg/lifecycle"
	"github.com/grovetools/statesync/pkg/models"
)

// ConnectionStatus tracks the push channel as seen by the application.
type ConnectionStatus string

const (
	ConnectionUnknown ConnectionStatus = ""
	ConnectionOpen    ConnectionStatus = "open"
	ConnectionClosed  ConnectionStatus = "closed"
)

// Collection holds the documents of one resource keyed by id.
type Collection map[string]models.Document

// State is the complete client-side view of the server data set.
//
// State values are copy-on-write: reducers replace every map they change
// with a new one, so a State returned by Snapshot is never mutated later.
type State struct {
	Collections map[models.ResourceKind]Collection `json:"collections"`
	// Lists holds the last list response per resource.
	Lists map[models.ResourceKind]json.RawMessage `json:"lists,omitempty"`
	// Details holds the last single-document fetch per resource.
	Details map[models.ResourceKind]models.Document `json:"details,omitempty"`
	Pending lifecycle.Pending                       `json:"pending,omitempty"`
	// Terms holds the last successful search term per resource.
	Terms map[models.ResourceKind]string `json:"terms,omitempty"`
	// Errors holds the view-scoped error of the last failed command per kind.
	Errors map[models.CommandKind]string `json:"errors,omitempty"`

	Connection ConnectionStatus       `json:"connection"`
	Location   string                 `json:"location,omitempty"`
	RouteState map[string]interface{} `json:"route_state,omitempty"`
	ConfigFile string                 `json:"config_file,omitempty"`
	Reloads    int                    `json:"reloads,omitempty"`
}

// Document returns a document by resource and id.
func (s State) Document(kind models.ResourceKind, id string) (models.Document, bool) {
	doc, ok := s.Collections[kind][id]
	return doc, ok
}

// ActionType defines what kind of change an Action applies.
type ActionType string

const (
	ActionDocumentUpdated ActionType = "ws/update"
	ActionDocumentRemoved ActionType = "ws/remove"
	ActionChannelOpened   ActionType = "ws/opened"
	ActionChannelClosed   ActionType = "ws/closed"
	ActionLifecycle       ActionType = "lifecycle"
	ActionPushState       ActionType = "nav/push-state"
	ActionNavigate        ActionType = "nav/navigate"
	ActionConfigReloaded  ActionType = "config/reloaded"
)

// Action is one change dispatched into the store.
type Action struct {
	Type     ActionType
	Resource models.ResourceKind
	// Data is the raw payload of push notifications.
	Data json.RawMessage
	// Event is set for ActionLifecycle.
	Event *lifecycle.Event
	// Payload carries navigation and config values.
	Payload interface{}
}

func (a Action) String() string {
	switch {
	case a.Event != nil:
		return a.Event.String()
	case a.Resource != "":
		return fmt.Sprintf("%s/%s", a.Type, a.Resource)
	}
	return string(a.Type)
}

// LifecycleAction wraps a lifecycle event for dispatch.
func LifecycleAction(ev lifecycle.Event) Action {
	return Action{Type: ActionLifecycle, Resource: ev.Command.Kind.Resource, Event: &ev}
}

// PushState merges values into the route state, e.g. to close a dialog.
func PushState(values map[string]interface{}) Action {
	return Action{Type: ActionPushState, Payload: values}
}

// Navigate changes the current location.
func Navigate(location string) Action {
	return Action{Type: ActionNavigate, Payload: location}
}
