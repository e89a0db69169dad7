// Package entity maps server resource kinds to the store actions that apply
// their push notifications.
package entity

import (
	"encoding/json"
	"sort"

	"github.com/grovetools/statesync/errors"
	"github.com/grovetools/statesync/pkg/models"
	"github.com/grovetools/statesync/pkg/store"
)

// ActionCreator turns notification data into the action to dispatch. The
// data must be passed through unchanged.
type ActionCreator func(data json.RawMessage) store.Action

// Entry registers the handlers of one resource kind. Either may be nil.
type Entry struct {
	Kind   models.ResourceKind
	Update ActionCreator
	Remove ActionCreator
}

// Registry is an immutable lookup table built once at startup.
type Registry struct {
	entries map[models.ResourceKind]Entry
}

// NewRegistry builds a registry. Registering a kind twice is an error.
func NewRegistry(entries ...Entry) (*Registry, error) {
	r := &Registry{entries: make(map[models.ResourceKind]Entry, len(entries))}
	for _, e := range entries {
		if e.Kind == "" {
			return nil, errors.ConfigInvalid("entity entry without a resource kind")
		}
		if _, exists := r.entries[e.Kind]; exists {
			return nil, errors.DuplicateRoute(string(e.Kind))
		}
		r.entries[e.Kind] = e
	}
	return r, nil
}

// Lookup returns the handler for a kind and operation.
func (r *Registry) Lookup(kind models.ResourceKind, op models.Operation) (ActionCreator, bool) {
	e, ok := r.entries[kind]
	if !ok {
		return nil, false
	}
	var fn ActionCreator
	switch op {
	case models.OperationUpdate:
		fn = e.Update
	case models.OperationRemove:
		fn = e.Remove
	}
	return fn, fn != nil
}

// Kinds returns the registered resource kinds in sorted order.
func (r *Registry) Kinds() []models.ResourceKind {
	kinds := make([]models.ResourceKind, 0, len(r.entries))
	for k := range r.entries {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// UpdateDocument returns the creator for a document update of kind.
func UpdateDocument(kind models.ResourceKind) ActionCreator {
	return func(data json.RawMessage) store.Action {
		return store.Action{Type: store.ActionDocumentUpdated, Resource: kind, Data: data}
	}
}

// RemoveDocument returns the creator for a document removal of kind.
func RemoveDocument(kind models.ResourceKind) ActionCreator {
	return func(data json.RawMessage) store.Action {
		return store.Action{Type: store.ActionDocumentRemoved, Resource: kind, Data: data}
	}
}

// Document registers both handlers for kind.
func Document(kind models.ResourceKind) Entry {
	return Entry{Kind: kind, Update: UpdateDocument(kind), Remove: RemoveDocument(kind)}
}

// DefaultRegistry returns the table of resources the server pushes.
// Status documents are never removed.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		Document(models.ResourceAnalyses),
		Document(models.ResourceFiles),
		Document(models.ResourceJobs),
		Document(models.ResourceSamples),
		Entry{Kind: models.ResourceStatus, Update: UpdateDocument(models.ResourceStatus)},
	)
	if err != nil {
		panic(err)
	}
	return r
}
