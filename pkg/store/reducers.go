package store

import (
	"encoding/json"

	"github.com/grovetools/statesync/pkg/lifecycle"
	"github.com/grovetools/statesync/pkg/models"
)

// Reducer computes the next state. It must not modify maps reachable from
// its input; use the clone helpers and replace what changes.
type Reducer func(s State, a Action) State

// DefaultReducers returns the reducer table used by New.
func DefaultReducers() map[ActionType]Reducer {
	return map[ActionType]Reducer{
		ActionDocumentUpdated: reduceDocumentUpdated,
		ActionDocumentRemoved: reduceDocumentRemoved,
		ActionChannelOpened:   reduceConnection(ConnectionOpen),
		ActionChannelClosed:   reduceConnection(ConnectionClosed),
		ActionLifecycle:       reduceLifecycle,
		ActionPushState:       reducePushState,
		ActionNavigate:        reduceNavigate,
		ActionConfigReloaded:  reduceConfigReloaded,
	}
}

func reduceDocumentUpdated(s State, a Action) State {
	doc, err := models.DecodeDocument(a.Data)
	if err != nil {
		return s
	}
	return upsert(s, a.Resource, doc)
}

func reduceDocumentRemoved(s State, a Action) State {
	ids, err := models.DecodeIDs(a.Data)
	if err != nil {
		return s
	}
	return removeIDs(s, a.Resource, ids)
}

func reduceConnection(status ConnectionStatus) Reducer {
	return func(s State, a Action) State {
		s.Connection = status
		return s
	}
}

func reduceLifecycle(s State, a Action) State {
	if a.Event == nil {
		return s
	}
	ev := *a.Event
	kind := ev.Command.Kind

	s.Pending = lifecycle.Transition(s.Pending, ev)

	switch ev.Phase {
	case lifecycle.PhaseRequested:
		if _, ok := s.Errors[kind]; ok {
			s.Errors = cloneErrors(s.Errors)
			delete(s.Errors, kind)
		}
	case lifecycle.PhaseFailed:
		s.Errors = cloneErrors(s.Errors)
		if ev.Err != nil {
			s.Errors[kind] = ev.Err.Error()
		} else {
			s.Errors[kind] = "request failed"
		}
	case lifecycle.PhaseSucceeded:
		s = applySuccess(s, ev)
		if ev.Term != nil {
			s.Terms = cloneTerms(s.Terms)
			s.Terms[kind.Resource] = *ev.Term
		}
	}
	return s
}

// applySuccess folds a successful response into the resource slices
// according to the verb that produced it.
func applySuccess(s State, ev lifecycle.Event) State {
	kind := ev.Command.Kind
	resource := kind.Resource

	switch kind.Verb {
	case models.VerbFind:
		s.Lists = cloneLists(s.Lists)
		s.Lists[resource] = ev.Data
		if docs, err := models.DecodeDocuments(ev.Data); err == nil {
			s = replaceCollection(s, resource, docs)
		}

	case models.VerbShortlist:
		s.Lists = cloneLists(s.Lists)
		s.Lists[resource] = ev.Data

	case models.VerbGet, models.VerbCreate, models.VerbEdit, models.VerbUpdate, models.VerbUpload:
		doc, err := models.DecodeDocument(ev.Data)
		if err != nil {
			return s
		}
		if kind.Verb == models.VerbGet || doc.ID() == "" {
			s.Details = cloneDetails(s.Details)
			s.Details[resource] = doc
		}
		if doc.ID() != "" {
			s = upsert(s, resource, doc)
		}

	case models.VerbRemove:
		if id := models.PayloadID(ev.Command.Payload); id != "" {
			s = removeIDs(s, resource, []string{id})
		}
	}
	return s
}

func reducePushState(s State, a Action) State {
	values, ok := a.Payload.(map[string]interface{})
	if !ok {
		return s
	}
	next := make(map[string]interface{}, len(s.RouteState)+len(values))
	for k, v := range s.RouteState {
		next[k] = v
	}
	for k, v := range values {
		next[k] = v
	}
	s.RouteState = next
	return s
}

func reduceNavigate(s State, a Action) State {
	if location, ok := a.Payload.(string); ok {
		s.Location = location
	}
	return s
}

func reduceConfigReloaded(s State, a Action) State {
	if file, ok := a.Payload.(string); ok {
		s.ConfigFile = file
	}
	s.Reloads++
	return s
}

// upsert merges doc into the stored document with the same id.
func upsert(s State, kind models.ResourceKind, doc models.Document) State {
	id := doc.ID()
	if id == "" {
		return s
	}
	coll := cloneCollection(s.Collections[kind])
	if existing, ok := coll[id]; ok {
		coll[id] = existing.Merge(doc)
	} else {
		coll[id] = doc
	}
	s.Collections = withCollection(s.Collections, kind, coll)
	return s
}

func removeIDs(s State, kind models.ResourceKind, ids []string) State {
	current := s.Collections[kind]
	found := false
	for _, id := range ids {
		if _, ok := current[id]; ok {
			found = true
			break
		}
	}
	if !found {
		return s
	}
	coll := cloneCollection(current)
	for _, id := range ids {
		delete(coll, id)
	}
	s.Collections = withCollection(s.Collections, kind, coll)
	return s
}

func replaceCollection(s State, kind models.ResourceKind, docs []models.Document) State {
	coll := make(Collection, len(docs))
	for _, doc := range docs {
		if id := doc.ID(); id != "" {
			coll[id] = doc
		}
	}
	s.Collections = withCollection(s.Collections, kind, coll)
	return s
}

func withCollection(colls map[models.ResourceKind]Collection, kind models.ResourceKind, coll Collection) map[models.ResourceKind]Collection {
	next := make(map[models.ResourceKind]Collection, len(colls)+1)
	for k, v := range colls {
		next[k] = v
	}
	next[kind] = coll
	return next
}

func cloneCollection(c Collection) Collection {
	next := make(Collection, len(c)+1)
	for k, v := range c {
		next[k] = v
	}
	return next
}

func cloneLists(m map[models.ResourceKind]json.RawMessage) map[models.ResourceKind]json.RawMessage {
	next := make(map[models.ResourceKind]json.RawMessage, len(m)+1)
	for k, v := range m {
		next[k] = v
	}
	return next
}

func cloneDetails(m map[models.ResourceKind]models.Document) map[models.ResourceKind]models.Document {
	next := make(map[models.ResourceKind]models.Document, len(m)+1)
	for k, v := range m {
		next[k] = v
	}
	return next
}

func cloneTerms(m map[models.ResourceKind]string) map[models.ResourceKind]string {
	next := make(map[models.ResourceKind]string, len(m)+1)
	for k, v := range m {
		next[k] = v
	}
	return next
}

func cloneErrors(m map[models.CommandKind]string) map[models.CommandKind]string {
	next := make(map[models.CommandKind]string, len(m)+1)
	for k, v := range m {
		next[k] = v
	}
	return next
}
