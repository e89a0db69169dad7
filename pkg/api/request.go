// Package api is the remote-call boundary: a structured request goes in, a
// response body or an error comes out.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/grovetools/statesync/pkg/models"
)

// Request is a structured remote call.
type Request struct {
	Kind   models.CommandKind
	Method string
	Path   string
	Query  url.Values
	// Body is JSON-encoded when non-nil.
	Body interface{}
	// Upload streams a file instead of a JSON body.
	Upload *Upload
	// OnProgress receives the fraction of the upload sent so far.
	OnProgress func(float64)
}

// Response is the settled result of a successful call.
type Response struct {
	Status int
	Body   json.RawMessage
}

// Upload is the payload of an upload command.
type Upload struct {
	Name     string
	FileType string
	Reader   io.Reader
	// Size is the total number of bytes, used for progress reporting.
	Size int64
}

// FindQuery is an optional payload for find commands.
type FindQuery struct {
	Page    int
	PerPage int
	Extra   url.Values
}

// Caller performs remote calls.
type Caller interface {
	Call(ctx context.Context, req Request) (*Response, error)
}

// CallerFunc adapts a function to Caller.
type CallerFunc func(ctx context.Context, req Request) (*Response, error)

// Call implements Caller.
func (f CallerFunc) Call(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// NewRequest maps a command kind and payload onto the REST layout of the
// server. Only the generic shapes are covered; resource-specific helpers
// can build a Request directly.
func NewRequest(kind models.CommandKind, payload interface{}, term string) (Request, error) {
	base := "/api/" + string(kind.Resource)
	req := Request{Kind: kind, Query: url.Values{}}

	switch kind.Verb {
	case models.VerbFind:
		req.Method = http.MethodGet
		req.Path = base
		if term != "" {
			req.Query.Set("find", term)
		}
		if q, ok := payload.(FindQuery); ok {
			if q.Page > 0 {
				req.Query.Set("page", strconv.Itoa(q.Page))
			}
			if q.PerPage > 0 {
				req.Query.Set("per_page", strconv.Itoa(q.PerPage))
			}
			for k, vs := range q.Extra {
				for _, v := range vs {
					req.Query.Add(k, v)
				}
			}
		}

	case models.VerbShortlist:
		req.Method = http.MethodGet
		req.Path = base
		req.Query.Set("short", "true")

	case models.VerbGet:
		path, err := documentPath(kind, base, payload)
		if err != nil {
			return Request{}, err
		}
		req.Method = http.MethodGet
		req.Path = path

	case models.VerbCreate:
		req.Method = http.MethodPost
		req.Path = base
		req.Body = payload

	case models.VerbEdit, models.VerbUpdate:
		path, err := documentPath(kind, base, payload)
		if err != nil {
			return Request{}, err
		}
		req.Method = http.MethodPatch
		req.Path = path
		req.Body = withoutID(payload)

	case models.VerbRemove:
		id := models.PayloadID(payload)
		if id == "" {
			return Request{}, fmt.Errorf("%s: payload carries no id", kind)
		}
		req.Method = http.MethodDelete
		req.Path = base + "/" + url.PathEscape(id)

	case models.VerbUpload:
		up, ok := payload.(*Upload)
		if !ok || up == nil || up.Reader == nil {
			return Request{}, fmt.Errorf("%s: payload must be an *api.Upload with a reader", kind)
		}
		req.Method = http.MethodPost
		req.Path = "/upload/" + url.PathEscape(up.FileType)
		req.Query.Set("name", up.Name)
		req.Upload = up

	default:
		return Request{}, fmt.Errorf("%s: unsupported verb", kind)
	}

	return req, nil
}

// documentPath addresses one document. Singleton resources live at the
// collection path; everything else needs an id.
func documentPath(kind models.CommandKind, base string, payload interface{}) (string, error) {
	if kind.Resource.Singleton() {
		return base, nil
	}
	id := models.PayloadID(payload)
	if id == "" {
		return "", fmt.Errorf("%s: payload carries no id", kind)
	}
	return base + "/" + url.PathEscape(id), nil
}

func withoutID(payload interface{}) interface{} {
	switch p := payload.(type) {
	case models.Document:
		out := make(models.Document, len(p))
		for k, v := range p {
			if k != "id" {
				out[k] = v
			}
		}
		return out
	case map[string]interface{}:
		return withoutID(models.Document(p))
	}
	return payload
}
