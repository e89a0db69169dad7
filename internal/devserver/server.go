// Package devserver provides an in-memory implementation of the remote API
// and its push endpoint, for local development and end-to-end tests.
package devserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/grovetools/statesync/pkg/models"
	"github.com/sirupsen/logrus"
)

// Server serves REST resources from memory and pushes a change
// notification to every websocket client after each mutation.
type Server struct {
	logger   *logrus.Entry
	server   *http.Server
	router   chi.Router
	upgrader websocket.Upgrader

	mu          sync.Mutex
	collections map[models.ResourceKind]map[string]models.Document
	order       map[models.ResourceKind][]string
	calls       map[string]int
	delay       time.Duration
	failures    map[string]int

	clientsMu sync.Mutex
	clients   map[*client]struct{}
}

// New creates a new Server instance.
func New(logger *logrus.Entry) *Server {
	s := &Server{
		logger:      logger,
		collections: make(map[models.ResourceKind]map[string]models.Document),
		order:       make(map[models.ResourceKind][]string),
		calls:       make(map[string]int),
		failures:    make(map[string]int),
		clients:     make(map[*client]struct{}),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.countCalls)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/ws", s.handlePush)

	r.Route("/api/{resource}", func(r chi.Router) {
		r.Use(s.simulate)
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)
		r.Patch("/", s.handleUpdateSingleton)
		r.Get("/{id}", s.handleGet)
		r.Patch("/{id}", s.handleUpdate)
		r.Delete("/{id}", s.handleRemove)
	})
	r.With(s.simulate).Post("/upload/{type}", s.handleUpload)

	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr and blocks until the server stops.
func (s *Server) ListenAndServe(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve serves on an existing listener.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	s.server = &http.Server{Handler: s.router}
	srv := s.server
	s.mu.Unlock()

	s.logger.WithField("addr", listener.Addr().String()).Info("Development API listening")
	err := srv.Serve(listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server and disconnects push clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	s.DisconnectAll()

	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// Seed stores documents without notifying clients.
func (s *Server) Seed(resource models.ResourceKind, docs ...models.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range docs {
		s.put(resource, doc)
	}
}

// Document returns a stored document.
func (s *Server) Document(resource models.ResourceKind, id string) (models.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.collections[resource][id]
	return doc, ok
}

// Calls returns how many requests matched method and path pattern, e.g.
// Calls("POST", "/api/samples").
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+path]
}

// SetDelay delays every REST response.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// FailNext makes the next request to resource answer with status.
func (s *Server) FailNext(resource string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[resource] = status
}

// put stores doc. Callers hold s.mu.
func (s *Server) put(resource models.ResourceKind, doc models.Document) {
	coll, ok := s.collections[resource]
	if !ok {
		coll = make(map[string]models.Document)
		s.collections[resource] = coll
	}
	id := doc.ID()
	if _, exists := coll[id]; !exists {
		s.order[resource] = append(s.order[resource], id)
	}
	coll[id] = doc
}

// countCalls counts every served request by method and route pattern,
// including requests answered by an injected failure.
func (s *Server) countCalls(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)

		pattern := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if id := rctx.URLParam("id"); id != "" {
				pattern = pattern[:len(pattern)-len(id)] + "{id}"
			}
		}
		s.mu.Lock()
		s.calls[r.Method+" "+pattern]++
		s.mu.Unlock()

		s.logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Debug("Request served")
	})
}

// simulate applies the configured delay and injected failures.
func (s *Server) simulate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resource := chi.URLParam(r, "resource")
		if resource == "" {
			resource = "upload"
		}

		s.mu.Lock()
		delay := s.delay
		status, fail := s.failures[resource]
		delete(s.failures, resource)
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if fail {
			writeJSON(w, status, map[string]string{"id": "injected_failure", "message": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
