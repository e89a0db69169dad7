package devserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/grovetools/statesync/pkg/models"
)

const defaultPerPage = 25

type listResponse struct {
	Documents  []models.Document `json:"documents"`
	FoundCount int               `json:"found_count"`
	TotalCount int               `json:"total_count"`
	Page       int               `json:"page"`
	PerPage    int               `json:"per_page"`
	PageCount  int               `json:"page_count"`
}

func resourceOf(r *http.Request) models.ResourceKind {
	return models.ResourceKind(chi.URLParam(r, "resource"))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	resource := resourceOf(r)
	query := r.URL.Query()
	term := strings.ToLower(query.Get("find"))

	s.mu.Lock()
	var matched []models.Document
	for _, id := range s.order[resource] {
		doc, ok := s.collections[resource][id]
		if !ok {
			continue
		}
		if term == "" || matches(doc, term) {
			matched = append(matched, doc)
		}
	}
	total := len(s.collections[resource])
	s.mu.Unlock()

	if query.Get("short") == "true" {
		short := make([]models.Document, 0, len(matched))
		for _, doc := range matched {
			short = append(short, models.Document{"id": doc["id"], "name": doc["name"]})
		}
		writeJSON(w, http.StatusOK, short)
		return
	}

	page := positive(query.Get("page"), 1)
	perPage := positive(query.Get("per_page"), defaultPerPage)
	start := (page - 1) * perPage
	if start > len(matched) {
		start = len(matched)
	}
	end := start + perPage
	if end > len(matched) {
		end = len(matched)
	}

	docs := matched[start:end]
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, listResponse{
		Documents:  docs,
		FoundCount: len(matched),
		TotalCount: total,
		Page:       page,
		PerPage:    perPage,
		PageCount:  (len(matched) + perPage - 1) / perPage,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.Document(resourceOf(r), chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"id": "not_found", "message": "Not found"})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}
	resource := resourceOf(r)

	doc := body.Merge(models.Document{
		"id":         uuid.NewString(),
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})
	s.mu.Lock()
	s.put(resource, doc)
	s.mu.Unlock()

	s.Push(models.ChangeNotification{Interface: resource, Operation: models.OperationUpdate, Data: mustJSON(doc)})
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.update(w, r, resourceOf(r), chi.URLParam(r, "id"))
}

// handleUpdateSingleton updates resources with a single document, such as
// settings.
func (s *Server) handleUpdateSingleton(w http.ResponseWriter, r *http.Request) {
	resource := resourceOf(r)
	s.mu.Lock()
	if _, ok := s.collections[resource][string(resource)]; !ok {
		s.put(resource, models.Document{"id": string(resource)})
	}
	s.mu.Unlock()
	s.update(w, r, resource, string(resource))
}

func (s *Server) update(w http.ResponseWriter, r *http.Request, resource models.ResourceKind, id string) {
	patch, ok := decodeBody(w, r)
	if !ok {
		return
	}
	delete(patch, "id")

	s.mu.Lock()
	existing, found := s.collections[resource][id]
	var doc models.Document
	if found {
		doc = existing.Merge(patch)
		s.put(resource, doc)
	}
	s.mu.Unlock()

	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"id": "not_found", "message": "Not found"})
		return
	}
	s.Push(models.ChangeNotification{Interface: resource, Operation: models.OperationUpdate, Data: mustJSON(doc)})
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	resource := resourceOf(r)
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	_, found := s.collections[resource][id]
	if found {
		delete(s.collections[resource], id)
		order := s.order[resource][:0]
		for _, existing := range s.order[resource] {
			if existing != id {
				order = append(order, existing)
			}
		}
		s.order[resource] = order
	}
	s.mu.Unlock()

	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"id": "not_found", "message": "Not found"})
		return
	}
	s.Push(models.ChangeNotification{Interface: resource, Operation: models.OperationRemove, Data: mustJSON([]string{id})})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	size, err := io.Copy(io.Discard, r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"id": "bad_request", "message": err.Error()})
		return
	}

	doc := models.Document{
		"id":          uuid.NewString(),
		"name":        r.URL.Query().Get("name"),
		"type":        chi.URLParam(r, "type"),
		"size":        size,
		"ready":       true,
		"uploaded_at": time.Now().UTC().Format(time.RFC3339),
	}
	s.mu.Lock()
	s.put(models.ResourceFiles, doc)
	s.mu.Unlock()

	s.Push(models.ChangeNotification{Interface: models.ResourceFiles, Operation: models.OperationUpdate, Data: mustJSON(doc)})
	writeJSON(w, http.StatusCreated, doc)
}

func decodeBody(w http.ResponseWriter, r *http.Request) (models.Document, bool) {
	doc := models.Document{}
	if r.ContentLength == 0 {
		return doc, true
	}
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"id": "invalid_input", "message": "Invalid JSON body"})
		return nil, false
	}
	return doc, true
}

func matches(doc models.Document, term string) bool {
	for _, v := range doc {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}
	return false
}

func positive(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("devserver: marshal %T: %v", v, err))
	}
	return data
}
