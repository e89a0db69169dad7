package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is a server-owned entity as observed at the boundary. Documents
// are treated as immutable values; Merge returns a new document.
type Document map[string]interface{}

// ID returns the document identifier, or "" if it has none.
func (d Document) ID() string {
	return idString(d["id"])
}

// Merge returns a copy of d with the fields of patch applied on top.
func (d Document) Merge(patch Document) Document {
	merged := make(Document, len(d)+len(patch))
	for k, v := range d {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}

// DecodeDocument decodes a single JSON object.
func DecodeDocument(raw json.RawMessage) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("decode document: not an object")
	}
	return doc, nil
}

// DecodeDocuments accepts either a JSON array of documents or a list
// response of the form {"documents": [...], ...}.
func DecodeDocuments(raw json.RawMessage) ([]Document, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("decode documents: empty body")
	}

	if trimmed[0] == '[' {
		var docs []Document
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, fmt.Errorf("decode documents: %w", err)
		}
		return docs, nil
	}

	var list struct {
		Documents []Document `json:"documents"`
	}
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	if list.Documents == nil {
		return nil, fmt.Errorf("decode documents: no documents field")
	}
	return list.Documents, nil
}

// DecodeIDs extracts document ids from a remove payload. It accepts a bare
// id, an array of ids, an object with an id, or an array of such objects.
func DecodeIDs(raw json.RawMessage) ([]string, error) {
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("decode ids: %w", err)
	}

	var ids []string
	collect := func(v interface{}) {
		switch t := v.(type) {
		case map[string]interface{}:
			if id := idString(t["id"]); id != "" {
				ids = append(ids, id)
			}
		default:
			if id := idString(t); id != "" {
				ids = append(ids, id)
			}
		}
	}

	if arr, ok := value.([]interface{}); ok {
		for _, v := range arr {
			collect(v)
		}
	} else {
		collect(value)
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("decode ids: no ids in payload")
	}
	return ids, nil
}

// PayloadID extracts an id from a command payload: a string, a number, a
// Document or a map with an "id" key.
func PayloadID(payload interface{}) string {
	switch p := payload.(type) {
	case string:
		return p
	case float64, int, json.Number:
		return idString(p)
	case Document:
		return p.ID()
	case map[string]interface{}:
		return idString(p["id"])
	case map[string]string:
		return p["id"]
	}
	return ""
}

func idString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	case int:
		return fmt.Sprintf("%d", t)
	case json.Number:
		return t.String()
	}
	return ""
}
