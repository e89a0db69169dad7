package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ChangeNotification is one push channel frame:
//
//	{"interface": "jobs", "operation": "update", "data": {...}}
//
// There are no acknowledgements and no sequence numbers.
type ChangeNotification struct {
	Interface ResourceKind    `json:"interface"`
	Operation Operation       `json:"operation"`
	Data      json.RawMessage `json:"data"`
}

// ParseNotification decodes a raw frame. Unknown interfaces and operations
// are not errors here; only structurally invalid frames are.
func ParseNotification(raw []byte) (ChangeNotification, error) {
	var n ChangeNotification
	if err := json.Unmarshal(raw, &n); err != nil {
		return ChangeNotification{}, fmt.Errorf("parse notification: %w", err)
	}
	if n.Interface == "" {
		return ChangeNotification{}, fmt.Errorf("parse notification: missing interface")
	}
	if n.Operation == "" {
		return ChangeNotification{}, fmt.Errorf("parse notification: missing operation")
	}
	if len(bytes.TrimSpace(n.Data)) == 0 {
		return ChangeNotification{}, fmt.Errorf("parse notification: missing data")
	}
	return n, nil
}

// Key returns "interface.operation", used in logs.
func (n ChangeNotification) Key() string {
	return string(n.Interface) + "." + string(n.Operation)
}
