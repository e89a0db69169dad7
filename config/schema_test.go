package config

import (
	"encoding/json"
	"testing"
)

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	if err != nil {
		t.Fatalf("GenerateSchema failed: %v", err)
	}

	var schema map[string]interface{}
	if err := json.Unmarshal(data, &schema); err != nil {
		t.Fatalf("Schema is not valid JSON: %v", err)
	}

	if schema["$schema"] != "http://json-schema.org/draft-07/schema#" {
		t.Errorf("expected JSON Schema draft-07, got %v", schema["$schema"])
	}
	if _, ok := schema["additionalProperties"]; ok {
		t.Error("expected unknown top-level keys to be allowed")
	}

	props, ok := schema["properties"].(map[string]interface{})
	if !ok {
		t.Fatal("expected properties to be defined")
	}
	for _, key := range []string{"version", "server", "logging", "policies"} {
		if _, ok := props[key]; !ok {
			t.Errorf("expected %q property", key)
		}
	}

	required, _ := schema["required"].([]interface{})
	found := false
	for _, r := range required {
		if r == "server" {
			found = true
		}
	}
	if !found {
		t.Error("expected 'server' to be required")
	}
}
