package config

import (
	"encoding/json"

	"github.com/grovetools/statesync/logging"
	"github.com/invopop/jsonschema"
)

// policySchema documents one entry of the policies section.
type policySchema struct {
	Policy string `yaml:"policy" jsonschema:"required,enum=serialize_latest,enum=run_every,enum=rate_limited,description=Concurrency policy"`
	Window string `yaml:"window,omitempty" jsonschema:"pattern=^([0-9]+(ns|us|ms|s|m|h))+$,description=Rate limit window for rate_limited"`
}

// GenerateSchema generates the JSON Schema of statesync.yml, including the
// logging and policies extension sections.
func GenerateSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		FieldNameTag:               "yaml",
	}

	type schemaConfig struct {
		Version  string                  `yaml:"version,omitempty" jsonschema:"description=Configuration version"`
		Server   ServerConfig            `yaml:"server" jsonschema:"required,description=Remote API endpoints"`
		Logging  *logging.Config         `yaml:"logging,omitempty" jsonschema:"description=Logging configuration"`
		Policies map[string]policySchema `yaml:"policies,omitempty" jsonschema:"description=Policy overrides keyed by command kind (e.g. samples.create)"`
	}

	schema := r.Reflect(&schemaConfig{})
	schema.Title = "statesync configuration"
	schema.Description = "Schema for statesync.yml."
	schema.Version = "http://json-schema.org/draft-07/schema#"
	// Unknown top-level keys are extensions of other tools.
	schema.AdditionalProperties = nil

	return json.MarshalIndent(schema, "", "  ")
}
