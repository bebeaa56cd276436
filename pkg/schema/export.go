package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateDocumentJSONSchema produces a JSON Schema Draft 2020-12 document
// for workflow YAML files using invopop/jsonschema.
func GenerateDocumentJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&Workflow{})
	s.ID = "https://github.com/textloom/loom/schemas/workflow-v1.json"
	s.Title = "Loom Workflow v1"
	s.Description = "Schema for loom generative-text workflow YAML documents (Draft 2020-12)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}
