package schema

import (
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// BuildOutputConstraint converts a step's generated variable declarations
// into the structural constraint passed to the generation capability. Each
// generated variable contributes a string property; required flags populate
// the required list, option lists become enums, and declared patterns are
// attached verbatim. Additional properties are forbidden.
//
// The constraint is honored by the backend on a best-effort basis only; the
// validator subsystem re-checks the result regardless.
func BuildOutputConstraint(vars []Variable) *jsonschema.Schema {
	props := orderedmap.New[string, *jsonschema.Schema]()
	var required []string

	for _, v := range vars {
		if v.Kind != VarGenerated {
			continue
		}
		prop := &jsonschema.Schema{Type: "string"}
		if v.Pattern != "" {
			prop.Pattern = v.Pattern
		}
		for _, opt := range v.Options {
			prop.Enum = append(prop.Enum, opt)
		}
		props.Set(v.Name, prop)
		if v.Required {
			required = append(required, v.Name)
		}
	}

	return &jsonschema.Schema{
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: jsonschema.FalseSchema,
	}
}
