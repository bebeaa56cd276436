// Package schema defines the workflow document types: the step tree, its
// variable declarations, validators, and return projections, plus the
// generation output constraint built from a step's generated variables.
package schema

// APIVersion is the current workflow document version.
const APIVersion = "workflow/v1"

// ---------------------------------------------------------------------------
// Workflow
// ---------------------------------------------------------------------------

// Workflow is the top-level document: metadata plus exactly one root step.
// Immutable once loaded.
type Workflow struct {
	APIVersion string `yaml:"apiVersion" json:"apiVersion"`
	Meta       Meta   `yaml:"meta"       json:"meta"`
	Root       Step   `yaml:"root"       json:"root"`
}

// Meta carries workflow metadata and the initial scope seed.
type Meta struct {
	Name        string            `yaml:"name"                  json:"name"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Backend     string            `yaml:"backend,omitempty"     json:"backend,omitempty"`
	Vars        map[string]string `yaml:"vars,omitempty"        json:"vars,omitempty"`
}

// ---------------------------------------------------------------------------
// Step
// ---------------------------------------------------------------------------

// Step is one node of the workflow tree. A step may declare variables, run a
// generation prompt under validator constraints, recurse into child steps,
// and project a return value.
type Step struct {
	ID         string      `yaml:"id,omitempty"         json:"id,omitempty"`
	When       string      `yaml:"when,omitempty"       json:"when,omitempty"`
	Backend    string      `yaml:"backend,omitempty"    json:"backend,omitempty"`
	Prompt     string      `yaml:"prompt,omitempty"     json:"prompt,omitempty"`
	Vars       []Variable  `yaml:"vars,omitempty"       json:"vars,omitempty"`
	Validators []Validator `yaml:"validators,omitempty" json:"validators,omitempty"`
	Return     *Return     `yaml:"return,omitempty"     json:"return,omitempty"`
	Steps      []Step      `yaml:"steps,omitempty"      json:"steps,omitempty"`
}

// Generated returns the step's generated variable declarations in order.
func (s *Step) Generated() []Variable {
	var out []Variable
	for _, v := range s.Vars {
		if v.Kind == VarGenerated {
			out = append(out, v)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Variable declarations
// ---------------------------------------------------------------------------

// VarKind discriminates the three variable declaration variants so the
// interpreter's handling is exhaustive.
type VarKind string

const (
	// VarLocal is a literal or templated value resolved once at step entry.
	VarLocal VarKind = "local"
	// VarGenerated is filled by the generation capability under constraints.
	VarGenerated VarKind = "generated"
	// VarDownloaded is fetched from a templated source locator.
	VarDownloaded VarKind = "downloaded"
)

// Postprocessing modes for downloaded variables.
const (
	PostprocessNone     = ""
	PostprocessText     = "text"
	PostprocessMarkdown = "markdown"
)

// Variable is a single declaration. Fields are populated based on Kind;
// the loader infers a missing Kind from which fields are set.
type Variable struct {
	Name string  `yaml:"name"           json:"name"`
	Kind VarKind `yaml:"kind,omitempty" json:"kind,omitempty"`

	// Local
	Value string `yaml:"value,omitempty" json:"value,omitempty"`

	// Generated
	Pattern  string   `yaml:"pattern,omitempty"  json:"pattern,omitempty"`
	Required bool     `yaml:"required,omitempty" json:"required,omitempty"`
	Options  []string `yaml:"options,omitempty"  json:"options,omitempty"`

	// Downloaded
	Source      string `yaml:"source,omitempty"      json:"source,omitempty"`
	Postprocess string `yaml:"postprocess,omitempty" json:"postprocess,omitempty"`
	MaxLength   int    `yaml:"max_length,omitempty"  json:"max_length,omitempty"`
}

// ---------------------------------------------------------------------------
// Validator
// ---------------------------------------------------------------------------

// Validator is a pass/fail check against the candidate scope. With a pattern
// it is deterministic: the resolved text is matched against the pattern.
// Without one, the resolved text becomes a yes/no judgment posed to the
// generation capability.
type Validator struct {
	Expect  string `yaml:"expect,omitempty"  json:"expect,omitempty"` // "yes" (default) or "no"
	Text    string `yaml:"text"              json:"text"`
	Pattern string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
}

// IsPattern reports whether the validator is deterministic.
func (v *Validator) IsPattern() bool {
	return v.Pattern != ""
}

// Expectation returns the declared expectation, defaulting to "yes".
func (v *Validator) Expectation() string {
	if v.Expect == "" {
		return "yes"
	}
	return v.Expect
}

// ---------------------------------------------------------------------------
// Return projection
// ---------------------------------------------------------------------------

// Return declares the shape of a step's output: either a templated leaf
// value or an ordered list of named (or positionally keyed) fields.
type Return struct {
	Value  string        `yaml:"value,omitempty"  json:"value,omitempty"`
	Fields []ReturnField `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// IsLeaf reports whether the projection is a single templated string.
func (r *Return) IsLeaf() bool {
	return len(r.Fields) == 0
}

// ReturnField is one named (or unnamed, positionally keyed) sub-projection.
type ReturnField struct {
	Name   string        `yaml:"name,omitempty"   json:"name,omitempty"`
	Value  string        `yaml:"value,omitempty"  json:"value,omitempty"`
	Fields []ReturnField `yaml:"fields,omitempty" json:"fields,omitempty"`
}
