package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-path-like location (e.g., "root.steps[0].vars[1]")
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

func errorf(phase, path, msg string, args ...any) *ValidationError {
	return &ValidationError{Phase: phase, Path: path, Message: fmt.Sprintf(msg, args...), Severity: "error"}
}

func warningf(phase, path, msg string, args ...any) *ValidationError {
	return &ValidationError{Phase: phase, Path: path, Message: fmt.Sprintf(msg, args...), Severity: "warning"}
}

// HasErrors reports whether any entry is error-severity.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

// ValidateFile runs the full 3-phase pipeline on a workflow file.
// Phase 1: Structural (strict YAML decode)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (hand-coded rules)
func ValidateFile(path string) (*Workflow, []*ValidationError) {
	wf, err := LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{errorf("structural", "", "failed to load: %s", err)}
	}
	return wf, ValidateWorkflow(wf)
}

// ValidateWorkflow runs phases 2+3 on an already-loaded document.
func ValidateWorkflow(wf *Workflow) []*ValidationError {
	var errs []*ValidationError
	errs = append(errs, validateSemantic(wf)...)
	if HasErrors(errs) {
		return errs
	}
	errs = append(errs, validateDomain(wf)...)
	return errs
}

// validateSemantic validates the document against its generated JSON Schema.
func validateSemantic(wf *Workflow) []*ValidationError {
	data, err := json.Marshal(wf)
	if err != nil {
		return []*ValidationError{errorf("semantic", "", "marshal for schema validation: %v", err)}
	}

	schemaJSON, err := GenerateDocumentJSONSchema()
	if err != nil {
		return []*ValidationError{errorf("semantic", "", "generate schema: %v", err)}
	}

	schemaDoc, err := sjsonschema.UnmarshalJSON(strings.NewReader(string(schemaJSON)))
	if err != nil {
		return []*ValidationError{errorf("semantic", "", "unmarshal schema: %v", err)}
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("workflow-v1.json", schemaDoc); err != nil {
		return []*ValidationError{errorf("semantic", "", "add schema resource: %v", err)}
	}
	sch, err := c.Compile("workflow-v1.json")
	if err != nil {
		return []*ValidationError{errorf("semantic", "", "compile schema: %v", err)}
	}

	doc, err := sjsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return []*ValidationError{errorf("semantic", "", "unmarshal document: %v", err)}
	}

	if err := sch.Validate(doc); err != nil {
		var errs []*ValidationError
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, cause := range flattenValidationErrors(ve) {
				instancePath := strings.Join(cause.InstanceLocation, "/")
				errs = append(errs, errorf("semantic", instancePath, "%v", cause.ErrorKind))
			}
		} else {
			errs = append(errs, errorf("semantic", "", "%s", err.Error()))
		}
		return errs
	}
	return nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// validateDomain applies hand-coded rules over the step tree.
func validateDomain(wf *Workflow) []*ValidationError {
	var errs []*ValidationError

	if wf.APIVersion != APIVersion {
		errs = append(errs, errorf("domain", "apiVersion",
			"unrecognized apiVersion %q, expected %q", wf.APIVersion, APIVersion))
	}
	if wf.Meta.Name == "" {
		errs = append(errs, errorf("domain", "meta.name", "workflow name is required"))
	}

	validateStep(&wf.Root, "root", &errs)
	return errs
}

func validateStep(s *Step, path string, errs *[]*ValidationError) {
	seen := make(map[string]bool)
	for i := range s.Vars {
		v := &s.Vars[i]
		vpath := fmt.Sprintf("%s.vars[%d]", path, i)

		if v.Name == "" {
			*errs = append(*errs, errorf("domain", vpath, "variable name is required"))
		}
		if seen[v.Name] {
			*errs = append(*errs, warningf("domain", vpath,
				"variable %q declared more than once in this step; the later declaration wins", v.Name))
		}
		seen[v.Name] = true

		switch v.Kind {
		case VarLocal:
			if v.Pattern != "" || len(v.Options) > 0 || v.Required || v.Source != "" {
				*errs = append(*errs, errorf("domain", vpath,
					"local variable %q carries fields of another kind", v.Name))
			}
		case VarGenerated:
			if v.Value != "" || v.Source != "" {
				*errs = append(*errs, errorf("domain", vpath,
					"generated variable %q carries fields of another kind", v.Name))
			}
			if v.Pattern != "" {
				if _, err := regexp.Compile(v.Pattern); err != nil {
					*errs = append(*errs, errorf("domain", vpath, "invalid pattern: %v", err))
				}
			}
		case VarDownloaded:
			if v.Source == "" {
				*errs = append(*errs, errorf("domain", vpath,
					"downloaded variable %q has no source", v.Name))
			}
			switch v.Postprocess {
			case PostprocessNone, PostprocessText, PostprocessMarkdown:
			default:
				*errs = append(*errs, errorf("domain", vpath,
					"unknown postprocess mode %q (use %q or %q)", v.Postprocess, PostprocessText, PostprocessMarkdown))
			}
			if v.MaxLength < 0 {
				*errs = append(*errs, errorf("domain", vpath, "max_length must not be negative"))
			}
		default:
			*errs = append(*errs, errorf("domain", vpath, "unknown variable kind %q", v.Kind))
		}
	}

	if s.Prompt != "" && len(s.Generated()) == 0 {
		*errs = append(*errs, warningf("domain", path+".prompt",
			"step declares a prompt but no generated variables; the generation result will be empty"))
	}
	if s.Prompt == "" && len(s.Generated()) > 0 {
		*errs = append(*errs, errorf("domain", path+".vars",
			"step declares generated variables but no prompt"))
	}
	if len(s.Validators) > 0 && s.Prompt == "" {
		*errs = append(*errs, warningf("domain", path+".validators",
			"validators without a prompt are never evaluated"))
	}

	for i := range s.Validators {
		v := &s.Validators[i]
		vpath := fmt.Sprintf("%s.validators[%d]", path, i)
		if v.Text == "" {
			*errs = append(*errs, errorf("domain", vpath, "validator text is required"))
		}
		if v.Expect != "" && v.Expect != "yes" && v.Expect != "no" {
			*errs = append(*errs, errorf("domain", vpath,
				"invalid expectation %q (use yes or no)", v.Expect))
		}
		if v.Pattern != "" {
			if _, err := regexp.Compile(v.Pattern); err != nil {
				*errs = append(*errs, errorf("domain", vpath, "invalid pattern: %v", err))
			}
		}
	}

	if s.Return != nil {
		validateReturn(s.Return.Value, s.Return.Fields, path+".return", errs)
	}

	for i := range s.Steps {
		validateStep(&s.Steps[i], fmt.Sprintf("%s.steps[%d]", path, i), errs)
	}
}

func validateReturn(value string, fields []ReturnField, path string, errs *[]*ValidationError) {
	if value != "" && len(fields) > 0 {
		*errs = append(*errs, errorf("domain", path, "return declares both a leaf value and fields"))
		return
	}
	if value == "" && len(fields) == 0 {
		*errs = append(*errs, errorf("domain", path, "return declares neither a leaf value nor fields"))
		return
	}
	for i := range fields {
		validateReturn(fields[i].Value, fields[i].Fields, fmt.Sprintf("%s.fields[%d]", path, i), errs)
	}
}
