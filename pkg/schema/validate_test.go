package schema

import (
	"strings"
	"testing"
)

func loadValid(t *testing.T) *Workflow {
	t.Helper()
	wf, err := Load(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatal(err)
	}
	return wf
}

func TestValidateSampleDocument(t *testing.T) {
	wf := loadValid(t)
	errs := ValidateWorkflow(wf)
	if HasErrors(errs) {
		for _, e := range errs {
			t.Logf("  %v", e)
		}
		t.Fatal("sample document should validate")
	}
}

func TestValidateAPIVersion(t *testing.T) {
	wf := loadValid(t)
	wf.APIVersion = "workflow/v9"
	errs := ValidateWorkflow(wf)
	if !hasErrorAt(errs, "apiVersion") {
		t.Error("expected apiVersion error")
	}
}

func TestValidateMissingName(t *testing.T) {
	wf := loadValid(t)
	wf.Meta.Name = ""
	if !hasErrorAt(ValidateWorkflow(wf), "meta.name") {
		t.Error("expected meta.name error")
	}
}

func TestValidateBadPattern(t *testing.T) {
	wf := loadValid(t)
	wf.Root.Vars[2].Pattern = "([unclosed"
	if !HasErrors(ValidateWorkflow(wf)) {
		t.Error("expected error for uncompilable pattern")
	}
}

func TestValidateUnknownPostprocess(t *testing.T) {
	wf := loadValid(t)
	wf.Root.Vars[1].Postprocess = "emoji"
	if !HasErrors(ValidateWorkflow(wf)) {
		t.Error("expected error for unknown postprocess mode")
	}
}

func TestValidateBadExpectation(t *testing.T) {
	wf := loadValid(t)
	wf.Root.Validators[0].Expect = "maybe"
	if !HasErrors(ValidateWorkflow(wf)) {
		t.Error("expected error for invalid expectation")
	}
}

func TestValidateGeneratedWithoutPrompt(t *testing.T) {
	wf := loadValid(t)
	wf.Root.Prompt = ""
	if !HasErrors(ValidateWorkflow(wf)) {
		t.Error("expected error for generated variables without a prompt")
	}
}

func TestValidateReturnShape(t *testing.T) {
	wf := loadValid(t)
	wf.Root.Steps[0].Return = &Return{
		Value:  "leaf",
		Fields: []ReturnField{{Name: "x", Value: "${x}"}},
	}
	if !HasErrors(ValidateWorkflow(wf)) {
		t.Error("expected error for return with both value and fields")
	}

	wf.Root.Steps[0].Return = &Return{}
	if !HasErrors(ValidateWorkflow(wf)) {
		t.Error("expected error for empty return")
	}
}

func TestValidateDuplicateVariableWarning(t *testing.T) {
	wf := loadValid(t)
	wf.Root.Vars = append(wf.Root.Vars, Variable{Name: "intro", Kind: VarLocal, Value: "override"})
	errs := ValidateWorkflow(wf)
	if HasErrors(errs) {
		t.Fatal("duplicate names override, they are not errors")
	}
	found := false
	for _, e := range errs {
		if e.Severity == "warning" && strings.Contains(e.Message, "declared more than once") {
			found = true
		}
	}
	if !found {
		t.Error("expected duplicate-declaration warning")
	}
}

func hasErrorAt(errs []*ValidationError, path string) bool {
	for _, e := range errs {
		if e.Severity == "error" && e.Path == path {
			return true
		}
	}
	return false
}
