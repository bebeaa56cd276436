package schema

import (
	"strings"
	"testing"
)

const sampleDoc = `
apiVersion: workflow/v1
meta:
  name: article
  vars:
    topic: volcanoes
root:
  prompt: "Write about ${topic}."
  vars:
    - name: intro
      value: "An article about ${topic}"
    - name: reference
      source: "https://example.com/${topic}"
      postprocess: text
      max_length: 2000
    - name: body
      required: true
      pattern: "^[A-Z]"
  validators:
    - text: "Is the article about ${topic}?"
  steps:
    - id: summary
      prompt: "Summarize: ${body}"
      vars:
        - name: abstract
          required: true
      return:
        fields:
          - name: abstract
            value: "${abstract}"
`

func TestLoadSampleDocument(t *testing.T) {
	wf, err := Load(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatal(err)
	}
	if wf.Meta.Name != "article" {
		t.Errorf("meta.name = %q", wf.Meta.Name)
	}
	if len(wf.Root.Vars) != 3 {
		t.Fatalf("root vars = %d, want 3", len(wf.Root.Vars))
	}
	if len(wf.Root.Steps) != 1 {
		t.Fatalf("root steps = %d, want 1", len(wf.Root.Steps))
	}
}

func TestLoadInfersVariableKinds(t *testing.T) {
	wf, err := Load(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatal(err)
	}
	kinds := []VarKind{VarLocal, VarDownloaded, VarGenerated}
	for i, want := range kinds {
		if got := wf.Root.Vars[i].Kind; got != want {
			t.Errorf("vars[%d].Kind = %q, want %q", i, got, want)
		}
	}
}

func TestLoadDefaultsValidatorExpectation(t *testing.T) {
	wf, err := Load(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatal(err)
	}
	if got := wf.Root.Validators[0].Expect; got != "yes" {
		t.Errorf("validator expect = %q, want yes", got)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	doc := `
apiVersion: workflow/v1
meta:
  name: bad
root:
  prmopt: "typo field"
`
	if _, err := Load(strings.NewReader(doc)); err == nil {
		t.Fatal("expected structural error for unknown field")
	}
}

func TestGeneratedHelper(t *testing.T) {
	wf, err := Load(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatal(err)
	}
	gen := wf.Root.Generated()
	if len(gen) != 1 || gen[0].Name != "body" {
		t.Errorf("Generated() = %+v, want [body]", gen)
	}
}
