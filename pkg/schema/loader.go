package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads and structurally decodes a workflow YAML document.
func LoadFile(path string) (*Workflow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workflow: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a workflow document from a reader. Unknown fields are rejected.
func Load(r io.Reader) (*Workflow, error) {
	var wf Workflow
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // strict: reject unknown fields
	if err := dec.Decode(&wf); err != nil {
		return nil, fmt.Errorf("structural decode: %w", err)
	}
	Normalize(&wf)
	return &wf, nil
}

// Normalize fills in inferable defaults after decoding: variable kinds are
// inferred from which fields are set, and validator expectations default to
// "yes". Documents built in memory (tests, synthesized judge steps) can call
// this directly.
func Normalize(wf *Workflow) {
	walkSteps(&wf.Root, normalizeStep)
}

func normalizeStep(s *Step) {
	for i := range s.Vars {
		v := &s.Vars[i]
		if v.Kind != "" {
			continue
		}
		switch {
		case v.Source != "":
			v.Kind = VarDownloaded
		case v.Value != "":
			v.Kind = VarLocal
		default:
			v.Kind = VarGenerated
		}
	}
	for i := range s.Validators {
		if s.Validators[i].Expect == "" {
			s.Validators[i].Expect = "yes"
		}
	}
}

// walkSteps applies fn to the step and all descendants, document order.
func walkSteps(s *Step, fn func(*Step)) {
	fn(s)
	for i := range s.Steps {
		walkSteps(&s.Steps[i], fn)
	}
}
