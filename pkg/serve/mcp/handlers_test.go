package mcp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/mark3labs/mcp-go/mcp"
)

type stubGenerator struct {
	response map[string]string
}

func (g *stubGenerator) Generate(ctx context.Context, backend, prompt string, constraint *jsonschema.Schema) (map[string]string, error) {
	return g.response, nil
}

func writeWorkflow(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wf.yaml")
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validDoc = `
apiVersion: workflow/v1
meta:
  name: greeting
root:
  prompt: "Say hello to ${who}."
  vars:
    - name: hello
      required: true
`

func TestHandleValidateMissingPath(t *testing.T) {
	s := &Server{}
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{}

	result, err := s.HandleValidate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error for missing path")
	}
}

func TestHandleValidateValidDocument(t *testing.T) {
	s := &Server{}
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"path": writeWorkflow(t, validDoc)}

	result, err := s.HandleValidate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Errorf("expected success, got %+v", result.Content)
	}
}

func TestHandleValidateBadDocument(t *testing.T) {
	s := &Server{}
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"path": writeWorkflow(t, "apiVersion: workflow/v9\nmeta: {name: x}\nroot: {}\n")}

	result, err := s.HandleValidate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error for bad apiVersion")
	}
}

func TestHandleSchema(t *testing.T) {
	s := &Server{}
	result, err := s.HandleSchema(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError || len(result.Content) == 0 {
		t.Fatal("expected schema content")
	}
}

func TestHandleRun(t *testing.T) {
	s := &Server{Generator: &stubGenerator{response: map[string]string{"hello": "hi alice"}}}
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{
		"path": writeWorkflow(t, validDoc),
		"vars": map[string]any{"who": "alice"},
	}

	result, err := s.HandleRun(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("run errored: %+v", result.Content)
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T", result.Content[0])
	}
	if !strings.Contains(text.Text, `"hi alice"`) {
		t.Errorf("result missing value: %s", text.Text)
	}
}

func TestHandleRunWithoutGenerator(t *testing.T) {
	s := &Server{}
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"path": writeWorkflow(t, validDoc)}

	result, err := s.HandleRun(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error when no backend is configured")
	}
}
