package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/textloom/loom/pkg/runtime"
	"github.com/textloom/loom/pkg/schema"
)

// HandleValidate implements the loom/validate tool.
func (s *Server) HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	wf, errs := schema.ValidateFile(path)
	if schema.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}
	return textResult(fmt.Sprintf("✓ %s is valid", wf.Meta.Name)), nil
}

// HandleSchema implements the loom/schema tool.
func (s *Server) HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := schema.GenerateDocumentJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// HandleRun implements the loom/run tool.
func (s *Server) HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	if s.Generator == nil {
		return errorResult("no generation backend configured"), nil
	}

	wf, errs := schema.ValidateFile(path)
	if schema.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}

	vars := make(map[string]string)
	if rawVars, ok := args["vars"].(map[string]any); ok {
		for k, v := range rawVars {
			vars[k] = fmt.Sprint(v)
		}
	}
	backend, _ := args["backend"].(string)

	eng := runtime.New(runtime.Config{
		Generator: s.Generator,
		Retriever: s.Retriever,
		Logger:    s.Log,
		Backend:   backend,
		Vars:      vars,
	})
	result, err := eng.Run(ctx, wf)
	if err != nil {
		return errorResult(fmt.Sprintf("run failed: %s", err)), nil
	}

	response := map[string]any{
		"run_id":      result.RunID,
		"workflow":    result.Workflow,
		"generations": result.Generations,
		"value":       result.Value,
	}
	data, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("encode result: %s", err)), nil
	}
	return textResult(string(data)), nil
}

func formatErrors(errs []*schema.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == "error" {
			msgs = append(msgs, fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message))
		}
	}
	return strings.Join(msgs, "; ")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
