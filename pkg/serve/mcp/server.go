// Package mcp exposes loom over the Model Context Protocol so AI agents
// can validate and execute workflow documents as tools.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/textloom/loom/pkg/providers"
)

// Server bundles the capabilities the tool handlers need.
type Server struct {
	Generator providers.Generator
	Retriever providers.Retriever
	Log       *zap.Logger
}

// NewServer creates an MCP server with loom tools registered.
func NewServer(version string, s *Server) *server.MCPServer {
	if s.Log == nil {
		s.Log = zap.NewNop()
	}

	m := server.NewMCPServer(
		"loom",
		version,
		server.WithToolCapabilities(true),
	)

	m.AddTool(
		mcp.NewTool("loom/validate",
			mcp.WithDescription("Validate a loom workflow YAML file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the workflow YAML file")),
		),
		s.HandleValidate,
	)

	m.AddTool(
		mcp.NewTool("loom/run",
			mcp.WithDescription("Execute a loom workflow and return its projected result"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the workflow YAML file")),
			mcp.WithString("backend", mcp.Description("Backend selector overriding the document default")),
			mcp.WithObject("vars", mcp.Description("Variable bindings merged over the document's meta.vars")),
		),
		s.HandleRun,
	)

	m.AddTool(
		mcp.NewTool("loom/schema",
			mcp.WithDescription("Export the JSON Schema of the workflow document format"),
		),
		s.HandleSchema,
	)

	return m
}
