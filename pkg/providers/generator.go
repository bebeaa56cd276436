// Package providers implements the two external capabilities the workflow
// engine consumes: a Generator that turns a prompt plus output constraint
// into structured named values, and a Retriever that fetches text from a
// source locator. Transport-level concerns (request construction, auth,
// response parsing) live here; the engine never sees them.
package providers

import (
	"context"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Generator is the abstract generation capability. The backend selector
// picks one of the configured transports; implementations must honor the
// constraint on a best-effort basis and fail with a *BackendError when no
// well-formed structured result can be produced.
//
// Calls may block for a very long time (minutes to hours on large models);
// implementations must not apply request-scale timeouts. Any transport-level
// retry/backoff belongs to the implementation, never to the engine's
// validation retry loop.
type Generator interface {
	Generate(ctx context.Context, backend, prompt string, constraint *jsonschema.Schema) (map[string]string, error)
}

// Retriever is the abstract retrieval capability for downloaded variables.
type Retriever interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// BackendError reports that the generation capability failed to produce
// usable output. It is fatal to a workflow run; the engine does not retry it.
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %q: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// RetrievalError reports a fetch failure. The engine absorbs it: the
// affected variable is bound to a sentinel placeholder and execution
// continues.
type RetrievalError struct {
	URL string
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieve %q: %v", e.URL, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// Registry dispatches Generate calls on the backend selector.
type Registry struct {
	backends map[string]Generator
	def      string
}

// NewRegistry creates an empty registry with the given default backend name.
func NewRegistry(defaultBackend string) *Registry {
	return &Registry{
		backends: make(map[string]Generator),
		def:      defaultBackend,
	}
}

// Register adds a named backend.
func (r *Registry) Register(name string, g Generator) {
	r.backends[name] = g
}

// Generate dispatches to the named backend; an empty selector uses the
// registry default.
func (r *Registry) Generate(ctx context.Context, backend, prompt string, constraint *jsonschema.Schema) (map[string]string, error) {
	name := backend
	if name == "" {
		name = r.def
	}
	g, ok := r.backends[name]
	if !ok {
		return nil, &BackendError{Backend: name, Err: fmt.Errorf("no such backend configured")}
	}
	return g.Generate(ctx, name, prompt, constraint)
}
