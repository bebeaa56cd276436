package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/invopop/jsonschema"
)

const anthropicAPIURL = "https://api.anthropic.com/v1/messages"
const anthropicAPIVersion = "2023-06-01"

// emitToolName is the tool both transports force the model to call. The
// output constraint travels as the tool's input schema, so a well-formed
// response is exactly one structured tool invocation.
const emitToolName = "emit_result"

// AnthropicGenerator implements Generator over the Anthropic messages API
// using a forced tool call to obtain structured output.
type AnthropicGenerator struct {
	APIKey    string
	Model     string
	MaxTokens int
	BaseURL   string
	Client    *http.Client
}

// NewAnthropicGenerator creates a generator for the given key and model.
func NewAnthropicGenerator(apiKey, model string) *AnthropicGenerator {
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	return &AnthropicGenerator{
		APIKey:    apiKey,
		Model:     model,
		MaxTokens: 8192,
		BaseURL:   anthropicAPIURL,
		// No client timeout: a single generation may run for hours.
		// Cancellation comes from the caller's context.
		Client: &http.Client{},
	}
}

type anthropicRequest struct {
	Model      string             `json:"model"`
	MaxTokens  int                `json:"max_tokens"`
	Messages   []anthropicMessage `json:"messages"`
	Tools      []anthropicTool    `json:"tools,omitempty"`
	ToolChoice *anthropicChoice   `json:"tool_choice,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type anthropicChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type  string          `json:"type"`
		Text  string          `json:"text,omitempty"`
		Name  string          `json:"name,omitempty"`
		Input json.RawMessage `json:"input,omitempty"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate sends the prompt with the constraint attached as a forced tool
// and decodes the tool invocation into named string values.
func (g *AnthropicGenerator) Generate(ctx context.Context, backend, prompt string, constraint *jsonschema.Schema) (map[string]string, error) {
	schemaJSON, err := json.Marshal(constraint)
	if err != nil {
		return nil, &BackendError{Backend: backend, Err: fmt.Errorf("marshal constraint: %w", err)}
	}

	req := anthropicRequest{
		Model:     g.Model,
		MaxTokens: g.MaxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
		Tools: []anthropicTool{{
			Name:        emitToolName,
			Description: "Report the requested values.",
			InputSchema: schemaJSON,
		}},
		ToolChoice: &anthropicChoice{Type: "tool", Name: emitToolName},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &BackendError{Backend: backend, Err: fmt.Errorf("marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, &BackendError{Backend: backend, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", g.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := g.Client.Do(httpReq)
	if err != nil {
		return nil, &BackendError{Backend: backend, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &BackendError{Backend: backend, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &BackendError{Backend: backend, Err: fmt.Errorf("API error %d: %s", resp.StatusCode, respBody)}
	}

	var ar anthropicResponse
	if err := json.Unmarshal(respBody, &ar); err != nil {
		return nil, &BackendError{Backend: backend, Err: fmt.Errorf("parse response: %w", err)}
	}
	if ar.Error != nil {
		return nil, &BackendError{Backend: backend, Err: fmt.Errorf("%s: %s", ar.Error.Type, ar.Error.Message)}
	}

	for _, block := range ar.Content {
		if block.Type == "tool_use" && block.Name == emitToolName {
			return decodeToolInput(backend, block.Input)
		}
	}
	return nil, &BackendError{Backend: backend, Err: fmt.Errorf("response carries no %s tool call", emitToolName)}
}

// decodeToolInput flattens a structured tool invocation into string values.
// Models occasionally emit non-string JSON scalars for string-typed
// properties; those are restringified rather than rejected.
func decodeToolInput(backend string, input json.RawMessage) (map[string]string, error) {
	var raw map[string]any
	if err := json.Unmarshal(input, &raw); err != nil {
		return nil, &BackendError{Backend: backend, Err: fmt.Errorf("parse tool input: %w", err)}
	}
	out := make(map[string]string, len(raw))
	for name, v := range raw {
		switch t := v.(type) {
		case string:
			out[name] = t
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return nil, &BackendError{Backend: backend, Err: fmt.Errorf("value %q: %w", name, err)}
			}
			out[name] = string(b)
		}
	}
	return out, nil
}
