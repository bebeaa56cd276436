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

const openaiAPIURL = "https://api.openai.com/v1/chat/completions"

// OpenAIGenerator implements Generator over any OpenAI-compatible chat
// completions endpoint, forcing a single function call that carries the
// output constraint as its parameter schema.
type OpenAIGenerator struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *http.Client
}

// NewOpenAIGenerator creates a generator for the given key and model.
// A non-empty baseURL points it at a compatible self-hosted endpoint.
func NewOpenAIGenerator(apiKey, model, baseURL string) *OpenAIGenerator {
	if model == "" {
		model = "gpt-4o"
	}
	if baseURL == "" {
		baseURL = openaiAPIURL
	}
	return &OpenAIGenerator{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: baseURL,
		Client:  &http.Client{},
	}
}

type openaiRequest struct {
	Model      string          `json:"model"`
	Messages   []openaiMessage `json:"messages"`
	Tools      []openaiTool    `json:"tools,omitempty"`
	ToolChoice any             `json:"tool_choice,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiTool struct {
	Type     string         `json:"type"`
	Function openaiFunction `json:"function"`
}

type openaiFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate sends the prompt and decodes the forced function call arguments
// into named string values.
func (g *OpenAIGenerator) Generate(ctx context.Context, backend, prompt string, constraint *jsonschema.Schema) (map[string]string, error) {
	schemaJSON, err := json.Marshal(constraint)
	if err != nil {
		return nil, &BackendError{Backend: backend, Err: fmt.Errorf("marshal constraint: %w", err)}
	}

	req := openaiRequest{
		Model:    g.Model,
		Messages: []openaiMessage{{Role: "user", Content: prompt}},
		Tools: []openaiTool{{
			Type: "function",
			Function: openaiFunction{
				Name:        emitToolName,
				Description: "Report the requested values.",
				Parameters:  schemaJSON,
			},
		}},
		ToolChoice: map[string]any{
			"type":     "function",
			"function": map[string]string{"name": emitToolName},
		},
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
	httpReq.Header.Set("Authorization", "Bearer "+g.APIKey)

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

	var or openaiResponse
	if err := json.Unmarshal(respBody, &or); err != nil {
		return nil, &BackendError{Backend: backend, Err: fmt.Errorf("parse response: %w", err)}
	}
	if or.Error != nil {
		return nil, &BackendError{Backend: backend, Err: fmt.Errorf("%s: %s", or.Error.Type, or.Error.Message)}
	}

	for _, choice := range or.Choices {
		for _, call := range choice.Message.ToolCalls {
			if call.Function.Name == emitToolName {
				return decodeToolInput(backend, json.RawMessage(call.Function.Arguments))
			}
		}
	}
	return nil, &BackendError{Backend: backend, Err: fmt.Errorf("response carries no %s tool call", emitToolName)}
}
