package agentrunner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OpenRouterTransport drives model completions through OpenRouter's
// OpenAI-compatible chat completions endpoint, with the response shape
// folded down to CompletionResponse. It is the single concrete model
// backend this package ships: choice of model is a runtime parameter, not a
// reason to add another Transport implementation.
type OpenRouterTransport struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// NewOpenRouterTransport builds a Transport against OpenRouter (or any
// OpenAI-compatible gateway reachable at baseURL).
func NewOpenRouterTransport(baseURL, apiKey, model string) *OpenRouterTransport {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterTransport{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Model:      model,
		HTTPClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
}

type chatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatCompletionRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Tools          []chatToolSpec `json:"tools,omitempty"`
	ResponseFormat interface{}    `json:"response_format,omitempty"`
}

type chatToolSpec struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete implements Transport.
func (t *OpenRouterTransport) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	body := chatCompletionRequest{
		Model:    t.Model,
		Messages: toChatMessages(req.Messages),
	}
	for _, name := range req.ToolNames {
		spec := chatToolSpec{Type: "function"}
		spec.Function.Name = name
		body.Tools = append(body.Tools, spec)
	}
	if req.ToolSchema != nil {
		body.ResponseFormat = map[string]interface{}{
			"type":        "json_schema",
			"json_schema": json.RawMessage(req.ToolSchema),
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("openrouter: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("openrouter: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.APIKey)

	resp, err := t.HTTPClient.Do(httpReq)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("openrouter: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("openrouter: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return CompletionResponse{}, fmt.Errorf("openrouter: status %d: %s", resp.StatusCode, raw)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return CompletionResponse{}, fmt.Errorf("openrouter: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return CompletionResponse{}, fmt.Errorf("openrouter: no choices in response")
	}

	msg := parsed.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		out := CompletionResponse{}
		for _, tc := range msg.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			})
		}
		return out, nil
	}

	return CompletionResponse{Final: json.RawMessage(msg.Content)}, nil
}

func toChatMessages(in []Message) []chatMessage {
	out := make([]chatMessage, 0, len(in))
	for _, m := range in {
		cm := chatMessage{Role: string(m.Role), Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			ctc := chatToolCall{ID: tc.ID, Type: "function"}
			ctc.Function.Name = tc.Name
			ctc.Function.Arguments = string(tc.Arguments)
			cm.ToolCalls = append(cm.ToolCalls, ctc)
		}
		out = append(out, cm)
	}
	return out
}
