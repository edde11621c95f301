package agentrunner

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jotnar/internal/tools"
)

type scriptedTransport struct {
	turns []CompletionResponse
	calls int
}

func (s *scriptedTransport) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if s.calls >= len(s.turns) {
		return CompletionResponse{}, errors.New("no more scripted turns")
	}
	r := s.turns[s.calls]
	s.calls++
	return r, nil
}

type echoOutput struct {
	Greeting string `json:"greeting"`
}

func TestRunReturnsFinalAnswer(t *testing.T) {
	transport := &scriptedTransport{turns: []CompletionResponse{
		{Final: json.RawMessage(`{"greeting":"hello"}`)},
	}}
	reg := tools.NewRegistry()
	r := NewRunner(transport, reg)

	out, err := Run[echoOutput](context.Background(), r, "system prompt", map[string]string{"name": "bash"}, nil, Caps{})
	require.NoError(t, err)
	assert.Equal(t, "hello", out.Greeting)
}

func TestRunExecutesToolCallsSequentiallyBeforeFinalAnswer(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(tools.TypedTool("double", func(ctx context.Context, in struct{ N int }) (struct{ Result int }, error) {
		return struct{ Result int }{Result: in.N * 2}, nil
	}))

	transport := &scriptedTransport{turns: []CompletionResponse{
		{ToolCalls: []ToolCall{{ID: "1", Name: "double", Arguments: json.RawMessage(`{"N":21}`)}}},
		{Final: json.RawMessage(`{"greeting":"done"}`)},
	}}
	r := NewRunner(transport, reg)

	out, err := Run[echoOutput](context.Background(), r, "system prompt", map[string]string{}, nil, Caps{})
	require.NoError(t, err)
	assert.Equal(t, "done", out.Greeting)
	assert.Equal(t, 2, transport.calls)
}

func TestRunReturnsAgentErrorOnEmptyTurn(t *testing.T) {
	reg := tools.NewRegistry()
	transport := &scriptedTransport{turns: []CompletionResponse{
		{ToolCalls: []ToolCall{}}, // neither tool calls nor a final answer
	}}
	r := NewRunner(transport, reg)

	_, err := Run[echoOutput](context.Background(), r, "system prompt", map[string]string{}, nil, Caps{MaxIterations: 1})
	require.Error(t, err)

	var agentErr *AgentError
	require.True(t, errors.As(err, &agentErr))
	assert.Equal(t, 1, agentErr.Iterations)
}
