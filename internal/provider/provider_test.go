package provider

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lair-ai/lair/internal/chat"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantTransport bool
	}{
		{
			name:          "rate limited",
			err:           &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests},
			wantTransport: true,
		},
		{
			name:          "server error",
			err:           &openai.APIError{HTTPStatusCode: http.StatusBadGateway},
			wantTransport: true,
		},
		{
			name: "bad request",
			err:  &openai.APIError{HTTPStatusCode: http.StatusBadRequest},
		},
		{
			name: "unauthorized",
			err:  &openai.APIError{HTTPStatusCode: http.StatusUnauthorized},
		},
		{
			name:          "network failure",
			err:           errors.New("dial tcp: connection refused"),
			wantTransport: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("completion", tt.err)
			var transport *TransportError
			var protocol *ProtocolError
			if tt.wantTransport {
				assert.True(t, errors.As(got, &transport), "expected transport error, got %v", got)
			} else {
				assert.True(t, errors.As(got, &protocol), "expected protocol error, got %v", got)
			}
		})
	}
}

func TestFromAPIMessage(t *testing.T) {
	msg, err := fromAPIMessage(openai.ChatCompletionMessage{
		Content: "done",
		ToolCalls: []openai.ToolCall{
			{ID: "c1", Function: openai.FunctionCall{Name: "read_file", Arguments: `{"path":"x"}`}},
			{ID: "c2", Function: openai.FunctionCall{Name: "list_files"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 2)
	assert.Equal(t, chat.RoleAssistant, msg.Role)
	assert.Equal(t, "read_file", msg.ToolCalls[0].Name)
	assert.JSONEq(t, `{}`, string(msg.ToolCalls[1].Arguments), "empty arguments default to an empty object")

	_, err = fromAPIMessage(openai.ChatCompletionMessage{
		ToolCalls: []openai.ToolCall{{ID: "c1", Function: openai.FunctionCall{Arguments: "{}"}}},
	})
	var protocol *ProtocolError
	assert.True(t, errors.As(err, &protocol), "nameless tool call must be a protocol error")

	_, err = fromAPIMessage(openai.ChatCompletionMessage{
		ToolCalls: []openai.ToolCall{{ID: "c1", Function: openai.FunctionCall{Name: "t", Arguments: "{not json"}}},
	})
	assert.True(t, errors.As(err, &protocol), "invalid argument JSON must be a protocol error")
}

// scriptedClient returns queued outcomes and counts calls.
type scriptedClient struct {
	errs  []error
	resp  *Response
	calls int
}

func (c *scriptedClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	idx := c.calls
	c.calls++
	if idx < len(c.errs) && c.errs[idx] != nil {
		return nil, c.errs[idx]
	}
	return c.resp, nil
}

func (c *scriptedClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return nil, nil
}

func TestRetryingRecoverFromTransportErrors(t *testing.T) {
	inner := &scriptedClient{
		errs: []error{
			&TransportError{Op: "completion", Err: errors.New("reset")},
			&TransportError{Op: "completion", Err: errors.New("reset again")},
			nil,
		},
		resp: &Response{Message: chat.Message{Role: chat.RoleAssistant, Content: "ok"}},
	}

	client := WithRetries(inner, 3)
	client.initialInterval = time.Millisecond
	resp, err := client.Complete(context.Background(), &Request{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Message.Content)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryingGivesUpAfterBound(t *testing.T) {
	transport := &TransportError{Op: "completion", Err: errors.New("down")}
	inner := &scriptedClient{
		errs: []error{transport, transport, transport, transport},
	}

	client := WithRetries(inner, 2)
	client.initialInterval = time.Millisecond
	_, err := client.Complete(context.Background(), &Request{Model: "m"})
	require.Error(t, err)
	var got *TransportError
	assert.True(t, errors.As(err, &got))
	assert.Equal(t, 3, inner.calls, "initial attempt plus two retries")
}

func TestRetryingDoesNotRetryProtocolErrors(t *testing.T) {
	inner := &scriptedClient{
		errs: []error{&ProtocolError{Reason: "bad request"}},
	}

	client := WithRetries(inner, 5)
	_, err := client.Complete(context.Background(), &Request{Model: "m"})
	require.Error(t, err)
	var protocol *ProtocolError
	assert.True(t, errors.As(err, &protocol))
	assert.Equal(t, 1, inner.calls)
}
