package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lair-ai/lair/internal/chat"
	"github.com/lair-ai/lair/internal/logging"
)

// OpenAIOptions configures the OpenAI-protocol endpoint client.
type OpenAIOptions struct {
	// APIKey authenticates against the endpoint. May be empty for local
	// endpoints that ignore authentication.
	APIKey string
	// BaseURL overrides the endpoint URL; empty means the public API.
	BaseURL string
	// Timeout bounds each completion call.
	Timeout time.Duration
}

// OpenAI speaks the OpenAI chat-completions protocol.
type OpenAI struct {
	client *openai.Client
}

// NewOpenAI creates an endpoint client.
func NewOpenAI(opts OpenAIOptions) *OpenAI {
	key := opts.APIKey
	if key == "" {
		key = "none"
	}
	cfg := openai.DefaultConfig(key)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAI{client: openai.NewClientWithConfig(cfg)}
}

// Complete issues one chat-completion call.
func (o *OpenAI) Complete(ctx context.Context, req *Request) (*Response, error) {
	apiReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: toAPIMessages(req.Messages),
	}
	if req.Temperature != nil {
		apiReq.Temperature = float32(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		apiReq.MaxCompletionTokens = req.MaxTokens
	}
	for _, def := range req.Tools {
		apiReq.Tools = append(apiReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}

	logging.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Int("tools", len(req.Tools)).
		Msg("completion request")

	resp, err := o.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return nil, classify("completion", err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ProtocolError{Reason: "completion returned no choices"}
	}

	choice := resp.Choices[0]
	msg, err := fromAPIMessage(choice.Message)
	if err != nil {
		return nil, err
	}

	return &Response{
		Message:      msg,
		FinishReason: string(choice.FinishReason),
	}, nil
}

// ListModels returns the models advertised by the endpoint.
func (o *OpenAI) ListModels(ctx context.Context) ([]ModelInfo, error) {
	list, err := o.client.ListModels(ctx)
	if err != nil {
		return nil, classify("list models", err)
	}
	models := make([]ModelInfo, 0, len(list.Models))
	for _, m := range list.Models {
		models = append(models, ModelInfo{
			ID:      m.ID,
			OwnedBy: m.OwnedBy,
			Created: time.Unix(m.CreatedAt, 0).UTC(),
		})
	}
	return models, nil
}

// classify sorts endpoint failures into the retryable transport class and
// the terminal protocol class.
func classify(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests,
			apiErr.HTTPStatusCode == http.StatusRequestTimeout,
			apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return &TransportError{Op: op, Err: err}
		default:
			return &ProtocolError{Reason: "endpoint rejected " + op, Err: err}
		}
	}
	// Anything that never produced an API-level response is transport.
	return &TransportError{Op: op, Err: err}
}

func toAPIMessages(messages []chat.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		apiMsg := openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, call := range msg.ToolCalls {
			apiMsg.ToolCalls = append(apiMsg.ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: string(call.Arguments),
				},
			})
		}
		out = append(out, apiMsg)
	}
	return out
}

func fromAPIMessage(msg openai.ChatCompletionMessage) (chat.Message, error) {
	out := chat.Message{
		Role:    chat.RoleAssistant,
		Content: msg.Content,
		Refusal: msg.Refusal,
	}
	for _, call := range msg.ToolCalls {
		if call.Function.Name == "" {
			return chat.Message{}, &ProtocolError{Reason: "tool call without function name"}
		}
		args := call.Function.Arguments
		if args == "" {
			args = "{}"
		}
		if !json.Valid([]byte(args)) {
			return chat.Message{}, &ProtocolError{Reason: "tool call arguments are not valid JSON"}
		}
		out.ToolCalls = append(out.ToolCalls, chat.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: json.RawMessage(args),
		})
	}
	return out, nil
}
