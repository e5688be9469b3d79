// Package provider wraps the chat-completion endpoint as an atomic
// request/response call with an associated tool-call list.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lair-ai/lair/internal/chat"
)

// ToolDefinition advertises one tool to the completion endpoint.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Request is one completion call.
type Request struct {
	Model       string
	Messages    []chat.Message
	Tools       []ToolDefinition
	Temperature *float64
	MaxTokens   int
}

// Response is the endpoint's answer. Message carries the assistant content
// and, when the model requests tools, its tool_calls.
type Response struct {
	Message      chat.Message
	FinishReason string
}

// ModelInfo describes one model advertised by the endpoint.
type ModelInfo struct {
	ID      string
	OwnedBy string
	Created time.Time
}

// Client is the completion endpoint boundary.
type Client interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// TransportError is a network-level failure against the endpoint. It is
// retried up to the configured bound before being surfaced.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError is a malformed or rejected exchange with the endpoint.
// It is never retried.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
