// Package chat defines the conversation data model: messages, tool calls,
// tool results, and the ordered history a session owns.
package chat

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// valid reports whether the role is one of the four known roles.
func (r Role) valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// ToolCall is a model-issued request to execute a named tool.
// The ID is assigned by the model and is unique within one assistant turn.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is one entry in a conversation history. ToolCalls is set only on
// assistant messages that request tools; ToolCallID only on tool-role
// messages carrying a result back.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Refusal    string     `json:"refusal,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ResultStatus is the outcome class of a tool invocation.
type ResultStatus string

const (
	StatusOK    ResultStatus = "ok"
	StatusError ResultStatus = "error"
)

// ToolResult is the structured outcome of one tool call. Truncated is set
// when the payload was cut at the configured output cap.
type ToolResult struct {
	ToolCallID string       `json:"tool_call_id"`
	Status     ResultStatus `json:"status"`
	Payload    string       `json:"payload"`
	Truncated  bool         `json:"truncated,omitempty"`
}

// Message renders the result as the tool-role message echoed back to the
// completion endpoint. The content is a JSON envelope so the model can
// distinguish success from failure.
func (r ToolResult) Message() Message {
	envelope := map[string]any{}
	if r.Status == StatusOK {
		envelope["output"] = r.Payload
	} else {
		envelope["error"] = r.Payload
	}
	if r.Truncated {
		envelope["truncated"] = true
	}
	content, err := json.Marshal(envelope)
	if err != nil {
		content = []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
	}
	return Message{
		Role:       RoleTool,
		Content:    string(content),
		ToolCallID: r.ToolCallID,
	}
}

// ErrorResult builds a status=error result for a call.
func ErrorResult(callID, msg string) ToolResult {
	return ToolResult{ToolCallID: callID, Status: StatusError, Payload: msg}
}

// Validate checks the structural invariants of a history: known roles,
// tool_calls only on assistant messages, and every tool-role message
// referencing a tool_calls entry emitted earlier in the same history.
// A dangling reference is a corruption signal, not a recoverable state.
func Validate(messages []Message) error {
	issued := make(map[string]bool)
	for i, msg := range messages {
		if !msg.Role.valid() {
			return fmt.Errorf("message %d: unknown role %q", i, msg.Role)
		}
		if len(msg.ToolCalls) > 0 && msg.Role != RoleAssistant {
			return fmt.Errorf("message %d: tool_calls on %s message", i, msg.Role)
		}
		for _, call := range msg.ToolCalls {
			issued[call.ID] = true
		}
		if msg.Role == RoleTool {
			if msg.ToolCallID == "" {
				return fmt.Errorf("message %d: tool message without tool_call_id", i)
			}
			if !issued[msg.ToolCallID] {
				return fmt.Errorf("message %d: dangling tool_call_id %q", i, msg.ToolCallID)
			}
		} else if msg.ToolCallID != "" {
			return fmt.Errorf("message %d: tool_call_id on %s message", i, msg.Role)
		}
	}
	return nil
}
