package chat

import (
	"encoding/json"
	"fmt"
	"strings"
)

// History is the ordered message sequence owned by one session. It is
// append-mostly: the only whole-history mutation is SetMessages, which
// validates referential integrity before accepting the replacement.
//
// The full history is stored untruncated; retention applies only to the
// Window view sent to the completion endpoint. A failed turn rolls back to
// the last committed index.
type History struct {
	messages  []Message
	committed int
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{}
}

// Add appends a plain message. Tool-role messages must go through
// AddToolRound so their correlation ids are appended together.
func (h *History) Add(role Role, content string) error {
	if role == RoleTool {
		return fmt.Errorf("tool messages must be added with AddToolRound")
	}
	if !role.valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	h.messages = append(h.messages, Message{Role: role, Content: content})
	return nil
}

// AddMessage appends a prepared message without role restrictions. Used for
// assistant messages carrying tool_calls.
func (h *History) AddMessage(msg Message) {
	h.messages = append(h.messages, msg)
}

// AddToolRound appends an assistant message with its tool_calls followed by
// one tool-role message per result, in the order the calls were issued.
func (h *History) AddToolRound(assistant Message, results []ToolResult) {
	h.messages = append(h.messages, assistant)
	for _, res := range results {
		h.messages = append(h.messages, res.Message())
	}
}

// Len returns the number of stored messages.
func (h *History) Len() int {
	return len(h.messages)
}

// Messages returns a copy of the full stored history.
func (h *History) Messages() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Window returns the view sent to the completion endpoint: at most n of the
// newest conversation messages when n > 0, all messages otherwise. A leading
// system message sits outside the count and is always included, so retention
// can never drop the system prompt. Truncation is exchange-aligned: leading
// tool-role messages whose correlated tool_calls entry fell outside the
// window are dropped too, so the endpoint never sees an orphaned tool
// result. The stored history is unaffected.
func (h *History) Window(n int) []Message {
	msgs := h.messages
	var lead []Message
	if len(msgs) > 0 && msgs[0].Role == RoleSystem {
		lead = msgs[:1]
		msgs = msgs[1:]
	}
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}

	start := 0
	for start < len(msgs) && msgs[start].Role == RoleTool {
		start++
	}
	msgs = msgs[start:]

	out := make([]Message, 0, len(lead)+len(msgs))
	out = append(out, lead...)
	out = append(out, msgs...)
	return out
}

// Commit marks the current history as finalized.
func (h *History) Commit() {
	h.committed = len(h.messages)
}

// Rollback removes messages appended since the last commit.
func (h *History) Rollback() {
	if h.committed > len(h.messages) {
		h.committed = len(h.messages)
	}
	h.messages = h.messages[:h.committed]
}

// SetMessages replaces the whole history after validating it.
func (h *History) SetMessages(messages []Message) error {
	if err := Validate(messages); err != nil {
		return fmt.Errorf("invalid history: %w", err)
	}
	h.messages = make([]Message, len(messages))
	copy(h.messages, messages)
	h.committed = len(h.messages)
	return nil
}

// Clear removes all messages.
func (h *History) Clear() {
	h.messages = nil
	h.committed = 0
}

// Clone returns a deep copy of the history.
func (h *History) Clone() *History {
	out := &History{committed: h.committed}
	out.messages = make([]Message, len(h.messages))
	copy(out.messages, h.messages)
	return out
}

// JSONL renders the history one JSON document per line.
func (h *History) JSONL() string {
	var b strings.Builder
	for _, msg := range h.messages {
		line, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.String()
}
