package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toolRound(callID string) (Message, []ToolResult) {
	assistant := Message{
		Role: RoleAssistant,
		ToolCalls: []ToolCall{
			{ID: callID, Name: "read_file", Arguments: json.RawMessage(`{"path":"a.txt"}`)},
		},
	}
	results := []ToolResult{
		{ToolCallID: callID, Status: StatusOK, Payload: "contents"},
	}
	return assistant, results
}

func TestHistoryAddRejectsToolRole(t *testing.T) {
	h := NewHistory()
	err := h.Add(RoleTool, "raw tool message")
	require.Error(t, err)
	assert.Equal(t, 0, h.Len())
}

func TestHistoryToolRoundOrdering(t *testing.T) {
	h := NewHistory()
	require.NoError(t, h.Add(RoleUser, "hi"))

	assistant := Message{
		Role: RoleAssistant,
		ToolCalls: []ToolCall{
			{ID: "call_1", Name: "read_file"},
			{ID: "call_2", Name: "list_files"},
		},
	}
	results := []ToolResult{
		{ToolCallID: "call_1", Status: StatusOK, Payload: "one"},
		{ToolCallID: "call_2", Status: StatusError, Payload: "two"},
	}
	h.AddToolRound(assistant, results)

	msgs := h.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "call_1", msgs[2].ToolCallID)
	assert.Equal(t, "call_2", msgs[3].ToolCallID)
	require.NoError(t, Validate(msgs))
}

func TestHistoryWindowBound(t *testing.T) {
	h := NewHistory()
	require.NoError(t, h.Add(RoleSystem, "sys"))
	for i := 0; i < 10; i++ {
		require.NoError(t, h.Add(RoleUser, "q"))
		require.NoError(t, h.Add(RoleAssistant, "a"))
	}

	assert.Len(t, h.Window(0), 21, "zero means unbounded")

	// The leading system message rides outside the count.
	window := h.Window(4)
	require.Len(t, window, 5)
	assert.Equal(t, RoleSystem, window[0].Role)
	assert.Equal(t, "sys", window[0].Content)
	assert.Equal(t, 21, h.Len(), "stored history is untouched")
}

func TestHistoryWindowAlwaysKeepsSystemPrompt(t *testing.T) {
	h := NewHistory()
	require.NoError(t, h.Add(RoleSystem, "stay"))
	for i := 0; i < 5; i++ {
		require.NoError(t, h.Add(RoleUser, "q"))
		require.NoError(t, h.Add(RoleAssistant, "a"))
	}

	// Even a window far smaller than the history keeps the system prompt.
	window := h.Window(2)
	require.Len(t, window, 3)
	assert.Equal(t, RoleSystem, window[0].Role)
	assert.Equal(t, RoleUser, window[1].Role)
	assert.Equal(t, RoleAssistant, window[2].Role)
}

func TestHistoryWindowDropsOrphanedToolResults(t *testing.T) {
	h := NewHistory()
	require.NoError(t, h.Add(RoleUser, "q"))
	assistant, results := toolRound("call_9")
	h.AddToolRound(assistant, results)
	require.NoError(t, h.Add(RoleAssistant, "done"))

	// A window of 2 would start at the tool result, whose tool_calls
	// entry fell outside; the orphan must be dropped.
	window := h.Window(2)
	require.Len(t, window, 1)
	assert.Equal(t, RoleAssistant, window[0].Role)
	require.NoError(t, Validate(window))
}

func TestHistoryRollback(t *testing.T) {
	h := NewHistory()
	require.NoError(t, h.Add(RoleUser, "first"))
	h.Commit()

	require.NoError(t, h.Add(RoleUser, "doomed"))
	assistant, results := toolRound("call_x")
	h.AddToolRound(assistant, results)

	h.Rollback()
	msgs := h.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "first", msgs[0].Content)
}

func TestHistorySetMessagesValidates(t *testing.T) {
	h := NewHistory()
	bad := []Message{
		{Role: RoleTool, Content: "{}", ToolCallID: "never_issued"},
	}
	require.Error(t, h.SetMessages(bad))
	assert.Equal(t, 0, h.Len())

	good := []Message{
		{Role: RoleUser, Content: "q"},
		{Role: RoleAssistant, Content: "a"},
	}
	require.NoError(t, h.SetMessages(good))
	assert.Equal(t, 2, h.Len())

	// The replacement is committed: rollback keeps it.
	h.Rollback()
	assert.Equal(t, 2, h.Len())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		messages []Message
		wantErr  bool
	}{
		{
			name: "plain conversation",
			messages: []Message{
				{Role: RoleSystem, Content: "sys"},
				{Role: RoleUser, Content: "q"},
				{Role: RoleAssistant, Content: "a"},
			},
		},
		{
			name: "unknown role",
			messages: []Message{
				{Role: Role("narrator"), Content: "meanwhile"},
			},
			wantErr: true,
		},
		{
			name: "tool_calls on user message",
			messages: []Message{
				{Role: RoleUser, ToolCalls: []ToolCall{{ID: "c", Name: "t"}}},
			},
			wantErr: true,
		},
		{
			name: "dangling tool result",
			messages: []Message{
				{Role: RoleUser, Content: "q"},
				{Role: RoleTool, Content: "{}", ToolCallID: "ghost"},
			},
			wantErr: true,
		},
		{
			name: "tool result after its call",
			messages: []Message{
				{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "t"}}},
				{Role: RoleTool, Content: "{}", ToolCallID: "c1"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.messages)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestToolResultMessageEnvelope(t *testing.T) {
	ok := ToolResult{ToolCallID: "c1", Status: StatusOK, Payload: "fine"}
	msg := ok.Message()
	assert.Equal(t, RoleTool, msg.Role)
	assert.Equal(t, "c1", msg.ToolCallID)
	assert.JSONEq(t, `{"output":"fine"}`, msg.Content)

	bad := ErrorResult("c2", "boom")
	assert.JSONEq(t, `{"error":"boom"}`, bad.Message().Content)

	cut := ToolResult{ToolCallID: "c3", Status: StatusOK, Payload: "part", Truncated: true}
	assert.JSONEq(t, `{"output":"part","truncated":true}`, cut.Message().Content)
}
