package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/lair-ai/lair/internal/chat"
	"github.com/lair-ai/lair/internal/config"
	"github.com/lair-ai/lair/internal/event"
	"github.com/lair-ai/lair/internal/logging"
)

const defaultToolTimeout = 60 * time.Second

// Invoker executes model-issued tool calls. Failures of any kind are folded
// into status=error results; nothing raises past this boundary, so a bad or
// unknown tool call can never abort the conversation.
type Invoker struct {
	registry *Registry
	settings config.Settings
}

// NewInvoker creates an invoker bound to an immutable settings snapshot.
func NewInvoker(registry *Registry, settings config.Settings) *Invoker {
	return &Invoker{registry: registry, settings: settings}
}

// Invoke runs one tool call: registry lookup, enablement check, argument
// validation against the tool's schema, execution under the per-tool
// timeout, and output capping.
func (inv *Invoker) Invoke(ctx context.Context, call chat.ToolCall) chat.ToolResult {
	e, ok := inv.registry.lookup(call.Name)
	if !ok {
		return chat.ErrorResult(call.ID, fmt.Sprintf("unknown tool: %s", call.Name))
	}
	t := e.tool

	if !Enabled(inv.settings, t) {
		return chat.ErrorResult(call.ID, fmt.Sprintf("tool is disabled: %s", call.Name))
	}

	if err := inv.validate(e, call.Arguments); err != nil {
		return chat.ErrorResult(call.ID, fmt.Sprintf("invalid arguments: %v", err))
	}

	timeout := inv.timeout(t)
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	event.Publish(event.Event{
		Type: event.ToolCalled,
		Data: map[string]any{"tool": call.Name, "call_id": call.ID},
	})
	logging.Debug().
		Str("tool", call.Name).
		Str("call_id", call.ID).
		Dur("timeout", timeout).
		Msg("tool call")

	output, err := inv.execute(execCtx, t, call.Arguments)
	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return chat.ErrorResult(call.ID, fmt.Sprintf("tool timed out after %s", timeout))
		}
		return chat.ErrorResult(call.ID, fmt.Sprintf("call failed: %v", err))
	}

	result := chat.ToolResult{ToolCallID: call.ID, Status: chat.StatusOK, Payload: output}
	if limit := inv.outputLimit(t); limit > 0 && len(result.Payload) > limit {
		result.Payload = truncate(result.Payload, limit)
		result.Truncated = true
	}
	return result
}

// execute runs the tool in its own goroutine so a tool that ignores its
// context cannot stall the turn past the deadline.
func (inv *Invoker) execute(ctx context.Context, t Tool, args json.RawMessage) (output string, err error) {
	type outcome struct {
		output string
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		out, execErr := t.Execute(ctx, args)
		done <- outcome{output: out, err: execErr}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return res.output, res.err
	}
}

func (inv *Invoker) validate(e *entry, args json.RawMessage) error {
	schema, err := e.compiled()
	if err != nil {
		return fmt.Errorf("tool schema is invalid: %w", err)
	}
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	var value any
	if err := json.Unmarshal(args, &value); err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	return schema.Validate(value)
}

// timeout resolves the tool's deadline: the category timeout when set,
// falling back to the global tools.timeout.
func (inv *Invoker) timeout(t Tool) time.Duration {
	fallback := inv.settings.Duration("tools.timeout", defaultToolTimeout)
	return inv.settings.Duration("tools."+t.Category()+".timeout", fallback)
}

// outputLimit resolves the payload cap the same way: the category limit when
// set, falling back to the global tools.output_limit. Zero disables capping.
func (inv *Invoker) outputLimit(t Tool) int {
	if limit := inv.settings.Int("tools." + t.Category() + ".output_limit"); limit > 0 {
		return limit
	}
	return inv.settings.Int("tools.output_limit")
}

// truncate cuts s at limit bytes, backing up so a multi-byte rune is never
// split.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
