package tool

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lair-ai/lair/internal/chat"
	"github.com/lair-ai/lair/internal/config"
)

// stubTool is a controllable tool for invoker tests.
type stubTool struct {
	base
	execute func(ctx context.Context, args json.RawMessage) (string, error)
}

func (t *stubTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	return t.execute(ctx, args)
}

func newStubTool(name string, fn func(ctx context.Context, args json.RawMessage) (string, error)) *stubTool {
	return &stubTool{
		base: base{
			name:     name,
			category: "file",
			parameters: json.RawMessage(`{
				"type": "object",
				"properties": {"value": {"type": "string"}},
				"required": ["value"]
			}`),
		},
		execute: fn,
	}
}

func enabledSettings() config.Settings {
	s := config.Default()
	s["tools.enabled"] = true
	return s
}

func TestInvokeUnknownTool(t *testing.T) {
	inv := NewInvoker(NewRegistry(), enabledSettings())
	res := inv.Invoke(context.Background(), chat.ToolCall{ID: "c1", Name: "nonexistent"})
	assert.Equal(t, chat.StatusError, res.Status)
	assert.Contains(t, res.Payload, "unknown tool")
}

func TestInvokeDisabledTool(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(newStubTool("echo", nil)))

	s := enabledSettings()
	s["tools.file.enabled"] = false

	inv := NewInvoker(reg, s)
	res := inv.Invoke(context.Background(), chat.ToolCall{ID: "c1", Name: "echo"})
	assert.Equal(t, chat.StatusError, res.Status)
	assert.Contains(t, res.Payload, "disabled")
}

func TestInvokeGlobalSwitchOff(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(newStubTool("echo", nil)))

	inv := NewInvoker(reg, config.Default()) // tools.enabled defaults to false
	res := inv.Invoke(context.Background(), chat.ToolCall{ID: "c1", Name: "echo"})
	assert.Equal(t, chat.StatusError, res.Status)
}

func TestInvokeValidatesArguments(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(newStubTool("echo", func(ctx context.Context, args json.RawMessage) (string, error) {
		return "ran", nil
	})))
	inv := NewInvoker(reg, enabledSettings())

	res := inv.Invoke(context.Background(), chat.ToolCall{
		ID: "c1", Name: "echo", Arguments: json.RawMessage(`{"wrong": 1}`),
	})
	assert.Equal(t, chat.StatusError, res.Status)
	assert.Contains(t, res.Payload, "invalid arguments")

	res = inv.Invoke(context.Background(), chat.ToolCall{
		ID: "c2", Name: "echo", Arguments: json.RawMessage(`{"value": "ok"}`),
	})
	assert.Equal(t, chat.StatusOK, res.Status)
	assert.Equal(t, "ran", res.Payload)
}

func TestInvokeNonJSONArguments(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(newStubTool("echo", nil)))
	inv := NewInvoker(reg, enabledSettings())

	res := inv.Invoke(context.Background(), chat.ToolCall{
		ID: "c1", Name: "echo", Arguments: json.RawMessage(`{broken`),
	})
	assert.Equal(t, chat.StatusError, res.Status)
}

func TestInvokeTimeout(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(newStubTool("slow", func(ctx context.Context, args json.RawMessage) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})))

	s := enabledSettings()
	s["tools.file.timeout"] = 0.05

	inv := NewInvoker(reg, s)
	start := time.Now()
	res := inv.Invoke(context.Background(), chat.ToolCall{
		ID: "c1", Name: "slow", Arguments: json.RawMessage(`{"value":"x"}`),
	})
	assert.Equal(t, chat.StatusError, res.Status)
	assert.Contains(t, res.Payload, "timed out")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestInvokeTimeoutIgnoringTool(t *testing.T) {
	// A tool that never checks its context must still be abandoned at the
	// deadline.
	reg := NewRegistry()
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	require.NoError(t, reg.Register(newStubTool("stuck", func(ctx context.Context, args json.RawMessage) (string, error) {
		<-block
		return "too late", nil
	})))

	s := enabledSettings()
	s["tools.file.timeout"] = 0.05

	inv := NewInvoker(reg, s)
	res := inv.Invoke(context.Background(), chat.ToolCall{
		ID: "c1", Name: "stuck", Arguments: json.RawMessage(`{"value":"x"}`),
	})
	assert.Equal(t, chat.StatusError, res.Status)
	assert.Contains(t, res.Payload, "timed out")
}

func TestInvokePanicIsFolded(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(newStubTool("bomb", func(ctx context.Context, args json.RawMessage) (string, error) {
		panic("kaboom")
	})))

	inv := NewInvoker(reg, enabledSettings())
	res := inv.Invoke(context.Background(), chat.ToolCall{
		ID: "c1", Name: "bomb", Arguments: json.RawMessage(`{"value":"x"}`),
	})
	assert.Equal(t, chat.StatusError, res.Status)
	assert.Contains(t, res.Payload, "panicked")
}

func TestInvokeOutputCap(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(newStubTool("big", func(ctx context.Context, args json.RawMessage) (string, error) {
		return strings.Repeat("x", 100), nil
	})))

	s := enabledSettings()
	s["tools.output_limit"] = 10

	inv := NewInvoker(reg, s)
	res := inv.Invoke(context.Background(), chat.ToolCall{
		ID: "c1", Name: "big", Arguments: json.RawMessage(`{"value":"x"}`),
	})
	assert.Equal(t, chat.StatusOK, res.Status)
	assert.Len(t, res.Payload, 10)
	assert.True(t, res.Truncated)
}

func TestInvokeOutputCapPerCategory(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(newStubTool("big", func(ctx context.Context, args json.RawMessage) (string, error) {
		return strings.Repeat("x", 100), nil
	})))

	// The category limit wins over the global one.
	s := enabledSettings()
	s["tools.output_limit"] = 50
	s["tools.file.output_limit"] = 10

	inv := NewInvoker(reg, s)
	res := inv.Invoke(context.Background(), chat.ToolCall{
		ID: "c1", Name: "big", Arguments: json.RawMessage(`{"value":"x"}`),
	})
	assert.Len(t, res.Payload, 10)
	assert.True(t, res.Truncated)
}

func TestInvokeOutputCapKeepsRunesWhole(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(newStubTool("wide", func(ctx context.Context, args json.RawMessage) (string, error) {
		return strings.Repeat("世", 10), nil // 3 bytes per rune
	})))

	s := enabledSettings()
	s["tools.output_limit"] = 10 // lands mid-rune

	inv := NewInvoker(reg, s)
	res := inv.Invoke(context.Background(), chat.ToolCall{
		ID: "c1", Name: "wide", Arguments: json.RawMessage(`{"value":"x"}`),
	})
	assert.True(t, res.Truncated)
	assert.True(t, utf8.ValidString(res.Payload))
	assert.Equal(t, strings.Repeat("世", 3), res.Payload)
}

func TestRegistryDuplicateAndDrop(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(newStubTool("a", nil)))
	assert.Error(t, reg.Register(newStubTool("a", nil)))

	require.NoError(t, reg.RegisterRemote("http://p1", newStubTool("r1", nil)))
	require.NoError(t, reg.RegisterRemote("http://p2", newStubTool("r2", nil)))

	assert.Equal(t, 1, reg.DropSource("http://p1"))
	_, ok := reg.Get("r1")
	assert.False(t, ok)

	assert.Equal(t, 1, reg.DropRemote())
	_, ok = reg.Get("a")
	assert.True(t, ok, "builtins survive DropRemote")
}

func TestDefinitionsFilterByEnablement(t *testing.T) {
	reg := NewRegistry()
	fileTool := newStubTool("f", nil)
	webTool := &stubTool{base: base{name: "w", category: "web", parameters: json.RawMessage(`{"type":"object"}`)}}
	require.NoError(t, reg.Register(fileTool))
	require.NoError(t, reg.Register(webTool))

	s := enabledSettings()
	s["tools.web.enabled"] = false

	defs := reg.Definitions(s)
	require.Len(t, defs, 1)
	assert.Equal(t, "f", defs[0].Name)
}
