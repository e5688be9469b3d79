// Package tool provides the tool framework: the capability interface,
// the registry of built-in and remote tools, and the invoker that executes
// model-issued tool calls under validation, timeouts, and output caps.
package tool

import (
	"context"
	"encoding/json"
)

// Tool defines the interface every capability implements, built-in or
// MCP-discovered.
type Tool interface {
	// Name returns the tool identifier used in tool calls.
	Name() string

	// Category returns the settings namespace the tool is governed by
	// (tools.<category>.enabled, tools.<category>.timeout).
	Category() string

	// Description returns the tool description sent to the model.
	Description() string

	// Parameters returns the JSON Schema for the tool's arguments.
	Parameters() json.RawMessage

	// Execute runs the tool. The context carries the per-tool deadline;
	// implementations must stop work when it is done.
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// base carries the static fields shared by the built-in tools.
type base struct {
	name        string
	category    string
	description string
	parameters  json.RawMessage
}

func (b base) Name() string                { return b.name }
func (b base) Category() string            { return b.category }
func (b base) Description() string         { return b.description }
func (b base) Parameters() json.RawMessage { return b.parameters }
