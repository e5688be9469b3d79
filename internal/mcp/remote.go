package mcp

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/lair-ai/lair/internal/logging"
	"github.com/lair-ai/lair/internal/tool"
)

// remoteTool adapts a provider tool to the registry's Tool interface.
// All remote tools live in the mcp settings category, so a single switch
// enables or disables them.
type remoteTool struct {
	client      *Client
	provider    string
	remoteName  string
	exposedName string
	description string
	schema      json.RawMessage
}

func (t *remoteTool) Name() string                { return t.exposedName }
func (t *remoteTool) Category() string            { return "mcp" }
func (t *remoteTool) Description() string         { return t.description }
func (t *remoteTool) Parameters() json.RawMessage { return t.schema }

func (t *remoteTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	return t.client.Call(ctx, t.provider, t.remoteName, args)
}

// RegisterAll replaces the registry's remote tools with the client's current
// manifest. Tool names are prefixed with the provider host so two providers
// exposing the same tool name do not collide.
func (c *Client) RegisterAll(reg *tool.Registry) {
	reg.DropRemote()
	for _, t := range c.Tools() {
		rt := &remoteTool{
			client:      c,
			provider:    t.Provider,
			remoteName:  t.Name,
			exposedName: exposedName(t.Provider, t.Name),
			description: t.Description,
			schema:      t.InputSchema,
		}
		if err := reg.RegisterRemote(t.Provider, rt); err != nil {
			logging.Warn().Str("tool", rt.exposedName).Err(err).
				Msg("skipping remote tool")
		}
	}
}

func exposedName(providerURL, toolName string) string {
	host := providerURL
	if parsed, err := url.Parse(providerURL); err == nil && parsed.Host != "" {
		host = parsed.Hostname()
	}
	return sanitize(host) + "_" + sanitize(toolName)
}

// sanitize replaces non-alphanumeric runes with underscores so the exposed
// name is a valid function name for the model.
func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
