// Package mcp discovers and invokes tools exposed by Model Context Protocol
// providers. Providers are HTTP endpoints; each one contributes its tool
// manifest to the shared registry under the mcp category.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lair-ai/lair/internal/event"
	"github.com/lair-ai/lair/internal/logging"
)

// Tool is a tool advertised by a provider.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Provider    string
}

type providerConn struct {
	url     string
	session *sdkmcp.ClientSession
	tools   []Tool
	err     error
}

// Client maintains sessions with the configured MCP providers.
type Client struct {
	sdkClient *sdkmcp.Client

	mu        sync.RWMutex
	providers map[string]*providerConn
}

// NewClient creates a client with no connected providers.
func NewClient() *Client {
	return &Client{
		sdkClient: sdkmcp.NewClient(&sdkmcp.Implementation{
			Name:    "lair",
			Version: "1.0.0",
		}, nil),
		providers: make(map[string]*providerConn),
	}
}

// ParseProviders splits a newline-separated provider list into URLs.
func ParseProviders(raw string) []string {
	var urls []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls
}

// Refresh reconnects to the given providers and reloads their tool
// manifests. An unreachable provider is logged and contributes no tools;
// it does not fail the refresh.
func (c *Client) Refresh(ctx context.Context, providerURLs []string) {
	fresh := make(map[string]*providerConn, len(providerURLs))
	for _, url := range providerURLs {
		conn := c.connect(ctx, url)
		if conn.err != nil {
			logging.Warn().Str("provider", url).Err(conn.err).
				Msg("mcp provider unreachable, skipping")
		}
		fresh[url] = conn
	}

	c.mu.Lock()
	old := c.providers
	c.providers = fresh
	c.mu.Unlock()

	for _, conn := range old {
		if conn.session != nil {
			conn.session.Close()
		}
	}

	event.Publish(event.Event{
		Type: event.ToolsRefreshed,
		Data: map[string]any{"providers": len(providerURLs)},
	})
}

// connect establishes a session to one provider, preferring the streamable
// HTTP transport and falling back to SSE for older servers.
func (c *Client) connect(ctx context.Context, url string) *providerConn {
	conn := &providerConn{url: url}

	transports := []sdkmcp.Transport{
		&sdkmcp.StreamableClientTransport{Endpoint: url},
		&sdkmcp.SSEClientTransport{Endpoint: url},
	}

	var lastErr error
	for _, transport := range transports {
		session, err := c.sdkClient.Connect(ctx, transport, nil)
		if err != nil {
			lastErr = err
			continue
		}
		tools, err := listTools(ctx, session, url)
		if err != nil {
			session.Close()
			lastErr = err
			continue
		}
		conn.session = session
		conn.tools = tools
		return conn
	}

	conn.err = lastErr
	if conn.err == nil {
		conn.err = fmt.Errorf("no transport succeeded")
	}
	return conn
}

func listTools(ctx context.Context, session *sdkmcp.ClientSession, providerURL string) ([]Tool, error) {
	result, err := session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}

	tools := make([]Tool, 0, len(result.Tools))
	for _, t := range result.Tools {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil || len(schema) == 0 || string(schema) == "null" {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		tools = append(tools, Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
			Provider:    providerURL,
		})
	}
	return tools, nil
}

// Tools returns the tools of every reachable provider.
func (c *Client) Tools() []Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var all []Tool
	for _, conn := range c.providers {
		all = append(all, conn.tools...)
	}
	return all
}

// Call invokes a tool on its provider and returns the concatenated text
// content of the result.
func (c *Client) Call(ctx context.Context, providerURL, name string, args json.RawMessage) (string, error) {
	c.mu.RLock()
	conn, ok := c.providers[providerURL]
	c.mu.RUnlock()
	if !ok || conn.session == nil {
		return "", fmt.Errorf("provider not connected: %s", providerURL)
	}

	var argsMap map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &argsMap); err != nil {
			return "", fmt.Errorf("parse arguments: %w", err)
		}
	}

	result, err := conn.session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      name,
		Arguments: argsMap,
	})
	if err != nil {
		return "", err
	}

	var out strings.Builder
	for _, content := range result.Content {
		if text, ok := content.(*sdkmcp.TextContent); ok {
			out.WriteString(text.Text)
		}
	}
	if result.IsError {
		return "", fmt.Errorf("tool failed: %s", out.String())
	}
	return out.String(), nil
}

// Status describes one provider for diagnostics output.
type Status struct {
	URL       string
	Connected bool
	ToolCount int
	Error     string
}

// ProviderStatus reports the state of every configured provider.
func (c *Client) ProviderStatus() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var status []Status
	for _, conn := range c.providers {
		s := Status{
			URL:       conn.url,
			Connected: conn.session != nil,
			ToolCount: len(conn.tools),
		}
		if conn.err != nil {
			s.Error = conn.err.Error()
		}
		status = append(status, s)
	}
	return status
}

// Close disconnects all providers.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conn := range c.providers {
		if conn.session != nil {
			conn.session.Close()
		}
	}
	c.providers = make(map[string]*providerConn)
	return nil
}
