package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/lair-ai/lair/internal/config"
	"github.com/lair-ai/lair/internal/logging"
	"github.com/lair-ai/lair/internal/mcp"
	"github.com/lair-ai/lair/internal/provider"
	"github.com/lair-ai/lair/internal/session"
	"github.com/lair-ai/lair/internal/store"
	"github.com/lair-ai/lair/internal/tool"
)

// app wires the settings, provider, tool registry, store, and session
// manager for one command invocation.
type app struct {
	settings config.Settings
	client   provider.Client
	registry *tool.Registry
	mcp      *mcp.Client
	store    *store.Store
	manager  *session.Manager
	watcher  *config.Watcher
	unwatch  func()
}

// buildApp assembles the full stack. Commands that only need a subset still
// go through here so wiring stays in one place.
func buildApp(ctx context.Context) (*app, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}

	client := newProviderClient(settings)
	registry := newRegistry(settings)

	mcpClient := mcp.NewClient()
	if settings.Bool("tools.mcp.enabled") {
		refreshCtx, cancel := context.WithTimeout(ctx, settings.Duration("tools.mcp.timeout", 15*time.Second))
		mcpClient.Refresh(refreshCtx, mcp.ParseProviders(settings.Str("tools.mcp.providers")))
		cancel()
		mcpClient.RegisterAll(registry)
	}

	st, err := store.Open(settings.Str("database.sessions.path"), int64(settings.Int("database.sessions.size")))
	if err != nil {
		return nil, err
	}

	a := &app{
		settings: settings,
		client:   client,
		registry: registry,
		mcp:      mcpClient,
		store:    st,
		manager:  session.NewManager(st, settings, client, registry),
	}

	// Edits to the settings file reach the manager's base without a restart.
	if configPath != "" {
		w, err := config.Watch(configPath)
		if err != nil {
			logging.Warn().Err(err).Str("path", configPath).Msg("settings watch unavailable")
		} else {
			a.watcher = w
			a.unwatch = a.manager.WatchConfig()
		}
	}
	return a, nil
}

func (a *app) close() {
	if a.unwatch != nil {
		a.unwatch()
	}
	if a.watcher != nil {
		a.watcher.Close()
	}
	a.mcp.Close()
	a.store.Close()
}

func loadSettings() (config.Settings, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	return settings, nil
}

func newProviderClient(settings config.Settings) provider.Client {
	apiKey := os.Getenv(settings.Str("openai.api_key_environment_variable"))
	client := provider.NewOpenAI(provider.OpenAIOptions{
		APIKey:  apiKey,
		BaseURL: settings.Str("openai.api_base"),
		Timeout: settings.Duration("openai.timeout", 0),
	})
	return provider.WithRetries(client, settings.Int("openai.retries"))
}

func newRegistry(settings config.Settings) *tool.Registry {
	registry := tool.NewRegistry()
	workspace := settings.Str("tools.file.workspace")
	if workspace == "" {
		workspace = "."
	}

	builtins := []tool.Tool{
		tool.NewReadFileTool(workspace),
		tool.NewWriteFileTool(workspace),
		tool.NewEditFileTool(workspace),
		tool.NewListFilesTool(workspace),
		tool.NewDeleteFileTool(workspace),
		tool.NewExecTool(settings.Str("tools.exec.interpreter"), workspace),
		tool.NewWebFetchTool(nil),
		tool.NewWebSearchTool(nil, ""),
		tool.NewTerminalTool(""),
	}
	for _, t := range builtins {
		// Names are distinct constants; registration cannot conflict.
		_ = registry.Register(t)
	}
	return registry
}
