package tool

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/lair-ai/lair/internal/config"
	"github.com/lair-ai/lair/internal/provider"
)

// sourceBuiltin marks statically registered tools; remote tools carry their
// provider URL as source so a refresh can replace them as a group.
const sourceBuiltin = "builtin"

type entry struct {
	tool   Tool
	source string

	compileOnce sync.Once
	schema      *jsonschema.Schema
	compileErr  error
}

// compiled returns the tool's argument schema, compiling it on first use.
func (e *entry) compiled() (*jsonschema.Schema, error) {
	e.compileOnce.Do(func() {
		res := fmt.Sprintf("inline://%s.json", e.tool.Name())
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(res, strings.NewReader(string(e.tool.Parameters()))); err != nil {
			e.compileErr = err
			return
		}
		e.schema, e.compileErr = compiler.Compile(res)
	})
	return e.schema, e.compileErr
}

// Registry catalogs tools by name. Built-ins and MCP-discovered tools share
// one namespace.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a built-in tool. Registering a duplicate name is an error.
func (r *Registry) Register(t Tool) error {
	return r.register(t, sourceBuiltin)
}

// RegisterRemote adds a tool discovered from the given provider.
func (r *Registry) RegisterRemote(providerURL string, t Tool) error {
	return r.register(t, providerURL)
}

func (r *Registry) register(t Tool, source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[t.Name()]; ok {
		return fmt.Errorf("tool %q is already registered", t.Name())
	}
	r.entries[t.Name()] = &entry{tool: t, source: source}
	return nil
}

// DropSource removes every tool registered from the given source and
// returns how many were removed. Used when remote manifests are refreshed.
func (r *Registry) DropSource(source string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for name, e := range r.entries {
		if e.source == source {
			delete(r.entries, name)
			removed++
		}
	}
	return removed
}

// DropRemote removes every non-builtin tool.
func (r *Registry) DropRemote() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for name, e := range r.entries {
		if e.source != sourceBuiltin {
			delete(r.entries, name)
			removed++
		}
	}
	return removed
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.tool, true
}

func (r *Registry) lookup(name string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Names returns all registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}

// Enabled reports whether a tool may run under the given settings: the
// global switch and the tool's category switch must both be on.
func Enabled(s config.Settings, t Tool) bool {
	if !s.Bool("tools.enabled") {
		return false
	}
	return s.Bool("tools." + t.Category() + ".enabled")
}

// Definitions returns the advertisements for all tools enabled under the
// given settings, for inclusion in a completion request.
func (r *Registry) Definitions(s config.Settings) []provider.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var defs []provider.ToolDefinition
	for _, e := range r.entries {
		if !Enabled(s, e.tool) {
			continue
		}
		defs = append(defs, provider.ToolDefinition{
			Name:        e.tool.Name(),
			Description: e.tool.Description(),
			Parameters:  e.tool.Parameters(),
		})
	}
	return defs
}
