// Package config holds the resolved configuration snapshot consumed by the
// core. The layered mode loader lives outside this module; what arrives here
// is its output, a flattened key/value map.
package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is a flattened, typed key→value configuration snapshot.
// The core treats a Settings value as immutable; mutations go through
// Clone/Apply so a session's snapshot is never shared.
type Settings map[string]any

// Default returns the built-in settings the core consumes.
func Default() Settings {
	return Settings{
		"model.name":        "gpt-4o",
		"model.temperature": 0.7,
		"model.max_tokens":  0,

		"openai.api_base":                     "",
		"openai.api_key_environment_variable": "OPENAI_API_KEY",
		"openai.timeout":                      60.0,
		"openai.retries":                      3,

		"session.max_history_length": 0,
		"session.system_prompt":      "You are a helpful assistant.",

		"session.auto_generate_titles.enabled":     true,
		"session.auto_generate_titles.model":       "",
		"session.auto_generate_titles.temperature": 0.2,
		"session.auto_generate_titles.template": "Generate a short title (50 characters or less) summarizing " +
			"the conversation excerpt. Respond with only the title.",

		"tools.enabled":      false,
		"tools.max_rounds":   8,
		"tools.timeout":      60.0,
		"tools.output_limit": 12288,

		"tools.file.enabled":      true,
		"tools.file.workspace":    ".",
		"tools.exec.enabled":      false,
		"tools.exec.interpreter":  "/bin/sh",
		"tools.exec.timeout":      120.0,
		"tools.web.enabled":       true,
		"tools.web.timeout":       30.0,
		"tools.terminal.enabled":  false,
		"tools.terminal.timeout":  30.0,
		"tools.mcp.enabled":       false,
		"tools.mcp.providers":     "",
		"tools.mcp.timeout":       15.0,

		"database.sessions.path": "~/.lair/sessions",
		"database.sessions.size": 1 << 26,
	}
}

// Str returns a string value, or empty when unset.
func (s Settings) Str(key string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return ""
}

// Int returns an integer value, coercing YAML/JSON number types.
func (s Settings) Int(key string) int {
	switch v := s[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Float returns a float value, coercing integer types.
func (s Settings) Float(key string) float64 {
	switch v := s[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Bool returns a boolean value, false when unset or mistyped.
func (s Settings) Bool(key string) bool {
	if v, ok := s[key].(bool); ok {
		return v
	}
	return false
}

// Duration interprets the value as seconds and returns it as a Duration.
// Zero or negative values yield the given fallback.
func (s Settings) Duration(key string, fallback time.Duration) time.Duration {
	secs := s.Float(key)
	if secs <= 0 {
		return fallback
	}
	return time.Duration(secs * float64(time.Second))
}

// Clone returns an independent copy of the settings.
func (s Settings) Clone() Settings {
	out := make(Settings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Apply overlays overrides onto a copy of the settings and returns it.
func (s Settings) Apply(overrides map[string]any) Settings {
	out := s.Clone()
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Diff returns the keys whose values differ from base. The result is what a
// session records as its config overrides.
func (s Settings) Diff(base Settings) map[string]any {
	out := make(map[string]any)
	for k, v := range s {
		if bv, ok := base[k]; !ok || fmt.Sprint(bv) != fmt.Sprint(v) {
			out[k] = v
		}
	}
	return out
}

// Keys returns all keys in sorted order.
func (s Settings) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Parse decodes a resolved YAML settings document. Nested mappings are
// flattened into dotted keys so both flat and nested documents are accepted.
func Parse(data []byte) (Settings, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}

	out := Default()
	flatten("", raw, out)
	return out, nil
}

// Load reads and parses a resolved settings file, merged over defaults.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	return Parse(data)
}

func flatten(prefix string, in map[string]any, out Settings) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}
