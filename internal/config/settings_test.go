package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNestedFlattens(t *testing.T) {
	doc := []byte(`
model:
  name: gpt-4o-mini
  temperature: 0.2
tools:
  enabled: true
  exec:
    timeout: 30
`)
	s, err := Parse(doc)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", s.Str("model.name"))
	assert.InDelta(t, 0.2, s.Float("model.temperature"), 1e-9)
	assert.True(t, s.Bool("tools.enabled"))
	assert.Equal(t, 30*time.Second, s.Duration("tools.exec.timeout", 0))

	// Untouched defaults survive the merge.
	assert.Equal(t, 8, s.Int("tools.max_rounds"))
}

func TestParseFlatKeys(t *testing.T) {
	doc := []byte(`
model.name: local-model
openai.api_base: http://localhost:8080/v1
`)
	s, err := Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, "local-model", s.Str("model.name"))
	assert.Equal(t, "http://localhost:8080/v1", s.Str("openai.api_base"))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  name: from-file\n"), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", s.Str("model.name"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDurationFallback(t *testing.T) {
	s := Settings{"a": 0.0, "b": 1.5}
	assert.Equal(t, time.Minute, s.Duration("a", time.Minute))
	assert.Equal(t, time.Minute, s.Duration("missing", time.Minute))
	assert.Equal(t, 1500*time.Millisecond, s.Duration("b", time.Minute))
}

func TestCloneIsIndependent(t *testing.T) {
	base := Default()
	clone := base.Clone()
	clone["model.name"] = "changed"
	assert.NotEqual(t, clone.Str("model.name"), base.Str("model.name"))
}

func TestApplyAndDiffRoundTrip(t *testing.T) {
	base := Default()
	overrides := map[string]any{
		"model.name":    "special",
		"tools.enabled": true,
	}

	derived := base.Apply(overrides)
	diff := derived.Diff(base)

	assert.Equal(t, "special", diff["model.name"])
	assert.Equal(t, true, diff["tools.enabled"])
	assert.Len(t, diff, 2)

	// Applying the diff back over base reproduces the derived settings.
	again := base.Apply(diff)
	assert.Equal(t, derived.Str("model.name"), again.Str("model.name"))
	assert.Equal(t, derived.Bool("tools.enabled"), again.Bool("tools.enabled"))
}

func TestDiffEmptyForIdentical(t *testing.T) {
	base := Default()
	assert.Empty(t, base.Clone().Diff(base))
}

func TestTypedGettersCoerce(t *testing.T) {
	s := Settings{
		"int_as_float": 5.0,
		"float_as_int": 3,
		"wrong_type":   "nope",
	}
	assert.Equal(t, 5, s.Int("int_as_float"))
	assert.InDelta(t, 3.0, s.Float("float_as_int"), 1e-9)
	assert.Equal(t, 0, s.Int("wrong_type"))
	assert.False(t, s.Bool("wrong_type"))
}
