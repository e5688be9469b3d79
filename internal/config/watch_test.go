package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lair-ai/lair/internal/event"
)

func TestWatchPublishesOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  name: before\n"), 0o644))

	got := make(chan event.Event, 4)
	unsub := event.Subscribe(event.ConfigUpdate, func(evt event.Event) { got <- evt })
	defer unsub()

	w, err := Watch(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("model:\n  name: after\n"), 0o644))

	select {
	case evt := <-got:
		overrides, ok := evt.Data["overrides"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, "after", overrides["model.name"])
	case <-time.After(5 * time.Second):
		t.Fatal("no config.update event after file change")
	}
}

func TestWatchIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  name: x\n"), 0o644))

	got := make(chan event.Event, 4)
	unsub := event.Subscribe(event.ConfigUpdate, func(evt event.Event) { got <- evt })
	defer unsub()

	w, err := Watch(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("ignored: true\n"), 0o644))

	select {
	case <-got:
		t.Fatal("sibling file change must not trigger a reload")
	case <-time.After(300 * time.Millisecond):
	}
}
