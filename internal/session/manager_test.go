package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lair-ai/lair/internal/event"
	"github.com/lair-ai/lair/internal/store"
	"github.com/lair-ai/lair/internal/tool"
)

func newTestManager(t *testing.T, fp *fakeProvider) *Manager {
	t.Helper()
	st, err := store.Open(t.TempDir(), 1<<22)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewManager(st, testSettings(), fp, tool.NewRegistry())
}

func TestManagerResolveMissingWithoutCreate(t *testing.T) {
	m := newTestManager(t, &fakeProvider{})
	_, err := m.Resolve("nope", ResolveOptions{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestManagerResolveCreatesWithAlias(t *testing.T) {
	fp := &fakeProvider{script: []any{textResponse("reply")}}
	m := newTestManager(t, fp)

	sess, err := m.Resolve("scratch", ResolveOptions{AllowCreate: true})
	require.NoError(t, err)
	assert.Equal(t, "scratch", sess.Alias())
	assert.Equal(t, 0, sess.ID(), "not persisted until saved")

	_, err = sess.Submit(context.Background(), "hi")
	require.NoError(t, err)
	require.NoError(t, m.Save(sess, ResolveOptions{}))
	assert.NotZero(t, sess.ID())

	// Resolvable by alias after the save.
	again, err := m.Resolve("scratch", ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, sess.ID(), again.ID())
	assert.Len(t, again.History(), 3)
}

func TestManagerResolveCreateNumericRefHasNoAlias(t *testing.T) {
	m := newTestManager(t, &fakeProvider{})
	sess, err := m.Resolve("42", ResolveOptions{AllowCreate: true})
	require.NoError(t, err)
	assert.Empty(t, sess.Alias(), "numeric refs never become aliases")
}

func TestManagerReadOnlySkipsSave(t *testing.T) {
	fp := &fakeProvider{script: []any{textResponse("reply")}}
	m := newTestManager(t, fp)

	sess, err := m.Resolve("ro", ResolveOptions{AllowCreate: true, ReadOnly: true})
	require.NoError(t, err)
	_, err = sess.Submit(context.Background(), "hi")
	require.NoError(t, err)
	require.NoError(t, m.Save(sess, ResolveOptions{ReadOnly: true}))

	summaries, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestManagerSaveUpdatesExisting(t *testing.T) {
	fp := &fakeProvider{script: []any{textResponse("one"), textResponse("two")}}
	m := newTestManager(t, fp)

	sess, err := m.Resolve("s", ResolveOptions{AllowCreate: true})
	require.NoError(t, err)
	_, err = sess.Submit(context.Background(), "first")
	require.NoError(t, err)
	require.NoError(t, m.Save(sess, ResolveOptions{}))
	id := sess.ID()

	_, err = sess.Submit(context.Background(), "second")
	require.NoError(t, err)
	require.NoError(t, m.Save(sess, ResolveOptions{}))
	assert.Equal(t, id, sess.ID(), "saving again keeps the id")

	again, err := m.Resolve("s", ResolveOptions{})
	require.NoError(t, err)
	assert.Len(t, again.History(), 5)
}

func TestManagerPrunesEmptySessionsAtStartup(t *testing.T) {
	st, err := store.Open(t.TempDir(), 1<<22)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	_, err = st.Create(&store.Record{Mode: ModeOpenAIChat})
	require.NoError(t, err)

	NewManager(st, testSettings(), &fakeProvider{}, tool.NewRegistry())
	summaries, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestManagerWatchConfigUpdatesBase(t *testing.T) {
	m := newTestManager(t, &fakeProvider{})
	unsub := m.WatchConfig()
	t.Cleanup(unsub)

	event.Publish(event.Event{
		Type: event.ConfigUpdate,
		Data: map[string]any{"overrides": map[string]any{"model.name": "reloaded-model"}},
	})

	require.Eventually(t, func() bool {
		return m.Base().Str("model.name") == "reloaded-model"
	}, time.Second, 10*time.Millisecond)

	// New sessions pick up the reloaded base.
	sess := m.NewSession()
	assert.Equal(t, "reloaded-model", sess.Settings().Str("model.name"))
}

func TestManagerSwitchNextPrev(t *testing.T) {
	fp := &fakeProvider{script: []any{textResponse("a"), textResponse("b")}}
	m := newTestManager(t, fp)

	for _, name := range []string{"one", "two"} {
		sess, err := m.Resolve(name, ResolveOptions{AllowCreate: true})
		require.NoError(t, err)
		_, err = sess.Submit(context.Background(), "hi "+name)
		require.NoError(t, err)
		require.NoError(t, m.Save(sess, ResolveOptions{}))
	}

	next, err := m.SwitchNext("one")
	require.NoError(t, err)
	assert.Equal(t, "two", next.Alias())

	wrapped, err := m.SwitchNext("two")
	require.NoError(t, err)
	assert.Equal(t, "one", wrapped.Alias())

	prev, err := m.SwitchPrev("one")
	require.NoError(t, err)
	assert.Equal(t, "two", prev.Alias())
}

func TestExportImportRoundTrip(t *testing.T) {
	fp := &fakeProvider{script: []any{textResponse("exported reply")}}
	m := newTestManager(t, fp)

	sess, err := m.Resolve("exp", ResolveOptions{AllowCreate: true})
	require.NoError(t, err)
	_, err = sess.Submit(context.Background(), "remember this")
	require.NoError(t, err)
	sess.SetTitle("Exported")
	require.NoError(t, m.Save(sess, ResolveOptions{}))

	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, m.ExportFile("exp", path))

	id, err := m.ImportFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID(), id, "import creates a new session")

	imported, err := m.Resolve("exp", ResolveOptions{})
	require.NoError(t, err)
	require.NotNil(t, imported)

	rec, err := Import(path)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.ID, "imported records shed their old id")
	assert.Empty(t, rec.Alias, "imported records shed their old alias")
	assert.Equal(t, "Exported", rec.Title)
}

func TestImportRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"format_version":"0.1","history":[]}`), 0o644))
	_, err := Import(path)
	assert.ErrorIs(t, err, store.ErrUnsupportedFormat)
}
