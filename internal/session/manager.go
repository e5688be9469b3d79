package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/lair-ai/lair/internal/config"
	"github.com/lair-ai/lair/internal/event"
	"github.com/lair-ai/lair/internal/logging"
	"github.com/lair-ai/lair/internal/provider"
	"github.com/lair-ai/lair/internal/store"
	"github.com/lair-ai/lair/internal/tool"
)

// ResolveOptions control how Manager.Resolve treats a missing ref.
type ResolveOptions struct {
	// AllowCreate makes Resolve create a session when the ref does not
	// exist. A non-numeric ref becomes the new session's alias.
	AllowCreate bool
	// ReadOnly suppresses Save for the resolved session.
	ReadOnly bool
}

// Manager is the façade over the store and the session factory. It owns the
// base settings that session records diff against.
type Manager struct {
	store    *store.Store
	client   provider.Client
	registry *tool.Registry

	mu   sync.RWMutex
	base config.Settings
}

// NewManager creates a manager. At construction it prunes empty sessions so
// abandoned blanks from earlier runs do not accumulate.
func NewManager(st *store.Store, base config.Settings, client provider.Client, registry *tool.Registry) *Manager {
	if pruned, err := st.PruneEmpty(); err != nil {
		logging.Warn().Err(err).Msg("pruning empty sessions failed")
	} else if pruned > 0 {
		logging.Debug().Int("pruned", pruned).Msg("removed empty sessions")
	}
	return &Manager{store: st, base: base, client: client, registry: registry}
}

// Base returns the manager's base settings.
func (m *Manager) Base() config.Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.base
}

// SetBase replaces the base settings, e.g. after a config reload.
func (m *Manager) SetBase(base config.Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.base = base
}

// WatchConfig applies config.update events to the base settings until the
// returned unsubscribe function is called. Settings files publish their
// overrides against the defaults, so the reloaded base is rebuilt from those.
func (m *Manager) WatchConfig() func() {
	return event.Subscribe(event.ConfigUpdate, func(evt event.Event) {
		overrides, _ := evt.Data["overrides"].(map[string]any)
		m.SetBase(config.Default().Apply(overrides))
		logging.Info().Int("overrides", len(overrides)).Msg("base settings reloaded")
	})
}

// NewSession creates an unsaved session on the base settings.
func (m *Manager) NewSession() *ChatSession {
	return New(m.Base().Clone(), m.client, m.registry)
}

// Resolve loads the session the ref points at. With AllowCreate a missing
// ref yields a fresh session; otherwise the store's not-found error is
// passed through.
func (m *Manager) Resolve(ref string, opts ResolveOptions) (*ChatSession, error) {
	rec, err := m.store.Get(ref)
	if err == nil {
		return Restore(rec, m.Base(), m.client, m.registry)
	}
	if !errors.Is(err, store.ErrNotFound) || !opts.AllowCreate {
		return nil, err
	}

	s := m.NewSession()
	if !isNumericRef(ref) {
		s.SetAlias(ref)
	}
	return s, nil
}

// Save persists the session, creating it on first save. The alias table is
// updated when the session carries an alias.
func (m *Manager) Save(s *ChatSession, opts ResolveOptions) error {
	if opts.ReadOnly {
		return nil
	}

	rec := s.Record(m.Base())
	created := false
	if rec.ID == 0 {
		id, err := m.store.Create(rec)
		if err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		s.SetID(id)
		created = true
	} else if err := m.store.Put(rec); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	if rec.Alias != "" {
		if err := m.store.SetAlias(fmt.Sprint(s.ID()), rec.Alias); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	}
	if rec.Title != "" {
		if err := m.store.SetTitle(fmt.Sprint(s.ID()), rec.Title); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	}

	evtType := event.SessionUpdated
	if created {
		evtType = event.SessionCreated
	}
	event.Publish(event.Event{
		Type: evtType,
		Data: map[string]any{"session": s.ID()},
	})
	return nil
}

// List returns store summaries for all sessions.
func (m *Manager) List() ([]store.Summary, error) {
	return m.store.List()
}

// Delete removes a session by ref.
func (m *Manager) Delete(ref string) error {
	if err := m.store.Delete(ref); err != nil {
		return err
	}
	event.Publish(event.Event{
		Type: event.SessionDeleted,
		Data: map[string]any{"ref": ref},
	})
	return nil
}

// DeleteAll removes every session.
func (m *Manager) DeleteAll() error {
	if err := m.store.DeleteAll(); err != nil {
		return err
	}
	event.Publish(event.Event{Type: event.SessionDeleted, Data: map[string]any{"ref": "*"}})
	return nil
}

// SetAlias assigns an alias to a session.
func (m *Manager) SetAlias(ref, alias string) error {
	return m.store.SetAlias(ref, alias)
}

// SetTitle assigns a title to a session.
func (m *Manager) SetTitle(ref, title string) error {
	return m.store.SetTitle(ref, title)
}

// SwitchNext resolves the session after ref in id order, wrapping around.
func (m *Manager) SwitchNext(ref string) (*ChatSession, error) {
	id, err := m.store.Next(ref)
	if err != nil {
		return nil, err
	}
	return m.Resolve(fmt.Sprint(id), ResolveOptions{})
}

// SwitchPrev resolves the session before ref in id order, wrapping around.
func (m *Manager) SwitchPrev(ref string) (*ChatSession, error) {
	id, err := m.store.Prev(ref)
	if err != nil {
		return nil, err
	}
	return m.Resolve(fmt.Sprint(id), ResolveOptions{})
}

// ImportFile stores an exported session file as a new session.
func (m *Manager) ImportFile(path string) (int, error) {
	rec, err := Import(path)
	if err != nil {
		return 0, err
	}
	id, err := m.store.Create(rec)
	if err != nil {
		return 0, err
	}
	event.Publish(event.Event{
		Type: event.SessionCreated,
		Data: map[string]any{"session": id},
	})
	return id, nil
}

// ExportFile writes a stored session to path.
func (m *Manager) ExportFile(ref, path string) error {
	rec, err := m.store.Get(ref)
	if err != nil {
		return err
	}
	return Export(rec, path)
}

func isNumericRef(ref string) bool {
	if ref == "" {
		return false
	}
	for _, r := range ref {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
