// Package session implements the conversation state machine: user turns,
// model completions, tool round-trips, and the persistence glue between the
// in-memory history and the session store.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/lair-ai/lair/internal/chat"
	"github.com/lair-ai/lair/internal/config"
	"github.com/lair-ai/lair/internal/logging"
	"github.com/lair-ai/lair/internal/provider"
	"github.com/lair-ai/lair/internal/store"
	"github.com/lair-ai/lair/internal/tool"
)

// ModeOpenAIChat is the only session mode this release implements.
const ModeOpenAIChat = "openai_chat"

// maxParallelTools bounds concurrent tool execution within one round.
const maxParallelTools = 4

// RoundLimitError reports that a turn hit the tool-round ceiling before the
// model produced a final answer. The completed rounds are kept in history;
// the caller decides whether to resubmit.
type RoundLimitError struct {
	Rounds int
}

func (e *RoundLimitError) Error() string {
	return fmt.Sprintf("tool round limit reached after %d rounds", e.Rounds)
}

// ChatSession is one conversation. It owns its history and an immutable
// settings snapshot; all mutation happens through Submit and the setters.
type ChatSession struct {
	mu       sync.Mutex
	settings config.Settings
	client   provider.Client
	registry *tool.Registry
	history  *chat.History

	id           int
	alias        string
	title        string
	lastPrompt   string
	lastResponse string
}

// New creates an unsaved session with the given settings snapshot.
func New(settings config.Settings, client provider.Client, registry *tool.Registry) *ChatSession {
	return &ChatSession{
		settings: settings,
		client:   client,
		registry: registry,
		history:  chat.NewHistory(),
	}
}

// Restore rebuilds a session from a stored record. The record's settings
// overrides are applied over the base settings.
func Restore(rec *store.Record, base config.Settings, client provider.Client, registry *tool.Registry) (*ChatSession, error) {
	s := New(base.Apply(rec.Settings), client, registry)
	if err := s.history.SetMessages(rec.History); err != nil {
		return nil, fmt.Errorf("restore session %d: %w", rec.ID, err)
	}
	s.id = rec.ID
	s.alias = rec.Alias
	s.title = rec.Title
	s.lastPrompt = rec.LastPrompt
	s.lastResponse = rec.LastResponse
	return s, nil
}

// Record renders the session as a storable record. Settings are stored as
// overrides against base so base changes flow into old sessions.
func (s *ChatSession) Record(base config.Settings) *store.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &store.Record{
		ID:           s.id,
		Alias:        s.alias,
		Title:        s.title,
		Mode:         ModeOpenAIChat,
		ModelName:    s.settings.Str("model.name"),
		LastPrompt:   s.lastPrompt,
		LastResponse: s.lastResponse,
		Settings:     s.settings.Diff(base),
		History:      s.history.Messages(),
	}
}

// ID returns the persisted id, zero for unsaved sessions.
func (s *ChatSession) ID() int { return s.id }

// SetID is called by the manager once the store assigns an id.
func (s *ChatSession) SetID(id int) { s.id = id }

// Alias returns the session alias.
func (s *ChatSession) Alias() string { return s.alias }

// SetAlias updates the in-memory alias; the store's alias table is the
// manager's job.
func (s *ChatSession) SetAlias(alias string) { s.alias = alias }

// Title returns the session title.
func (s *ChatSession) Title() string { return s.title }

// SetTitle updates the session title.
func (s *ChatSession) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = title
}

// Settings returns a copy of the session's settings snapshot. Mutating the
// copy does not affect the session; pass it back via UpdateSettings.
func (s *ChatSession) Settings() config.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Clone()
}

// UpdateSettings replaces the settings snapshot.
func (s *ChatSession) UpdateSettings(settings config.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

// History returns a copy of the stored message sequence.
func (s *ChatSession) History() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Messages()
}

// SetHistory replaces the history after validation.
func (s *ChatSession) SetHistory(messages []chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.SetMessages(messages)
}

// Clear discards the conversation but keeps the session identity.
func (s *ChatSession) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Clear()
	s.lastPrompt = ""
	s.lastResponse = ""
}

// Submit runs one user turn: the user message, the model completion, and as
// many tool round-trips as the model requests, bounded by tools.max_rounds.
//
// A failed turn keeps the user message and every completed tool round in
// history. Tool side effects are already visible at that point, so a failure
// never silently discards what the turn produced.
func (s *ChatSession) Submit(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turnID := ulid.Make().String()
	log := logging.With().Str("turn", turnID).Int("session", s.id).Logger()

	s.ensureSystemPrompt()
	if err := s.history.Add(chat.RoleUser, text); err != nil {
		return "", err
	}
	s.lastPrompt = text

	invoker := tool.NewInvoker(s.registry, s.settings)
	maxRounds := s.settings.Int("tools.max_rounds")

	for round := 0; ; round++ {
		resp, err := s.complete(ctx)
		if err != nil {
			s.history.Commit()
			return "", err
		}

		calls := resp.Message.ToolCalls
		if len(calls) == 0 {
			s.history.AddMessage(resp.Message)
			s.history.Commit()
			s.lastResponse = resp.Message.Content
			log.Debug().Int("rounds", round).Msg("turn complete")
			s.maybeGenerateTitle(ctx)
			return resp.Message.Content, nil
		}

		if maxRounds > 0 && round >= maxRounds {
			// The model is still asking for tools. Treat its last output as
			// final: the pending calls are dropped (answering them would need
			// another round) and whatever it said alongside them stands.
			final := resp.Message
			final.ToolCalls = nil
			if final.Content != "" {
				s.history.AddMessage(final)
				s.lastResponse = final.Content
			}
			s.history.Commit()
			log.Warn().Int("rounds", round).Msg("tool round limit reached")
			return final.Content, &RoundLimitError{Rounds: round}
		}

		log.Debug().Int("round", round).Int("calls", len(calls)).Msg("tool round")
		results := dispatch(ctx, invoker, calls)
		s.history.AddToolRound(resp.Message, results)
	}
}

// complete sends the current window to the endpoint.
func (s *ChatSession) complete(ctx context.Context) (*provider.Response, error) {
	temp := s.settings.Float("model.temperature")
	req := &provider.Request{
		Model:       s.settings.Str("model.name"),
		Messages:    s.history.Window(s.settings.Int("session.max_history_length")),
		Tools:       s.registry.Definitions(s.settings),
		Temperature: &temp,
		MaxTokens:   s.settings.Int("model.max_tokens"),
	}
	return s.client.Complete(ctx, req)
}

// ensureSystemPrompt seeds the history with the configured system prompt and
// refreshes it when the configured prompt changed since the last turn.
func (s *ChatSession) ensureSystemPrompt() {
	prompt := s.settings.Str("session.system_prompt")
	if prompt == "" {
		return
	}
	msgs := s.history.Messages()
	switch {
	case len(msgs) == 0:
		_ = s.history.Add(chat.RoleSystem, prompt)
	case msgs[0].Role == chat.RoleSystem:
		if msgs[0].Content != prompt {
			msgs[0].Content = prompt
			_ = s.history.SetMessages(msgs)
		}
	default:
		// Restored history without a system prompt; prepend one.
		msgs = append([]chat.Message{{Role: chat.RoleSystem, Content: prompt}}, msgs...)
		_ = s.history.SetMessages(msgs)
	}
}

// dispatch executes the round's tool calls with bounded parallelism and
// folds the results back into the order the model issued the calls.
func dispatch(ctx context.Context, invoker *tool.Invoker, calls []chat.ToolCall) []chat.ToolResult {
	results := make([]chat.ToolResult, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelTools)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = invoker.Invoke(gctx, call)
			return nil
		})
	}
	_ = g.Wait() // Invoke never returns an error; failures are result envelopes.

	return results
}
