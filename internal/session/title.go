package session

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/lair-ai/lair/internal/chat"
	"github.com/lair-ai/lair/internal/logging"
	"github.com/lair-ai/lair/internal/provider"
)

// titleExcerptLimit caps how much of each message feeds the title prompt.
const titleExcerptLimit = 400

// maybeGenerateTitle makes a side call asking the model to title the
// conversation after its first completed exchange. Title generation is best
// effort: any failure is logged and the session stays untitled.
//
// Caller holds s.mu.
func (s *ChatSession) maybeGenerateTitle(ctx context.Context) {
	if s.title != "" || !s.settings.Bool("session.auto_generate_titles.enabled") {
		return
	}

	excerpt := s.excerpt()
	if excerpt == "" {
		return
	}

	model := s.settings.Str("session.auto_generate_titles.model")
	if model == "" {
		model = s.settings.Str("model.name")
	}
	temp := s.settings.Float("session.auto_generate_titles.temperature")

	resp, err := s.client.Complete(ctx, &provider.Request{
		Model: model,
		Messages: []chat.Message{
			{Role: chat.RoleSystem, Content: s.settings.Str("session.auto_generate_titles.template")},
			{Role: chat.RoleUser, Content: excerpt},
		},
		Temperature: &temp,
	})
	if err != nil {
		logging.Warn().Int("session", s.id).Err(err).Msg("title generation failed")
		return
	}

	title := strings.TrimSpace(strings.Trim(resp.Message.Content, `"`))
	if title == "" {
		return
	}
	s.title = title
}

// excerpt renders the first user/assistant exchange for the title prompt.
func (s *ChatSession) excerpt() string {
	var b strings.Builder
	for _, msg := range s.history.Messages() {
		if msg.Role != chat.RoleUser && msg.Role != chat.RoleAssistant {
			continue
		}
		content := msg.Content
		if len(content) > titleExcerptLimit {
			cut := titleExcerptLimit
			for cut > 0 && !utf8.RuneStart(content[cut]) {
				cut--
			}
			content = content[:cut]
		}
		b.WriteString(string(msg.Role))
		b.WriteString(": ")
		b.WriteString(content)
		b.WriteString("\n")
		if msg.Role == chat.RoleAssistant {
			break
		}
	}
	return strings.TrimSpace(b.String())
}
