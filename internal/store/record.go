package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lair-ai/lair/internal/chat"
)

// FormatVersion is the serialization version written by this release.
// Version 0.1 predates the config-overrides split and is not readable.
const FormatVersion = "0.2"

// Record is one persisted session.
type Record struct {
	Version      string         `json:"format_version"`
	ID           int            `json:"id"`
	Alias        string         `json:"alias,omitempty"`
	Title        string         `json:"title,omitempty"`
	Mode         string         `json:"mode"`
	ModelName    string         `json:"model_name"`
	LastPrompt   string         `json:"last_prompt,omitempty"`
	LastResponse string         `json:"last_response,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Settings     map[string]any `json:"config_overrides,omitempty"`
	History      []chat.Message `json:"history"`
}

// Summary is the listing view of a record; it omits the history body.
type Summary struct {
	ID        int
	Alias     string
	Title     string
	Mode      string
	ModelName string
	Messages  int
	UpdatedAt time.Time
}

func (r *Record) summary() Summary {
	return Summary{
		ID:        r.ID,
		Alias:     r.Alias,
		Title:     r.Title,
		Mode:      r.Mode,
		ModelName: r.ModelName,
		Messages:  len(r.History),
		UpdatedAt: r.UpdatedAt,
	}
}

// Empty reports whether the record has no conversation yet. Empty records
// are pruned at startup.
func (r *Record) Empty() bool {
	return len(r.History) == 0
}

func encodeRecord(r *Record) ([]byte, error) {
	r.Version = FormatVersion
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode session %d: %w", r.ID, err)
	}
	return data, nil
}

func decodeRecord(data []byte) (*Record, error) {
	var probe struct {
		Version string `json:"format_version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if probe.Version != FormatVersion {
		return nil, fmt.Errorf("%w: version %q", ErrUnsupportedFormat, probe.Version)
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if err := chat.Validate(r.History); err != nil {
		return nil, fmt.Errorf("decode session %d: %w", r.ID, err)
	}
	return &r, nil
}
