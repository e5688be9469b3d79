package session

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lair-ai/lair/internal/chat"
	"github.com/lair-ai/lair/internal/store"
)

// Export writes the session record to path as indented JSON. The exported
// file round-trips through Import.
func Export(rec *store.Record, path string) error {
	rec.Version = store.FormatVersion
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("export session %d: %w", rec.ID, err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export session %d: %w", rec.ID, err)
	}
	return nil
}

// Import reads an exported session file and validates it. The returned
// record has no id; the caller stores it as a new session.
func Import(path string) (*store.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("import session: %w", err)
	}

	var rec store.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("import session: %w", err)
	}
	if rec.Version != store.FormatVersion {
		return nil, fmt.Errorf("import session: %w: version %q", store.ErrUnsupportedFormat, rec.Version)
	}
	if err := chat.Validate(rec.History); err != nil {
		return nil, fmt.Errorf("import session: %w", err)
	}

	rec.ID = 0
	rec.Alias = ""
	return &rec, nil
}
