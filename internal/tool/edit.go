package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// similarityThreshold is the minimum normalized similarity for a fuzzy
// old-text match to be accepted.
const similarityThreshold = 0.95

const editDescription = `Replaces a unique occurrence of old_text with new_text in a workspace file.

old_text must match exactly once. Near matches (whitespace drift) are
accepted when the similarity is high enough; ambiguous matches are rejected.`

// EditFileTool performs targeted text replacement in workspace files.
type EditFileTool struct {
	base
	root string
}

type editInput struct {
	Path    string `json:"path"`
	OldText string `json:"old_text"`
	NewText string `json:"new_text"`
}

// NewEditFileTool creates an edit tool rooted at the workspace directory.
func NewEditFileTool(root string) *EditFileTool {
	return &EditFileTool{
		base: base{
			name:        "edit_file",
			category:    "file",
			description: editDescription,
			parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "File path relative to the workspace"},
					"old_text": {"type": "string", "description": "Text to replace; must occur exactly once"},
					"new_text": {"type": "string", "description": "Replacement text"}
				},
				"required": ["path", "old_text", "new_text"]
			}`),
		},
		root: root,
	}
}

func (t *EditFileTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var in editInput
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	if in.OldText == "" {
		return "", fmt.Errorf("old_text must not be empty")
	}

	path, err := resolvePath(t.root, in.Path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	content := string(data)

	target := in.OldText
	switch count := strings.Count(content, target); {
	case count == 1:
		// Exact unique match.
	case count > 1:
		return "", fmt.Errorf("old_text occurs %d times; provide more context", count)
	default:
		target, err = fuzzyMatch(content, in.OldText)
		if err != nil {
			return "", err
		}
	}

	updated := strings.Replace(content, target, in.NewText, 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return "", err
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(content, updated, false)
	added, removed := 0, 0
	for _, d := range diffs {
		lines := strings.Count(d.Text, "\n")
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += lines + 1
		case diffmatchpatch.DiffDelete:
			removed += lines + 1
		}
	}
	return fmt.Sprintf("edited %s (+%d/-%d)", in.Path, added, removed), nil
}

// fuzzyMatch slides a window the size of old over content and returns the
// best near match above the similarity threshold.
func fuzzyMatch(content, old string) (string, error) {
	window := len(old)
	if window == 0 || window > len(content) {
		return "", fmt.Errorf("old_text not found")
	}

	best := ""
	bestScore := 0.0
	// Step by lines so candidate windows start at plausible boundaries.
	offsets := []int{0}
	for i, r := range content {
		if r == '\n' && i+1+window <= len(content) {
			offsets = append(offsets, i+1)
		}
	}
	for _, off := range offsets {
		if off+window > len(content) {
			continue
		}
		candidate := content[off : off+window]
		dist := levenshtein.ComputeDistance(candidate, old)
		score := 1.0 - float64(dist)/float64(window)
		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}

	if bestScore < similarityThreshold {
		return "", fmt.Errorf("old_text not found (best match %.0f%% similar)", bestScore*100)
	}
	return best, nil
}
