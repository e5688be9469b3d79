package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const maxListEntries = 500

const listDescription = `Lists files in the workspace matching a glob pattern.

Patterns support doublestar (**) for recursive matching. Results are
relative to the workspace root, sorted, and capped at 500 entries.`

// ListFilesTool enumerates workspace files by glob.
type ListFilesTool struct {
	base
	root string
}

type listInput struct {
	Pattern string `json:"pattern"`
}

// NewListFilesTool creates a list tool rooted at the workspace directory.
func NewListFilesTool(root string) *ListFilesTool {
	return &ListFilesTool{
		base: base{
			name:        "list_files",
			category:    "file",
			description: listDescription,
			parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"pattern": {"type": "string", "description": "Glob pattern, e.g. **/*.go"}
				},
				"required": ["pattern"]
			}`),
		},
		root: root,
	}
}

func (t *ListFilesTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var in listInput
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	if !doublestar.ValidatePattern(in.Pattern) {
		return "", fmt.Errorf("invalid glob pattern: %s", in.Pattern)
	}

	absRoot, err := filepath.Abs(t.root)
	if err != nil {
		return "", err
	}

	var matches []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil // Unreadable entries are skipped, not fatal.
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return nil
		}
		ok, matchErr := doublestar.Match(in.Pattern, filepath.ToSlash(rel))
		if matchErr == nil && ok {
			matches = append(matches, rel)
			if len(matches) >= maxListEntries {
				return fs.SkipAll
			}
		}
		return nil
	})
	if err != nil && err != fs.SkipAll {
		return "", err
	}

	sort.Strings(matches)
	if len(matches) == 0 {
		return "no files matched", nil
	}
	return strings.Join(matches, "\n"), nil
}
