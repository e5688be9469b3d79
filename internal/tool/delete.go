package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

const deleteDescription = `Deletes a file from the workspace. Directories are not removed.`

// DeleteFileTool removes files inside the workspace.
type DeleteFileTool struct {
	base
	root string
}

type deleteInput struct {
	Path string `json:"path"`
}

// NewDeleteFileTool creates a delete tool rooted at the workspace directory.
func NewDeleteFileTool(root string) *DeleteFileTool {
	return &DeleteFileTool{
		base: base{
			name:        "delete_file",
			category:    "file",
			description: deleteDescription,
			parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "File path relative to the workspace"}
				},
				"required": ["path"]
			}`),
		},
		root: root,
	}
}

func (t *DeleteFileTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var in deleteInput
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}

	path, err := resolvePath(t.root, in.Path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", in.Path)
	}
	if err := os.Remove(path); err != nil {
		return "", err
	}
	return fmt.Sprintf("deleted %s", in.Path), nil
}
