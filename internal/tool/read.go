package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const maxReadBytes = 256 * 1024

const readDescription = `Reads a file from the workspace and returns its contents.

Paths are resolved relative to the workspace root. Binary files and files
larger than 256KB are rejected.`

// ReadFileTool reads files inside the workspace.
type ReadFileTool struct {
	base
	root string
}

type readInput struct {
	Path string `json:"path"`
}

// NewReadFileTool creates a read tool rooted at the workspace directory.
func NewReadFileTool(root string) *ReadFileTool {
	return &ReadFileTool{
		base: base{
			name:        "read_file",
			category:    "file",
			description: readDescription,
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

func (t *ReadFileTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var in readInput
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
	if info.Size() > maxReadBytes {
		return "", fmt.Errorf("file is too large (%d bytes, limit %d)", info.Size(), maxReadBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if strings.ContainsRune(string(data), 0) {
		return "", fmt.Errorf("%s appears to be a binary file", in.Path)
	}
	return string(data), nil
}
