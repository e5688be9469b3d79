package tool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"
)

const (
	terminalBufferLimit = 64 * 1024
	terminalSettle      = 150 * time.Millisecond
)

const terminalDescription = `Interacts with a persistent shell session.

Actions:
  run  - send a command line to the shell and return output produced so far
  read - return output accumulated since the last call
  stop - terminate the shell session

The shell survives between calls, so state like the working directory and
environment variables persists across run actions.`

// TerminalTool keeps one long-lived shell process alive across invocations.
type TerminalTool struct {
	base
	shell string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	outBuf *terminalBuffer
}

type terminalInput struct {
	Action  string `json:"action"`
	Command string `json:"command,omitempty"`
}

// NewTerminalTool creates a terminal tool. shell is the interpreter used for
// the persistent session; empty means /bin/sh.
func NewTerminalTool(shell string) *TerminalTool {
	if shell == "" {
		shell = "/bin/sh"
	}
	return &TerminalTool{
		base: base{
			name:        "terminal",
			category:    "terminal",
			description: terminalDescription,
			parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {"type": "string", "enum": ["run", "read", "stop"], "description": "What to do with the shell session"},
					"command": {"type": "string", "description": "Command line for the run action"}
				},
				"required": ["action"]
			}`),
		},
		shell: shell,
	}
}

func (t *TerminalTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var in terminalInput
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch in.Action {
	case "run":
		if strings.TrimSpace(in.Command) == "" {
			return "", fmt.Errorf("run requires a command")
		}
		return t.run(ctx, in.Command)
	case "read":
		if t.cmd == nil {
			return "", fmt.Errorf("no shell session is running")
		}
		return t.drain(), nil
	case "stop":
		return t.stop()
	default:
		return "", fmt.Errorf("unknown action: %s", in.Action)
	}
}

func (t *TerminalTool) run(ctx context.Context, command string) (string, error) {
	if t.cmd == nil {
		if err := t.start(); err != nil {
			return "", err
		}
	}

	if _, err := io.WriteString(t.stdin, command+"\n"); err != nil {
		// The shell died underneath us; reset so the next run restarts it.
		t.reset()
		return "", fmt.Errorf("shell session ended: %w", err)
	}

	// Give fast commands a moment to produce output before we read. Slow
	// commands keep running; read collects the rest later.
	select {
	case <-time.After(terminalSettle):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	out := t.drain()
	if out == "" {
		return "(no output yet; use the read action to collect it)", nil
	}
	return out, nil
}

func (t *TerminalTool) start() error {
	cmd := exec.Command(t.shell)
	if runtime.GOOS != "windows" {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = cmd.Stdout

	buf := newTerminalBuffer(terminalBufferLimit)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start shell: %w", err)
	}
	go buf.consume(stdout)

	t.cmd = cmd
	t.stdin = stdin
	t.outBuf = buf
	return nil
}

func (t *TerminalTool) stop() (string, error) {
	if t.cmd == nil {
		return "no shell session is running", nil
	}
	if runtime.GOOS != "windows" && t.cmd.Process != nil {
		_ = syscall.Kill(-t.cmd.Process.Pid, syscall.SIGTERM)
	}
	_ = t.stdin.Close()
	_ = t.cmd.Wait()
	remaining := t.drain()
	t.reset()
	if remaining != "" {
		return "shell session stopped; final output:\n" + remaining, nil
	}
	return "shell session stopped", nil
}

func (t *TerminalTool) drain() string {
	if t.outBuf == nil {
		return ""
	}
	return t.outBuf.take()
}

func (t *TerminalTool) reset() {
	t.cmd = nil
	t.stdin = nil
	t.outBuf = nil
}

// Close terminates any running shell session. Used at shutdown.
func (t *TerminalTool) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.stop()
	return err
}

// terminalBuffer accumulates shell output, keeping only the newest bytes
// once the limit is exceeded.
type terminalBuffer struct {
	mu        sync.Mutex
	data      []byte
	limit     int
	truncated bool
}

func newTerminalBuffer(limit int) *terminalBuffer {
	return &terminalBuffer{limit: limit}
}

func (b *terminalBuffer) consume(r io.Reader) {
	reader := bufio.NewReader(r)
	chunk := make([]byte, 4096)
	for {
		n, err := reader.Read(chunk)
		if n > 0 {
			b.append(chunk[:n])
		}
		if err != nil {
			return
		}
	}
}

func (b *terminalBuffer) append(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, p...)
	if len(b.data) > b.limit {
		b.data = b.data[len(b.data)-b.limit:]
		b.truncated = true
	}
}

func (b *terminalBuffer) take() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := string(b.data)
	if b.truncated {
		out = "...(older output dropped)...\n" + out
	}
	b.data = nil
	b.truncated = false
	return out
}
