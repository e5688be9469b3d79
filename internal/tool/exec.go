package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"syscall"
	"time"

	"mvdan.cc/sh/v3/syntax"
)

const sigkillGrace = 200 * time.Millisecond

const execDescription = `Executes a script with the configured interpreter and returns combined
stdout and stderr.

The script runs in its own process group; on timeout the whole group is
killed. Shell scripts are syntax-checked before execution.`

// ExecTool runs scripts via a configured interpreter subprocess.
type ExecTool struct {
	base
	interpreter string
	workDir     string
}

type execInput struct {
	Script string `json:"script"`
}

// NewExecTool creates an exec tool. interpreter is the command used to run
// scripts (for example /bin/sh or python3).
func NewExecTool(interpreter, workDir string) *ExecTool {
	if interpreter == "" {
		interpreter = "/bin/sh"
	}
	return &ExecTool{
		base: base{
			name:        "run_script",
			category:    "exec",
			description: execDescription,
			parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"script": {"type": "string", "description": "Script source to execute"}
				},
				"required": ["script"]
			}`),
		},
		interpreter: interpreter,
		workDir:     workDir,
	}
}

func (t *ExecTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var in execInput
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	if strings.TrimSpace(in.Script) == "" {
		return "", fmt.Errorf("script must not be empty")
	}

	if isShell(t.interpreter) {
		if err := checkShellSyntax(in.Script); err != nil {
			return "", fmt.Errorf("script has a syntax error: %w", err)
		}
	}

	cmd := exec.CommandContext(ctx, t.interpreter, "-c", in.Script)
	cmd.Dir = t.workDir
	cmd.Env = os.Environ()
	if runtime.GOOS != "windows" {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		cmd.Cancel = func() error {
			if cmd.Process == nil {
				return nil
			}
			// Kill the whole process group so children don't survive.
			pgid := -cmd.Process.Pid
			_ = syscall.Kill(pgid, syscall.SIGTERM)
			time.Sleep(sigkillGrace)
			return syscall.Kill(pgid, syscall.SIGKILL)
		}
	}

	output, err := cmd.CombinedOutput()
	result := string(output)

	if ctx.Err() == context.DeadlineExceeded {
		return "", context.DeadlineExceeded
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return fmt.Sprintf("%s\n(exit status %d)", result, exitErr.ExitCode()), nil
		}
		return "", err
	}
	return result, nil
}

func isShell(interpreter string) bool {
	name := interpreter
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	switch name {
	case "sh", "bash", "dash", "zsh", "ksh":
		return true
	}
	return false
}

// checkShellSyntax parses the script with mvdan.cc/sh and rejects scripts
// that would fail at the shell's own parse stage.
func checkShellSyntax(script string) error {
	parser := syntax.NewParser()
	_, err := parser.Parse(strings.NewReader(script), "script")
	return err
}
