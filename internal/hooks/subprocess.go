package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// subprocessRequest is the JSON payload written to a hook command's stdin.
// Which fields are populated depends on the event (spec §6's field table):
// PreToolUse carries ToolIterations/CWD (and GuardInfo for the observe
// phase); PostToolUse adds IsError; Stop carries Reason/TotalTokens instead
// of Tool/Input.
type subprocessRequest struct {
	Event          Event           `json:"event"`
	Phase          Phase           `json:"phase,omitempty"`
	Tool           string          `json:"tool,omitempty"`
	Input          json.RawMessage `json:"input,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	IsError        *bool           `json:"is_error,omitempty"`
	ToolIterations int             `json:"tool_iterations"`
	CWD            string          `json:"cwd,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	TotalTokens    int             `json:"total_tokens,omitempty"`
	GuardInfo      *guardOutcome   `json:"guard,omitempty"`
}

// guardOutcome is passed to the observe phase so an observer can see
// what the guard phase decided, without being able to change it.
type guardOutcome struct {
	Blocked     bool   `json:"blocked"`
	BlockedBy   string `json:"blocked_by,omitempty"`
	BlockReason string `json:"block_reason,omitempty"`
}

// subprocessResponse is the JSON payload a hook command writes to
// stdout. Every field is optional; absence means "no opinion".
type subprocessResponse struct {
	Block  bool   `json:"block"`
	Reason string `json:"reason,omitempty"`
	Signal string `json:"signal,omitempty"`
	Action string `json:"action,omitempty"`
}

// hookTimeoutError, hookExitError, and hookInvalidJSONError distinguish the
// three ways a hook subprocess can fail, each with the exact fail-closed
// message text spec §4.F defines.
type hookTimeoutError struct {
	Command   string
	TimeoutMs int
}

func (e *hookTimeoutError) Error() string {
	return fmt.Sprintf("hook failed: %s timed out after %dms (tool blocked by default)", e.Command, e.TimeoutMs)
}

type hookExitError struct {
	Command string
	Code    int
}

func (e *hookExitError) Error() string {
	return fmt.Sprintf("hook failed: %s exited with code %d (tool blocked by default)", e.Command, e.Code)
}

type hookInvalidJSONError struct {
	Command string
}

func (e *hookInvalidJSONError) Error() string {
	return fmt.Sprintf("hook failed: %s returned invalid JSON (tool blocked by default)", e.Command)
}

// runSubprocess invokes entry.Command with request on stdin, bounded by
// entry.TimeoutMs, and decodes its stdout as a subprocessResponse.
// Stderr is inherited so hook diagnostics reach the controlling
// terminal/log directly. A timeout, non-zero exit, or malformed stdout is
// reported as one of the typed errors above so the caller can report the
// exact fail-closed message; the caller decides whether that fails open
// or closed.
func runSubprocess(ctx context.Context, entry HookEntry, request subprocessRequest) (subprocessResponse, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return subprocessResponse{}, fmt.Errorf("encode hook request: %w", err)
	}

	timeout := time.Duration(entry.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "bash", "-lc", entry.Command)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stderr = os.Stderr
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return subprocessResponse{}, &hookTimeoutError{Command: entry.Command, TimeoutMs: int(timeout.Milliseconds())}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return subprocessResponse{}, &hookExitError{Command: entry.Command, Code: exitErr.ExitCode()}
		}
		return subprocessResponse{}, fmt.Errorf("hook %q: %w", entry.Command, err)
	}

	trimmed := bytes.TrimSpace(stdout.Bytes())
	if len(trimmed) == 0 {
		return subprocessResponse{}, nil
	}
	var response subprocessResponse
	if err := json.Unmarshal(trimmed, &response); err != nil {
		return subprocessResponse{}, &hookInvalidJSONError{Command: entry.Command}
	}
	return response, nil
}
