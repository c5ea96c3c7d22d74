package toolexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/opencoreai/turnengine/internal/dispatch"
)

// maxCommandOutput limits combined stdout/stderr output.
const maxCommandOutput = 64 * 1024

// BashInput is the Bash tool's input schema source.
type BashInput struct {
	Command string `json:"command" jsonschema:"required,description=Shell command to execute."`
	CWD     string `json:"cwd,omitempty" jsonschema:"description=Working directory."`
}

// NewBashExecutor builds the Bash tool executor bound to toolCtx.
func NewBashExecutor(toolCtx Context) dispatch.Executor {
	return dispatch.ExecutorFunc(func(ctx context.Context, raw json.RawMessage) (dispatch.ExecResult, error) {
		var input BashInput
		if err := json.Unmarshal(raw, &input); err != nil {
			return dispatch.ExecResult{IsError: true, Content: fmt.Sprintf("invalid input: %v", err)}, nil
		}
		if strings.TrimSpace(input.Command) == "" {
			return dispatch.ExecResult{IsError: true, Content: "command is required"}, nil
		}

		workingDir := toolCtx.CWD
		if input.CWD != "" {
			resolved, err := toolCtx.Sandbox.ResolvePath(input.CWD, true)
			if err != nil {
				return dispatch.ExecResult{IsError: true, Content: err.Error()}, nil
			}
			workingDir = resolved
		}

		cmd := exec.CommandContext(ctx, "bash", "-lc", input.Command)
		cmd.Dir = workingDir

		var stdout bytes.Buffer
		var stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err := cmd.Run()
		output := strings.TrimSpace(stdout.String())
		if stderr.Len() > 0 {
			if output != "" {
				output += "\n"
			}
			output += strings.TrimSpace(stderr.String())
		}

		if len(output) > maxCommandOutput {
			output = output[:maxCommandOutput] + "\n...[truncated]"
		}

		if err != nil {
			return dispatch.ExecResult{IsError: true, Content: fmt.Sprintf("command failed: %v\n%s", err, output)}, nil
		}

		return dispatch.ExecResult{Content: output}, nil
	})
}
