package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/opencoreai/turnengine/internal/dispatch"
)

// maxReadBytes caps file reads so tool output stays bounded and predictable.
const maxReadBytes = 1024 * 1024

// ReadInput is the Read tool's input schema source.
type ReadInput struct {
	FilePath string `json:"file_path" jsonschema:"required,description=Absolute path to the file to read."`
	Offset   *int   `json:"offset,omitempty" jsonschema:"description=Line number to start reading from (1-indexed)."`
	Limit    *int   `json:"limit,omitempty" jsonschema:"description=Maximum number of lines to read."`
}

// NewReadExecutor builds the Read tool executor bound to toolCtx.
func NewReadExecutor(toolCtx Context) dispatch.Executor {
	return dispatch.ExecutorFunc(func(ctx context.Context, raw json.RawMessage) (dispatch.ExecResult, error) {
		var input ReadInput
		if err := json.Unmarshal(raw, &input); err != nil {
			return dispatch.ExecResult{IsError: true, Content: fmt.Sprintf("invalid input: %v", err)}, nil
		}
		if input.FilePath == "" {
			return dispatch.ExecResult{IsError: true, Content: "file_path is required"}, nil
		}

		path, err := toolCtx.Sandbox.ResolvePath(input.FilePath, true)
		if err != nil {
			return dispatch.ExecResult{IsError: true, Content: err.Error()}, nil
		}

		info, err := os.Stat(path)
		if err != nil {
			return dispatch.ExecResult{IsError: true, Content: err.Error()}, nil
		}
		if info.Size() > maxReadBytes {
			return dispatch.ExecResult{IsError: true, Content: fmt.Sprintf("file too large: %d bytes", info.Size())}, nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return dispatch.ExecResult{IsError: true, Content: err.Error()}, nil
		}
		for _, b := range data {
			if b == 0 {
				return dispatch.ExecResult{IsError: true, Content: "binary file detected"}, nil
			}
		}

		text := string(data)
		if input.Offset != nil || input.Limit != nil {
			lines := strings.Split(text, "\n")
			start := 0
			if input.Offset != nil && *input.Offset > 0 {
				start = *input.Offset - 1
			}
			if start < 0 {
				start = 0
			}
			if start > len(lines) {
				return dispatch.ExecResult{IsError: true, Content: "offset exceeds file length"}, nil
			}
			end := len(lines)
			if input.Limit != nil && *input.Limit >= 0 {
				limit := *input.Limit
				if start+limit < end {
					end = start + limit
				}
			}
			text = strings.Join(lines[start:end], "\n")
		}

		return dispatch.ExecResult{Content: text}, nil
	})
}
