package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/opencoreai/turnengine/internal/dispatch"
)

// GlobInput is the Glob tool's input schema source.
type GlobInput struct {
	Pattern string `json:"pattern" jsonschema:"required,description=Glob pattern to match files."`
}

// NewGlobExecutor builds the Glob tool executor bound to toolCtx.
func NewGlobExecutor(toolCtx Context) dispatch.Executor {
	return dispatch.ExecutorFunc(func(ctx context.Context, raw json.RawMessage) (dispatch.ExecResult, error) {
		var input GlobInput
		if err := json.Unmarshal(raw, &input); err != nil {
			return dispatch.ExecResult{IsError: true, Content: fmt.Sprintf("invalid input: %v", err)}, nil
		}
		if input.Pattern == "" {
			return dispatch.ExecResult{IsError: true, Content: "pattern is required"}, nil
		}

		matches, err := filepath.Glob(input.Pattern)
		if err != nil {
			return dispatch.ExecResult{IsError: true, Content: err.Error()}, nil
		}

		var filtered []string
		for _, match := range matches {
			resolved, err := toolCtx.Sandbox.ResolvePath(match, true)
			if err != nil {
				continue
			}
			filtered = append(filtered, resolved)
		}

		sort.Strings(filtered)
		return dispatch.ExecResult{Content: strings.Join(filtered, "\n")}, nil
	})
}
