package toolexec

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencoreai/turnengine/internal/dispatch"
)

// GrepInput is the Grep tool's input schema source.
type GrepInput struct {
	Query string `json:"query" jsonschema:"required,description=Search string."`
	Path  string `json:"path,omitempty" jsonschema:"description=Path to search (file or directory)."`
}

// NewGrepExecutor builds the Grep tool executor bound to toolCtx.
func NewGrepExecutor(toolCtx Context) dispatch.Executor {
	return dispatch.ExecutorFunc(func(ctx context.Context, raw json.RawMessage) (dispatch.ExecResult, error) {
		var input GrepInput
		if err := json.Unmarshal(raw, &input); err != nil {
			return dispatch.ExecResult{IsError: true, Content: fmt.Sprintf("invalid input: %v", err)}, nil
		}
		if input.Query == "" {
			return dispatch.ExecResult{IsError: true, Content: "query is required"}, nil
		}

		root := input.Path
		if root == "" {
			root = toolCtx.CWD
		}
		root, err := toolCtx.Sandbox.ResolvePath(root, true)
		if err != nil {
			return dispatch.ExecResult{IsError: true, Content: err.Error()}, nil
		}

		var matches []string
		err = filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if entry.IsDir() {
				return nil
			}
			info, err := entry.Info()
			if err != nil {
				return nil
			}
			if info.Size() > maxReadBytes {
				return nil
			}
			file, err := os.Open(path)
			if err != nil {
				return nil
			}
			defer file.Close()

			scanner := bufio.NewScanner(file)
			lineNumber := 1
			for scanner.Scan() {
				line := scanner.Text()
				if strings.Contains(line, input.Query) {
					matches = append(matches, fmt.Sprintf("%s:%d:%s", path, lineNumber, line))
				}
				lineNumber++
			}
			return nil
		})
		if err != nil {
			return dispatch.ExecResult{IsError: true, Content: err.Error()}, nil
		}

		return dispatch.ExecResult{Content: strings.Join(matches, "\n")}, nil
	})
}
