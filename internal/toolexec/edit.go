package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencoreai/turnengine/internal/dispatch"
)

// EditInput is the Edit tool's input schema source. It supports the
// file_path/old_string/new_string shape plus a legacy path alias and a
// unified-diff patch escape hatch for larger changes.
type EditInput struct {
	FilePath  string  `json:"file_path" jsonschema:"description=Absolute path to the file to modify."`
	Path      string  `json:"path,omitempty" jsonschema:"description=Path to the file to edit (legacy alias for file_path)."`
	OldString *string `json:"old_string,omitempty" jsonschema:"description=The exact text to replace. Use empty string to create a new file."`
	NewString *string `json:"new_string,omitempty" jsonschema:"description=Replacement text. Use empty string to delete old_string."`
	Patch     string  `json:"patch,omitempty" jsonschema:"description=Unified diff patch to apply."`
}

// NewEditExecutor builds the Edit tool executor bound to toolCtx.
func NewEditExecutor(toolCtx Context) dispatch.Executor {
	return dispatch.ExecutorFunc(func(ctx context.Context, raw json.RawMessage) (dispatch.ExecResult, error) {
		var input EditInput
		if err := json.Unmarshal(raw, &input); err != nil {
			return dispatch.ExecResult{IsError: true, Content: fmt.Sprintf("invalid input: %v", err)}, nil
		}
		if input.FilePath == "" {
			input.FilePath = input.Path
		}
		if input.FilePath == "" {
			return dispatch.ExecResult{IsError: true, Content: "file_path is required"}, nil
		}

		usingOldNew := input.OldString != nil || input.NewString != nil
		oldValue, newValue := "", ""
		if input.OldString != nil {
			oldValue = *input.OldString
		}
		if input.NewString != nil {
			newValue = *input.NewString
		}

		requireExisting := true
		if usingOldNew && oldValue == "" {
			requireExisting = false
		}
		path, err := toolCtx.Sandbox.ResolvePath(input.FilePath, requireExisting)
		if err != nil {
			return dispatch.ExecResult{IsError: true, Content: err.Error()}, nil
		}

		var original []byte
		if requireExisting {
			original, err = os.ReadFile(path)
			if err != nil {
				return dispatch.ExecResult{IsError: true, Content: err.Error()}, nil
			}
		}

		updated := string(original)
		switch {
		case usingOldNew:
			if oldValue == "" {
				updated = newValue
			} else {
				if newValue == "" && !strings.HasSuffix(oldValue, "\n") && strings.Contains(updated, oldValue+"\n") {
					updated = strings.Replace(updated, oldValue+"\n", newValue, 1)
				} else {
					updated = strings.Replace(updated, oldValue, newValue, 1)
				}
				if updated == string(original) {
					return dispatch.ExecResult{IsError: true, Content: "original and edited file match; failed to apply edit"}, nil
				}
			}
		case strings.TrimSpace(input.Patch) != "":
			updated, err = applyUnifiedPatch(updated, input.Patch)
			if err != nil {
				return dispatch.ExecResult{IsError: true, Content: err.Error()}, nil
			}
		default:
			return dispatch.ExecResult{IsError: true, Content: "either old_string/new_string or patch must be provided"}, nil
		}

		parent := filepath.Dir(path)
		if parent != "" {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return dispatch.ExecResult{IsError: true, Content: err.Error()}, nil
			}
		}

		mode := os.FileMode(0o644)
		if info, statErr := os.Stat(path); statErr == nil {
			mode = info.Mode().Perm()
		}
		if err := writeAtomic(path, []byte(updated), mode); err != nil {
			return dispatch.ExecResult{IsError: true, Content: fmt.Sprintf("write failed: %v", err)}, nil
		}

		return dispatch.ExecResult{Content: "ok"}, nil
	})
}

// writeAtomic writes to a temp file and renames it into place so readers
// never observe a partially written file.
func writeAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".turnengine-*")
	if err != nil {
		return err
	}
	if err := tmpFile.Chmod(mode); err != nil {
		tmpFile.Close()
		return err
	}
	tmpName := tmpFile.Name()
	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// applyUnifiedPatch applies a minimal unified diff patch to a string.
func applyUnifiedPatch(original string, patch string) (string, error) {
	lines := strings.Split(original, "\n")
	patchLines := strings.Split(patch, "\n")

	var output []string
	index := 0

	for i := 0; i < len(patchLines); i++ {
		line := patchLines[i]
		if strings.HasPrefix(line, "---") || strings.HasPrefix(line, "+++") {
			continue
		}
		if strings.HasPrefix(line, "@@") {
			var oldStart int
			if _, err := fmt.Sscanf(line, "@@ -%d", &oldStart); err != nil {
				return "", fmt.Errorf("invalid hunk header: %s", line)
			}
			oldStart--
			if oldStart < 0 {
				oldStart = 0
			}
			if oldStart > len(lines) {
				return "", fmt.Errorf("hunk out of range: %s", line)
			}
			output = append(output, lines[index:oldStart]...)
			index = oldStart

			for i+1 < len(patchLines) {
				next := patchLines[i+1]
				if strings.HasPrefix(next, "@@") {
					break
				}
				i++
				if strings.HasPrefix(next, "\\ No newline at end of file") {
					continue
				}
				if next == "" && i == len(patchLines)-1 {
					break
				}
				if next == "" {
					next = " "
				}
				prefix := next[:1]
				body := ""
				if len(next) > 1 {
					body = next[1:]
				}
				switch prefix {
				case " ":
					if index >= len(lines) || lines[index] != body {
						return "", fmt.Errorf("context mismatch at line %d", index+1)
					}
					output = append(output, body)
					index++
				case "-":
					if index >= len(lines) || lines[index] != body {
						return "", fmt.Errorf("delete mismatch at line %d", index+1)
					}
					index++
				case "+":
					output = append(output, body)
				default:
					return "", fmt.Errorf("invalid patch line: %s", next)
				}
			}
		}
	}

	output = append(output, lines[index:]...)
	return strings.Join(output, "\n"), nil
}
