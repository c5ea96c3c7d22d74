package hooks

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opencoreai/turnengine/internal/content"
	"github.com/opencoreai/turnengine/internal/testutil"
)

func TestTruncateResultUnderLimitUnchanged(testingHandle *testing.T) {
	short := "hello world"
	testutil.RequireEqual(testingHandle, truncateResult(short), short, "short content is untouched")
}

func TestTruncateResultOverLimit(testingHandle *testing.T) {
	long := strings.Repeat("a", resultTruncateLimit*2)
	truncated := truncateResult(long)
	testutil.RequireTrue(testingHandle, len(truncated) < len(long), "truncated content should shrink")
	testutil.RequireStringContains(testingHandle, truncated, fmt.Sprintf("full result: %d bytes", len(long)), "truncation marker names the original size")
	testutil.RequireTrue(testingHandle, strings.HasPrefix(truncated, strings.Repeat("a", resultTruncateHalf)), "head preserved")
}

func TestTruncateResultRespectsUTF8Boundary(testingHandle *testing.T) {
	// A multi-byte rune straddling the cut point must not be split.
	long := strings.Repeat("a", resultTruncateHalf-1) + "界" + strings.Repeat("b", resultTruncateLimit*2)
	truncated := truncateResult(long)
	testutil.RequireTrue(testingHandle, isValidUTF8Prefix(truncated), "truncated result must be valid utf8")
}

func isValidUTF8Prefix(s string) bool {
	for _, r := range s {
		if r == '�' {
			return false
		}
	}
	return true
}

func TestGuardNoHooksAllowsByDefault(testingHandle *testing.T) {
	runner, err := NewRunner(&Config{}, "")
	testutil.RequireNoError(testingHandle, err, "construct runner")
	blocked, _ := runner.Guard(context.Background(), "Bash", []byte(`{}`), 0)
	testutil.RequireTrue(testingHandle, !blocked, "no configured hooks should never block")
}

func TestGuardBlocksWhenHookSaysBlock(testingHandle *testing.T) {
	config := &Config{Hooks: []HookEntry{
		{Event: EventPreToolUse, Phase: PhaseGuard, Command: `echo '{"block": true, "reason": "no bash allowed"}'`},
	}}
	runner, err := NewRunner(config, "")
	testutil.RequireNoError(testingHandle, err, "construct runner")
	blocked, reason := runner.Guard(context.Background(), "Bash", []byte(`{}`), 0)
	testutil.RequireTrue(testingHandle, blocked, "hook said block")
	testutil.RequireEqual(testingHandle, reason, `blocked by echo '{"block": true, "reason": "no bash allowed"}': no bash allowed`, "reason names the command and the hook's reason")
}

func TestGuardFailsClosedOnHookExit(testingHandle *testing.T) {
	config := &Config{Hooks: []HookEntry{
		{Event: EventPreToolUse, Phase: PhaseGuard, Command: "exit 7"},
	}}
	runner, err := NewRunner(config, "")
	testutil.RequireNoError(testingHandle, err, "construct runner")
	blocked, reason := runner.Guard(context.Background(), "Bash", []byte(`{}`), 0)
	testutil.RequireTrue(testingHandle, blocked, "a guard hook that errors must fail closed")
	testutil.RequireEqual(testingHandle, reason, "hook failed: exit 7 exited with code 7 (tool blocked by default)", "exact exit-code fail-closed message")
}

func TestGuardFailsClosedOnHookTimeout(testingHandle *testing.T) {
	config := &Config{Hooks: []HookEntry{
		{Event: EventPreToolUse, Phase: PhaseGuard, Command: "sleep 1", TimeoutMs: 10},
	}}
	runner, err := NewRunner(config, "")
	testutil.RequireNoError(testingHandle, err, "construct runner")
	blocked, reason := runner.Guard(context.Background(), "Bash", []byte(`{}`), 0)
	testutil.RequireTrue(testingHandle, blocked, "a guard hook that times out must fail closed")
	testutil.RequireEqual(testingHandle, reason, "hook failed: sleep 1 timed out after 10ms (tool blocked by default)", "exact timeout fail-closed message")
}

func TestGuardFailsClosedOnInvalidJSON(testingHandle *testing.T) {
	config := &Config{Hooks: []HookEntry{
		{Event: EventPreToolUse, Phase: PhaseGuard, Command: "echo not-json"},
	}}
	runner, err := NewRunner(config, "")
	testutil.RequireNoError(testingHandle, err, "construct runner")
	blocked, reason := runner.Guard(context.Background(), "Bash", []byte(`{}`), 0)
	testutil.RequireTrue(testingHandle, blocked, "a guard hook returning invalid JSON must fail closed")
	testutil.RequireEqual(testingHandle, reason, "hook failed: echo not-json returned invalid JSON (tool blocked by default)", "exact invalid-JSON fail-closed message")
}

func TestPostToolUseFailsOpenOnHookError(testingHandle *testing.T) {
	config := &Config{Hooks: []HookEntry{
		{Event: EventPostToolUse, Command: "exit 1"},
	}}
	runner, err := NewRunner(config, "")
	testutil.RequireNoError(testingHandle, err, "construct runner")
	// Must not panic and must return promptly; fail-open means the turn
	// continues regardless of the hook's failure.
	runner.PostToolUse(context.Background(), "Bash", []byte(`{}`), content.NewToolResult("call_1", "ok", false), 0)
}

func TestConvergenceSignalPersists(testingHandle *testing.T) {
	convergencePath := filepath.Join(testingHandle.TempDir(), "convergence.json")
	config := &Config{Hooks: []HookEntry{
		{Event: EventPostToolUse, Command: `echo '{"signal": "done", "reason": "looks converged"}'`},
	}}
	runner, err := NewRunner(config, convergencePath)
	testutil.RequireNoError(testingHandle, err, "construct runner")

	runner.PostToolUse(context.Background(), "Bash", []byte(`{}`), content.NewToolResult("call_1", "ok", false), 3)

	converged, signal := runner.Converged()
	testutil.RequireTrue(testingHandle, converged, "expected convergence to be recorded")
	testutil.RequireEqual(testingHandle, signal, "done", "expected the hook's signal")

	record, readErr := runner.convergence.read()
	testutil.RequireNoError(testingHandle, readErr, "read convergence file")
	testutil.RequireLen(testingHandle, record.Observations, 1, "expected one observation")
	testutil.RequireEqual(testingHandle, record.Observations[0].Reason, "looks converged", "observation carries the hook's reason")
	testutil.RequireEqual(testingHandle, record.Observations[0].ToolIterations, 3, "observation carries tool_iterations")
}

func TestStopHookWritesFinalVerdict(testingHandle *testing.T) {
	convergencePath := filepath.Join(testingHandle.TempDir(), "convergence.json")
	config := &Config{Hooks: []HookEntry{
		{Event: EventStop, Command: `echo '{"action": "halt"}'`},
	}}
	runner, err := NewRunner(config, convergencePath)
	testutil.RequireNoError(testingHandle, err, "construct runner")

	runner.Stop(context.Background(), "convergence_signal", 5, 1234)

	record, readErr := runner.convergence.read()
	testutil.RequireNoError(testingHandle, readErr, "read convergence file")
	testutil.RequireTrue(testingHandle, record.Final != nil, "expected a final verdict")
	testutil.RequireEqual(testingHandle, record.Final.Reason, "convergence_signal", "final verdict carries the turn's own stop reason")
	testutil.RequireEqual(testingHandle, record.Final.ToolIterations, 5, "final verdict carries tool_iterations")
	testutil.RequireEqual(testingHandle, record.Final.TotalTokens, 1234, "final verdict carries total_tokens")
}
