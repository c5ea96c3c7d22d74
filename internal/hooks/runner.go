package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/opencoreai/turnengine/internal/content"
	"github.com/opencoreai/turnengine/internal/logging"
)

const (
	resultTruncateLimit = 5120
	resultTruncateHalf  = 2560
)

// Runner executes the configured hooks for PreToolUse, PostToolUse, and
// Stop events, and persists their signals to the convergence file.
type Runner struct {
	config      *Config
	convergence *convergenceStore

	// CWD is reported to every hook invocation as the working directory
	// field spec §6 requires. Callers set it once after NewRunner.
	CWD string
}

// NewRunner builds a Runner from config, persisting convergence signals
// to convergencePath (empty disables persistence). Any convergence file
// left over from a previous turn is deleted; a failure to delete it is
// returned so the caller can log it, but never blocks turn startup.
func NewRunner(config *Config, convergencePath string) (*Runner, error) {
	if config == nil {
		config = &Config{}
	}
	store := newConvergenceStore(convergencePath)
	resetErr := store.reset()
	return &Runner{config: config, convergence: store}, resetErr
}

func (r *Runner) entriesFor(event Event, phase Phase, toolName string) []HookEntry {
	var matched []HookEntry
	for _, entry := range r.config.Hooks {
		if entry.Event != event {
			continue
		}
		if event == EventPreToolUse && entry.Phase != phase {
			continue
		}
		if !entry.matches(toolName) {
			continue
		}
		matched = append(matched, entry)
	}
	return matched
}

// Guard runs the PreToolUse guard phase (fail-closed: a hook error or a
// non-zero exit blocks the tool), then the observe phase (fail-open:
// errors are logged and ignored). It implements dispatch.HookRunner.
func (r *Runner) Guard(ctx context.Context, toolName string, input []byte, toolIterations int) (bool, string) {
	logger := logging.FromContext(ctx)
	outcome := guardOutcome{}
	blockMessage := ""

	for _, entry := range r.entriesFor(EventPreToolUse, PhaseGuard, toolName) {
		response, err := runSubprocess(ctx, entry, subprocessRequest{
			Event: EventPreToolUse, Phase: PhaseGuard, Tool: toolName, Input: json.RawMessage(input),
			ToolIterations: toolIterations, CWD: r.CWD,
		})
		if err != nil {
			// Fail-closed: a guard hook that cannot be evaluated blocks.
			logger.Warn().Err(err).Str("tool", toolName).Msg("guard hook failed, blocking")
			blockMessage = err.Error()
			outcome = guardOutcome{Blocked: true, BlockedBy: entry.Command, BlockReason: err.Error()}
			break
		}
		if response.Block {
			blockMessage = fmt.Sprintf("blocked by %s: %s", entry.Command, response.Reason)
			outcome = guardOutcome{Blocked: true, BlockedBy: entry.Command, BlockReason: response.Reason}
			break
		}
	}

	for _, entry := range r.entriesFor(EventPreToolUse, PhaseObserve, toolName) {
		response, err := runSubprocess(ctx, entry, subprocessRequest{
			Event: EventPreToolUse, Phase: PhaseObserve, Tool: toolName, Input: json.RawMessage(input),
			ToolIterations: toolIterations, CWD: r.CWD, GuardInfo: &outcome,
		})
		if err != nil {
			// Fail-open: observe hooks never block; log and continue.
			logger.Warn().Err(err).Str("tool", toolName).Msg("observe hook failed, continuing")
			continue
		}
		r.recordSignal(EventPreToolUse, toolName, toolIterations, response)
	}

	return outcome.Blocked, blockMessage
}

// PostToolUse runs every matching PostToolUse hook in order (all run,
// fail-open), passing each the (truncated) tool result, and persists any
// signal each one emits.
func (r *Runner) PostToolUse(ctx context.Context, toolName string, input []byte, result content.ContentBlock, toolIterations int) {
	logger := logging.FromContext(ctx)
	truncated := truncateResult(result.Content)
	resultJSON, _ := json.Marshal(truncated)
	isError := result.IsError

	for _, entry := range r.entriesFor(EventPostToolUse, "", toolName) {
		response, err := runSubprocess(ctx, entry, subprocessRequest{
			Event: EventPostToolUse, Tool: toolName, Input: json.RawMessage(input), Result: resultJSON,
			IsError: &isError, ToolIterations: toolIterations, CWD: r.CWD,
		})
		if err != nil {
			logger.Warn().Err(err).Str("tool", toolName).Msg("post-tool-use hook failed, continuing")
			continue
		}
		r.recordSignal(EventPostToolUse, toolName, toolIterations, response)
	}
}

// Stop runs the Stop hooks once, fail-open, and records the turn loop's
// own stop reason as the convergence file's final verdict. A hook's
// reply is logged if it disagrees, but never overrides the turn's
// actual reason for stopping: the hook only gets to veto by saying
// "continue", and since the turn has already ended by the time Stop
// runs, there is nothing left to continue.
func (r *Runner) Stop(ctx context.Context, reason string, toolIterations int, totalTokens int) {
	logger := logging.FromContext(ctx)
	for _, entry := range r.entriesFor(EventStop, "", "") {
		response, err := runSubprocess(ctx, entry, subprocessRequest{
			Event: EventStop, Reason: reason, ToolIterations: toolIterations, TotalTokens: totalTokens, CWD: r.CWD,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("stop hook failed, continuing")
			continue
		}
		if response.Action != "" && response.Action != "continue" {
			logger.Info().Str("action", response.Action).Msg("stop hook returned non-continue action, turn already ended")
		}
	}

	final := &FinalRecord{
		Reason:         reason,
		ToolIterations: toolIterations,
		TotalTokens:    totalTokens,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}
	if mutateErr := r.convergence.mutate(func(record *ConvergenceRecord) {
		record.Final = final
	}); mutateErr != nil {
		logger.Warn().Err(mutateErr).Msg("failed to persist stop hook verdict")
	}
}

// recordSignal appends one observation and, if the hook signaled
// convergence, sets the converged flag — first-signal-wins for the
// returned verdict, but every hook still runs and every observation is
// kept.
func (r *Runner) recordSignal(event Event, toolName string, toolIterations int, response subprocessResponse) {
	if response.Signal == "" {
		return
	}
	invocationID := uuid.NewString()
	_ = r.convergence.mutate(func(record *ConvergenceRecord) {
		record.Observations = append(record.Observations, Observation{
			InvocationID:   invocationID,
			Event:          event,
			Tool:           toolName,
			Signal:         response.Signal,
			Reason:         response.Reason,
			ToolIterations: toolIterations,
		})
		if !record.Converged {
			record.Converged = true
			record.Signal = response.Signal
		}
	})
}

// Converged reports whether any hook has signaled convergence so far
// this turn.
func (r *Runner) Converged() (bool, string) {
	record, err := r.convergence.read()
	if err != nil {
		return false, ""
	}
	return record.Converged, record.Signal
}

// truncateResult enforces the PostToolUse 5120-byte result cap: the
// first and last resultTruncateHalf bytes survive, joined by a marker
// naming the original size, with each half trimmed back to a UTF-8 rune
// boundary rather than splitting a multi-byte character.
func truncateResult(text string) string {
	if len(text) <= resultTruncateLimit {
		return text
	}
	head := utf8Floor(text, resultTruncateHalf)
	tail := utf8Ceil(text, len(text)-resultTruncateHalf)
	marker := fmt.Sprintf("... (truncated for hook, full result: %d bytes) ...", len(text))
	return text[:head] + marker + text[tail:]
}

// utf8Floor returns the largest index <= n that does not split a rune.
func utf8Floor(s string, n int) int {
	if n >= len(s) {
		return len(s)
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}

// utf8Ceil returns the smallest index >= n that does not split a rune.
func utf8Ceil(s string, n int) int {
	if n <= 0 {
		return 0
	}
	for n < len(s) && !utf8.RuneStart(s[n]) {
		n++
	}
	return n
}
