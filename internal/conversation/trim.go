// Package conversation maintains the strict user/assistant alternation
// and tool_use/tool_result pairing of a message log, trimming it back
// under budget and recovering it after a truncated turn.
package conversation

import (
	"encoding/json"

	"github.com/opencoreai/turnengine/internal/content"
)

const (
	// ContextWindowTokens is the model's total context budget.
	ContextWindowTokens = 200_000
	// TrimThresholdTokens is 60% of ContextWindowTokens: once the last
	// call's reported input tokens reach this, the next call trims first.
	TrimThresholdTokens = 120_000
	// ByteBudget is the safety-net serialized-size ceiling enforced when
	// token accounting is unavailable (last_input_tokens == 0).
	ByteBudget = 720 * 1024
)

// ShouldTrim reports whether a trim pass must run before the next call,
// given the input-token count reported by the previous call. A count of
// zero means no usage has been observed yet (first call, or a provider
// that omitted it); the byte-budget safety net runs in that case since
// the token threshold can't be evaluated. A count strictly between zero
// and TrimThresholdTokens is comfortably under budget and skips the pass
// entirely.
func ShouldTrim(lastInputTokens int) bool {
	return lastInputTokens == 0 || lastInputTokens >= TrimThresholdTokens
}

// Trim drops the oldest complete user/assistant exchange pairs from
// messages until the serialized size is under ByteBudget, never splitting
// a tool_use block from its paired tool_result. The most recent exchange
// is never dropped, so the result can stay over ByteBudget when that
// exchange alone exceeds it. It returns the (possibly unchanged) trimmed
// slice.
func Trim(messages []content.Message) []content.Message {
	trimmed := messages
	for len(trimmed) > 0 && serializedSize(trimmed) > ByteBudget {
		dropTo := nextExchangeBoundary(trimmed)
		if dropTo <= 0 || dropTo >= len(trimmed) {
			break
		}
		trimmed = trimmed[dropTo:]
	}
	return trimmed
}

// nextExchangeBoundary finds how many leading messages make up the
// oldest complete exchange: a user message, followed by every message up
// to (but not including) the next user message that carries no
// tool_result. A user message carrying tool_results belongs to the
// exchange of the assistant tool_use it answers, so dropping exactly that
// many messages never strands a tool_result without its tool_use.
func nextExchangeBoundary(messages []content.Message) int {
	if len(messages) == 0 || messages[0].Role != content.RoleUser {
		// Conversation doesn't start on a user turn (e.g. mid-recovery
		// state); drop just the leading message to make progress.
		if len(messages) > 0 {
			return 1
		}
		return 0
	}
	boundary := 1
	for boundary < len(messages) &&
		(messages[boundary].Role != content.RoleUser || len(messages[boundary].ToolResultBlocks()) > 0) {
		boundary++
	}
	return boundary
}

// serializedSize reports the JSON-encoded byte size of messages, the
// same representation sent on the wire.
func serializedSize(messages []content.Message) int {
	raw, err := json.Marshal(messages)
	if err != nil {
		return 0
	}
	return len(raw)
}
