package transport

import (
	"encoding/json"
	"strings"

	"github.com/opencoreai/turnengine/internal/content"
)

// blockState accumulates one content_block's deltas until its
// content_block_stop event arrives.
type blockState struct {
	kind        content.BlockType
	id          string
	name        string
	text        strings.Builder
	inputJSON   strings.Builder
}

// accumulator assembles the blocks, stop reason, and usage of a single
// streaming response (spec §4.B). It mirrors the teacher's
// internal/llm/openai.StreamAccumulator, adapted from OpenAI-style
// tool_calls deltas to Anthropic-style indexed content blocks.
type accumulator struct {
	blocks     []content.ContentBlock
	byIndex    map[int]int // content_block index -> position in blocks
	states     map[int]*blockState
	stopReason content.StopReason
	usage      content.Usage
	sawStop    bool
}

func newAccumulator() *accumulator {
	return &accumulator{
		byIndex: map[int]int{},
		states:  map[int]*blockState{},
	}
}

// Apply folds one decoded SSE event into the accumulator. It returns a
// classified error for malformed or transient mid-stream conditions.
func (a *accumulator) Apply(e event) error {
	switch e.Type {
	case "message_start":
		if e.Message != nil {
			a.usage = e.Message.Usage
		}
	case "content_block_start":
		if e.ContentBlock == nil {
			return nil
		}
		state := &blockState{}
		switch e.ContentBlock.Type {
		case "text":
			state.kind = content.BlockText
		case "tool_use":
			state.kind = content.BlockToolUse
			state.id = e.ContentBlock.ID
			state.name = e.ContentBlock.Name
		default:
			return nil
		}
		a.states[e.Index] = state
		a.byIndex[e.Index] = len(a.blocks)
		a.blocks = append(a.blocks, content.ContentBlock{Type: state.kind, ID: state.id, Name: state.name})
	case "content_block_delta":
		state, ok := a.states[e.Index]
		if !ok || e.Delta == nil {
			return nil
		}
		switch e.Delta.Type {
		case "text_delta":
			state.text.WriteString(e.Delta.Text)
		case "input_json_delta":
			state.inputJSON.WriteString(e.Delta.PartialJSON)
		}
	case "content_block_stop":
		state, ok := a.states[e.Index]
		if !ok {
			return nil
		}
		pos := a.byIndex[e.Index]
		switch state.kind {
		case content.BlockText:
			a.blocks[pos].Text = state.text.String()
		case content.BlockToolUse:
			if raw := state.inputJSON.String(); raw != "" {
				if json.Valid([]byte(raw)) {
					a.blocks[pos].Input = json.RawMessage(raw)
				}
				// Parse failure leaves Input nil per spec §4.B.
			}
		}
	case "message_delta":
		if e.MessageDelta != nil {
			if e.MessageDelta.StopReason != nil {
				a.stopReason = content.StopReason(*e.MessageDelta.StopReason)
				a.sawStop = true
			}
			a.usage.OutputTokens = e.MessageDelta.Usage.OutputTokens
			if e.MessageDelta.Usage.InputTokens > 0 {
				a.usage.InputTokens = e.MessageDelta.Usage.InputTokens
			}
			if e.MessageDelta.Usage.CacheCreationInputTokens > 0 {
				a.usage.CacheCreationInputTokens = e.MessageDelta.Usage.CacheCreationInputTokens
			}
			if e.MessageDelta.Usage.CacheReadInputTokens > 0 {
				a.usage.CacheReadInputTokens = e.MessageDelta.Usage.CacheReadInputTokens
			}
		}
	case "message_stop":
		// No-op: message_stop only terminates the stream.
	case "error":
		if e.Error == nil {
			return &StreamTransientError{Detail: "error event with no payload"}
		}
		switch e.Error.Type {
		case "invalid_request_error":
			return &StreamParseError{Detail: e.Error.Message}
		default:
			// overloaded_error, api_error, rate_limit_error, and any
			// unknown type are all treated as transient per spec §4.B.
			return &StreamTransientError{Detail: e.Error.Message}
		}
	}
	return nil
}

// Result returns the assembled blocks, stop reason, and usage once the
// stream has ended. If no stop_reason was ever observed, the stream ended
// prematurely and the caller should treat it as transient (spec §4.B).
func (a *accumulator) Result() ([]content.ContentBlock, content.StopReason, content.Usage, bool) {
	return a.blocks, a.stopReason, a.usage, a.sawStop
}
