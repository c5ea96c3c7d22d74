package transport

import (
	"encoding/json"

	"github.com/opencoreai/turnengine/internal/content"
)

// apiVersion is sent on every request so the gateway can parse the wire
// protocol this client was built against.
const apiVersion = "2023-06-01"

// ToolSpec describes one callable tool for the service's tool-use surface.
// It is emitted verbatim in every request (spec §6: "Tool schemas
// (exposed)").
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Request is the body of a POST to {api_url}/v1/messages.
type Request struct {
	Model     string            `json:"model"`
	MaxTokens int               `json:"max_tokens"`
	System    string            `json:"system,omitempty"`
	Messages  []content.Message `json:"messages"`
	Tools     []ToolSpec        `json:"tools,omitempty"`
	Stream    bool              `json:"stream"`
}

// wireMessage mirrors the nested "message" object carried by message_start.
type wireMessage struct {
	Usage content.Usage `json:"usage"`
}

// wireContentBlock mirrors the content-block envelope used by
// content_block_start; only the fields relevant to a starting block are
// populated by the service.
type wireContentBlock struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// wireDelta mirrors the delta payload of content_block_delta.
type wireDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
}

// wireError mirrors the nested error payload of an `error` SSE event.
type wireError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// event is the envelope for every recognized SSE event type. Fields are
// populated according to event.Type; unknown fields are ignored, matching
// the "unknown fields permitted" rule for hook and wire payloads elsewhere
// in this module.
type event struct {
	Type string `json:"type"`

	// message_start
	Message *wireMessage `json:"message,omitempty"`

	// content_block_start / content_block_stop
	Index        int                `json:"index"`
	ContentBlock *wireContentBlock  `json:"content_block,omitempty"`

	// content_block_delta
	Delta *wireDelta `json:"delta,omitempty"`

	// message_delta
	MessageDelta *messageDelta `json:"-"`

	// error
	Error *wireError `json:"error,omitempty"`
}

// messageDelta mirrors the top-level delta payload of message_delta, which
// carries stop_reason and (separately) a usage object with output token
// updates.
type messageDelta struct {
	StopReason *string       `json:"stop_reason"`
	Usage      content.Usage `json:"usage"`
}

// UnmarshalJSON decodes event, routing the top-level "delta"/"usage" keys of
// a message_delta event (which, unlike content_block_delta, carries the
// delta and usage at the top level rather than nested under "delta") into
// MessageDelta.
func (e *event) UnmarshalJSON(data []byte) error {
	type alias event
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = event(a)

	if e.Type == "message_delta" {
		var md struct {
			Delta struct {
				StopReason *string `json:"stop_reason"`
			} `json:"delta"`
			Usage content.Usage `json:"usage"`
		}
		if err := json.Unmarshal(data, &md); err != nil {
			return err
		}
		e.MessageDelta = &messageDelta{StopReason: md.Delta.StopReason, Usage: md.Usage}
		e.Delta = nil
	}
	return nil
}
