package content

import "encoding/json"

// BlockType discriminates the content-block tagged union. Closed
// enumeration: text, tool_use, tool_result.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ContentBlock is a tagged union over Text, ToolUse, and ToolResult. Only
// the fields relevant to Type are populated; MarshalJSON/UnmarshalJSON
// enforce the wire shape (including omitting IsError when false, to match
// upstream service compatibility).
type ContentBlock struct {
	Type BlockType

	// Text fields.
	Text string

	// ToolUse fields. ID is an opaque token assigned by the service. Input
	// is a semi-structured JSON value, or nil when the service truncated
	// output before a tool_use block's arguments were complete.
	ID    string
	Name  string
	Input json.RawMessage

	// ToolResult fields. ToolUseID references a ToolUse in a prior
	// assistant message. IsError is a three-state option on the wire
	// (present-true, present-false never sent, absent): represented here
	// as a bool that MarshalJSON omits when false.
	ToolUseID string
	Content   string
	IsError   bool
}

// NewText builds a Text content block.
func NewText(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// NewToolUse builds a ToolUse content block.
func NewToolUse(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

// NewToolResult builds a ToolResult content block.
func NewToolResult(toolUseID, text string, isError bool) ContentBlock {
	return ContentBlock{
		Type:      BlockToolResult,
		ToolUseID: toolUseID,
		Content:   text,
		IsError:   isError,
	}
}

// wireBlock is the on-disk/over-the-wire shape for a ContentBlock.
type wireBlock struct {
	Type      BlockType       `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// MarshalJSON emits only the fields relevant to the block's tag.
func (b ContentBlock) MarshalJSON() ([]byte, error) {
	w := wireBlock{Type: b.Type}
	switch b.Type {
	case BlockText:
		w.Text = b.Text
	case BlockToolUse:
		w.ID = b.ID
		w.Name = b.Name
		w.Input = b.Input
	case BlockToolResult:
		w.ToolUseID = b.ToolUseID
		w.Content = b.Content
		w.IsError = b.IsError
	}
	return json.Marshal(w)
}

// UnmarshalJSON restores a ContentBlock from its wire shape.
func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	var w wireBlock
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*b = ContentBlock{
		Type:      w.Type,
		Text:      w.Text,
		ID:        w.ID,
		Name:      w.Name,
		Input:     w.Input,
		ToolUseID: w.ToolUseID,
		Content:   w.Content,
		IsError:   w.IsError,
	}
	return nil
}
