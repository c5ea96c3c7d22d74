package content

import (
	"encoding/json"
	"testing"

	"github.com/opencoreai/turnengine/internal/testutil"
)

func TestContentBlockRoundTrip(t *testing.T) {
	cases := []ContentBlock{
		NewText("hello"),
		NewToolUse("tool_1", "Read", json.RawMessage(`{"file_path":"a.go"}`)),
		NewToolUse("tool_2", "Glob", nil),
		NewToolResult("tool_1", "contents", false),
		NewToolResult("tool_1", "boom", true),
	}

	for _, original := range cases {
		data, err := json.Marshal(original)
		testutil.RequireNoError(t, err, "marshal block")

		var restored ContentBlock
		testutil.RequireNoError(t, json.Unmarshal(data, &restored), "unmarshal block")
		testutil.RequireEqual(t, restored, original, "round trip should preserve the block")
	}
}

func TestContentBlockIsErrorOmittedWhenFalse(t *testing.T) {
	data, err := json.Marshal(NewToolResult("tool_1", "ok", false))
	testutil.RequireNoError(t, err, "marshal block")

	var raw map[string]any
	testutil.RequireNoError(t, json.Unmarshal(data, &raw), "unmarshal raw")
	if _, present := raw["is_error"]; present {
		t.Fatalf("is_error must be omitted when false, got: %s", data)
	}
}

func TestContentBlockIsErrorPresentWhenTrue(t *testing.T) {
	data, err := json.Marshal(NewToolResult("tool_1", "boom", true))
	testutil.RequireNoError(t, err, "marshal block")

	var raw map[string]any
	testutil.RequireNoError(t, json.Unmarshal(data, &raw), "unmarshal raw")
	testutil.RequireEqual(t, raw["is_error"], true, "is_error must be present when true")
}

func TestMessageIsAllToolUse(t *testing.T) {
	onlyTools := Message{Role: RoleAssistant, Content: []ContentBlock{
		NewToolUse("a", "Read", nil),
		NewToolUse("b", "Glob", nil),
	}}
	testutil.RequireTrue(t, onlyTools.IsAllToolUse(), "message with only tool_use blocks")

	mixed := Message{Role: RoleAssistant, Content: []ContentBlock{
		NewText("thinking"),
		NewToolUse("a", "Read", nil),
	}}
	testutil.RequireTrue(t, !mixed.IsAllToolUse(), "mixed content should not count as all-tool-use")

	empty := Message{Role: RoleAssistant}
	testutil.RequireTrue(t, !empty.IsAllToolUse(), "empty message should not count as all-tool-use")
}

func TestEnsureNonEmptyText(t *testing.T) {
	empty := Message{Role: RoleAssistant}
	filled := empty.EnsureNonEmptyText()
	testutil.RequireEqual(t, len(filled.Content), 1, "placeholder block injected")
	testutil.RequireEqual(t, filled.Content[0].Text, " ", "placeholder text is a single space")

	nonEmpty := NewTextMessage(RoleAssistant, "hi")
	testutil.RequireEqual(t, nonEmpty.EnsureNonEmptyText(), nonEmpty, "non-empty message is untouched")
}
