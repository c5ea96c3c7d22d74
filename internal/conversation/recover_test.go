package conversation

import (
	"testing"

	"github.com/opencoreai/turnengine/internal/content"
	"github.com/opencoreai/turnengine/internal/testutil"
)

func allToolUseMessage(id string) content.Message {
	return content.Message{
		Role:    content.RoleAssistant,
		Content: []content.ContentBlock{content.NewToolUse(id, "Read", []byte(`{}`))},
	}
}

func TestRecoverPopsTrailingUser(testingHandle *testing.T) {
	messages := []content.Message{
		content.NewTextMessage(content.RoleUser, "first"),
		content.NewTextMessage(content.RoleAssistant, "reply"),
		content.NewTextMessage(content.RoleUser, "interrupted"),
	}
	recovered := Recover(messages)
	testutil.RequireLen(testingHandle, recovered, 2, "trailing user message should be popped")
	testutil.RequireEqual(testingHandle, recovered[len(recovered)-1].Role, content.RoleAssistant, "should end on assistant turn")
}

func TestRecoverPopsOrphanedToolUseAndItsUser(testingHandle *testing.T) {
	messages := []content.Message{
		content.NewTextMessage(content.RoleUser, "earlier"),
		content.NewTextMessage(content.RoleAssistant, "earlier reply"),
		content.NewTextMessage(content.RoleUser, "do a tool call"),
		allToolUseMessage("call_1"),
	}
	recovered := Recover(messages)
	testutil.RequireLen(testingHandle, recovered, 2, "orphaned assistant turn and its user turn should be popped")
	testutil.RequireEqual(testingHandle, recovered[len(recovered)-1].Role, content.RoleAssistant, "should end on the prior assistant turn")
}

func TestRecoverIsIdempotent(testingHandle *testing.T) {
	messages := []content.Message{
		content.NewTextMessage(content.RoleUser, "earlier"),
		content.NewTextMessage(content.RoleAssistant, "earlier reply"),
		content.NewTextMessage(content.RoleUser, "do a tool call"),
		allToolUseMessage("call_1"),
	}
	once := Recover(messages)
	twice := Recover(once)
	testutil.RequireEqual(testingHandle, twice, once, "recovering an already-recovered log must be a no-op")
}

func TestRecoverLeavesCleanLogUntouched(testingHandle *testing.T) {
	messages := []content.Message{
		content.NewTextMessage(content.RoleUser, "first"),
		content.NewTextMessage(content.RoleAssistant, "reply"),
	}
	recovered := Recover(messages)
	testutil.RequireEqual(testingHandle, recovered, messages, "a log that already ends cleanly must be unchanged")
}

func TestRecoverPopsBothWhenTrailingUserIsActuallyAToolResult(testingHandle *testing.T) {
	// Recover is only meant to run after a turn was cut short mid-dispatch,
	// so it pops by position, not by inspecting whether the trailing user
	// message happens to carry a real tool_result.
	messages := []content.Message{
		content.NewTextMessage(content.RoleUser, "do a tool call"),
		allToolUseMessage("call_1"),
		{
			Role:    content.RoleUser,
			Content: []content.ContentBlock{content.NewToolResult("call_1", "ok", false)},
		},
	}
	recovered := Recover(messages)
	testutil.RequireLen(testingHandle, recovered, 0, "trailing user then orphan-shaped assistant and its user are all popped")
}
