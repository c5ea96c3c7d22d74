package conversation

import "github.com/opencoreai/turnengine/internal/content"

// Recover restores strict user/assistant alternation after a turn was cut
// short mid-dispatch. It pops a trailing user message (the one that would
// have started a turn that never got an assistant reply), and if the new
// tail is an assistant message composed entirely of orphaned tool_use
// blocks with no tool_result, pops that assistant message and the user
// message preceding it too. Recover is idempotent: applying it twice in a
// row is a no-op the second time.
func Recover(messages []content.Message) []content.Message {
	recovered := messages

	if len(recovered) > 0 && recovered[len(recovered)-1].Role == content.RoleUser {
		recovered = recovered[:len(recovered)-1]
	}

	if len(recovered) > 0 {
		last := recovered[len(recovered)-1]
		if last.Role == content.RoleAssistant && last.IsAllToolUse() {
			recovered = recovered[:len(recovered)-1]
			if len(recovered) > 0 && recovered[len(recovered)-1].Role == content.RoleUser {
				recovered = recovered[:len(recovered)-1]
			}
		}
	}

	return recovered
}
