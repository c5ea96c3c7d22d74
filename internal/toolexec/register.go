package toolexec

import (
	"github.com/opencoreai/turnengine/internal/dispatch"
)

// Register wires the fixed five-tool surface into registry, bound to
// toolCtx. Read, Glob, and Grep never mutate the filesystem so they are
// registered Pure (eligible for parallel dispatch); Bash and Edit are
// registered Mutating.
func Register(registry *dispatch.Registry, toolCtx Context) {
	registry.Register("Read", dispatch.Pure, "Read a file from the filesystem.",
		dispatch.SchemaFor(ReadInput{}), NewReadExecutor(toolCtx))
	registry.Register("Glob", dispatch.Pure, "Find files matching a glob pattern.",
		dispatch.SchemaFor(GlobInput{}), NewGlobExecutor(toolCtx))
	registry.Register("Grep", dispatch.Pure, "Search for a string in files under a path.",
		dispatch.SchemaFor(GrepInput{}), NewGrepExecutor(toolCtx))
	registry.Register("Bash", dispatch.Mutating, "Run a shell command.",
		dispatch.SchemaFor(BashInput{}), NewBashExecutor(toolCtx))
	registry.Register("Edit", dispatch.Mutating, "Apply a unified diff patch or string replacement to a file.",
		dispatch.SchemaFor(EditInput{}), NewEditExecutor(toolCtx))
}
