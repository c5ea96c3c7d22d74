package toolexec

// Context carries the shared environment every tool executor needs:
// sandbox policy and working directory. It is distinct from
// context.Context, which still flows through Execute for cancellation.
type Context struct {
	// Sandbox enforces path allow/deny rules.
	Sandbox *Sandbox
	// CWD is the working directory for commands that accept a relative path.
	CWD string
}
