package dispatch

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/opencoreai/turnengine/internal/transport"
)

// ExecResult is the outcome of one tool invocation, before it is wrapped
// into a ToolResult content block.
type ExecResult struct {
	Content string
	IsError bool
}

// Executor runs one tool's logic against its already-validated input.
type Executor interface {
	Execute(ctx context.Context, input json.RawMessage) (ExecResult, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, input json.RawMessage) (ExecResult, error)

func (fn ExecutorFunc) Execute(ctx context.Context, input json.RawMessage) (ExecResult, error) {
	return fn(ctx, input)
}

type toolEntry struct {
	effect      Effect
	executor    Executor
	description string
	schema      map[string]any
}

// Registry holds the fixed set of tools available to the turn loop,
// keyed by name, each tagged with its Effect classification. A name not
// present in the registry defaults to Mutating when classified (unknown
// tools are never assumed safe to parallelize).
type Registry struct {
	entries map[string]toolEntry
	order   []string
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]toolEntry{}}
}

// Register adds a tool under name with the given effect classification,
// description, input schema, and executor.
func (r *Registry) Register(name string, effect Effect, description string, schema map[string]any, executor Executor) {
	if _, exists := r.entries[name]; !exists {
		r.order = append(r.order, name)
	}
	r.entries[name] = toolEntry{effect: effect, executor: executor, description: description, schema: schema}
}

// EffectOf reports the registered effect for name, defaulting to Mutating
// when name is not registered.
func (r *Registry) EffectOf(name string) Effect {
	if entry, ok := r.entries[name]; ok {
		return entry.effect
	}
	return Mutating
}

// ExecutorFor returns the registered executor for name, or nil if
// unregistered.
func (r *Registry) ExecutorFor(name string) Executor {
	if entry, ok := r.entries[name]; ok {
		return entry.executor
	}
	return nil
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Specs returns ToolSpec values in deterministic (sorted) order for
// inclusion in a chat request.
func (r *Registry) Specs() []transport.ToolSpec {
	names := r.Names()
	sort.Strings(names)
	specs := make([]transport.ToolSpec, 0, len(names))
	for _, name := range names {
		entry := r.entries[name]
		specs = append(specs, transport.ToolSpec{
			Name:        name,
			Description: entry.description,
			InputSchema: entry.schema,
		})
	}
	return specs
}
