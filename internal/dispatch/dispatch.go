package dispatch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/opencoreai/turnengine/internal/content"
	"github.com/opencoreai/turnengine/internal/logging"
)

// HookRunner is the slice of the hook subsystem (component F) that
// dispatch needs: a fail-closed PreToolUse guard decision, and a
// fail-open PostToolUse notification. Both sides of the guard/observe
// split, and all convergence-file bookkeeping, live inside the concrete
// implementation; dispatch only acts on the boolean verdict.
type HookRunner interface {
	Guard(ctx context.Context, toolName string, input []byte, toolIterations int) (blocked bool, reason string)
	PostToolUse(ctx context.Context, toolName string, input []byte, result content.ContentBlock, toolIterations int)
}

// NoopHooks is a HookRunner that never blocks and never observes, used
// when no hook configuration is present.
type NoopHooks struct{}

func (NoopHooks) Guard(ctx context.Context, toolName string, input []byte, toolIterations int) (bool, string) {
	return false, ""
}
func (NoopHooks) PostToolUse(ctx context.Context, toolName string, input []byte, result content.ContentBlock, toolIterations int) {
}

// Outcome is the result of dispatching one batch of tool_use blocks.
type Outcome struct {
	// Results holds one ToolResult content block per tool_use, in the
	// same order as the input batch.
	Results []content.ContentBlock
	// LimitHit reports whether a guard-block threshold was crossed while
	// processing this batch. When non-zero, the turn loop must stop.
	LimitHit BlockLimit
}

// Dispatcher runs tool_use batches against a Registry, consulting a
// HookRunner before and after each tool invocation.
type Dispatcher struct {
	registry *Registry
	hooks    HookRunner
}

// NewDispatcher builds a Dispatcher. A nil hooks runner is treated as
// NoopHooks.
func NewDispatcher(registry *Registry, hooks HookRunner) *Dispatcher {
	if hooks == nil {
		hooks = NoopHooks{}
	}
	return &Dispatcher{registry: registry, hooks: hooks}
}

// Dispatch runs every tool_use in toolUses, in parallel when the whole
// batch is Pure and sequentially otherwise, and returns their ToolResult
// blocks in original order.
func (d *Dispatcher) Dispatch(ctx context.Context, toolUses []content.ContentBlock, counter *BlockCounter, toolIterations int) Outcome {
	effects := make([]Effect, len(toolUses))
	for i, use := range toolUses {
		effects[i] = d.registry.EffectOf(use.Name)
	}
	if AllPure(effects) {
		return d.dispatchParallel(ctx, toolUses, counter, toolIterations)
	}
	return d.dispatchSequential(ctx, toolUses, counter, toolIterations)
}

// dispatchParallel runs a sequential guard pre-pass (so block thresholds
// are evaluated deterministically and in order), then executes every
// allowed tool concurrently into a pre-allocated slot vector, then runs
// an ordered PostToolUse pass.
func (d *Dispatcher) dispatchParallel(ctx context.Context, toolUses []content.ContentBlock, counter *BlockCounter, toolIterations int) Outcome {
	results := make([]content.ContentBlock, len(toolUses))
	blocked := make([]bool, len(toolUses))
	limitHit := BlockLimitNone
	guarded := 0

	for i, use := range toolUses {
		if limitHit != BlockLimitNone {
			break
		}
		guarded++
		isBlocked, reason := d.hooks.Guard(ctx, use.Name, use.Input, toolIterations)
		if isBlocked {
			blocked[i] = true
			results[i] = blockedResult(use, reason)
			limitHit = counter.RecordBlock()
		} else {
			counter.RecordAllow()
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for i, use := range toolUses[:guarded] {
		if blocked[i] {
			continue
		}
		i, use := i, use
		group.Go(func() error {
			results[i] = d.executeOne(groupCtx, use)
			return nil
		})
	}
	_ = group.Wait() // execution failures are captured per-slot, never propagated

	for i, use := range toolUses[:guarded] {
		if blocked[i] {
			continue
		}
		d.hooks.PostToolUse(ctx, use.Name, use.Input, results[i], toolIterations)
	}

	return Outcome{Results: results, LimitHit: limitHit}
}

// dispatchSequential interleaves guard, execute, and PostToolUse for each
// tool_use in order, short-circuiting as soon as a block threshold is
// crossed.
func (d *Dispatcher) dispatchSequential(ctx context.Context, toolUses []content.ContentBlock, counter *BlockCounter, toolIterations int) Outcome {
	results := make([]content.ContentBlock, len(toolUses))
	limitHit := BlockLimitNone

	for i, use := range toolUses {
		if limitHit != BlockLimitNone {
			break
		}
		isBlocked, reason := d.hooks.Guard(ctx, use.Name, use.Input, toolIterations)
		if isBlocked {
			results[i] = blockedResult(use, reason)
			limitHit = counter.RecordBlock()
			d.hooks.PostToolUse(ctx, use.Name, use.Input, results[i], toolIterations)
			continue
		}
		counter.RecordAllow()
		results[i] = d.executeOne(ctx, use)
		d.hooks.PostToolUse(ctx, use.Name, use.Input, results[i], toolIterations)
	}

	return Outcome{Results: results, LimitHit: limitHit}
}

// executeOne runs a single tool_use's executor, guarding against a nil
// input (spec's null-input guard) and a panicking executor, both of
// which become a synthetic tool-error ToolResult rather than aborting
// the whole batch.
func (d *Dispatcher) executeOne(ctx context.Context, use content.ContentBlock) (result content.ContentBlock) {
	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx).Warn().
				Str("tool", use.Name).
				Interface("panic", r).
				Msg("tool execution panicked")
			result = content.NewToolResult(use.ID, fmt.Sprintf("tool %s panicked: %v", use.Name, r), true)
		}
	}()

	if len(use.Input) == 0 || string(use.Input) == "null" {
		return content.NewToolResult(use.ID, "tool input was null", true)
	}

	executor := d.registry.ExecutorFor(use.Name)
	if executor == nil {
		return content.NewToolResult(use.ID, fmt.Sprintf("tool not found: %s", use.Name), true)
	}

	execResult, err := executor.Execute(ctx, use.Input)
	if err != nil {
		return content.NewToolResult(use.ID, err.Error(), true)
	}
	return content.NewToolResult(use.ID, execResult.Content, execResult.IsError)
}

// blockedResult turns a Guard block into a ToolResult. reason is already
// a fully-formatted message (one of spec §4.F's fail-closed strings, or
// "blocked by <command>: <reason>" for an intentional block); dispatch
// does not wrap it further.
func blockedResult(use content.ContentBlock, reason string) content.ContentBlock {
	return content.NewToolResult(use.ID, reason, true)
}
