// Package turn drives the bounded agent turn loop: it sends the
// conversation to the chat service, dispatches any requested tools, and
// repeats until the assistant reaches a natural end, a hard cap is hit,
// or a hook signals convergence.
package turn

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/opencoreai/turnengine/internal/classify"
	"github.com/opencoreai/turnengine/internal/config"
	"github.com/opencoreai/turnengine/internal/content"
	"github.com/opencoreai/turnengine/internal/conversation"
	"github.com/opencoreai/turnengine/internal/dispatch"
	"github.com/opencoreai/turnengine/internal/hooks"
	"github.com/opencoreai/turnengine/internal/logging"
	"github.com/opencoreai/turnengine/internal/session"
	"github.com/opencoreai/turnengine/internal/transport"
)

// Bounds on the loop, per turn (spec §4.G).
const (
	MaxToolIterations = 50
	MaxContinuations  = 3
)

// StopReason is why the loop stopped. This is the loop's own closed
// enumeration, distinct from content.StopReason (the per-call wire
// value): a single run can make many calls, each with its own wire stop
// reason, before the loop itself terminates for one of these reasons.
type StopReason string

const (
	StopEndTurn           StopReason = "end_turn"
	StopIterationLimit    StopReason = "iteration_limit"
	StopAPIError          StopReason = "api_error"
	StopContinuationCap   StopReason = "continuation_cap"
	StopBlockLimitConsec  StopReason = "block_limit_consecutive"
	StopBlockLimitTotal   StopReason = "block_limit_total"
	StopConvergenceSignal StopReason = "convergence_signal"
	StopBudgetExceeded    StopReason = "budget_exceeded"
)

// maxTokensAction is the closed set of responses to a max_tokens wire
// stop reason.
type maxTokensAction int

const (
	actionBreakEmpty maxTokensAction = iota
	actionDispatchTools
	actionContinue
	actionBreakCapReached
)

// Request configures one call to Runner.Run.
type Request struct {
	RunID        string
	SystemPrompt string
	Model        string
	Messages     []content.Message
	// CWD is reported to hooks as their working-directory field.
	CWD string
}

// Result is the outcome of a full run of the turn loop.
type Result struct {
	Messages    []content.Message
	StopReason  StopReason
	Usage       content.Usage
	ModelUsage  map[string]content.Usage
	CostUSD     float64
	NumCalls    int
	Duration    time.Duration
	APIDuration time.Duration
}

// Runner wires together the streaming client, retrier, conversation log,
// tool dispatcher, and hook runner into the bounded turn loop.
type Runner struct {
	Client    *transport.Client
	Retrier   *classify.Retrier
	Registry  *dispatch.Registry
	Hooks     *hooks.Runner
	Sessions  *session.Store
	Provider  *config.ProviderConfig
	Sink      transport.Sink
	MaxBudget float64
}

// Run executes one bounded turn-loop run. It always returns a Result, even
// on a permanent error, so the caller can inspect partial progress; err
// is non-nil only for conditions the caller cannot recover from (e.g. a
// nil Client).
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if r.Client == nil {
		return nil, fmt.Errorf("turn: client is required")
	}
	retrier := r.Retrier
	if retrier == nil {
		retrier = classify.NewRetrier()
	}
	registry := r.Registry
	if registry == nil {
		registry = dispatch.NewRegistry()
	}

	logger := logging.FromContext(ctx)
	if r.Hooks != nil {
		r.Hooks.CWD = req.CWD
	}
	log := conversation.NewLog(req.Messages...)
	dispatcher := dispatch.NewDispatcher(registry, r.hooks())
	counter := &dispatch.BlockCounter{}

	result := &Result{ModelUsage: map[string]content.Usage{}}
	model := req.Model
	if model == "" && r.Provider != nil {
		model = r.Provider.DefaultModel
	}

	startTime := time.Now()
	toolIterations := 0
	continuations := 0
	lastInputTokens := 0
	usedFallback := false

	for {
		if toolIterations >= MaxToolIterations {
			log.ApplyRecover()
			result.Messages = log.Messages()
			result.StopReason = StopIterationLimit
			result.Duration = time.Since(startTime)
			r.runStopHook(ctx, StopIterationLimit, toolIterations, result.Usage.Total())
			return result, nil
		}

		log.ApplyTrim(lastInputTokens)

		callStart := time.Now()
		callResult, err := retrier.Do(ctx, func(ctx context.Context) (*transport.Result, error) {
			return r.Client.Send(ctx, transport.Request{
				Model:     model,
				MaxTokens: 8192,
				System:    req.SystemPrompt,
				Messages:  log.Messages(),
				Tools:     registry.Specs(),
			}, r.Sink)
		})
		result.APIDuration += time.Since(callStart)
		result.NumCalls++

		if err != nil {
			if classify.Classify(err) == classify.Permanent && r.Provider != nil && r.Provider.FallbackModel != "" && !usedFallback {
				logger.Warn().Err(err).Str("fallback_model", r.Provider.FallbackModel).Msg("primary model failed permanently, trying fallback")
				usedFallback = true
				model = r.Provider.FallbackModel
				continue
			}
			log.ApplyRecover()
			result.Messages = log.Messages()
			result.StopReason = StopAPIError
			result.Duration = time.Since(startTime)
			r.runStopHook(ctx, StopAPIError, toolIterations, result.Usage.Total())
			r.persist(req.RunID, "api_error", err.Error())
			return result, nil
		}

		lastInputTokens = callResult.Usage.InputTokens
		result.Usage = result.Usage.Add(callResult.Usage)
		accumulateModelUsage(result.ModelUsage, model, callResult.Usage)
		if r.Provider != nil {
			result.CostUSD += config.EstimateCost(model, callResult.Usage.InputTokens, callResult.Usage.OutputTokens, r.Provider.Pricing)
			if r.effectiveBudget() > 0 && result.CostUSD > r.effectiveBudget() {
				assistantMessage := content.Message{Role: content.RoleAssistant, Content: callResult.Blocks}.EnsureNonEmptyText()
				log.Append(assistantMessage)
				log.ApplyRecover()
				result.Messages = log.Messages()
				result.StopReason = StopBudgetExceeded
				result.Duration = time.Since(startTime)
				r.runStopHook(ctx, StopBudgetExceeded, toolIterations, result.Usage.Total())
				return result, nil
			}
		}

		assistantMessage := content.Message{Role: content.RoleAssistant, Content: callResult.Blocks}.EnsureNonEmptyText()
		log.Append(assistantMessage)

		toolUses := assistantMessage.ToolUseBlocks()

		switch callResult.StopReason {
		case content.StopEndTurn:
			result.Messages = log.Messages()
			result.StopReason = StopEndTurn
			result.Duration = time.Since(startTime)
			r.runStopHook(ctx, StopEndTurn, toolIterations, result.Usage.Total())
			return result, nil

		case content.StopMaxTokens:
			action := classifyMaxTokens(toolUses, continuations)
			blank := true
			for _, block := range callResult.Blocks {
				if block.Type != content.BlockText || strings.TrimSpace(block.Text) != "" {
					blank = false
				}
			}
			if blank {
				action = actionBreakEmpty
			}
			switch action {
			case actionBreakEmpty:
				result.Messages = log.Messages()
				result.StopReason = StopEndTurn
				result.Duration = time.Since(startTime)
				r.runStopHook(ctx, StopEndTurn, toolIterations, result.Usage.Total())
				return result, nil
			case actionDispatchTools:
				// fall through to tool dispatch below
			case actionContinue:
				continuations++
				log.Append(content.NewTextMessage(content.RoleUser, "continue"))
				continue
			case actionBreakCapReached:
				log.ApplyRecover()
				result.Messages = log.Messages()
				result.StopReason = StopContinuationCap
				result.Duration = time.Since(startTime)
				r.runStopHook(ctx, StopContinuationCap, toolIterations, result.Usage.Total())
				return result, nil
			}
			fallthrough

		case content.StopToolUse:
			if len(toolUses) == 0 {
				result.Messages = log.Messages()
				result.StopReason = StopEndTurn
				result.Duration = time.Since(startTime)
				r.runStopHook(ctx, StopEndTurn, toolIterations, result.Usage.Total())
				return result, nil
			}

			outcome := dispatcher.Dispatch(ctx, toolUses, counter, toolIterations)

			if outcome.LimitHit != dispatch.BlockLimitNone {
				log.PopTrailing()
				result.Messages = log.Messages()
				switch outcome.LimitHit {
				case dispatch.BlockLimitConsecutive:
					result.StopReason = StopBlockLimitConsec
				case dispatch.BlockLimitTotal:
					result.StopReason = StopBlockLimitTotal
				}
				result.Duration = time.Since(startTime)
				r.runStopHook(ctx, result.StopReason, toolIterations, result.Usage.Total())
				return result, nil
			}

			toolResultMessage := content.Message{Role: content.RoleUser, Content: outcome.Results}
			log.Append(toolResultMessage)
			toolIterations++

			if converged, signal := r.convergenceSignal(); converged {
				logger.Info().Str("signal", signal).Msg("hook signaled convergence")
				result.Messages = log.Messages()
				result.StopReason = StopConvergenceSignal
				result.Duration = time.Since(startTime)
				r.runStopHook(ctx, StopConvergenceSignal, toolIterations, result.Usage.Total())
				return result, nil
			}

		default:
			result.Messages = log.Messages()
			result.StopReason = StopEndTurn
			result.Duration = time.Since(startTime)
			r.runStopHook(ctx, StopEndTurn, toolIterations, result.Usage.Total())
			return result, nil
		}
	}
}

// classifyMaxTokens implements the MaxTokensAction decision table for a
// response with content: a truncated response that still carries
// complete tool_use blocks dispatches them as-is; otherwise the loop asks
// the assistant to continue, up to MaxContinuations times. An empty
// response with nothing to act on is mapped to actionBreakEmpty by Run
// before this table applies, and ends the turn.
func classifyMaxTokens(toolUses []content.ContentBlock, continuations int) maxTokensAction {
	if len(toolUses) > 0 {
		return actionDispatchTools
	}
	if continuations >= MaxContinuations {
		return actionBreakCapReached
	}
	return actionContinue
}

func (r *Runner) hooks() dispatch.HookRunner {
	if r.Hooks == nil {
		return dispatch.NoopHooks{}
	}
	return r.Hooks
}

func (r *Runner) runStopHook(ctx context.Context, reason StopReason, toolIterations int, totalTokens int) {
	if r.Hooks != nil {
		r.Hooks.Stop(ctx, string(reason), toolIterations, totalTokens)
	}
}

func (r *Runner) convergenceSignal() (bool, string) {
	if r.Hooks == nil {
		return false, ""
	}
	return r.Hooks.Converged()
}

func (r *Runner) effectiveBudget() float64 {
	if r.MaxBudget > 0 {
		return r.MaxBudget
	}
	if r.Provider != nil {
		return r.Provider.MaxBudgetUSD
	}
	return 0
}

func (r *Runner) persist(runID, event, detail string) {
	if r.Sessions == nil || runID == "" {
		return
	}
	_ = r.Sessions.AppendEvent(runID, map[string]any{"event": event, "detail": detail})
}

func accumulateModelUsage(target map[string]content.Usage, model string, usage content.Usage) {
	target[model] = target[model].Add(usage)
}
