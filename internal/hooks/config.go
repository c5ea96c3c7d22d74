// Package hooks loads the declarative hook configuration and runs
// PreToolUse (guard/observe), PostToolUse, and Stop hooks as subprocesses,
// persisting their signals to an atomically-written convergence file.
package hooks

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Event names the three points in the turn loop a hook can attach to.
type Event string

const (
	EventPreToolUse  Event = "pre_tool_use"
	EventPostToolUse Event = "post_tool_use"
	EventStop        Event = "stop"
)

// Phase distinguishes the two PreToolUse sub-phases: Guard runs
// fail-closed and can block a tool call; Observe always runs (fail-open)
// and receives the guard's outcome but cannot itself block.
type Phase string

const (
	PhaseGuard   Phase = "guard"
	PhaseObserve Phase = "observe"
)

const (
	defaultPreToolUseTimeoutMs  = 5000
	defaultPostToolUseTimeoutMs = 5000
	defaultStopTimeoutMs        = 3000
)

// HookEntry is one [[hooks]] table in the configuration file.
type HookEntry struct {
	Event     Event  `toml:"event"`
	Command   string `toml:"command"`
	MatchTool string `toml:"match_tool"`
	Phase     Phase  `toml:"phase"`
	TimeoutMs int    `toml:"timeout_ms"`
}

// Config is the top-level table-of-tables hook configuration.
type Config struct {
	Hooks []HookEntry `toml:"hooks"`
}

// normalize fills in the event-specific defaults a bare entry omits:
// PreToolUse entries default to the guard phase, and every entry gets
// its event's default timeout when unset.
func (c *Config) normalize() {
	for i := range c.Hooks {
		entry := &c.Hooks[i]
		if entry.Event == EventPreToolUse && entry.Phase == "" {
			entry.Phase = PhaseGuard
		}
		if entry.TimeoutMs > 0 {
			continue
		}
		switch entry.Event {
		case EventPreToolUse:
			entry.TimeoutMs = defaultPreToolUseTimeoutMs
		case EventPostToolUse:
			entry.TimeoutMs = defaultPostToolUseTimeoutMs
		case EventStop:
			entry.TimeoutMs = defaultStopTimeoutMs
		}
	}
}

// matches reports whether entry applies to toolName: an empty MatchTool
// matches any tool.
func (entry HookEntry) matches(toolName string) bool {
	return entry.MatchTool == "" || entry.MatchTool == toolName
}

// LoadConfig reads and parses the hook configuration at path. A missing
// file yields an empty Config (no hooks configured), not an error.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read hook config: %w", err)
	}
	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse hook config: %w", err)
	}
	config.normalize()
	return &config, nil
}
