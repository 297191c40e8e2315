// Package agent implements the reason-act loop that answers questions about
// a codebase: the model thinks, requests read-only tool calls, observes the
// results (file reads compressed into memory), and concludes with an answer.
//
// Information Hiding:
// - The decision wire protocol is hidden in parsing helpers
// - Prompt assembly is hidden from callers
// - Step accounting and context bounding are internal
package agent

import (
	"github.com/richinex/virgil/session"
)

const (
	// DefaultMaxSteps bounds the reason-act iterations for one question.
	DefaultMaxSteps = 10
)

// Config holds the tunable knobs of an agent.
type Config struct {
	// Name identifies the agent in logs.
	Name string

	// CodeDir is the root directory the tools are confined to.
	CodeDir string

	// Instructions is extra guidance appended to the built-in system
	// prompt. Optional.
	Instructions string

	// MaxSteps bounds reason-act iterations per question. When the budget
	// runs out the agent is forced to conclude with what it has.
	MaxSteps int

	// ObservationWindow is how many recent raw observations stay verbatim
	// in the model's context.
	ObservationWindow int

	// TokenBudget bounds the estimated prompt cost of the dialogue view.
	TokenBudget int

	// ClearPolicy selects what Clear removes.
	ClearPolicy session.ClearPolicy
}

// withDefaults fills zero values with defaults.
func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "virgil"
	}
	if c.CodeDir == "" {
		c.CodeDir = "."
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	if c.ObservationWindow <= 0 {
		c.ObservationWindow = session.DefaultObservationWindow
	}
	if c.TokenBudget <= 0 {
		c.TokenBudget = session.DefaultTokenBudget
	}
	return c
}
