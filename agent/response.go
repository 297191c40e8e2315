package agent

import (
	"time"

	"github.com/richinex/virgil/llm"
)

// Outcome classifies how a question was concluded.
type Outcome string

const (
	// OutcomeSuccess means the model concluded on its own.
	OutcomeSuccess Outcome = "success"

	// OutcomeStepLimit means the step budget ran out and the model was
	// forced to answer with what it had gathered.
	OutcomeStepLimit Outcome = "step_limit"
)

// Response is the result of one question.
type Response struct {
	// Answer is the final answer text.
	Answer string

	// Outcome tells whether the model concluded voluntarily.
	Outcome Outcome

	// Steps is how many reason-act iterations ran.
	Steps int

	// LLMCalls counts model calls made for this question, including the
	// narrow compression calls.
	LLMCalls int

	// Usage is accumulated token usage across those calls.
	Usage llm.TokenUsage

	// Elapsed is wall time spent answering.
	Elapsed time.Duration
}

// Status summarizes an agent's current state for reporting.
type Status struct {
	Name          string
	Model         string
	CodeDir       string
	Questions     int
	Answers       int
	Turns         int
	MemoryRecords int
	LastSteps     int
	LLMCalls      int
	Usage         llm.TokenUsage
}
