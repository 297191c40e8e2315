package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/richinex/virgil/llm"
)

// TurnKind classifies a transcript turn.
type TurnKind int

const (
	// TurnUser is a question from the user.
	TurnUser TurnKind = iota

	// TurnToolCall records one decision step verbatim, the model's thought
	// and the batch of tool calls it requested.
	TurnToolCall

	// TurnObservation is a raw tool result fed back to the model.
	TurnObservation

	// TurnMemoryRef stands in for a file read whose content now lives in
	// memory as a compressed record.
	TurnMemoryRef

	// TurnAnswer is a final answer delivered to the user.
	TurnAnswer
)

// String returns the kind name for logging.
func (k TurnKind) String() string {
	switch k {
	case TurnUser:
		return "user"
	case TurnToolCall:
		return "tool_call"
	case TurnObservation:
		return "observation"
	case TurnMemoryRef:
		return "memory_ref"
	case TurnAnswer:
		return "answer"
	default:
		return "unknown"
	}
}

// Turn is one entry in the transcript.
type Turn struct {
	Kind    TurnKind `json:"kind"`
	Content string   `json:"content,omitempty"`

	// Tool and CallID are set on tool-call and observation turns.
	Tool   string `json:"tool,omitempty"`
	CallID string `json:"call_id,omitempty"`

	// MemoryKey is set on memory-ref turns and names the stored record.
	MemoryKey string `json:"memory_key,omitempty"`

	elided bool
}

// ClearPolicy selects what a conversation reset removes.
type ClearPolicy int

const (
	// ClearAll wipes dialogue and memory both.
	ClearAll ClearPolicy = iota

	// ClearKeepMemory wipes the dialogue but keeps memorized file records,
	// so a fresh conversation can still lean on what was already read.
	ClearKeepMemory
)

// ParseClearPolicy maps a configuration string to a policy. Unrecognized
// values fall back to ClearAll.
func ParseClearPolicy(s string) ClearPolicy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "keep-memory", "keep_memory", "keepmemory":
		return ClearKeepMemory
	default:
		return ClearAll
	}
}

const (
	// DefaultObservationWindow is how many recent observation turns stay
	// verbatim in a snapshot; older ones are elided to a stub.
	DefaultObservationWindow = 4

	// DefaultTokenBudget bounds the estimated prompt cost of a snapshot.
	DefaultTokenBudget = 24000
)

const elidedStub = "(observation elided to save context; re-run the tool if needed)"

// Stats summarizes the transcript for status reporting.
type Stats struct {
	Turns          int
	Questions      int
	Answers        int
	EstimatedToken int
}

// Transcript is the bounded dialogue history. Appends are cheap; bounding
// happens at snapshot time so nothing is ever lost from the raw log within
// a conversation. Safe for concurrent use.
type Transcript struct {
	mu      sync.RWMutex
	turns   []Turn
	window  int
	budget  int
	counter TokenCounter
}

// NewTranscript creates a transcript with default window and budget.
func NewTranscript() *Transcript {
	return &Transcript{
		window:  DefaultObservationWindow,
		budget:  DefaultTokenBudget,
		counter: HeuristicCounter,
	}
}

// WithObservationWindow overrides how many recent observations a snapshot
// keeps verbatim.
func (t *Transcript) WithObservationWindow(n int) *Transcript {
	if n > 0 {
		t.window = n
	}
	return t
}

// WithTokenBudget overrides the snapshot token budget.
func (t *Transcript) WithTokenBudget(n int) *Transcript {
	if n > 0 {
		t.budget = n
	}
	return t
}

// WithTokenCounter sets the counter used for budget pruning.
func (t *Transcript) WithTokenCounter(c TokenCounter) *Transcript {
	if c != nil {
		t.counter = c
	}
	return t
}

// Append adds a turn to the transcript.
func (t *Transcript) Append(turn Turn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = append(t.turns, turn)
}

// Len returns the number of turns.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns)
}

// Clear drops all turns.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = nil
}

// Turns returns a copy of all turns, for persistence.
func (t *Transcript) Turns() []Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Restore replaces the transcript with previously persisted turns.
func (t *Transcript) Restore(turns []Turn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = make([]Turn, len(turns))
	copy(t.turns, turns)
}

// Stats returns summary counts over the transcript.
func (t *Transcript) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := Stats{Turns: len(t.turns)}
	for _, turn := range t.turns {
		switch turn.Kind {
		case TurnUser:
			s.Questions++
		case TurnAnswer:
			s.Answers++
		}
		s.EstimatedToken += t.counter(turn.Content)
	}
	return s
}

// Snapshot renders the transcript as chat messages bounded by the
// observation window and the token budget. The bounding is applied to the
// rendered view only; appended turns are never mutated or dropped from the
// transcript itself.
//
// Observations older than the window render as a short stub. When the
// rendered view still exceeds the token budget, the oldest observation
// turns are stubbed out first, oldest to newest; user questions, decision
// steps, and answers survive pruning.
func (t *Transcript) Snapshot() []llm.ChatMessage {
	t.mu.RLock()
	view := make([]Turn, len(t.turns))
	copy(view, t.turns)
	t.mu.RUnlock()

	applyObservationWindow(view, t.window)
	t.applyTokenBudget(view)

	messages := make([]llm.ChatMessage, 0, len(view))
	for _, turn := range view {
		messages = append(messages, renderTurn(turn))
	}
	return messages
}

// applyObservationWindow elides all but the last `window` observation turns.
func applyObservationWindow(view []Turn, window int) {
	seen := 0
	for i := len(view) - 1; i >= 0; i-- {
		if view[i].Kind != TurnObservation {
			continue
		}
		seen++
		if seen > window {
			view[i].elided = true
		}
	}
}

// applyTokenBudget stubs the oldest elidable turns until the view fits.
func (t *Transcript) applyTokenBudget(view []Turn) {
	total := 0
	for _, turn := range view {
		total += t.counter(renderTurn(turn).Content)
	}
	for i := 0; i < len(view) && total > t.budget; i++ {
		turn := view[i]
		if turn.elided || !elidable(turn.Kind) {
			continue
		}
		before := t.counter(renderTurn(turn).Content)
		view[i].elided = true
		after := t.counter(renderTurn(view[i]).Content)
		total += after - before
	}
}

func elidable(k TurnKind) bool {
	return k == TurnObservation
}

// renderTurn maps a turn to the chat message the model sees.
func renderTurn(turn Turn) llm.ChatMessage {
	switch turn.Kind {
	case TurnUser:
		return llm.UserMessage(turn.Content)
	case TurnToolCall:
		return llm.AssistantMessage(turn.Content)
	case TurnObservation:
		if turn.elided {
			return llm.UserMessage(fmt.Sprintf("Observation [%s]: %s", turn.Tool, elidedStub))
		}
		return llm.UserMessage(fmt.Sprintf("Observation [%s]: %s", turn.Tool, turn.Content))
	case TurnMemoryRef:
		return llm.UserMessage(fmt.Sprintf(
			"Observation [%s]: content of %s compressed into memory; see the memorized files section.",
			turn.Tool, turn.MemoryKey))
	case TurnAnswer:
		return llm.AssistantMessage(turn.Content)
	default:
		return llm.UserMessage(turn.Content)
	}
}
