// Package session keeps the bounded conversational context of an agent:
// the turn-by-turn transcript and the token accounting that decides what
// still fits into a model call.
package session

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates how many tokens a string costs in a model prompt.
type TokenCounter func(text string) int

// HeuristicCounter approximates tokens as one per four characters. It is the
// offline default; exact counts only change when pruning kicks in, never
// what the agent says.
func HeuristicCounter(text string) int {
	return (len(text) + 3) / 4
}

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// NewTokenCounter returns a tiktoken-backed counter using the cl100k_base
// encoding. The encoding is loaded once; if loading fails (for example with
// no network access to fetch the BPE ranks) the heuristic counter is
// returned instead.
func NewTokenCounter() TokenCounter {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	if encoding == nil {
		return HeuristicCounter
	}
	return func(text string) int {
		return len(encoding.Encode(text, nil, nil))
	}
}
