// Package storage persists conversations across runs. Persistence is
// opt-in at the CLI level; the agent itself never touches it.
//
// Information Hiding:
// - Serialization format hidden in implementations
// - Backend details (SQLite schema, map layout) hidden behind the interface
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/richinex/virgil/memory"
	"github.com/richinex/virgil/session"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// Conversation is the persistable state of one session: the dialogue turns
// and the memorized file records.
type Conversation struct {
	SessionID string           `json:"session_id"`
	Turns     []session.Turn   `json:"turns"`
	Records   []*memory.Record `json:"records"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// ConversationStorage stores conversations keyed by session ID.
type ConversationStorage interface {
	// Save writes the conversation, replacing any existing one with the
	// same session ID.
	Save(ctx context.Context, conv *Conversation) error

	// Load returns the conversation for a session ID, or ErrNotFound.
	Load(ctx context.Context, sessionID string) (*Conversation, error)

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// List returns all stored session IDs, sorted.
	List(ctx context.Context) ([]string, error)

	// Close releases backend resources.
	Close() error
}
