package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS conversations (
	session_id TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);`

// SqliteStorage persists conversations in a SQLite database, one row per
// session with the conversation serialized as JSON.
type SqliteStorage struct {
	db *sql.DB
}

var _ ConversationStorage = (*SqliteStorage)(nil)

// OpenSqlite opens (and if needed creates) a conversation database at path,
// creating parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStorage, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SqliteStorage{db: db}, nil
}

// Save upserts the conversation row.
func (s *SqliteStorage) Save(ctx context.Context, conv *Conversation) error {
	stored := *conv
	stored.UpdatedAt = time.Now()
	payload, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("serialize conversation: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (session_id, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			payload    = excluded.payload,
			updated_at = excluded.updated_at`,
		stored.SessionID, string(payload), stored.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save session %s: %w", conv.SessionID, err)
	}
	return nil
}

// Load reads and deserializes the conversation row.
func (s *SqliteStorage) Load(ctx context.Context, sessionID string) (*Conversation, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM conversations WHERE session_id = ?`, sessionID).
		Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	var conv Conversation
	if err := json.Unmarshal([]byte(payload), &conv); err != nil {
		return nil, fmt.Errorf("deserialize session %s: %w", sessionID, err)
	}
	return &conv, nil
}

// Delete removes a session row.
func (s *SqliteStorage) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// List returns all session IDs, sorted.
func (s *SqliteStorage) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id FROM conversations ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (s *SqliteStorage) Close() error {
	return s.db.Close()
}
