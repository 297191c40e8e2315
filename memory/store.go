package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/richinex/virgil/internal/json"
	"github.com/richinex/virgil/llm"
)

const (
	// DefaultMaxLines caps how much raw content is handed to the
	// compression model per file.
	DefaultMaxLines = 500

	// excerptLines is how much raw content a degraded record keeps when
	// compression fails.
	excerptLines = 40
)

const compressionSystemPrompt = `You compress source files into structured study notes.
Given a file path and its content, respond with a single JSON object:
{
  "overview": "one or two sentences on what the file is for",
  "key_definitions": ["important functions, types, classes, constants"],
  "core_logic": "the main control flow or algorithm, briefly",
  "dependencies": ["imports and files this one relies on"],
  "open_questions": "anything unclear, or empty string"
}
Be factual and terse. Respond with the JSON object only.`

// compressionResult is the wire shape the compression model returns.
type compressionResult struct {
	Overview       string   `json:"overview"`
	KeyDefinitions []string `json:"key_definitions"`
	CoreLogic      string   `json:"core_logic"`
	Dependencies   []string `json:"dependencies"`
	OpenQuestions  string   `json:"open_questions"`
}

// Store holds compressed file records keyed by source path. All methods are
// safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	client   *llm.Client
	logger   zerolog.Logger
	maxLines int
	records  map[string]*Record
	order    []string
	usage    llm.TokenUsage
	calls    int
}

// NewStore creates a memory store that compresses via the given client.
func NewStore(client *llm.Client) *Store {
	return &Store{
		client:   client,
		logger:   zerolog.Nop(),
		maxLines: DefaultMaxLines,
		records:  make(map[string]*Record),
	}
}

// WithLogger sets the diagnostic logger.
func (s *Store) WithLogger(logger zerolog.Logger) *Store {
	s.logger = logger
	return s
}

// WithMaxLines overrides the raw-content cap fed to compression.
func (s *Store) WithMaxLines(n int) *Store {
	if n > 0 {
		s.maxLines = n
	}
	return s
}

// Compress distills raw file content into a record and stores it under
// sourceKey, overwriting any existing record for the same key. When the
// model call or the response parse fails, a degraded record holding a raw
// excerpt is stored instead so the observation is never lost. Only context
// cancellation is returned as an error.
func (s *Store) Compress(ctx context.Context, sourceKey, content string) (*Record, error) {
	truncated := truncateLines(content, s.maxLines)

	record, err := s.compressOnce(ctx, sourceKey, truncated)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn().Err(err).Str("source", sourceKey).
			Msg("compression failed, storing raw excerpt")
		record = &Record{
			SourceKey:    sourceKey,
			Uncompressed: true,
			Excerpt:      truncateLines(truncated, excerptLines),
			UpdatedAt:    time.Now(),
		}
	}

	s.mu.Lock()
	if _, exists := s.records[sourceKey]; !exists {
		s.order = append(s.order, sourceKey)
	}
	s.records[sourceKey] = record
	s.mu.Unlock()
	return record, nil
}

// compressOnce performs the narrow compression call and parses the result.
func (s *Store) compressOnce(ctx context.Context, sourceKey, content string) (*Record, error) {
	messages := []llm.ChatMessage{
		llm.SystemMessage(compressionSystemPrompt),
		llm.UserMessage(fmt.Sprintf("File: %s\n\n%s", sourceKey, content)),
	}
	raw, usage, err := s.client.ChatJSON(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("compression call: %w", err)
	}

	s.mu.Lock()
	s.calls++
	if usage != nil {
		s.usage.Add(usage)
	}
	s.mu.Unlock()

	result, err := json.Decode[compressionResult](raw)
	if err != nil {
		return nil, fmt.Errorf("compression response: %w", err)
	}
	if result.Overview == "" {
		return nil, fmt.Errorf("compression response: empty overview")
	}
	return &Record{
		SourceKey:      sourceKey,
		Overview:       result.Overview,
		KeyDefinitions: result.KeyDefinitions,
		CoreLogic:      result.CoreLogic,
		Dependencies:   result.Dependencies,
		OpenQuestions:  result.OpenQuestions,
		UpdatedAt:      time.Now(),
	}, nil
}

// Put stores a record directly, used when restoring a persisted
// conversation. Insertion order rules match Compress.
func (s *Store) Put(record *Record) {
	if record == nil || record.SourceKey == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.SourceKey]; !exists {
		s.order = append(s.order, record.SourceKey)
	}
	s.records[record.SourceKey] = record
}

// Get returns the record for a source key, if present.
func (s *Store) Get(sourceKey string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[sourceKey]
	return r, ok
}

// Has reports whether a record exists for the source key.
func (s *Store) Has(sourceKey string) bool {
	_, ok := s.Get(sourceKey)
	return ok
}

// All returns the records in first-insertion order. Overwriting a record
// keeps its original position.
func (s *Store) All() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Record, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.records[key])
	}
	return out
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear removes all records.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*Record)
	s.order = nil
}

// Render returns all records as one prompt-ready block, or an empty string
// when the store is empty.
func (s *Store) Render() string {
	records := s.All()
	if len(records) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Memorized files\n")
	for _, r := range records {
		b.WriteString(r.String())
	}
	return b.String()
}

// Usage returns accumulated token usage and model call count for
// compression.
func (s *Store) Usage() (llm.TokenUsage, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usage, s.calls
}

// truncateLines returns at most n leading lines of s.
func truncateLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[:n], "\n") + "\n... (truncated)"
}
