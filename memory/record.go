// Package memory compresses raw file contents into small structured records
// so the agent can keep what it learned about a codebase without carrying
// full file bodies in its context.
//
// Information Hiding:
// - Compression prompt and parsing hidden from callers
// - Record storage and ordering hidden behind Store
package memory

import (
	"fmt"
	"strings"
	"time"
)

// Record is the compressed knowledge the agent holds about one source file.
// A record replaces the raw content of the file it was distilled from;
// re-reading the same file overwrites the record.
type Record struct {
	// SourceKey identifies the file this record was distilled from,
	// normally its path relative to the code directory.
	SourceKey string `json:"source_key"`

	// Overview is a one-or-two sentence summary of what the file is for.
	Overview string `json:"overview"`

	// KeyDefinitions lists the important functions, types, classes and
	// constants the file defines.
	KeyDefinitions []string `json:"key_definitions"`

	// CoreLogic describes the main control flow or algorithm.
	CoreLogic string `json:"core_logic"`

	// Dependencies lists imports and other files this one relies on.
	Dependencies []string `json:"dependencies"`

	// OpenQuestions notes anything the summary could not resolve.
	OpenQuestions string `json:"open_questions"`

	// Uncompressed marks a degraded record: compression failed and Excerpt
	// holds raw content instead of a distillation.
	Uncompressed bool `json:"uncompressed,omitempty"`

	// Excerpt is the leading slice of the raw content, kept only on
	// degraded records.
	Excerpt string `json:"excerpt,omitempty"`

	// UpdatedAt is when the record was last written.
	UpdatedAt time.Time `json:"updated_at"`
}

// String renders the record in the compact form embedded into prompts.
func (r *Record) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n", r.SourceKey)
	if r.Uncompressed {
		b.WriteString("(compression unavailable, raw excerpt follows)\n")
		b.WriteString(r.Excerpt)
		if !strings.HasSuffix(r.Excerpt, "\n") {
			b.WriteByte('\n')
		}
		return b.String()
	}
	fmt.Fprintf(&b, "Overview: %s\n", r.Overview)
	if len(r.KeyDefinitions) > 0 {
		fmt.Fprintf(&b, "Key definitions: %s\n", strings.Join(r.KeyDefinitions, "; "))
	}
	if r.CoreLogic != "" {
		fmt.Fprintf(&b, "Core logic: %s\n", r.CoreLogic)
	}
	if len(r.Dependencies) > 0 {
		fmt.Fprintf(&b, "Dependencies: %s\n", strings.Join(r.Dependencies, ", "))
	}
	if r.OpenQuestions != "" {
		fmt.Fprintf(&b, "Open questions: %s\n", r.OpenQuestions)
	}
	return b.String()
}
