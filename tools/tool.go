// Package tools provides the read-only tool system for the code-reading agent.
//
// Information Hiding:
// - Tool execution details hidden behind interface
// - Tool parameters and schemas hidden in implementations
// - Registry implementation details hidden from consumers
package tools

import (
	"context"
	"fmt"
	"strconv"
)

// Parameter defines a parameter schema for a tool.
// All arguments travel as strings on the wire; tools convert as needed.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Default     string `json:"default,omitempty"`
}

// Metadata describes what a tool does and how to use it.
type Metadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
}

// String returns a short representation of the tool metadata.
func (m Metadata) String() string {
	return fmt.Sprintf("%s: %s", m.Name, m.Description)
}

// Args holds named string arguments for a tool call.
type Args map[string]string

// String returns the named argument or a default when absent or empty.
func (a Args) String(name, def string) string {
	if v, ok := a[name]; ok && v != "" {
		return v
	}
	return def
}

// Int returns the named argument parsed as an integer, or a default when
// absent. A present but unparseable value is an error.
func (a Args) Int(name string, def int) (int, error) {
	v, ok := a[name]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("argument %q: expected integer, got %q", name, v)
	}
	return n, nil
}

// Bool returns the named argument parsed as a boolean, defaulting to false.
func (a Args) Bool(name string) bool {
	v, err := strconv.ParseBool(a[name])
	return err == nil && v
}

// Call is a single tool invocation requested by the model.
// CallID is unique within one reasoning step.
type Call struct {
	CallID string `json:"call_id"`
	Tool   string `json:"tool"`
	Args   Args   `json:"args"`
}

// Observation is the outcome of one tool call. Observations returned from a
// batch preserve the CallID order of the originating calls.
type Observation struct {
	CallID      string
	Tool        string
	Output      string
	Success     bool
	ErrorDetail string
}

// Failure creates a failed observation for a call.
func Failure(call Call, detail string) Observation {
	return Observation{
		CallID:      call.CallID,
		Tool:        call.Tool,
		Success:     false,
		ErrorDetail: detail,
	}
}

// Tool is the interface all tools implement. Every tool is a side-effect-free
// query over the codebase, so duplicate calls are always safe.
type Tool interface {
	// Metadata returns tool metadata (name, description, parameters).
	Metadata() Metadata

	// Execute runs the tool with the given arguments.
	Execute(ctx context.Context, args Args) (string, error)
}
