package tools

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry manages available tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry, replacing any existing tool with the
// same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Metadata().Name] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Has reports whether a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns the sorted names of all registered tools.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns metadata for all registered tools, sorted by name.
func (r *Registry) List() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	metas := make([]Metadata, 0, len(r.tools))
	for _, t := range r.tools {
		metas = append(metas, t.Metadata())
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })
	return metas
}

// Describe renders all registered tools as a prompt-ready catalog, one tool
// per block with its parameters.
func (r *Registry) Describe() string {
	var b strings.Builder
	for _, meta := range r.List() {
		fmt.Fprintf(&b, "- %s: %s\n", meta.Name, meta.Description)
		for _, p := range meta.Parameters {
			req := "optional"
			if p.Required {
				req = "required"
			}
			fmt.Fprintf(&b, "    %s (%s, %s): %s", p.Name, p.Type, req, p.Description)
			if p.Default != "" {
				fmt.Fprintf(&b, " (default %s)", p.Default)
			}
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// ValidateCall checks that the call names a registered tool and carries every
// required argument. Validation failures are reported per call so one bad
// call never blocks its siblings.
func (r *Registry) ValidateCall(call Call) error {
	t, ok := r.Get(call.Tool)
	if !ok {
		return fmt.Errorf("unknown tool %q (available: %s)", call.Tool, strings.Join(r.Names(), ", "))
	}
	for _, p := range t.Metadata().Parameters {
		if p.Required && call.Args.String(p.Name, "") == "" {
			return fmt.Errorf("tool %q: missing required argument %q", call.Tool, p.Name)
		}
	}
	return nil
}
