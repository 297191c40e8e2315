package agent

import (
	"fmt"
	"strings"
)

const basePrompt = `You are %s, a code-reading assistant. You answer questions about the codebase rooted at %s by exploring it with read-only tools. You never modify files.

Work in steps. Each step, reply with exactly one JSON object:

{"thought": "what you are trying to find out",
 "actions": [{"tool": "tool_name", "args": {"arg": "value"}}],
 "is_final": false,
 "final_answer": ""}

Rules:
- Request several tool calls in one step when they are independent; they run in parallel.
- File contents you read are compressed into the memorized files section below. Do not re-read a memorized file unless you pass "force": "true".
- When you can answer the question, reply with "is_final": true and the answer in "final_answer", and no actions.
- Cite file paths in your answers.
- Reply with the JSON object only, no surrounding text.

Available tools:
%s`

// buildSystemPrompt assembles the system message: base instructions, the
// tool catalog, extra per-agent instructions, and the memorized files block.
func (a *Agent) buildSystemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, basePrompt, a.config.Name, a.config.CodeDir, a.registry.Describe())
	if a.config.Instructions != "" {
		b.WriteString("\n")
		b.WriteString(a.config.Instructions)
		b.WriteString("\n")
	}
	if memoryBlock := a.memory.Render(); memoryBlock != "" {
		b.WriteString("\n")
		b.WriteString(memoryBlock)
	}
	return b.String()
}
