package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/richinex/virgil/llm"
	"github.com/richinex/virgil/memory"
	"github.com/richinex/virgil/session"
	"github.com/richinex/virgil/tools"
)

const parseRetryPrompt = `Your last reply was not a valid decision: %s
Reply again with exactly one JSON object of the form
{"thought": "...", "actions": [{"tool": "...", "args": {...}}], "is_final": false, "final_answer": ""}
and no surrounding text.`

const concludePrompt = `You have used all your exploration steps. Based on what you have seen so far, reply now with {"thought": "...", "actions": [], "is_final": true, "final_answer": "your best answer"}. If you could not find enough, say so and state what you did find.`

// Agent answers questions about a codebase through a reason-act loop over
// read-only tools, compressing what it reads into memory. One question is
// processed at a time.
type Agent struct {
	config     Config
	client     *llm.Client
	registry   *tools.Registry
	executor   *tools.Executor
	memory     *memory.Store
	transcript *session.Transcript
	logger     zerolog.Logger
	stream     func(chunk string)

	mu        sync.Mutex
	llmCalls  int
	usage     llm.TokenUsage
	lastSteps int
}

// New creates an agent for the given provider and configuration. Tools are
// rooted at config.CodeDir.
func New(provider llm.Provider, config Config) *Agent {
	config = config.withDefaults()
	client := llm.NewClient(provider)
	registry := tools.DefaultRegistry(config.CodeDir)
	return &Agent{
		config:   config,
		client:   client,
		registry: registry,
		executor: tools.NewExecutor(registry),
		memory:   memory.NewStore(client),
		logger:   zerolog.Nop(),
		transcript: session.NewTranscript().
			WithObservationWindow(config.ObservationWindow).
			WithTokenBudget(config.TokenBudget),
	}
}

// WithLogger sets the diagnostic logger.
func (a *Agent) WithLogger(logger zerolog.Logger) *Agent {
	a.logger = logger
	a.memory.WithLogger(logger)
	return a
}

// WithRegistry replaces the tool registry, rebuilding the executor.
func (a *Agent) WithRegistry(registry *tools.Registry) *Agent {
	a.registry = registry
	a.executor = tools.NewExecutor(registry)
	return a
}

// WithStream sets a handler that receives model tokens as they arrive
// during reasoning calls. Compression calls are never streamed.
func (a *Agent) WithStream(handler func(chunk string)) *Agent {
	a.stream = handler
	return a
}

// WithTokenCounter sets the counter used for context bounding.
func (a *Agent) WithTokenCounter(counter session.TokenCounter) *Agent {
	a.transcript.WithTokenCounter(counter)
	return a
}

// Registry returns the agent's tool registry.
func (a *Agent) Registry() *tools.Registry { return a.registry }

// Memory returns the agent's memory store.
func (a *Agent) Memory() *memory.Store { return a.memory }

// Ask answers one question, running the reason-act loop until the model
// concludes or the step budget runs out. Earlier questions in the same
// conversation remain visible to the model.
func (a *Agent) Ask(ctx context.Context, question string) (*Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	before := a.accounting()

	a.transcript.Append(session.Turn{Kind: session.TurnUser, Content: question})
	a.logger.Info().Str("agent", a.config.Name).Str("question", question).Msg("question received")

	steps := 0
	for steps < a.config.MaxSteps {
		steps++
		decision, raw, err := a.decide(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", steps, err)
		}

		if decision.IsFinal {
			a.transcript.Append(session.Turn{Kind: session.TurnAnswer, Content: decision.FinalAnswer})
			a.lastSteps = steps
			a.logger.Info().Int("steps", steps).Msg("concluded")
			return a.response(decision.FinalAnswer, OutcomeSuccess, steps, before, start), nil
		}

		a.transcript.Append(session.Turn{Kind: session.TurnToolCall, Content: raw})
		if err := a.act(ctx, decision.Actions); err != nil {
			return nil, fmt.Errorf("step %d: %w", steps, err)
		}
	}

	answer, err := a.conclude(ctx)
	if err != nil {
		return nil, err
	}
	a.lastSteps = steps
	a.transcript.Append(session.Turn{Kind: session.TurnAnswer, Content: answer})
	a.logger.Warn().Int("steps", steps).Msg("step budget exhausted, forced conclusion")
	return a.response(answer, OutcomeStepLimit, steps, before, start), nil
}

// decide makes one model call and parses the decision, with a single
// corrective retry on a malformed reply. extra, when non-empty, is appended
// to the dialogue view as a user message for this call only.
func (a *Agent) decide(ctx context.Context, extra string) (*Decision, string, error) {
	raw, err := a.chat(ctx, extra)
	if err != nil {
		return nil, "", err
	}
	decision, parseErr := ParseDecision(raw)
	if parseErr == nil {
		return decision, raw, nil
	}

	a.logger.Warn().Err(parseErr).Msg("malformed decision, retrying once")
	retry := fmt.Sprintf(parseRetryPrompt, parseErr)
	if extra != "" {
		retry = extra + "\n\n" + retry
	}
	raw, err = a.chat(ctx, retry)
	if err != nil {
		return nil, "", err
	}
	decision, parseErr = ParseDecision(raw)
	if parseErr != nil {
		return nil, "", fmt.Errorf("model produced no parseable decision: %w", parseErr)
	}
	return decision, raw, nil
}

// chat sends system prompt + dialogue view (+ optional extra user message)
// and records call accounting.
func (a *Agent) chat(ctx context.Context, extra string) (string, error) {
	messages := append(
		[]llm.ChatMessage{llm.SystemMessage(a.buildSystemPrompt())},
		a.transcript.Snapshot()...,
	)
	if extra != "" {
		messages = append(messages, llm.UserMessage(extra))
	}

	var content string
	var usage *llm.TokenUsage
	var err error
	if a.stream != nil {
		content, usage, err = a.streamChat(ctx, messages)
	} else {
		content, usage, err = a.client.ChatJSON(ctx, messages)
	}
	if err != nil {
		return "", fmt.Errorf("model call: %w", err)
	}
	a.llmCalls++
	if usage != nil {
		a.usage.Add(usage)
	}
	return content, nil
}

// streamChat runs a reasoning call in streaming mode, forwarding tokens to
// the stream handler while accumulating the full reply.
func (a *Agent) streamChat(ctx context.Context, messages []llm.ChatMessage) (string, *llm.TokenUsage, error) {
	chunks := make(chan string, 16)
	var b strings.Builder
	done := make(chan struct{})
	go func() {
		defer close(done)
		for chunk := range chunks {
			b.WriteString(chunk)
			a.stream(chunk)
		}
	}()
	usage, err := a.client.StreamChat(ctx, messages, chunks)
	close(chunks)
	<-done
	if err != nil {
		return "", usage, err
	}
	return b.String(), usage, nil
}

// act executes one batch of actions and feeds the outcomes back into the
// transcript. Successful file reads are compressed into memory instead of
// being kept raw; reads of already-memorized files are short-circuited
// unless forced.
func (a *Agent) act(ctx context.Context, actions []Action) error {
	type slot struct {
		call      tools.Call
		memorized bool
	}
	slots := make([]slot, len(actions))
	var toRun []tools.Call
	for i, action := range actions {
		call := tools.Call{CallID: uuid.NewString(), Tool: action.Tool, Args: action.Args}
		slots[i] = slot{call: call}
		if a.shortCircuitRead(call) {
			slots[i].memorized = true
			continue
		}
		toRun = append(toRun, call)
	}

	observations := a.executor.Execute(ctx, toRun)
	if err := ctx.Err(); err != nil {
		return err
	}

	next := 0
	for _, s := range slots {
		if s.memorized {
			a.transcript.Append(session.Turn{
				Kind:      session.TurnMemoryRef,
				Tool:      s.call.Tool,
				CallID:    s.call.CallID,
				MemoryKey: s.call.Args.String("path", ""),
			})
			continue
		}
		obs := observations[next]
		next++
		if err := a.observe(ctx, s.call, obs); err != nil {
			return err
		}
	}
	return nil
}

// shortCircuitRead reports whether a read_file call targets an
// already-memorized file and is not forced.
func (a *Agent) shortCircuitRead(call tools.Call) bool {
	if call.Tool != "read_file" || call.Args.Bool("force") {
		return false
	}
	return a.memory.Has(call.Args.String("path", ""))
}

// observe turns one tool outcome into transcript turns, compressing
// successful file reads into memory.
func (a *Agent) observe(ctx context.Context, call tools.Call, obs tools.Observation) error {
	if !obs.Success {
		a.logger.Debug().Str("tool", obs.Tool).Str("error", obs.ErrorDetail).Msg("tool failed")
		a.transcript.Append(session.Turn{
			Kind:    session.TurnObservation,
			Tool:    obs.Tool,
			CallID:  obs.CallID,
			Content: "ERROR: " + obs.ErrorDetail,
		})
		return nil
	}

	if call.Tool == "read_file" {
		path := call.Args.String("path", "")
		if _, err := a.memory.Compress(ctx, path, obs.Output); err != nil {
			return err
		}
		a.transcript.Append(session.Turn{
			Kind:      session.TurnMemoryRef,
			Tool:      obs.Tool,
			CallID:    obs.CallID,
			MemoryKey: path,
		})
		return nil
	}

	a.transcript.Append(session.Turn{
		Kind:    session.TurnObservation,
		Tool:    obs.Tool,
		CallID:  obs.CallID,
		Content: obs.Output,
	})
	return nil
}

// conclude forces a final answer after the step budget is spent. One model
// call, no retries: a reply that is not a valid final decision is used as
// the answer verbatim, and a failed call degrades to a could-not-complete
// answer rather than an error, unless the context was cancelled.
func (a *Agent) conclude(ctx context.Context) (string, error) {
	raw, err := a.chat(ctx, concludePrompt)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		a.logger.Error().Err(err).Msg("forced conclusion failed")
		return "I could not complete the investigation within the step budget, and the final summarization call failed. Please retry or narrow the question.", nil
	}
	if decision, parseErr := ParseDecision(raw); parseErr == nil && decision.FinalAnswer != "" {
		return decision.FinalAnswer, nil
	}
	return raw, nil
}

// accounting snapshots cumulative model-call counts and token usage,
// including the memory store's compression calls.
type accounting struct {
	calls int
	usage llm.TokenUsage
}

func (a *Agent) accounting() accounting {
	memUsage, memCalls := a.memory.Usage()
	usage := a.usage
	usage.Add(&memUsage)
	return accounting{calls: a.llmCalls + memCalls, usage: usage}
}

// response assembles the result of one question from the accounting delta.
func (a *Agent) response(answer string, outcome Outcome, steps int, before accounting, start time.Time) *Response {
	now := a.accounting()
	return &Response{
		Answer:   answer,
		Outcome:  outcome,
		Steps:    steps,
		LLMCalls: now.calls - before.calls,
		Usage: llm.TokenUsage{
			PromptTokens:     now.usage.PromptTokens - before.usage.PromptTokens,
			CompletionTokens: now.usage.CompletionTokens - before.usage.CompletionTokens,
			TotalTokens:      now.usage.TotalTokens - before.usage.TotalTokens,
		},
		Elapsed: time.Since(start),
	}
}

// Clear resets the conversation according to the configured policy.
func (a *Agent) Clear() {
	a.ClearWith(a.config.ClearPolicy)
}

// ClearWith resets the conversation with an explicit policy.
func (a *Agent) ClearWith(policy session.ClearPolicy) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.transcript.Clear()
	if policy == session.ClearAll {
		a.memory.Clear()
	}
	a.logger.Info().Str("policy", policyName(policy)).Msg("conversation cleared")
}

func policyName(p session.ClearPolicy) string {
	if p == session.ClearKeepMemory {
		return "keep-memory"
	}
	return "all"
}

// History returns the transcript turns, for persistence.
func (a *Agent) History() []session.Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.transcript.Turns()
}

// RestoreConversation loads previously persisted turns and memory records,
// replacing the current conversation.
func (a *Agent) RestoreConversation(turns []session.Turn, records []*memory.Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.transcript.Restore(turns)
	a.memory.Clear()
	for _, r := range records {
		a.memory.Put(r)
	}
}

// Status reports the agent's current state.
func (a *Agent) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	stats := a.transcript.Stats()
	memUsage, memCalls := a.memory.Usage()
	usage := a.usage
	usage.Add(&memUsage)
	return Status{
		Name:          a.config.Name,
		Model:         a.client.Provider().Model(),
		CodeDir:       a.config.CodeDir,
		Questions:     stats.Questions,
		Answers:       stats.Answers,
		Turns:         stats.Turns,
		MemoryRecords: a.memory.Len(),
		LastSteps:     a.lastSteps,
		LLMCalls:      a.llmCalls + memCalls,
		Usage:         usage,
	}
}
