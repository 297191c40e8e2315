package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/richinex/virgil/llm"
	"github.com/richinex/virgil/session"
)

// scriptedProvider serves a queue of decision replies and answers
// compression calls synthetically, keyed off the system prompt.
type scriptedProvider struct {
	mu               sync.Mutex
	decisions        []string
	decisionErr      error
	decisionCalls    int
	compressionCalls int

	// seen collects the message lists of decision calls, for asserting
	// what the model was shown.
	seen [][]llm.ChatMessage
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "scripted-1" }

func (p *scriptedProvider) Chat(ctx context.Context, messages []llm.ChatMessage) (llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	usage := &llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	if strings.HasPrefix(messages[0].Content, "You compress source files") {
		p.compressionCalls++
		user := messages[len(messages)-1].Content
		key := strings.TrimPrefix(strings.SplitN(user, "\n", 2)[0], "File: ")
		content := fmt.Sprintf(
			`{"overview": "summary of %s", "key_definitions": [], "core_logic": "", "dependencies": [], "open_questions": ""}`,
			key)
		return llm.Response{Content: content, Usage: usage}, nil
	}

	p.decisionCalls++
	p.seen = append(p.seen, messages)
	if p.decisionErr != nil {
		return llm.Response{}, p.decisionErr
	}
	if len(p.decisions) == 0 {
		return llm.Response{}, errors.New("script exhausted")
	}
	next := p.decisions[0]
	p.decisions = p.decisions[1:]
	return llm.Response{Content: next, Usage: usage}, nil
}

func (p *scriptedProvider) ChatWithFormat(ctx context.Context, messages []llm.ChatMessage, format *llm.ResponseFormat) (llm.Response, error) {
	return p.Chat(ctx, messages)
}

func (p *scriptedProvider) StreamChat(ctx context.Context, messages []llm.ChatMessage, chunks chan<- string) (*llm.TokenUsage, error) {
	resp, err := p.Chat(ctx, messages)
	if err != nil {
		return nil, err
	}
	half := len(resp.Content) / 2
	chunks <- resp.Content[:half]
	chunks <- resp.Content[half:]
	return resp.Usage, nil
}

func readDecision(thought string, paths ...string) string {
	var actions []string
	for _, p := range paths {
		actions = append(actions, fmt.Sprintf(`{"tool": "read_file", "args": {"path": %q}}`, p))
	}
	return fmt.Sprintf(`{"thought": %q, "actions": [%s], "is_final": false, "final_answer": ""}`,
		thought, strings.Join(actions, ", "))
}

func finalDecision(answer string) string {
	return fmt.Sprintf(`{"thought": "done", "actions": [], "is_final": true, "final_answer": %q}`, answer)
}

// fixtureCodebase writes a small project for the agent to explore.
func fixtureCodebase(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"auth.py": "def login(user, password):\n    return check_hash(user, password)\n",
		"a.py":    "VALUE_A = 1\n",
		"b.py":    "VALUE_B = 2\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func newTestAgent(t *testing.T, provider *scriptedProvider, maxSteps int) *Agent {
	t.Helper()
	return New(provider, Config{
		CodeDir:  fixtureCodebase(t),
		MaxSteps: maxSteps,
	})
}

func TestAskAnswersDirectly(t *testing.T) {
	provider := &scriptedProvider{decisions: []string{finalDecision("it is a demo project")}}
	a := newTestAgent(t, provider, 10)

	resp, err := a.Ask(context.Background(), "what is this?")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Outcome != OutcomeSuccess || resp.Answer != "it is a demo project" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Steps != 1 || resp.LLMCalls != 1 {
		t.Errorf("Steps = %d, LLMCalls = %d; want 1, 1", resp.Steps, resp.LLMCalls)
	}
}

func TestAskReadsAndCompresses(t *testing.T) {
	provider := &scriptedProvider{decisions: []string{
		readDecision("check auth", "auth.py"),
		finalDecision("auth.py defines login"),
	}}
	a := newTestAgent(t, provider, 10)

	resp, err := a.Ask(context.Background(), "where is login?")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Outcome != OutcomeSuccess || resp.Steps != 2 {
		t.Errorf("resp = %+v", resp)
	}
	record, ok := a.Memory().Get("auth.py")
	if !ok {
		t.Fatal("auth.py should be memorized after the read")
	}
	if record.Overview != "summary of auth.py" {
		t.Errorf("Overview = %q", record.Overview)
	}
	// 2 decisions + 1 compression.
	if resp.LLMCalls != 3 {
		t.Errorf("LLMCalls = %d, want 3", resp.LLMCalls)
	}
	// The second decision call must see the memorized record, not the raw
	// file body.
	last := provider.seen[len(provider.seen)-1]
	system := last[0].Content
	if !strings.Contains(system, "summary of auth.py") {
		t.Error("memorized record missing from the system prompt")
	}
	if strings.Contains(system, "check_hash") {
		t.Error("raw file content leaked into the system prompt")
	}
}

func TestAskParallelReadsStayDistinct(t *testing.T) {
	provider := &scriptedProvider{decisions: []string{
		readDecision("read both", "a.py", "b.py"),
		finalDecision("done"),
	}}
	a := newTestAgent(t, provider, 10)

	if _, err := a.Ask(context.Background(), "compare a and b"); err != nil {
		t.Fatal(err)
	}
	ra, okA := a.Memory().Get("a.py")
	rb, okB := a.Memory().Get("b.py")
	if !okA || !okB {
		t.Fatal("both files should be memorized")
	}
	if ra.Overview != "summary of a.py" || rb.Overview != "summary of b.py" {
		t.Errorf("records cross-contaminated: %q / %q", ra.Overview, rb.Overview)
	}
}

func TestAskToolFailureContinues(t *testing.T) {
	provider := &scriptedProvider{decisions: []string{
		readDecision("try missing", "missing.py"),
		finalDecision("missing.py does not exist"),
	}}
	a := newTestAgent(t, provider, 10)

	resp, err := a.Ask(context.Background(), "what is in missing.py?")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Outcome != OutcomeSuccess {
		t.Errorf("Outcome = %v", resp.Outcome)
	}
	if a.Memory().Has("missing.py") {
		t.Error("failed read must not create a memory record")
	}
	// The failure must be visible to the next decision.
	last := provider.seen[len(provider.seen)-1]
	var sawError bool
	for _, m := range last {
		if strings.Contains(m.Content, "ERROR:") && strings.Contains(m.Content, "missing.py") {
			sawError = true
		}
	}
	if !sawError {
		t.Error("tool failure not surfaced to the model")
	}
}

func TestAskStepLimitForcesConclusion(t *testing.T) {
	provider := &scriptedProvider{decisions: []string{
		readDecision("s1", "a.py"),
		readDecision("s2", "b.py"),
		readDecision("s3", "auth.py"),
		finalDecision("ran out of steps, here is what I saw"),
	}}
	a := newTestAgent(t, provider, 3)

	resp, err := a.Ask(context.Background(), "explore everything")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Outcome != OutcomeStepLimit {
		t.Errorf("Outcome = %v, want step_limit", resp.Outcome)
	}
	if resp.Steps != 3 {
		t.Errorf("Steps = %d, want 3", resp.Steps)
	}
	if resp.Answer != "ran out of steps, here is what I saw" {
		t.Errorf("Answer = %q", resp.Answer)
	}
	// The conclusion call must carry the nudge.
	last := provider.seen[len(provider.seen)-1]
	if !strings.Contains(last[len(last)-1].Content, "all your exploration steps") {
		t.Error("forced conclusion nudge missing")
	}
}

func TestAskMemoryGuardShortCircuitsReread(t *testing.T) {
	provider := &scriptedProvider{decisions: []string{
		readDecision("first read", "a.py"),
		readDecision("read again", "a.py"),
		finalDecision("done"),
	}}
	a := newTestAgent(t, provider, 10)

	if _, err := a.Ask(context.Background(), "what is a.py?"); err != nil {
		t.Fatal(err)
	}
	if provider.compressionCalls != 1 {
		t.Errorf("compressionCalls = %d, want 1 (reread should be short-circuited)", provider.compressionCalls)
	}
	// The short-circuited step must still surface a pointer observation.
	last := provider.seen[len(provider.seen)-1]
	var sawPointer bool
	for _, m := range last {
		if strings.Contains(m.Content, "compressed into memory") {
			sawPointer = true
		}
	}
	if !sawPointer {
		t.Error("short-circuited read produced no observation")
	}
}

func TestAskForcedRereadRunsAgain(t *testing.T) {
	provider := &scriptedProvider{decisions: []string{
		readDecision("first read", "a.py"),
		`{"thought": "force", "actions": [{"tool": "read_file", "args": {"path": "a.py", "force": "true"}}], "is_final": false, "final_answer": ""}`,
		finalDecision("done"),
	}}
	a := newTestAgent(t, provider, 10)

	if _, err := a.Ask(context.Background(), "reread a.py"); err != nil {
		t.Fatal(err)
	}
	if provider.compressionCalls != 2 {
		t.Errorf("compressionCalls = %d, want 2 (forced reread must recompress)", provider.compressionCalls)
	}
}

func TestAskRetriesMalformedDecisionOnce(t *testing.T) {
	provider := &scriptedProvider{decisions: []string{
		"sorry, let me think about that",
		finalDecision("recovered"),
	}}
	a := newTestAgent(t, provider, 10)

	resp, err := a.Ask(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "recovered" {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if provider.decisionCalls != 2 {
		t.Errorf("decisionCalls = %d, want 2", provider.decisionCalls)
	}
	// The retry must tell the model what was wrong.
	retry := provider.seen[1]
	if !strings.Contains(retry[len(retry)-1].Content, "not a valid decision") {
		t.Error("corrective retry prompt missing")
	}
}

func TestAskFailsAfterSecondMalformedDecision(t *testing.T) {
	provider := &scriptedProvider{decisions: []string{"garbage", "more garbage"}}
	a := newTestAgent(t, provider, 10)

	if _, err := a.Ask(context.Background(), "q"); err == nil {
		t.Fatal("expected terminal error after two malformed replies")
	}
}

func TestAskPropagatesModelError(t *testing.T) {
	provider := &scriptedProvider{decisionErr: errors.New("provider down")}
	a := newTestAgent(t, provider, 10)

	if _, err := a.Ask(context.Background(), "q"); err == nil {
		t.Fatal("expected transport error to propagate")
	}
}

func TestMultiTurnKeepsEarlierDialogue(t *testing.T) {
	provider := &scriptedProvider{decisions: []string{
		finalDecision("first answer"),
		finalDecision("second answer"),
	}}
	a := newTestAgent(t, provider, 10)

	ctx := context.Background()
	if _, err := a.Ask(ctx, "first question"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Ask(ctx, "second question"); err != nil {
		t.Fatal(err)
	}
	last := provider.seen[len(provider.seen)-1]
	var sawFirstQ, sawFirstA bool
	for _, m := range last {
		if strings.Contains(m.Content, "first question") {
			sawFirstQ = true
		}
		if strings.Contains(m.Content, "first answer") {
			sawFirstA = true
		}
	}
	if !sawFirstQ || !sawFirstA {
		t.Error("earlier dialogue missing from follow-up question context")
	}
}

func TestClearAllWipesMemory(t *testing.T) {
	provider := &scriptedProvider{decisions: []string{
		readDecision("read", "a.py"),
		finalDecision("done"),
	}}
	a := newTestAgent(t, provider, 10)
	if _, err := a.Ask(context.Background(), "q"); err != nil {
		t.Fatal(err)
	}

	a.ClearWith(session.ClearAll)
	if a.Memory().Len() != 0 {
		t.Error("ClearAll must wipe memory")
	}
	if a.Status().Turns != 0 {
		t.Error("ClearAll must wipe dialogue")
	}
}

func TestClearKeepMemoryKeepsRecords(t *testing.T) {
	provider := &scriptedProvider{decisions: []string{
		readDecision("read", "a.py"),
		finalDecision("done"),
	}}
	a := newTestAgent(t, provider, 10)
	if _, err := a.Ask(context.Background(), "q"); err != nil {
		t.Fatal(err)
	}

	a.ClearWith(session.ClearKeepMemory)
	if a.Memory().Len() != 1 {
		t.Error("ClearKeepMemory must keep memorized records")
	}
	if a.Status().Turns != 0 {
		t.Error("dialogue must still be wiped")
	}
}

func TestStatusReportsCounts(t *testing.T) {
	provider := &scriptedProvider{decisions: []string{
		readDecision("read", "a.py"),
		finalDecision("done"),
	}}
	a := newTestAgent(t, provider, 10)
	if _, err := a.Ask(context.Background(), "q"); err != nil {
		t.Fatal(err)
	}

	s := a.Status()
	if s.Questions != 1 || s.Answers != 1 {
		t.Errorf("Questions = %d, Answers = %d", s.Questions, s.Answers)
	}
	if s.MemoryRecords != 1 {
		t.Errorf("MemoryRecords = %d, want 1", s.MemoryRecords)
	}
	if s.LLMCalls != 3 {
		t.Errorf("LLMCalls = %d, want 3", s.LLMCalls)
	}
	if s.Model != "scripted-1" {
		t.Errorf("Model = %q", s.Model)
	}
	if s.LastSteps != 2 {
		t.Errorf("LastSteps = %d, want 2", s.LastSteps)
	}
	if s.CodeDir == "" {
		t.Error("CodeDir must be reported")
	}
}

func TestStreamHandlerReceivesDecisionTokens(t *testing.T) {
	provider := &scriptedProvider{decisions: []string{
		finalDecision("streamed answer"),
	}}
	a := newTestAgent(t, provider, 10)

	var mu sync.Mutex
	var streamed strings.Builder
	a.WithStream(func(chunk string) {
		mu.Lock()
		streamed.WriteString(chunk)
		mu.Unlock()
	})

	resp, err := a.Ask(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "streamed answer" {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if !strings.Contains(streamed.String(), "streamed answer") {
		t.Errorf("stream handler saw %q", streamed.String())
	}
}

func TestConcludeFailureDegradesToStepLimitAnswer(t *testing.T) {
	// The conclusion call fails because the script runs dry, which must
	// produce a step-limit response rather than an error.
	provider := &scriptedProvider{decisions: []string{
		readDecision("look once", "a.py"),
	}}
	a := newTestAgent(t, provider, 1)

	resp, err := a.Ask(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Outcome != OutcomeStepLimit {
		t.Errorf("Outcome = %q, want %q", resp.Outcome, OutcomeStepLimit)
	}
	if !strings.Contains(resp.Answer, "could not complete") {
		t.Errorf("Answer = %q, want could-not-complete text", resp.Answer)
	}
	// One loop call plus exactly one conclusion attempt; a failed model
	// call is never retried.
	if provider.decisionCalls != 2 {
		t.Errorf("decision calls = %d, want 2", provider.decisionCalls)
	}
}

func TestConcludeUsesUnparseableReplyVerbatim(t *testing.T) {
	provider := &scriptedProvider{decisions: []string{
		readDecision("look once", "a.py"),
		"the code base is too large, I only saw a.py",
	}}
	a := newTestAgent(t, provider, 1)

	resp, err := a.Ask(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Outcome != OutcomeStepLimit {
		t.Errorf("Outcome = %q, want %q", resp.Outcome, OutcomeStepLimit)
	}
	if resp.Answer != "the code base is too large, I only saw a.py" {
		t.Errorf("Answer = %q, want plain reply verbatim", resp.Answer)
	}
}
