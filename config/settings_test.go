package config

import (
	"os"
	"testing"
)

func TestNewValidProvider(t *testing.T) {
	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", settings.LLM.Provider)
	}
	if settings.Agent.MaxSteps != 10 {
		t.Errorf("expected default max steps 10, got %d", settings.Agent.MaxSteps)
	}
	if settings.Agent.CodeDir == "" {
		t.Error("expected a default code dir")
	}
}

func TestNewWithAlias(t *testing.T) {
	settings, err := New("claude")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "anthropic" {
		t.Errorf("expected provider 'anthropic' (normalized from 'claude'), got %q", settings.LLM.Provider)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New("unknown_provider")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewReadsAgentKnobs(t *testing.T) {
	vars := map[string]string{
		"AGENT_MAX_STEPS":          "3",
		"AGENT_OBSERVATION_WINDOW": "2",
		"AGENT_TOKEN_BUDGET":       "1000",
		"AGENT_CLEAR_POLICY":       "keep-memory",
		"CODE_DIR":                 "/tmp/project",
	}
	for k, v := range vars {
		original := os.Getenv(k)
		os.Setenv(k, v)
		defer os.Setenv(k, original)
	}

	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Agent.MaxSteps != 3 {
		t.Errorf("MaxSteps = %d, want 3", settings.Agent.MaxSteps)
	}
	if settings.Agent.ObservationWindow != 2 {
		t.Errorf("ObservationWindow = %d, want 2", settings.Agent.ObservationWindow)
	}
	if settings.Agent.TokenBudget != 1000 {
		t.Errorf("TokenBudget = %d, want 1000", settings.Agent.TokenBudget)
	}
	if settings.Agent.ClearPolicy != "keep-memory" {
		t.Errorf("ClearPolicy = %q", settings.Agent.ClearPolicy)
	}
	if settings.Agent.CodeDir != "/tmp/project" {
		t.Errorf("CodeDir = %q", settings.Agent.CodeDir)
	}
}

func TestAPIKeyForValidProvider(t *testing.T) {
	original := os.Getenv("OPENAI_API_KEY")
	os.Setenv("OPENAI_API_KEY", "test-key")
	defer os.Setenv("OPENAI_API_KEY", original)

	key, err := APIKeyFor("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "test-key" {
		t.Errorf("expected 'test-key', got %q", key)
	}
}

func TestAPIKeyForMissing(t *testing.T) {
	original := os.Getenv("OPENAI_API_KEY")
	os.Unsetenv("OPENAI_API_KEY")
	defer os.Setenv("OPENAI_API_KEY", original)

	_, err := APIKeyFor("openai")
	if err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestAPIKeyForUnknownProvider(t *testing.T) {
	_, err := APIKeyFor("unknown")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestModelFor(t *testing.T) {
	model, err := ModelFor("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model == "" {
		t.Error("expected non-empty model")
	}
}

func TestNewWithInvalidEnvVar(t *testing.T) {
	original := os.Getenv("AGENT_MAX_STEPS")
	os.Setenv("AGENT_MAX_STEPS", "not-a-number")
	defer os.Setenv("AGENT_MAX_STEPS", original)

	_, err := New("openai")
	if err == nil {
		t.Error("expected error for invalid AGENT_MAX_STEPS")
	}
}

func TestMustNewPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for unknown provider")
		}
	}()
	MustNew("unknown_provider")
}

func TestSupportedProviders(t *testing.T) {
	providers := SupportedProviders()
	if len(providers) == 0 {
		t.Error("expected at least one supported provider")
	}
}
