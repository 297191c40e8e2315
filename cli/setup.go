// Provider and agent setup for CLI commands.
//
// Information Hiding:
// - Provider construction hidden
// - Agent wiring (tools, logger, token counter) hidden
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/richinex/virgil/agent"
	"github.com/richinex/virgil/config"
	"github.com/richinex/virgil/llm"
	"github.com/richinex/virgil/session"
)

// Options holds CLI execution options.
type Options struct {
	Provider string
	CodeDir  string
	MaxSteps int
	Verbose  bool
}

// DefaultOptions returns default CLI options.
func DefaultOptions() Options {
	return Options{
		MaxSteps: agent.DefaultMaxSteps,
		Verbose:  false,
	}
}

// createProvider builds an LLM provider from options and environment.
func createProvider(providerName string) (llm.Provider, error) {
	if providerName == "" {
		return nil, fmt.Errorf("--provider is required for this command")
	}

	providerType, err := llm.ParseProviderType(providerName)
	if err != nil {
		return nil, err
	}

	settings, err := config.New(providerName)
	if err != nil {
		return nil, err
	}

	apiKey, err := config.APIKeyFor(providerName)
	if err != nil {
		return nil, err
	}

	builder := providerType.
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature))
	if settings.LLM.BaseURL != "" {
		builder = builder.BaseURL(settings.LLM.BaseURL)
	}
	return builder.APIKey(apiKey)
}

// buildAgent wires a code-reading agent from options and settings.
func buildAgent(opts Options) (*agent.Agent, error) {
	provider, err := createProvider(opts.Provider)
	if err != nil {
		return nil, err
	}

	settings, err := config.New(opts.Provider)
	if err != nil {
		return nil, err
	}

	codeDir := opts.CodeDir
	if codeDir == "" {
		codeDir = settings.Agent.CodeDir
	}
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = settings.Agent.MaxSteps
	}

	a := agent.New(provider, agent.Config{
		CodeDir:           codeDir,
		MaxSteps:          maxSteps,
		ObservationWindow: settings.Agent.ObservationWindow,
		TokenBudget:       settings.Agent.TokenBudget,
		ClearPolicy:       session.ParseClearPolicy(settings.Agent.ClearPolicy),
	})
	a.WithTokenCounter(session.NewTokenCounter())
	if opts.Verbose {
		a.WithLogger(newLogger())
	}
	if opts.Verbose || settings.Agent.StreamOutput {
		a.WithStream(func(chunk string) {
			fmt.Print(chunk)
		})
	}
	return a, nil
}

// newLogger builds a console logger for verbose mode.
func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger().
		Level(zerolog.DebugLevel)
}
