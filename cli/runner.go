// Command execution for CLI commands.
//
// Information Hiding:
// - Command dispatch logic hidden
// - Agent setup hidden
// - Output formatting hidden

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/richinex/virgil/agent"
	"github.com/richinex/virgil/storage"
	"github.com/richinex/virgil/tools"
)

// defaultDBPath is the default database path for session persistence.
const defaultDBPath = ".virgil/virgil.db"

// RunAsk answers a single question and exits.
func RunAsk(ctx context.Context, question string, opts Options) error {
	a, err := buildAgent(opts)
	if err != nil {
		return err
	}

	fmt.Printf("Exploring %s...\n\n", displayCodeDir(opts))

	resp, err := a.Ask(ctx, question)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	fmt.Printf("%s\n\n", resp.Answer)
	printResponseStats(resp, opts.Verbose)
	return nil
}

// Chat starts an interactive session. With a non-empty sessionID the
// dialogue and memorized files persist across runs in a SQLite database.
func Chat(ctx context.Context, sessionID, dbPath string, opts Options) error {
	a, err := buildAgent(opts)
	if err != nil {
		return err
	}

	var store storage.ConversationStorage
	if sessionID != "" {
		if dbPath == "" {
			dbPath = defaultDBPath
		}
		s, err := storage.OpenSqlite(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer s.Close()
		store = s

		if conv, err := s.Load(ctx, sessionID); err == nil {
			a.RestoreConversation(conv.Turns, conv.Records)
			fmt.Printf("Resuming session '%s' (%d turns, %d memorized files)\n\n",
				sessionID, len(conv.Turns), len(conv.Records))
		} else if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to load session: %w", err)
		}
	}

	printWelcome(a, opts)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "quit", "exit", "q":
			return scanner.Err()
		case "help":
			printHelp()
			continue
		case "status":
			printStatus(a.Status())
			continue
		case "clear":
			a.Clear()
			if store != nil {
				if err := store.Delete(ctx, sessionID); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to delete stored session: %v\n", err)
				}
			}
			fmt.Println("Conversation cleared.")
			continue
		}

		resp, err := a.Ask(ctx, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nError: %v\n\n", err)
			continue
		}

		fmt.Printf("\n%s\n\n", resp.Answer)
		printResponseStats(resp, opts.Verbose)

		if store != nil {
			conv := &storage.Conversation{
				SessionID: sessionID,
				Turns:     a.History(),
				Records:   a.Memory().All(),
			}
			if err := store.Save(ctx, conv); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save session: %v\n", err)
			}
		}
	}

	return scanner.Err()
}

// ListTools prints the code-reading toolset.
func ListTools(verbose bool) {
	registry := tools.DefaultRegistry(".")

	fmt.Println("Available tools:")
	fmt.Println()

	for _, meta := range registry.List() {
		fmt.Printf("  %s\n", meta.Name)
		fmt.Printf("    %s\n", meta.Description)

		if verbose && len(meta.Parameters) > 0 {
			fmt.Println("    Parameters:")
			for _, param := range meta.Parameters {
				req := ""
				if param.Required {
					req = "*"
				}
				fmt.Printf("      %s%s: %s - %s\n", param.Name, req, param.Type, param.Description)
			}
		}
		fmt.Println()
	}
}

// Output helpers

func displayCodeDir(opts Options) string {
	if opts.CodeDir != "" {
		return opts.CodeDir
	}
	if dir := os.Getenv("CODE_DIR"); dir != "" {
		return dir
	}
	return "."
}

func printWelcome(a *agent.Agent, opts Options) {
	status := a.Status()
	fmt.Printf("virgil - ask questions about the code in %s\n", displayCodeDir(opts))
	fmt.Printf("model: %s, max steps per question: %d\n", status.Model, opts.MaxSteps)
	fmt.Println("Type 'help' for commands, 'quit' to exit.")
	fmt.Println()
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  <question>  ask about the codebase")
	fmt.Println("  status      show conversation and memory stats")
	fmt.Println("  clear       reset the conversation")
	fmt.Println("  help        show this help")
	fmt.Println("  quit        exit")
	fmt.Println()
}

func printStatus(s agent.Status) {
	fmt.Printf("Agent: %s (model %s, code dir %s)\n", s.Name, s.Model, s.CodeDir)
	fmt.Printf("  Questions: %d, answers: %d, turns: %d\n", s.Questions, s.Answers, s.Turns)
	fmt.Printf("  Memorized files: %d, last question took %d steps\n", s.MemoryRecords, s.LastSteps)
	fmt.Printf("  LLM calls: %d (tokens: %d prompt, %d completion)\n",
		s.LLMCalls, s.Usage.PromptTokens, s.Usage.CompletionTokens)
	fmt.Println()
}

func printResponseStats(resp *agent.Response, verbose bool) {
	if resp.Outcome == agent.OutcomeStepLimit {
		fmt.Println("(step budget exhausted; answer based on partial exploration)")
	}
	if !verbose {
		return
	}
	fmt.Printf("(%d steps, %d LLM calls, %d tokens, %s)\n\n",
		resp.Steps, resp.LLMCalls, resp.Usage.TotalTokens,
		resp.Elapsed.Round(time.Millisecond))
}
