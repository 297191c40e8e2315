// Package main provides the virgil CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/richinex/virgil/cli"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	provider string
	codeDir  string
	maxSteps int
	verbose  bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "virgil",
		Short: "Conversational codebase exploration",
		Long: `A CLI tool for asking questions about a codebase in natural language.

The agent explores the code with read-only tools (read, list, search) and
compresses everything it reads into structured memory, so long explorations
stay within the model's context window.`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().StringVarP(&codeDir, "code-dir", "d", "", "Codebase directory to explore (default: CODE_DIR or .)")
	rootCmd.PersistentFlags().IntVarP(&maxSteps, "max-steps", "m", 10, "Maximum exploration steps per question")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	// Add commands
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(toolsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func options() cli.Options {
	return cli.Options{
		Provider: provider,
		CodeDir:  codeDir,
		MaxSteps: maxSteps,
		Verbose:  verbose,
	}
}

func chatCmd() *cobra.Command {
	var sessionID string
	var dbPath string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive question-answering session",
		Long: `Start an interactive session about the codebase.

In the session:
- type a question to explore the code
- 'status' shows conversation and memory stats
- 'clear' resets the conversation
- 'quit' exits

With --session the dialogue and memorized files persist across runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Chat(context.Background(), sessionID, dbPath, options())
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID for conversation persistence")
	cmd.Flags().StringVar(&dbPath, "db", "", "Database path for storage (default .virgil/virgil.db)")

	return cmd
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a single question and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunAsk(context.Background(), args[0], options())
		},
	}
}

func toolsCmd() *cobra.Command {
	var verboseTools bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli.ListTools(verboseTools)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verboseTools, "verbose", "V", false, "Show tool parameters")

	return cmd
}
