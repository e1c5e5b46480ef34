// Package main provides the weft CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/weftlabs/weft/cli"
)

var (
	// Global flags
	vaultDir  string
	dbPath    string
	provider  string
	model     string
	maxDepth  int
	noCache   bool
	writeBack bool
	noLLM     bool
	verbose   bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "weft",
		Short: "Recursive document resolution with embedded chat execution",
		Long: `Weft resolves [[link]] embeds in markdown documents recursively,
inlining linked documents, encoding linked media, and executing nested
chat documents whose last message awaits an assistant reply.

Documents become prompts: a chat file's links are materialized before the
provider call, and linked chat files are executed depth-first so their
answers flow upward into the parent prompt.`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&vaultDir, "vault", ".", "Vault root directory")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Run log database path (default weft.db)")
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "Model override for the provider")
	rootCmd.PersistentFlags().IntVar(&maxDepth, "max-depth", 0, "Maximum link recursion depth (default 5)")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "Disable per-run memoization")
	rootCmd.PersistentFlags().BoolVar(&writeBack, "write-back", false, "Persist executed nested chats back to their files")
	rootCmd.PersistentFlags().BoolVar(&noLLM, "no-llm", false, "Disable chat execution (pending chats become inline errors)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	// Add commands
	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(eventsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globalOptions collects the persistent flags into CLI options.
func globalOptions() cli.Options {
	return cli.Options{
		VaultDir:  vaultDir,
		DBPath:    dbPath,
		Provider:  provider,
		Model:     model,
		MaxDepth:  maxDepth,
		NoCache:   noCache,
		WriteBack: writeBack,
		NoLLM:     noLLM,
		Verbose:   verbose,
	}
}

func resolveCmd() *cobra.Command {
	var jsonEvents bool

	cmd := &cobra.Command{
		Use:   "resolve [target]",
		Short: "Recursively resolve a document and print the result",
		Long: `Resolve a document's [[link]] embeds recursively and print the
materialized content to stdout.

Linked documents are inlined, linked chat documents are executed
depth-first, and failures inside the tree degrade to inline error
markers rather than aborting the run. The target may be a vault-relative
path or a bare note name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := globalOptions()
			opts.JSONEvents = jsonEvents
			return cli.Resolve(context.Background(), args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&jsonEvents, "json-events", false, "Stream node events as JSON lines to stderr")

	return cmd
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [target]",
		Short: "Execute a pending chat document in place",
		Long: `Execute a chat document whose last message is from the user.

Each message body is materialized (links inlined, media encoded) before
the provider call, the assistant reply streams to stdout, and the
extended transcript is written back to the file with a fresh empty user
message at the end.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Run(context.Background(), args[0], globalOptions())
		},
	}

	return cmd
}

func runsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded resolution runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListRuns(context.Background(), limit, globalOptions())
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list (0 = all)")

	return cmd
}

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events [run-id]",
		Short: "Print a run's node events as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ShowEvents(context.Background(), args[0], globalOptions())
		},
	}

	return cmd
}
