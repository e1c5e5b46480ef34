// Command execution for CLI commands.
//
// Information Hiding:
// - Collaborator wiring (vault, provider, executor, run log) hidden
// - Flag/environment merging hidden
// - Output formatting hidden
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/weftlabs/weft/config"
	"github.com/weftlabs/weft/executor"
	"github.com/weftlabs/weft/llm"
	"github.com/weftlabs/weft/media"
	"github.com/weftlabs/weft/resolve"
	"github.com/weftlabs/weft/runlog"
	"github.com/weftlabs/weft/vault"
)

// Options holds CLI execution options. Zero values defer to the
// environment-backed settings.
type Options struct {
	VaultDir   string
	DBPath     string
	Provider   string
	Model      string
	MaxDepth   int
	NoCache    bool
	WriteBack  bool
	NoLLM      bool
	JSONEvents bool
	Verbose    bool
}

// App bundles the wired collaborators for one command invocation.
type App struct {
	Settings config.Settings
	Vault    *vault.DirVault
	Store    runlog.Store
	Resolver *resolve.Resolver
	// Runner is nil when chat execution is disabled.
	Runner *executor.Runner
}

// NewApp loads settings, applies flag overrides, and wires the vault,
// provider client, media encoder, resolver and run log together.
func NewApp(opts Options) (*App, error) {
	settings, err := buildSettings(opts)
	if err != nil {
		return nil, err
	}

	vaultDir := opts.VaultDir
	if vaultDir == "" {
		vaultDir = "."
	}
	v, err := vault.NewDirVault(vaultDir)
	if err != nil {
		return nil, err
	}

	logger := newLogger(settings.Verbose)

	store, err := runlog.OpenSqlite(settings.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}

	var (
		exec   resolve.Executor
		runner *executor.Runner
	)
	if opts.NoLLM {
		exec = executor.Disabled{}
	} else {
		client, err := buildClient(settings)
		if err != nil {
			store.Close()
			return nil, err
		}
		runner = executor.NewRunner(client, v, nil)
		runner.Logger = logger
		exec = runner
	}

	decoder := &media.FFmpegDecoder{Binary: settings.FFmpegPath}
	encoder := media.NewEncoder(v, decoder, settings.MediaCache)

	resolver := resolve.New(v, exec, encoder, settings.Resolution)
	resolver.Logger = logger

	sinks := resolve.MultiSink{runlog.NewSink(store, logger)}
	if opts.JSONEvents {
		sinks = append(sinks, newJSONSink(os.Stderr))
	}
	resolver.Events = sinks

	if runner != nil {
		runner.BindResolver(resolver)
	}

	return &App{
		Settings: settings,
		Vault:    v,
		Store:    store,
		Resolver: resolver,
		Runner:   runner,
	}, nil
}

// Close releases the app's resources.
func (a *App) Close() error {
	return a.Store.Close()
}

// Resolve recursively materializes a document and prints the result.
func Resolve(ctx context.Context, target string, opts Options) error {
	app, err := NewApp(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	file := app.Vault.Resolve(target, "")
	if file == nil {
		return fmt.Errorf("target not found in vault: %s", target)
	}

	rctx := resolve.NewContext(file.Path)
	if err := app.Store.BeginRun(ctx, runlog.NewRun(rctx.RunID, file.Path)); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	content := app.Resolver.Resolve(ctx, file, rctx)

	status := runlog.RunComplete
	if ctx.Err() != nil {
		status = runlog.RunFailed
	}
	finishRun(app.Store, rctx.RunID, status)

	fmt.Printf("%s\n", content)
	return ctx.Err()
}

// Run executes one pending chat document in place: the assistant reply
// streams to stdout and the extended transcript is written back to the
// file.
func Run(ctx context.Context, target string, opts Options) error {
	app, err := NewApp(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	if app.Runner == nil {
		return fmt.Errorf("run requires a provider; drop --no-llm")
	}

	file := app.Vault.Resolve(target, "")
	if file == nil {
		return fmt.Errorf("target not found in vault: %s", target)
	}

	rctx := resolve.NewContext(file.Path)
	if err := app.Store.BeginRun(ctx, runlog.NewRun(rctx.RunID, file.Path)); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	result, err := app.Runner.Execute(ctx, file, rctx, resolve.Frame{}, func(delta string) {
		fmt.Print(delta)
	})
	if err != nil {
		finishRun(app.Store, rctx.RunID, runlog.RunFailed)
		return err
	}
	fmt.Println()

	if err := app.Vault.Write(ctx, file.Path, result.Markdown); err != nil {
		finishRun(app.Store, rctx.RunID, runlog.RunFailed)
		return fmt.Errorf("failed to write chat result: %w", err)
	}

	finishRun(app.Store, rctx.RunID, runlog.RunComplete)
	return nil
}

// ListRuns prints recorded runs, newest first.
func ListRuns(ctx context.Context, limit int, opts Options) error {
	store, err := openStore(opts)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Printf("%-36s  %-9s  %-19s  %-10s  %s\n", "RUN", "STATUS", "STARTED", "DURATION", "ROOT")
	for _, run := range runs {
		duration := "-"
		if !run.FinishedAt.IsZero() {
			duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Printf("%-36s  %-9s  %-19s  %-10s  %s\n",
			run.ID, run.Status, run.StartedAt.Format("2006-01-02 15:04:05"), duration, run.RootPath)
	}
	return nil
}

// ShowEvents prints a run's node events as JSON lines.
func ShowEvents(ctx context.Context, runID string, opts Options) error {
	store, err := openStore(opts)
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := store.Events(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load events: %w", err)
	}
	if len(events) == 0 {
		return fmt.Errorf("no events recorded for run %s", runID)
	}

	enc := json.NewEncoder(os.Stdout)
	for _, event := range events {
		if err := enc.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

// Helper functions

// buildSettings loads environment-backed settings and applies flag
// overrides on top.
func buildSettings(opts Options) (config.Settings, error) {
	settings, err := config.Load()
	if err != nil {
		return config.Settings{}, err
	}

	if opts.Provider != "" {
		settings.Provider = opts.Provider
	}
	if opts.Model != "" {
		settings.Model = opts.Model
	}
	if opts.MaxDepth > 0 {
		settings.Resolution.MaxDepth = opts.MaxDepth
	}
	if opts.NoCache {
		settings.Resolution.EnableCaching = false
	}
	if opts.WriteBack {
		settings.Resolution.WriteIntermediateResults = true
	}
	if opts.DBPath != "" {
		settings.DBPath = opts.DBPath
	}
	if opts.Verbose {
		settings.Verbose = true
	}

	if err := settings.Validate(); err != nil {
		return config.Settings{}, err
	}
	return settings, nil
}

// buildClient creates the retrying provider client from settings.
func buildClient(settings config.Settings) (*llm.Client, error) {
	providerType, err := llm.ParseProviderType(settings.Provider)
	if err != nil {
		return nil, err
	}

	builder := llm.NewProviderBuilder(providerType).
		MaxTokens(settings.MaxTokens).
		Temperature(float32(settings.Temperature))
	if settings.Model != "" {
		builder = builder.Model(settings.Model)
	}

	provider, err := builder.FromEnv()
	if err != nil {
		return nil, err
	}
	return llm.NewClient(provider), nil
}

// openStore opens only the run log, for commands that never resolve.
func openStore(opts Options) (runlog.Store, error) {
	settings, err := buildSettings(opts)
	if err != nil {
		return nil, err
	}
	store, err := runlog.OpenSqlite(settings.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}
	return store, nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// finishRun records a run's outcome. The run's own context may already
// be canceled at this point, so the write uses a fresh one.
func finishRun(store runlog.Store, runID string, status runlog.RunStatus) {
	if err := store.FinishRun(context.Background(), runID, status, time.Now()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to finish run record: %v\n", err)
	}
}

// jsonSink streams events as JSON lines. Safe for concurrent emitters.
type jsonSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newJSONSink(w io.Writer) *jsonSink {
	return &jsonSink{enc: json.NewEncoder(w)}
}

func (s *jsonSink) Emit(event resolve.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(event)
}

// Verify jsonSink implements EventSink
var _ resolve.EventSink = (*jsonSink)(nil)
