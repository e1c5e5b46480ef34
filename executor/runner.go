// Package executor runs pending chat documents against an LLM provider.
//
// Information Hiding:
// - Prompt materialization through the resolver
// - Transcript extension (assistant reply + fresh user turn)
// - Streaming vs. blocking completion choice
package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/weftlabs/weft/chatmd"
	"github.com/weftlabs/weft/llm"
	"github.com/weftlabs/weft/model"
	"github.com/weftlabs/weft/resolve"
	"github.com/weftlabs/weft/vault"
)

// Client is the completion surface the runner needs. *llm.Client satisfies it.
type Client interface {
	Chat(ctx context.Context, messages []llm.ChatMessage) (llm.Response, error)
	StreamChat(ctx context.Context, messages []llm.ChatMessage, onDelta func(string)) (llm.Response, error)
}

// ContentResolver materializes one message body: linked documents inlined,
// media encoded to content parts. *resolve.Resolver satisfies it.
type ContentResolver interface {
	ResolveMessageContent(ctx context.Context, content string, from *vault.File, rctx *resolve.Context, frame resolve.Frame, role model.Role) model.Content
}

// Runner executes pending chats read from the vault.
type Runner struct {
	client   Client
	vault    vault.Vault
	resolver ContentResolver

	// Logger receives debug output. Nil discards.
	Logger *slog.Logger
}

// NewRunner creates a runner.
func NewRunner(client Client, v vault.Vault, resolver ContentResolver) *Runner {
	return &Runner{client: client, vault: v, resolver: resolver}
}

// BindResolver attaches the content resolver after construction. Wiring
// is two-phase: the resolver takes the runner as its executor, and the
// runner materializes message bodies back through the resolver.
func (r *Runner) BindResolver(resolver ContentResolver) {
	r.resolver = resolver
}

// Execute runs the pending chat in file and returns the extended transcript.
// Each message body is materialized through the resolver before the provider
// call so nested documents and media reach the model. When stream is non-nil
// the assistant reply is delivered to it delta by delta.
func (r *Runner) Execute(ctx context.Context, file *vault.File, rctx *resolve.Context, frame resolve.Frame, stream func(string)) (resolve.ExecResult, error) {
	raw, err := r.vault.Read(ctx, file.Path)
	if err != nil {
		return resolve.ExecResult{}, fmt.Errorf("failed to read chat file: %w", err)
	}

	chat := chatmd.Parse(raw)
	if !chat.Pending() {
		return resolve.ExecResult{}, fmt.Errorf("%s is not a pending chat", file.Path)
	}

	prompt := make([]llm.ChatMessage, len(chat.Messages))
	for i, msg := range chat.Messages {
		prompt[i] = llm.ChatMessage{
			Role:    msg.Role,
			Content: r.resolver.ResolveMessageContent(ctx, msg.Content.String(), file, rctx, frame, msg.Role),
		}
	}

	r.logger().Debug("executing chat", "path", file.Path, "messages", len(prompt))

	var resp llm.Response
	if stream != nil {
		resp, err = r.client.StreamChat(ctx, prompt, stream)
	} else {
		resp, err = r.client.Chat(ctx, prompt)
	}
	if err != nil {
		return resolve.ExecResult{}, fmt.Errorf("LLM chat failed: %w", err)
	}
	if resp.Usage != nil {
		r.logger().Debug("chat completed", "path", file.Path,
			"prompt_tokens", resp.Usage.PromptTokens,
			"completion_tokens", resp.Usage.CompletionTokens)
	}

	// The transcript keeps the original message bodies so written-back
	// documents retain their links; only the prompt is materialized.
	transcript := make([]model.ChatMessage, 0, len(chat.Messages)+2)
	transcript = append(transcript, chat.Messages...)
	transcript = append(transcript, model.AssistantMessage(resp.Content))
	transcript = append(transcript, model.UserMessage(""))

	markdown := chatmd.Render(transcript)
	if chat.Preamble != "" {
		markdown = chat.Preamble + "\n\n" + markdown
	}

	return resolve.ExecResult{Messages: transcript, Markdown: markdown}, nil
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Disabled rejects every pending chat. It backs offline runs where link
// trees still resolve but nothing may reach a provider.
type Disabled struct{}

// Execute always fails.
func (Disabled) Execute(context.Context, *vault.File, *resolve.Context, resolve.Frame, func(string)) (resolve.ExecResult, error) {
	return resolve.ExecResult{}, fmt.Errorf("chat execution disabled")
}

// Verify both executors implement the engine's contract
var (
	_ resolve.Executor = (*Runner)(nil)
	_ resolve.Executor = Disabled{}
)
