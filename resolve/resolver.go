// Package resolve implements recursive materialization of linked
// documents: embedded links are replaced by the resolved content of their
// targets and pending chats are executed against a completion backend.
//
// Information Hiding:
// - Cycle detection and depth bounding are internal to the walk
// - Sibling concurrency and order-preserving substitution stay here
// - Failures never escape a node; callers only ever see inline markers
package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weftlabs/weft/chatmd"
	"github.com/weftlabs/weft/links"
	"github.com/weftlabs/weft/media"
	"github.com/weftlabs/weft/model"
	"github.com/weftlabs/weft/vault"
)

const (
	// DefaultMaxDepth bounds recursion when no depth is configured.
	DefaultMaxDepth = 5
	// MaxDepthLimit is the hard ceiling for the configured depth.
	MaxDepthLimit = 20
)

// Options configures a Resolver.
type Options struct {
	// Enabled gates the whole engine; when false every resolution is a
	// raw passthrough of the root file.
	Enabled bool
	// MaxDepth bounds recursion; nodes at or beyond it return raw content.
	MaxDepth int
	// EnableCaching memoizes resolved content per run.
	EnableCaching bool
	// WriteIntermediateResults persists executed non-root chats back to
	// the vault.
	WriteIntermediateResults bool
}

// ExecResult is what the chat executor returns: the full transcript with
// the assistant reply and a trailing empty user message appended, plus its
// serialized markdown.
type ExecResult struct {
	Messages []model.ChatMessage
	Markdown string
}

// Executor runs a pending chat. Implementations materialize each message
// through the resolver (using rctx and frame), call the completion
// backend, and append the assistant reply followed by a trailing empty
// user message. stream, when non-nil, receives response deltas.
type Executor interface {
	Execute(ctx context.Context, file *vault.File, rctx *Context, frame Frame, stream func(string)) (ExecResult, error)
}

// Resolver walks documents and materializes their embedded links.
type Resolver struct {
	vault vault.Vault
	exec  Executor
	media *media.Encoder
	opts  Options

	// Events receives node lifecycle events; nil discards them.
	Events EventSink
	// Logger receives structured progress logs; nil discards them.
	Logger *slog.Logger
}

// New creates a Resolver. exec may be nil, in which case pending chats
// fail with an inline marker; enc may be nil, in which case media links
// stay literal.
func New(v vault.Vault, exec Executor, enc *media.Encoder, opts Options) *Resolver {
	if opts.MaxDepth < 1 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MaxDepth > MaxDepthLimit {
		opts.MaxDepth = MaxDepthLimit
	}
	return &Resolver{vault: v, exec: exec, media: enc, opts: opts}
}

// Resolve materializes file and returns the final content. Failures inside
// the tree are absorbed as inline error markers and reported through
// events; Resolve itself never fails.
func (r *Resolver) Resolve(ctx context.Context, file *vault.File, rctx *Context) string {
	return r.resolveNode(ctx, file, rctx, "", Frame{})
}

// resolveNode is one step of the walk. frame carries the node's depth and
// its ancestor trail; both are branch-local values.
func (r *Resolver) resolveNode(ctx context.Context, file *vault.File, rctx *Context, parent string, frame Frame) string {
	if file == nil {
		return ""
	}

	if !r.opts.Enabled {
		raw, err := r.vault.Read(ctx, file.Path)
		if err != nil {
			return errorMarker(file.Path, err)
		}
		return raw
	}

	if frame.onTrail(file.Path) {
		r.logger().Warn("circular dependency",
			slog.String("path", file.Path), slog.String("parent", parent))
		r.emit(rctx, Event{
			FilePath: file.Path, ParentPath: parent, Depth: frame.Depth,
			Status: StatusCycle, Phase: PhaseUpdate,
		})
		return "[[" + file.Path + "]] (Error: Circular dependency)"
	}

	if frame.Depth >= r.opts.MaxDepth {
		raw, err := r.vault.Read(ctx, file.Path)
		if err != nil {
			return errorMarker(file.Path, err)
		}
		r.logger().Debug("depth limit reached, returning raw content",
			slog.String("path", file.Path), slog.Int("depth", frame.Depth))
		return raw
	}

	if r.opts.EnableCaching {
		if cached, ok := rctx.Cached(file.Path); ok {
			r.emit(rctx, Event{
				FilePath: file.Path, ParentPath: parent, Depth: frame.Depth,
				Status: StatusCached, Phase: PhaseUpdate,
			})
			return cached
		}
	}

	r.emit(rctx, Event{
		FilePath: file.Path, ParentPath: parent, Depth: frame.Depth,
		Status: StatusResolving, Phase: PhaseStart,
	})

	resolved, chat, err := r.resolveBody(ctx, file, rctx, parent, frame)
	if err != nil {
		r.logger().Error("resolution failed",
			slog.String("path", file.Path), slog.String("error", err.Error()))
		ev := Event{
			FilePath: file.Path, ParentPath: parent, Depth: frame.Depth,
			Status: StatusError, Phase: PhaseUpdate, Error: err.Error(),
		}
		if chat != nil {
			ev.IsChatFile = boolPtr(chat.Valid)
			ev.IsPendingChat = chat.Pending()
		}
		r.emit(rctx, ev)
		return errorMarker(file.Path, err)
	}

	ev := Event{
		FilePath: file.Path, ParentPath: parent, Depth: frame.Depth,
		Status: StatusComplete, Phase: PhaseUpdate,
	}
	if chat != nil {
		ev.IsChatFile = boolPtr(chat.Valid)
		ev.IsPendingChat = chat.Pending()
	}
	r.emit(rctx, ev)
	return resolved
}

// resolveBody does the fallible part of a node: read, parse, then either
// resolve links in place or execute the pending chat.
func (r *Resolver) resolveBody(ctx context.Context, file *vault.File, rctx *Context, parent string, frame Frame) (string, *chatmd.Chat, error) {
	raw, err := r.vault.Read(ctx, file.Path)
	if err != nil {
		return "", nil, err
	}

	chat := chatmd.Parse(raw)
	r.emit(rctx, Event{
		FilePath: file.Path, ParentPath: parent, Depth: frame.Depth,
		Status: StatusResolving, Phase: PhaseUpdate,
		IsChatFile: boolPtr(chat.Valid), IsPendingChat: chat.Pending(),
	})

	if !chat.Pending() {
		resolved := r.ResolveLinks(ctx, raw, file, rctx, frame)
		if r.opts.EnableCaching {
			rctx.Remember(file.Path, resolved)
		}
		return resolved, &chat, nil
	}

	if r.exec == nil {
		return "", &chat, errors.New("no executor configured for pending chat")
	}
	r.logger().Info("executing pending chat",
		slog.String("path", file.Path), slog.Int("depth", frame.Depth))
	res, err := r.exec.Execute(ctx, file, rctx, frame, nil)
	if err != nil {
		return "", &chat, fmt.Errorf("failed to execute chat %s: %w", file.Path, err)
	}
	answer, err := answerOf(res.Messages)
	if err != nil {
		return "", &chat, err
	}
	if r.opts.EnableCaching {
		rctx.Remember(file.Path, answer)
	}
	if r.opts.WriteIntermediateResults && file.Path != rctx.Root && res.Markdown != "" {
		if err := r.vault.Write(ctx, file.Path, res.Markdown); err != nil {
			return "", &chat, err
		}
	}
	return answer, &chat, nil
}

// ResolveLinks replaces whole-line embed links in content with the
// resolved content of their targets. Unresolvable targets stay literal.
// Resolvable siblings resolve concurrently; substitution follows source
// order no matter which finishes first.
func (r *Resolver) ResolveLinks(ctx context.Context, content string, from *vault.File, rctx *Context, frame Frame) string {
	matches := links.Scan(content)
	if len(matches) == 0 {
		return content
	}

	child := frame.child(from.Path)
	resolved := make([]string, len(matches))
	// share[i] is the match index whose result position i substitutes,
	// or -1 for unresolvable targets. Duplicate targets within one
	// document resolve once and share the result.
	share := make([]int, len(matches))
	firstIdx := make(map[string]int, len(matches))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range matches {
		f := r.vault.Resolve(m.Target, from.Path)
		if f == nil {
			r.logger().Debug("unresolvable link",
				slog.String("target", m.Target), slog.String("from", from.Path))
			share[i] = -1
			continue
		}
		if j, ok := firstIdx[f.Path]; ok {
			share[i] = j
			continue
		}
		firstIdx[f.Path] = i
		share[i] = i
		g.Go(func() error {
			resolved[i] = r.resolveNode(gctx, f, rctx, from.Path, child)
			return nil
		})
	}
	// resolveNode absorbs its own failures, so the group never errors.
	_ = g.Wait()

	var b strings.Builder
	cursor := 0
	for i, m := range matches {
		b.WriteString(content[cursor:m.Start])
		if share[i] < 0 {
			b.WriteString(m.Raw)
		} else {
			b.WriteString(resolved[share[i]])
		}
		cursor = m.End
	}
	b.WriteString(content[cursor:])
	return b.String()
}

// ResolveMessageContent materializes one chat message's content. For
// user-authored messages, image links become image_url parts and audio
// links become input_audio parts; every other link resolves to text in
// place. Text between links is preserved, adjacent text fragments merge,
// and an all-text result collapses to plain text content.
func (r *Resolver) ResolveMessageContent(ctx context.Context, content string, from *vault.File, rctx *Context, frame Frame, role model.Role) model.Content {
	matches := links.Scan(content)
	if len(matches) == 0 {
		return model.TextContent(content)
	}

	child := frame.child(from.Path)
	var parts []model.ContentPart
	var run strings.Builder
	flushRun := func() {
		if strings.TrimSpace(run.String()) != "" {
			parts = append(parts, model.TextPart(run.String()))
		}
		run.Reset()
	}

	cursor := 0
	for _, m := range matches {
		run.WriteString(content[cursor:m.Start])
		cursor = m.End

		f := r.vault.Resolve(m.Target, from.Path)
		if f == nil {
			run.WriteString(m.Raw)
			continue
		}
		kind := media.Kind(f.Ext)
		if role == model.RoleUser && kind != media.KindNone {
			if r.media == nil {
				run.WriteString(m.Raw)
				continue
			}
			part, err := r.mediaPart(ctx, f, kind)
			if err != nil {
				r.logger().Warn("failed to encode media, keeping literal link",
					slog.String("path", f.Path), slog.String("error", err.Error()))
				run.WriteString(m.Raw)
				continue
			}
			flushRun()
			parts = append(parts, part)
			continue
		}
		run.WriteString(r.resolveNode(ctx, f, rctx, from.Path, child))
	}
	run.WriteString(content[cursor:])
	flushRun()
	return model.Collapse(parts)
}

func (r *Resolver) mediaPart(ctx context.Context, f *vault.File, kind media.MediaKind) (model.ContentPart, error) {
	if kind == media.KindImage {
		return r.media.ImagePart(ctx, f)
	}
	return r.media.AudioPart(ctx, f)
}

// answerOf extracts the assistant answer from an executed transcript: the
// second-to-last message, because the executor appends a trailing empty
// user message after the reply.
func answerOf(messages []model.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("executor returned no messages")
	}
	i := len(messages) - 2
	if i < 0 {
		i = len(messages) - 1
	}
	return messages[i].Content.String(), nil
}

func errorMarker(path string, err error) string {
	return fmt.Sprintf("[[%s]] (Error: %s)", path, err.Error())
}

func boolPtr(b bool) *bool {
	return &b
}

func (r *Resolver) emit(rctx *Context, e Event) {
	if r.Events == nil {
		return
	}
	e.RunID = rctx.RunID
	e.Seq = rctx.nextSeq()
	e.At = time.Now()
	r.Events.Emit(e)
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
