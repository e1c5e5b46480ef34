package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/weftlabs/weft/chatmd"
	"github.com/weftlabs/weft/media"
	"github.com/weftlabs/weft/model"
	"github.com/weftlabs/weft/vault"
)

// memVault is an in-memory vault for resolver tests. Per-path delays
// simulate slow reads.
type memVault struct {
	mu     sync.Mutex
	files  map[string]string
	bins   map[string][]byte
	writes map[string]string
	delays map[string]time.Duration
}

var _ vault.Vault = (*memVault)(nil)

func newMemVault(files map[string]string) *memVault {
	return &memVault{
		files:  files,
		bins:   map[string][]byte{},
		writes: map[string]string{},
		delays: map[string]time.Duration{},
	}
}

func (v *memVault) Resolve(target, _ string) *vault.File {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, cand := range []string{target, target + ".md"} {
		if _, ok := v.files[cand]; ok {
			return vault.NewFile(cand)
		}
		if _, ok := v.bins[cand]; ok {
			return vault.NewFile(cand)
		}
	}
	return nil
}

func (v *memVault) Read(_ context.Context, path string) (string, error) {
	v.mu.Lock()
	content, ok := v.files[path]
	delay := v.delays[path]
	v.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if !ok {
		return "", fmt.Errorf("%s: %w", path, vault.ErrNotFound)
	}
	return content, nil
}

func (v *memVault) ReadBinary(_ context.Context, path string) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if data, ok := v.bins[path]; ok {
		return data, nil
	}
	if content, ok := v.files[path]; ok {
		return []byte(content), nil
	}
	return nil, fmt.Errorf("%s: %w", path, vault.ErrNotFound)
}

func (v *memVault) Write(_ context.Context, path, content string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.writes[path] = content
	v.files[path] = content
	return nil
}

func (v *memVault) Stat(_ context.Context, path string) (vault.Info, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if data, ok := v.bins[path]; ok {
		return vault.Info{Size: int64(len(data)), ModTime: time.Unix(1, 0)}, nil
	}
	if content, ok := v.files[path]; ok {
		return vault.Info{Size: int64(len(content)), ModTime: time.Unix(1, 0)}, nil
	}
	return vault.Info{}, fmt.Errorf("%s: %w", path, vault.ErrNotFound)
}

// fakeExec executes pending chats with a canned reply.
type fakeExec struct {
	mu    sync.Mutex
	calls map[string]int
	reply string
	err   error
	msgs  []model.ChatMessage
}

var _ Executor = (*fakeExec)(nil)

func newFakeExec(reply string) *fakeExec {
	return &fakeExec{calls: map[string]int{}, reply: reply}
}

func (e *fakeExec) Execute(_ context.Context, file *vault.File, _ *Context, _ Frame, _ func(string)) (ExecResult, error) {
	e.mu.Lock()
	e.calls[file.Path]++
	e.mu.Unlock()
	if e.err != nil {
		return ExecResult{}, e.err
	}
	msgs := e.msgs
	if msgs == nil {
		msgs = []model.ChatMessage{
			model.UserMessage("q"),
			model.AssistantMessage(e.reply),
			model.UserMessage(""),
		}
	}
	return ExecResult{Messages: msgs, Markdown: chatmd.Render(msgs)}, nil
}

func (e *fakeExec) total() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		n += c
	}
	return n
}

// collector records events for assertions.
type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) Emit(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collector) byStatus(s Status) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, e := range c.events {
		if e.Status == s {
			out = append(out, e)
		}
	}
	return out
}

func (c *collector) all() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func defaultOpts() Options {
	return Options{Enabled: true, MaxDepth: 5, EnableCaching: true}
}

func TestResolveAcyclicTree(t *testing.T) {
	v := newMemVault(map[string]string{
		"Main.md": "top\n[[A]]\n[[B]]",
		"A.md":    "a-body\n[[C]]",
		"B.md":    "b-body",
		"C.md":    "c-body",
	})
	r := New(v, nil, nil, defaultOpts())
	out := r.Resolve(context.Background(), vault.NewFile("Main.md"), NewContext("Main.md"))

	for _, want := range []string{"top", "a-body", "b-body", "c-body"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "(Error:") {
		t.Errorf("unexpected error marker:\n%s", out)
	}
}

func TestResolveCycle(t *testing.T) {
	v := newMemVault(map[string]string{
		"A.md": "a-top\n[[B]]",
		"B.md": "b-top\n[[A]]",
	})
	events := &collector{}
	r := New(v, nil, nil, defaultOpts())
	r.Events = events
	out := r.Resolve(context.Background(), vault.NewFile("A.md"), NewContext("A.md"))

	marker := "[[A.md]] (Error: Circular dependency)"
	if got := strings.Count(out, marker); got != 1 {
		t.Errorf("cycle marker count = %d, want 1:\n%s", got, out)
	}
	if !strings.Contains(out, "a-top") || !strings.Contains(out, "b-top") {
		t.Errorf("cycle broke surrounding content:\n%s", out)
	}
	if cycles := events.byStatus(StatusCycle); len(cycles) != 1 {
		t.Errorf("cycle events = %d, want 1", len(cycles))
	}
	if errs := events.byStatus(StatusError); len(errs) != 0 {
		t.Errorf("cycle must not produce error events, got %d", len(errs))
	}
}

func TestResolveSelfReference(t *testing.T) {
	v := newMemVault(map[string]string{"Loop.md": "before\n[[Loop]]\nafter"})
	r := New(v, nil, nil, defaultOpts())
	out := r.Resolve(context.Background(), vault.NewFile("Loop.md"), NewContext("Loop.md"))
	if !strings.Contains(out, "[[Loop.md]] (Error: Circular dependency)") {
		t.Errorf("self reference not detected:\n%s", out)
	}
}

func TestResolveDepthBound(t *testing.T) {
	v := newMemVault(map[string]string{
		"N0.md": "n0\n[[N1]]",
		"N1.md": "n1\n[[N2]]",
		"N2.md": "n2\n[[N3]]",
		"N3.md": "n3\n[[N4]]",
		"N4.md": "n4",
	})
	events := &collector{}
	opts := defaultOpts()
	opts.MaxDepth = 3
	r := New(v, nil, nil, opts)
	r.Events = events
	out := r.Resolve(context.Background(), vault.NewFile("N0.md"), NewContext("N0.md"))

	// N3 sits at depth 3: returned raw, its link untouched.
	if !strings.Contains(out, "n3\n[[N4]]") {
		t.Errorf("depth-limited node was not returned raw:\n%s", out)
	}
	if strings.Contains(out, "n4") {
		t.Errorf("node beyond the depth bound was resolved:\n%s", out)
	}
	if strings.Contains(out, "(Error:") {
		t.Errorf("depth bounding must not produce error markers:\n%s", out)
	}
	if errs := events.byStatus(StatusError); len(errs) != 0 {
		t.Errorf("depth bounding must not produce error events, got %d", len(errs))
	}
}

func TestResolveCachingExecutesOnce(t *testing.T) {
	v := newMemVault(map[string]string{
		"Main.md": "[[Task]]\nmiddle\n[[Task]]",
		"Task.md": "#### user\ndo the thing",
	})
	exec := newFakeExec("the-answer")
	r := New(v, exec, nil, defaultOpts())
	out := r.Resolve(context.Background(), vault.NewFile("Main.md"), NewContext("Main.md"))

	if exec.total() != 1 {
		t.Errorf("executor ran %d times, want 1", exec.total())
	}
	if got := strings.Count(out, "the-answer"); got != 2 {
		t.Errorf("answer substituted %d times, want 2:\n%s", got, out)
	}
	want := "the-answer\nmiddle\nthe-answer"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestResolveCacheAcrossCalls(t *testing.T) {
	v := newMemVault(map[string]string{
		"Task.md": "#### user\ndo the thing",
	})
	exec := newFakeExec("cached-answer")
	events := &collector{}
	r := New(v, exec, nil, defaultOpts())
	r.Events = events
	rctx := NewContext("Task.md")
	ctx := context.Background()
	f := vault.NewFile("Task.md")

	first := r.Resolve(ctx, f, rctx)
	second := r.Resolve(ctx, f, rctx)

	if exec.total() != 1 {
		t.Errorf("executor ran %d times, want 1", exec.total())
	}
	if first != second {
		t.Errorf("cached result differs: %q vs %q", first, second)
	}
	if cached := events.byStatus(StatusCached); len(cached) != 1 {
		t.Errorf("cached events = %d, want 1", len(cached))
	}
}

func TestResolveOrderPreserved(t *testing.T) {
	v := newMemVault(map[string]string{
		"Main.md": "A\n[[X]]\nB\n[[Y]]\nC",
		"X.md":    "xdata",
		"Y.md":    "ydata",
	})
	v.delays["X.md"] = 80 * time.Millisecond
	r := New(v, nil, nil, defaultOpts())

	start := time.Now()
	out := r.Resolve(context.Background(), vault.NewFile("Main.md"), NewContext("Main.md"))
	elapsed := time.Since(start)

	want := "A\nxdata\nB\nydata\nC"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
	// Rough sanity check that the two reads overlapped rather than ran
	// back to back; generous bound to stay robust on slow machines.
	if elapsed > 2*time.Second {
		t.Errorf("resolution took %v, siblings likely serialized", elapsed)
	}
}

func TestResolveUnresolvableStaysLiteral(t *testing.T) {
	v := newMemVault(map[string]string{
		"Main.md": "x\n[[doesnotexist]]\ny",
	})
	events := &collector{}
	r := New(v, nil, nil, defaultOpts())
	r.Events = events
	out := r.Resolve(context.Background(), vault.NewFile("Main.md"), NewContext("Main.md"))

	if out != "x\n[[doesnotexist]]\ny" {
		t.Errorf("output = %q", out)
	}
	if errs := events.byStatus(StatusError); len(errs) != 0 {
		t.Errorf("unresolvable link produced %d error events", len(errs))
	}
	for _, e := range events.all() {
		if e.FilePath != "Main.md" {
			t.Errorf("unexpected event for %q", e.FilePath)
		}
	}
}

func TestResolvePendingChatEndToEnd(t *testing.T) {
	v := newMemVault(map[string]string{
		"Main.md":  "# Report\n[[Task1]]",
		"Task1.md": "#### user\nsummarize everything",
	})
	exec := newFakeExec("summary-done")
	opts := defaultOpts()
	opts.WriteIntermediateResults = true
	r := New(v, exec, nil, opts)
	out := r.Resolve(context.Background(), vault.NewFile("Main.md"), NewContext("Main.md"))

	if out != "# Report\nsummary-done" {
		t.Errorf("output = %q", out)
	}
	if exec.total() != 1 {
		t.Errorf("executor ran %d times", exec.total())
	}
	written, ok := v.writes["Task1.md"]
	if !ok {
		t.Fatal("executed chat was not persisted")
	}
	if !strings.Contains(written, "#### assistant\nsummary-done") {
		t.Errorf("persisted markdown missing reply:\n%s", written)
	}
	if !strings.HasSuffix(written, "#### user\n") {
		t.Errorf("persisted markdown missing trailing empty user message:\n%s", written)
	}
}

func TestResolveRootNotPersisted(t *testing.T) {
	v := newMemVault(map[string]string{
		"Main.md": "#### user\nroot question",
	})
	exec := newFakeExec("root-answer")
	opts := defaultOpts()
	opts.WriteIntermediateResults = true
	r := New(v, exec, nil, opts)
	out := r.Resolve(context.Background(), vault.NewFile("Main.md"), NewContext("Main.md"))

	if out != "root-answer" {
		t.Errorf("output = %q", out)
	}
	if len(v.writes) != 0 {
		t.Errorf("root file must not be written back, got %v", v.writes)
	}
}

func TestResolveAnswerFallbackSingleMessage(t *testing.T) {
	v := newMemVault(map[string]string{
		"Task.md": "#### user\nq",
	})
	exec := newFakeExec("")
	exec.msgs = []model.ChatMessage{model.AssistantMessage("solo")}
	r := New(v, exec, nil, defaultOpts())
	out := r.Resolve(context.Background(), vault.NewFile("Task.md"), NewContext("Task.md"))
	if out != "solo" {
		t.Errorf("output = %q, want fallback to the only message", out)
	}
}

func TestResolveDisabledPassthrough(t *testing.T) {
	raw := "top\n[[A]]"
	v := newMemVault(map[string]string{
		"Main.md": raw,
		"A.md":    "a-body",
	})
	events := &collector{}
	opts := defaultOpts()
	opts.Enabled = false
	r := New(v, nil, nil, opts)
	r.Events = events
	out := r.Resolve(context.Background(), vault.NewFile("Main.md"), NewContext("Main.md"))

	if out != raw {
		t.Errorf("disabled resolver must pass through raw content, got %q", out)
	}
	if len(events.all()) != 0 {
		t.Errorf("disabled resolver emitted %d events", len(events.all()))
	}
}

func TestResolveExecutorFailureIsolated(t *testing.T) {
	v := newMemVault(map[string]string{
		"Main.md": "head\n[[Task]]\ntail",
		"Task.md": "#### user\nboom",
	})
	exec := newFakeExec("")
	exec.err = errors.New("backend down")
	events := &collector{}
	r := New(v, exec, nil, defaultOpts())
	r.Events = events
	out := r.Resolve(context.Background(), vault.NewFile("Main.md"), NewContext("Main.md"))

	if !strings.HasPrefix(out, "head\n") || !strings.HasSuffix(out, "\ntail") {
		t.Errorf("failure leaked beyond its node:\n%s", out)
	}
	if !strings.Contains(out, "[[Task.md]] (Error:") || !strings.Contains(out, "backend down") {
		t.Errorf("missing inline error marker:\n%s", out)
	}
	errs := events.byStatus(StatusError)
	if len(errs) != 1 {
		t.Fatalf("error events = %d, want 1", len(errs))
	}
	if errs[0].FilePath != "Task.md" || !errs[0].IsPendingChat {
		t.Errorf("error event wrong: %+v", errs[0])
	}
	// The parent still completes.
	var mainCompleted bool
	for _, e := range events.byStatus(StatusComplete) {
		if e.FilePath == "Main.md" {
			mainCompleted = true
		}
	}
	if !mainCompleted {
		t.Error("parent node did not complete")
	}
}

func TestResolveNoExecutor(t *testing.T) {
	v := newMemVault(map[string]string{
		"Task.md": "#### user\nq",
	})
	r := New(v, nil, nil, defaultOpts())
	out := r.Resolve(context.Background(), vault.NewFile("Task.md"), NewContext("Task.md"))
	if !strings.Contains(out, "(Error: no executor configured for pending chat)") {
		t.Errorf("output = %q", out)
	}
}

func TestResolveEventLifecycle(t *testing.T) {
	v := newMemVault(map[string]string{
		"Main.md": "top\n[[A]]",
		"A.md":    "a-body",
	})
	events := &collector{}
	r := New(v, nil, nil, defaultOpts())
	r.Events = events
	rctx := NewContext("Main.md")
	r.Resolve(context.Background(), vault.NewFile("Main.md"), rctx)

	all := events.all()
	if len(all) == 0 {
		t.Fatal("no events emitted")
	}
	first := all[0]
	if first.FilePath != "Main.md" || first.Status != StatusResolving || first.Phase != PhaseStart {
		t.Errorf("first event = %+v", first)
	}
	last := all[len(all)-1]
	if last.FilePath != "Main.md" || last.Status != StatusComplete {
		t.Errorf("last event = %+v", last)
	}
	if last.IsChatFile == nil || *last.IsChatFile {
		t.Errorf("plain document flagged as chat: %+v", last)
	}
	seen := map[uint64]bool{}
	for i, e := range all {
		if e.RunID != rctx.RunID {
			t.Errorf("event %d has run id %q, want %q", i, e.RunID, rctx.RunID)
		}
		if seen[e.Seq] {
			t.Errorf("duplicate seq %d", e.Seq)
		}
		seen[e.Seq] = true
		if i > 0 && all[i-1].Seq >= e.Seq {
			t.Errorf("seq not increasing at %d", i)
		}
	}
	var childStart *Event
	for _, e := range all {
		if e.FilePath == "A.md" && e.Phase == PhaseStart {
			ev := e
			childStart = &ev
		}
	}
	if childStart == nil {
		t.Fatal("no start event for child")
	}
	if childStart.ParentPath != "Main.md" || childStart.Depth != 1 {
		t.Errorf("child start event = %+v", childStart)
	}
}

func TestResolveMessageContentMultimodal(t *testing.T) {
	v := newMemVault(map[string]string{"Chat.md": "#### user\nx"})
	v.bins["pic.png"] = []byte{0x89, 'P', 'N', 'G'}
	v.bins["clip.mp3"] = []byte("mp3data")
	enc := media.NewEncoder(v, nil, 0)
	r := New(v, nil, enc, defaultOpts())

	content := "look\n[[pic.png]]\n[[clip.mp3]]\ntail"
	got := r.ResolveMessageContent(context.Background(), content,
		vault.NewFile("Chat.md"), NewContext("Chat.md"), Frame{}, model.RoleUser)

	if !got.IsParts() {
		t.Fatalf("expected parts, got %+v", got)
	}
	parts := got.Parts
	if len(parts) != 4 {
		t.Fatalf("parts = %d, want 4: %+v", len(parts), parts)
	}
	wantTypes := []model.PartType{model.PartText, model.PartImage, model.PartAudio, model.PartText}
	for i, w := range wantTypes {
		if parts[i].Type != w {
			t.Errorf("part %d type = %s, want %s", i, parts[i].Type, w)
		}
	}
	for i := 1; i < len(parts); i++ {
		if parts[i-1].Type == model.PartText && parts[i].Type == model.PartText {
			t.Errorf("adjacent text parts at %d", i)
		}
	}
	if !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,") {
		t.Errorf("image url = %q", parts[1].ImageURL.URL)
	}
	if parts[2].InputAudio.Format != "mp3" {
		t.Errorf("audio format = %q", parts[2].InputAudio.Format)
	}
}

func TestResolveMessageContentAssistantKeepsText(t *testing.T) {
	v := newMemVault(map[string]string{
		"Chat.md": "#### user\nx",
		"pic.png": "PNGDATA",
	})
	enc := media.NewEncoder(v, nil, 0)
	r := New(v, nil, enc, defaultOpts())

	got := r.ResolveMessageContent(context.Background(), "see\n[[pic.png]]\ndone",
		vault.NewFile("Chat.md"), NewContext("Chat.md"), Frame{}, model.RoleAssistant)

	if got.IsParts() {
		t.Fatalf("assistant content must stay text, got parts: %+v", got.Parts)
	}
	if got.Text != "see\nPNGDATA\ndone" {
		t.Errorf("text = %q", got.Text)
	}
}

func TestResolveMessageContentCollapses(t *testing.T) {
	v := newMemVault(map[string]string{
		"Chat.md": "#### user\nx",
		"Note.md": "note-body",
	})
	r := New(v, nil, nil, defaultOpts())

	got := r.ResolveMessageContent(context.Background(), "pre\n[[Note]]\npost",
		vault.NewFile("Chat.md"), NewContext("Chat.md"), Frame{}, model.RoleUser)

	if got.IsParts() {
		t.Fatalf("single text run must collapse, got parts: %+v", got.Parts)
	}
	if got.Text != "pre\nnote-body\npost" {
		t.Errorf("text = %q", got.Text)
	}
}

func TestResolveMessageContentMediaFailureDegrades(t *testing.T) {
	v := newMemVault(map[string]string{"Chat.md": "#### user\nx"})
	v.bins["memo.m4a"] = []byte("m4a")
	// No decoder configured: m4a encoding fails and the link stays literal.
	enc := media.NewEncoder(v, nil, 0)
	r := New(v, nil, enc, defaultOpts())

	got := r.ResolveMessageContent(context.Background(), "note\n[[memo.m4a]]\nend",
		vault.NewFile("Chat.md"), NewContext("Chat.md"), Frame{}, model.RoleUser)

	if got.IsParts() {
		t.Fatalf("expected degraded text content, got %+v", got.Parts)
	}
	if got.Text != "note\n[[memo.m4a]]\nend" {
		t.Errorf("text = %q", got.Text)
	}
}
