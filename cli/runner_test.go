package cli

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/weftlabs/weft/resolve"
)

func clearWeftEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"WEFT_ENABLED", "WEFT_MAX_DEPTH", "WEFT_CACHING", "WEFT_WRITE_INTERMEDIATE",
		"WEFT_PROVIDER", "WEFT_MODEL", "WEFT_MAX_TOKENS", "WEFT_TEMPERATURE",
		"WEFT_FFMPEG", "WEFT_MEDIA_CACHE", "WEFT_DB", "WEFT_VERBOSE",
	} {
		t.Setenv(key, "")
	}
}

func TestBuildSettingsDefaults(t *testing.T) {
	clearWeftEnv(t)

	settings, err := buildSettings(Options{})
	if err != nil {
		t.Fatalf("buildSettings failed: %v", err)
	}
	if settings.Provider != "openai" {
		t.Errorf("expected default provider 'openai', got %q", settings.Provider)
	}
	if settings.Resolution.MaxDepth != 5 {
		t.Errorf("expected default max depth 5, got %d", settings.Resolution.MaxDepth)
	}
	if !settings.Resolution.EnableCaching {
		t.Error("expected caching on by default")
	}
	if settings.DBPath != "weft.db" {
		t.Errorf("expected default db path 'weft.db', got %q", settings.DBPath)
	}
}

func TestBuildSettingsFlagOverrides(t *testing.T) {
	clearWeftEnv(t)
	t.Setenv("WEFT_PROVIDER", "gemini")
	t.Setenv("WEFT_MAX_DEPTH", "7")

	settings, err := buildSettings(Options{
		Provider:  "anthropic",
		Model:     "claude-custom",
		MaxDepth:  2,
		NoCache:   true,
		WriteBack: true,
		DBPath:    "elsewhere.db",
		Verbose:   true,
	})
	if err != nil {
		t.Fatalf("buildSettings failed: %v", err)
	}

	if settings.Provider != "anthropic" {
		t.Errorf("expected flag to beat environment, got provider %q", settings.Provider)
	}
	if settings.Model != "claude-custom" {
		t.Errorf("expected model override, got %q", settings.Model)
	}
	if settings.Resolution.MaxDepth != 2 {
		t.Errorf("expected max depth 2, got %d", settings.Resolution.MaxDepth)
	}
	if settings.Resolution.EnableCaching {
		t.Error("expected --no-cache to disable caching")
	}
	if !settings.Resolution.WriteIntermediateResults {
		t.Error("expected --write-back to enable write-back")
	}
	if settings.DBPath != "elsewhere.db" {
		t.Errorf("expected db path override, got %q", settings.DBPath)
	}
	if !settings.Verbose {
		t.Error("expected verbose on")
	}
}

func TestBuildSettingsRejectsInvalid(t *testing.T) {
	clearWeftEnv(t)

	if _, err := buildSettings(Options{Provider: "aol"}); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, err := buildSettings(Options{MaxDepth: 99}); err == nil {
		t.Error("expected error for out-of-range depth")
	}
}

func TestJSONSinkEmitsOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := newJSONSink(&buf)

	sink.Emit(resolve.Event{
		RunID:    "run-1",
		Seq:      0,
		At:       time.Unix(0, 1700000000000000000),
		FilePath: "Notes.md",
		Status:   resolve.StatusResolving,
		Phase:    resolve.PhaseStart,
	})
	sink.Emit(resolve.Event{
		RunID:    "run-1",
		Seq:      1,
		At:       time.Unix(0, 1700000000000000001),
		FilePath: "Notes.md",
		Status:   resolve.StatusComplete,
		Phase:    resolve.PhaseUpdate,
	})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSON lines, got %d", len(lines))
	}

	var event resolve.Event
	if err := json.Unmarshal(lines[1], &event); err != nil {
		t.Fatalf("failed to decode event line: %v", err)
	}
	if event.Seq != 1 || event.Status != resolve.StatusComplete {
		t.Errorf("expected second event to round trip, got %+v", event)
	}
}
