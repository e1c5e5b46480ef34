package chatmd

import (
	"strings"
	"testing"

	"github.com/weftlabs/weft/model"
)

func TestParseBasicChat(t *testing.T) {
	raw := "#### system\nYou are terse.\n\n#### user\nWhat is 2+2?\n"
	chat := Parse(raw)
	if !chat.Valid {
		t.Fatal("expected a valid chat")
	}
	if len(chat.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(chat.Messages))
	}
	if chat.Messages[0].Role != model.RoleSystem || chat.Messages[0].Content.Text != "You are terse." {
		t.Errorf("system message: %+v", chat.Messages[0])
	}
	if chat.Messages[1].Role != model.RoleUser || chat.Messages[1].Content.Text != "What is 2+2?" {
		t.Errorf("user message: %+v", chat.Messages[1])
	}
}

func TestParsePreamble(t *testing.T) {
	raw := "Notes about this task.\n\n#### user\ngo\n"
	chat := Parse(raw)
	if chat.Preamble != "Notes about this task." {
		t.Errorf("preamble = %q", chat.Preamble)
	}
	if len(chat.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(chat.Messages))
	}
}

func TestParseInvalidDocument(t *testing.T) {
	chat := Parse("just a note\nwith [[links]]\n")
	if chat.Valid {
		t.Error("plain markdown must not be a valid chat")
	}
	if chat.Pending() {
		t.Error("invalid chat cannot be pending")
	}
}

func TestParseIgnoresHeadingsInFences(t *testing.T) {
	raw := "#### user\nhere is a sample:\n```\n#### assistant\nfake\n```\ndone\n"
	chat := Parse(raw)
	if len(chat.Messages) != 1 {
		t.Fatalf("fenced heading started a message: %+v", chat.Messages)
	}
	body := chat.Messages[0].Content.Text
	if !strings.Contains(body, "#### assistant") {
		t.Errorf("fence content lost: %q", body)
	}
}

func TestParseCRLF(t *testing.T) {
	chat := Parse("#### user\r\nhi\r\n")
	if !chat.Valid || len(chat.Messages) != 1 {
		t.Fatalf("CRLF parse failed: %+v", chat)
	}
	if chat.Messages[0].Content.Text != "hi" {
		t.Errorf("body = %q", chat.Messages[0].Content.Text)
	}
}

func TestParseRejectsDeeperHeadings(t *testing.T) {
	chat := Parse("##### user\nnot a role heading\n")
	if chat.Valid {
		t.Error("five-hash heading must not start a chat")
	}
}

func TestPending(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want bool
	}{
		{"last is user", "#### user\nquestion\n", true},
		{"last is assistant", "#### user\nq\n\n#### assistant\na\n", false},
		{"trailing empty user", "#### user\nq\n\n#### assistant\na\n\n#### user\n", true},
		{"not a chat", "plain text", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Parse(tc.raw).Pending(); got != tc.want {
				t.Errorf("Pending() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRenderRoundTrip(t *testing.T) {
	messages := []model.ChatMessage{
		model.SystemMessage("You are terse."),
		model.UserMessage("What is 2+2?"),
		model.AssistantMessage("4"),
		model.UserMessage(""),
	}
	rendered := Render(messages)
	parsed := Parse(rendered)
	if !parsed.Valid {
		t.Fatal("rendered chat failed to parse")
	}
	if len(parsed.Messages) != len(messages) {
		t.Fatalf("round trip lost messages: %d != %d", len(parsed.Messages), len(messages))
	}
	for i, m := range parsed.Messages {
		if m.Role != messages[i].Role {
			t.Errorf("message %d role = %s, want %s", i, m.Role, messages[i].Role)
		}
		if m.Content.Text != messages[i].Content.Text {
			t.Errorf("message %d content = %q, want %q", i, m.Content.Text, messages[i].Content.Text)
		}
	}
	if !parsed.Pending() {
		t.Error("trailing empty user message should leave the chat pending")
	}
}
