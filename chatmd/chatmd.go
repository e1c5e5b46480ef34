// Package chatmd parses and renders chat-markdown documents.
//
// A chat document is ordinary markdown in which messages are introduced by
// a level-four heading carrying a role:
//
//	#### user
//	What is the capital of France?
//
//	#### assistant
//	Paris.
//
// Information Hiding:
// - The heading marker and code-fence handling stay here
// - Callers work with model.ChatMessage values only
package chatmd

import (
	"strings"

	"github.com/weftlabs/weft/model"
)

const headingPrefix = "#### "

// Chat is a parsed chat-markdown document.
type Chat struct {
	// Valid reports whether the document contained at least one role
	// heading. Invalid documents are plain markdown, not chats.
	Valid bool
	// Preamble is any content before the first role heading.
	Preamble string
	// Messages are the parsed messages in document order.
	Messages []model.ChatMessage
}

// Pending reports whether the chat is awaiting execution: a valid chat
// with at least one message whose last message is user-authored.
func (c Chat) Pending() bool {
	if !c.Valid || len(c.Messages) == 0 {
		return false
	}
	return c.Messages[len(c.Messages)-1].Role == model.RoleUser
}

// Parse reads a chat-markdown document. Role headings inside fenced code
// blocks do not start messages.
//
// Limitations:
// - Fences are detected by a ``` or ~~~ line prefix, not full CommonMark
// - Indented code blocks are not recognized as fences
func Parse(raw string) Chat {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	var chat Chat
	var preamble []string
	var body []string
	var role model.Role
	inFence := false

	flush := func() {
		if !chat.Valid {
			chat.Preamble = strings.Join(trimBlankLines(preamble), "\n")
			return
		}
		text := strings.Join(trimBlankLines(body), "\n")
		chat.Messages = append(chat.Messages, model.ChatMessage{
			Role:    role,
			Content: model.TextContent(text),
		})
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "```") || strings.HasPrefix(line, "~~~") {
			inFence = !inFence
		}
		if !inFence {
			if r, ok := parseHeading(line); ok {
				flush()
				chat.Valid = true
				role = r
				body = body[:0]
				continue
			}
		}
		if chat.Valid {
			body = append(body, line)
		} else {
			preamble = append(preamble, line)
		}
	}
	flush()
	return chat
}

// Render serializes messages to chat markdown. Multimodal content is
// flattened to its text parts. Render and Parse round-trip for messages
// whose bodies carry no leading or trailing blank lines.
func Render(messages []model.ChatMessage) string {
	var b strings.Builder
	for i, m := range messages {
		b.WriteString(headingPrefix)
		b.WriteString(string(m.Role))
		b.WriteString("\n")
		if text := m.Content.String(); text != "" {
			b.WriteString(text)
			b.WriteString("\n")
		}
		if i < len(messages)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func parseHeading(line string) (model.Role, bool) {
	if !strings.HasPrefix(line, headingPrefix) {
		return "", false
	}
	return model.ParseRole(strings.TrimSpace(line[len(headingPrefix):]))
}

func trimBlankLines(lines []string) []string {
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end]
}
