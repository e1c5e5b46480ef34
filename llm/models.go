// Shared data models for LLM providers.

package llm

import (
	"fmt"
	"strings"

	"github.com/weftlabs/weft/model"
)

// ChatMessage is the transcript message type shared with the rest of the
// engine. Content is either plain text or a list of multimodal parts.
type ChatMessage = model.ChatMessage

// Response represents a response from an LLM provider.
type Response struct {
	Content string
	Usage   *TokenUsage
}

// TokenUsage contains token usage statistics.
type TokenUsage struct {
	PromptTokens     uint32
	CompletionTokens uint32
	TotalTokens      uint32
}

// audioNote is the text substituted for an audio part on providers whose
// chat API does not accept audio input.
func audioNote(a *model.InputAudio) string {
	return fmt.Sprintf("[audio attachment (%s) omitted: provider does not accept audio input]", a.Format)
}

// splitDataURI splits a base64 data URI into its media type and payload.
func splitDataURI(uri string) (mediaType, data string, ok bool) {
	rest, found := strings.CutPrefix(uri, "data:")
	if !found {
		return "", "", false
	}
	mediaType, data, found = strings.Cut(rest, ";base64,")
	if !found {
		return "", "", false
	}
	return mediaType, data, true
}

// flattenToText renders message content as plain text for providers that
// only accept string content. Media parts become placeholder notes.
func flattenToText(c model.Content) string {
	if !c.IsParts() {
		return c.Text
	}
	var sb strings.Builder
	for _, part := range c.Parts {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		switch part.Type {
		case model.PartText:
			sb.WriteString(part.Text)
		case model.PartImage:
			sb.WriteString("[image attachment omitted: provider does not accept image input]")
		case model.PartAudio:
			sb.WriteString(audioNote(part.InputAudio))
		}
	}
	return sb.String()
}
