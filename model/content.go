// Package model defines the shared message and content types for the
// resolution engine and the completion providers.
//
// Information Hiding:
// - Content hides whether a message body is plain text or multimodal parts
// - JSON wire shapes follow the chat-completions multimodal schema
// - Part construction is only done through the typed constructors
package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PartType discriminates the kinds of multimodal content parts.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image_url"
	PartAudio PartType = "input_audio"
)

// ImageURL carries an image reference, typically a base64 data URI.
type ImageURL struct {
	URL string `json:"url"`
}

// InputAudio carries base64-encoded audio and its container format.
type InputAudio struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

// ContentPart is one element of a multimodal message body. Exactly one of
// Text, ImageURL or InputAudio is populated, matching Type.
type ContentPart struct {
	Type       PartType    `json:"type"`
	Text       string      `json:"text,omitempty"`
	ImageURL   *ImageURL   `json:"image_url,omitempty"`
	InputAudio *InputAudio `json:"input_audio,omitempty"`
}

// TextPart creates a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartText, Text: text}
}

// ImagePart creates an image_url content part.
func ImagePart(url string) ContentPart {
	return ContentPart{Type: PartImage, ImageURL: &ImageURL{URL: url}}
}

// AudioPart creates an input_audio content part.
func AudioPart(data, format string) ContentPart {
	return ContentPart{Type: PartAudio, InputAudio: &InputAudio{Data: data, Format: format}}
}

// Content is a message body: either plain text or a list of multimodal
// parts. A nil Parts slice means plain text; the two forms are never both
// populated.
type Content struct {
	Text  string
	Parts []ContentPart
}

// TextContent creates a plain-text content value.
func TextContent(text string) Content {
	return Content{Text: text}
}

// PartsContent creates a multimodal content value.
func PartsContent(parts []ContentPart) Content {
	return Content{Parts: parts}
}

// IsParts reports whether the content carries multimodal parts.
func (c Content) IsParts() bool {
	return c.Parts != nil
}

// String flattens the content to text. Non-text parts are skipped; text
// parts are joined with newlines.
func (c Content) String() string {
	if !c.IsParts() {
		return c.Text
	}
	var texts []string
	for _, p := range c.Parts {
		if p.Type == PartText {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// MarshalJSON emits a bare string for text content and an array for parts.
// An empty parts slice marshals as the empty string.
func (c Content) MarshalJSON() ([]byte, error) {
	if len(c.Parts) > 0 {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts both the string and the array wire forms.
func (c *Content) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*c = TextContent(text)
		return nil
	}
	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("failed to unmarshal content: %w", err)
	}
	*c = PartsContent(parts)
	return nil
}

// MergeAdjacentText joins neighboring text parts with a newline so that a
// parts list never carries two text parts in a row.
func MergeAdjacentText(parts []ContentPart) []ContentPart {
	merged := make([]ContentPart, 0, len(parts))
	for _, p := range parts {
		n := len(merged)
		if p.Type == PartText && n > 0 && merged[n-1].Type == PartText {
			merged[n-1].Text = merged[n-1].Text + "\n" + p.Text
			continue
		}
		merged = append(merged, p)
	}
	return merged
}

// Collapse merges adjacent text parts and, when the result is a single text
// part (or nothing), collapses it to plain-text content.
func Collapse(parts []ContentPart) Content {
	merged := MergeAdjacentText(parts)
	switch {
	case len(merged) == 0:
		return TextContent("")
	case len(merged) == 1 && merged[0].Type == PartText:
		return TextContent(merged[0].Text)
	default:
		return PartsContent(merged)
	}
}
