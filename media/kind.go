// Package media classifies vault attachments and encodes them into
// multimodal content parts.
//
// Information Hiding:
// - Extension-to-kind and extension-to-MIME tables stay here
// - Base64 and data-URI layout is not visible to callers
// - The transcode pipeline behind audio parts is an implementation detail
package media

// MediaKind is the coarse classification of an attachment.
type MediaKind int

const (
	KindNone MediaKind = iota
	KindImage
	KindAudio
)

var imageExts = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"svg":  "image/svg+xml",
}

var audioExts = map[string]string{
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"m4a":  "audio/mp4",
	"ogg":  "audio/ogg",
	"oga":  "audio/ogg",
	"flac": "audio/flac",
	"aac":  "audio/aac",
}

// Kind classifies a lowercased file extension (without the dot).
func Kind(ext string) MediaKind {
	if _, ok := imageExts[ext]; ok {
		return KindImage
	}
	if _, ok := audioExts[ext]; ok {
		return KindAudio
	}
	return KindNone
}

// MIMEType returns the MIME type for a known media extension, or
// application/octet-stream.
func MIMEType(ext string) string {
	if m, ok := imageExts[ext]; ok {
		return m
	}
	if m, ok := audioExts[ext]; ok {
		return m
	}
	return "application/octet-stream"
}
