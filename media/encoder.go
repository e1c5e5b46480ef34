package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/weftlabs/weft/model"
	"github.com/weftlabs/weft/vault"
)

// Encoder turns vault attachments into multimodal content parts. Encoded
// parts are cached by path, size and modification time so a file embedded
// many times is read and transcoded once.
type Encoder struct {
	vault   vault.Vault
	decoder PCMDecoder
	cache   *lru.Cache[string, model.ContentPart]
	Logger  *slog.Logger
}

// NewEncoder creates an encoder. cacheSize <= 0 disables the part cache.
// decoder may be nil when no m4a transcoding is needed.
func NewEncoder(v vault.Vault, decoder PCMDecoder, cacheSize int) *Encoder {
	e := &Encoder{vault: v, decoder: decoder}
	if cacheSize > 0 {
		// lru.New errors only on non-positive size.
		cache, _ := lru.New[string, model.ContentPart](cacheSize)
		e.cache = cache
	}
	return e
}

// ImagePart encodes an image file as a base64 data-URI image_url part.
func (e *Encoder) ImagePart(ctx context.Context, f *vault.File) (model.ContentPart, error) {
	if part, ok := e.cached(ctx, f); ok {
		return part, nil
	}
	data, err := e.vault.ReadBinary(ctx, f.Path)
	if err != nil {
		return model.ContentPart{}, fmt.Errorf("failed to read image %s: %w", f.Path, err)
	}
	uri := "data:" + MIMEType(f.Ext) + ";base64," + base64.StdEncoding.EncodeToString(data)
	part := model.ImagePart(uri)
	e.remember(ctx, f, part)
	return part, nil
}

// AudioPart encodes an audio file as an input_audio part. m4a files are
// transcoded to PCM16 WAV first; other formats are passed through with
// their own format name.
func (e *Encoder) AudioPart(ctx context.Context, f *vault.File) (model.ContentPart, error) {
	if part, ok := e.cached(ctx, f); ok {
		return part, nil
	}
	data, err := e.vault.ReadBinary(ctx, f.Path)
	if err != nil {
		return model.ContentPart{}, fmt.Errorf("failed to read audio %s: %w", f.Path, err)
	}
	format := f.Ext
	if f.Ext == "m4a" {
		if e.decoder == nil {
			return model.ContentPart{}, fmt.Errorf("no decoder available for %s", f.Path)
		}
		pcm, err := e.decoder.DecodePCM(ctx, data)
		if err != nil {
			return model.ContentPart{}, fmt.Errorf("failed to transcode %s: %w", f.Path, err)
		}
		data = EncodeWAV(pcm)
		format = "wav"
		e.logger().Debug("transcoded m4a to wav",
			slog.String("path", f.Path), slog.Int("samples", len(pcm.Samples)))
	}
	part := model.AudioPart(base64.StdEncoding.EncodeToString(data), format)
	e.remember(ctx, f, part)
	return part, nil
}

// cached looks up the part cache. Misses include caching being off and
// files that cannot be stat'ed.
func (e *Encoder) cached(ctx context.Context, f *vault.File) (model.ContentPart, bool) {
	key := e.key(ctx, f)
	if key == "" {
		return model.ContentPart{}, false
	}
	return e.cache.Get(key)
}

func (e *Encoder) remember(ctx context.Context, f *vault.File, part model.ContentPart) {
	if key := e.key(ctx, f); key != "" {
		e.cache.Add(key, part)
	}
}

func (e *Encoder) key(ctx context.Context, f *vault.File) string {
	if e.cache == nil {
		return ""
	}
	info, err := e.vault.Stat(ctx, f.Path)
	if err != nil {
		return ""
	}
	return f.Path + "|" + strconv.FormatInt(info.ModTime.UnixNano(), 10) + "|" + strconv.FormatInt(info.Size, 10)
}

func (e *Encoder) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
