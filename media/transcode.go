package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// PCMDecoder decodes compressed audio bytes into float PCM.
type PCMDecoder interface {
	DecodePCM(ctx context.Context, data []byte) (PCM, error)
}

const (
	decodeRate     = 16000
	decodeChannels = 1
)

// FFmpegDecoder shells out to ffmpeg. Output is normalized to mono
// 16 kHz, the usual shape for speech input.
type FFmpegDecoder struct {
	// Binary is the ffmpeg executable, "ffmpeg" when empty.
	Binary string
}

var _ PCMDecoder = (*FFmpegDecoder)(nil)

// DecodePCM runs ffmpeg with the input on stdin and raw little-endian
// float64 samples on stdout.
func (d *FFmpegDecoder) DecodePCM(ctx context.Context, data []byte) (PCM, error) {
	bin := d.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "f64le", "-acodec", "pcm_f64le",
		"-ac", strconv.Itoa(decodeChannels), "-ar", strconv.Itoa(decodeRate),
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(data)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return PCM{}, fmt.Errorf("failed to decode audio: %w", err)
		}
		return PCM{}, fmt.Errorf("failed to decode audio: %w: %s", err, msg)
	}
	return floatsFromLE(out.Bytes())
}

func floatsFromLE(raw []byte) (PCM, error) {
	if len(raw)%8 != 0 {
		return PCM{}, fmt.Errorf("decoded stream length %d is not float64-aligned", len(raw))
	}
	samples := make([]float64, len(raw)/8)
	for i := range samples {
		bits := binary.LittleEndian.Uint64(raw[i*8:])
		samples[i] = math.Float64frombits(bits)
	}
	return PCM{Samples: samples, Rate: decodeRate, Channels: decodeChannels}, nil
}
