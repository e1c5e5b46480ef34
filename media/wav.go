package media

import (
	"encoding/binary"
	"math"
)

// PCM is decoded audio: interleaved float samples in [-1, 1].
type PCM struct {
	Samples  []float64
	Rate     int
	Channels int
}

// EncodeWAV packs PCM samples into a minimal RIFF/WAVE container with
// 16-bit signed little-endian samples. Samples outside [-1, 1] are clamped
// before scaling.
func EncodeWAV(pcm PCM) []byte {
	const (
		headerSize     = 44
		bytesPerSample = 2
	)
	channels := pcm.Channels
	if channels < 1 {
		channels = 1
	}
	dataLen := len(pcm.Samples) * bytesPerSample
	buf := make([]byte, headerSize+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(pcm.Rate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(pcm.Rate*channels*bytesPerSample))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(channels*bytesPerSample))
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	for i, s := range pcm.Samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(math.Round(s * 32767))
		binary.LittleEndian.PutUint16(buf[headerSize+i*bytesPerSample:], uint16(v))
	}
	return buf
}
