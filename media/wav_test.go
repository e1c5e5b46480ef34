package media

import (
	"encoding/binary"
	"testing"
)

func TestEncodeWAVHeader(t *testing.T) {
	pcm := PCM{
		Samples:  []float64{0, 0.5, -0.5, 2.0, -2.0},
		Rate:     8000,
		Channels: 1,
	}
	wav := EncodeWAV(pcm)

	if len(wav) != 44+10 {
		t.Fatalf("length = %d, want 54", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Errorf("bad RIFF/WAVE magics: %q %q", wav[0:4], wav[8:12])
	}
	if got := binary.LittleEndian.Uint32(wav[4:8]); got != 46 {
		t.Errorf("riff size = %d, want 46", got)
	}
	if string(wav[12:16]) != "fmt " {
		t.Errorf("fmt chunk id = %q", wav[12:16])
	}
	if got := binary.LittleEndian.Uint32(wav[16:20]); got != 16 {
		t.Errorf("fmt chunk size = %d", got)
	}
	if got := binary.LittleEndian.Uint16(wav[20:22]); got != 1 {
		t.Errorf("audio format = %d, want 1 (PCM)", got)
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 1 {
		t.Errorf("channels = %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 8000 {
		t.Errorf("sample rate = %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 16000 {
		t.Errorf("byte rate = %d", got)
	}
	if got := binary.LittleEndian.Uint16(wav[32:34]); got != 2 {
		t.Errorf("block align = %d", got)
	}
	if got := binary.LittleEndian.Uint16(wav[34:36]); got != 16 {
		t.Errorf("bits per sample = %d", got)
	}
	if string(wav[36:40]) != "data" {
		t.Errorf("data chunk id = %q", wav[36:40])
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != 10 {
		t.Errorf("data size = %d", got)
	}
}

func TestEncodeWAVSamplesClampAndScale(t *testing.T) {
	pcm := PCM{
		Samples:  []float64{0, 0.5, -0.5, 2.0, -2.0},
		Rate:     8000,
		Channels: 1,
	}
	wav := EncodeWAV(pcm)

	want := []int16{0, 16384, -16384, 32767, -32767}
	for i, w := range want {
		got := int16(binary.LittleEndian.Uint16(wav[44+i*2:]))
		if got != w {
			t.Errorf("sample %d = %d, want %d", i, got, w)
		}
	}
}

func TestEncodeWAVStereo(t *testing.T) {
	pcm := PCM{
		Samples:  []float64{0.1, -0.1, 0.2, -0.2},
		Rate:     44100,
		Channels: 2,
	}
	wav := EncodeWAV(pcm)
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 2 {
		t.Errorf("channels = %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 44100*2*2 {
		t.Errorf("byte rate = %d", got)
	}
	if got := binary.LittleEndian.Uint16(wav[32:34]); got != 4 {
		t.Errorf("block align = %d", got)
	}
}
