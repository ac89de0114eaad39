package native

import (
	"encoding/binary"
	"math"
	"testing"
)

// encodeWAV builds a minimal RIFF/WAV container around raw 16-bit PCM data.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	byteRate := sampleRate * channels * 2
	blockAlign := channels * 2
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)
	return buf
}

func TestDecodeWAV_RoundTrip(t *testing.T) {
	t.Parallel()
	pcm := make([]byte, 8)
	binary.LittleEndian.PutUint16(pcm[0:2], uint16(int16(16384)))  // 0.5
	binary.LittleEndian.PutUint16(pcm[2:4], uint16(int16(-16384))) // -0.5
	binary.LittleEndian.PutUint16(pcm[4:6], uint16(int16(0)))
	binary.LittleEndian.PutUint16(pcm[6:8], uint16(int16(32767)))

	samples, rate, channels, err := decodeWAV(encodeWAV(pcm, 16000, 1))
	if err != nil {
		t.Fatalf("decodeWAV: %v", err)
	}
	if rate != 16000 || channels != 1 {
		t.Fatalf("rate/channels = %d/%d, want 16000/1", rate, channels)
	}
	if len(samples) != 4 {
		t.Fatalf("len(samples) = %d, want 4", len(samples))
	}
	want := []float32{0.5, -0.5, 0, 32767.0 / 32768.0}
	for i, w := range want {
		if math.Abs(float64(samples[i]-w)) > 1e-6 {
			t.Errorf("samples[%d] = %f, want %f", i, samples[i], w)
		}
	}
}

func TestDecodeWAV_RejectsNonWAV(t *testing.T) {
	t.Parallel()
	if _, _, _, err := decodeWAV([]byte("OggS garbage that is not a wav file")); err == nil {
		t.Fatal("expected error for non-WAV input, got nil")
	}
}

func TestDecodeWAV_RejectsNonPCMFormat(t *testing.T) {
	t.Parallel()
	wav := encodeWAV(make([]byte, 4), 16000, 1)
	binary.LittleEndian.PutUint16(wav[20:22], 3) // IEEE float
	if _, _, _, err := decodeWAV(wav); err == nil {
		t.Fatal("expected error for non-PCM format, got nil")
	}
}

func TestDownmix_StereoAverages(t *testing.T) {
	t.Parallel()
	stereo := []float32{1, 0, 0.5, 0.5, -1, 1}
	mono := downmix(stereo, 2)
	want := []float32{0.5, 0.5, 0}
	if len(mono) != len(want) {
		t.Fatalf("len = %d, want %d", len(mono), len(want))
	}
	for i, w := range want {
		if mono[i] != w {
			t.Errorf("mono[%d] = %f, want %f", i, mono[i], w)
		}
	}
}

func TestNew_RequiresModelPath(t *testing.T) {
	t.Parallel()
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty modelPath, got nil")
	}
}
