package audio_test

import (
	"math"
	"testing"
	"time"

	"github.com/MrWong99/hark/pkg/audio"
)

func TestPCM16RoundTrip(t *testing.T) {
	in := []float32{0, 0.25, -0.25, 0.99, -0.99}

	pcm := audio.Float32ToPCM16(in)
	if got, want := len(pcm), len(in)*2; got != want {
		t.Fatalf("encoded %d bytes, want %d", got, want)
	}

	out := audio.PCM16ToFloat32(pcm)
	if len(out) != len(in) {
		t.Fatalf("decoded %d samples, want %d", len(out), len(in))
	}
	for i := range in {
		if diff := math.Abs(float64(out[i] - in[i])); diff > 1.0/32768*2 {
			t.Errorf("sample %d: got %f, want %f (diff %f)", i, out[i], in[i], diff)
		}
	}
}

func TestFloat32ToPCM16Clamps(t *testing.T) {
	pcm := audio.Float32ToPCM16([]float32{2.0, -2.0})
	out := audio.PCM16ToFloat32(pcm)

	if out[0] < 0.99 || out[0] > 1.0 {
		t.Errorf("positive overflow clamped to %f, want ~1.0", out[0])
	}
	if out[1] > -0.99 || out[1] < -1.0 {
		t.Errorf("negative overflow clamped to %f, want ~-1.0", out[1])
	}
}

func TestResampleMono(t *testing.T) {
	in := make([]float32, 1600) // 100 ms at 16 kHz
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 16000))
	}

	down := audio.ResampleMono(in, 16000, 8000)
	if got, want := len(down), 800; got != want {
		t.Fatalf("downsampled to %d samples, want %d", got, want)
	}

	up := audio.ResampleMono(in, 16000, 32000)
	if got, want := len(up), 3200; got != want {
		t.Fatalf("upsampled to %d samples, want %d", got, want)
	}

	same := audio.ResampleMono(in, 16000, 16000)
	if &same[0] != &in[0] {
		t.Error("same-rate resample should return the input unchanged")
	}
}

func TestDownmixStereo(t *testing.T) {
	stereo := []float32{1, 0, 0.5, 0.5, -1, 1}
	mono := audio.DownmixStereo(stereo)

	want := []float32{0.5, 0.5, 0}
	if len(mono) != len(want) {
		t.Fatalf("downmixed to %d samples, want %d", len(mono), len(want))
	}
	for i := range want {
		if mono[i] != want[i] {
			t.Errorf("sample %d: got %f, want %f", i, mono[i], want[i])
		}
	}
}

func TestFrameDuration(t *testing.T) {
	f := audio.Frame{Samples: make([]float32, 4096), SampleRate: 16000}
	if got, want := f.Duration(), 256*time.Millisecond; got != want {
		t.Fatalf("Duration() = %v, want %v", got, want)
	}

	var zero audio.Frame
	if got := zero.Duration(); got != 0 {
		t.Fatalf("zero frame Duration() = %v, want 0", got)
	}
}
