package transcript_test

import (
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/hark/pkg/provider/stt"
	sttmock "github.com/MrWong99/hark/pkg/provider/stt/mock"
	"github.com/MrWong99/hark/pkg/provider/wake"
	"github.com/MrWong99/hark/pkg/provider/wake/transcript"
)

// newDetector builds a Detector with small windows so a single 4096-sample
// frame is enough to trigger a wake check.
func newDetector(t *testing.T, tr stt.Transcriber, phrase string, opts ...transcript.Option) *transcript.Detector {
	t.Helper()
	base := []transcript.Option{
		transcript.WithSampleRate(16000),
		transcript.WithWindow(time.Second),
		transcript.WithCheckInterval(250 * time.Millisecond),
		transcript.WithCheckWindow(250 * time.Millisecond),
	}
	d, err := transcript.New(tr, phrase, append(base, opts...)...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return d
}

// activeFrame returns a frame loud enough to pass the default energy gate.
func activeFrame(n int) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.2
	}
	return samples
}

// checkOnce feeds one frame that triggers exactly one wake check and returns
// its result.
func checkOnce(t *testing.T, d *transcript.Detector) wake.DetectionResult {
	t.Helper()
	res, err := d.ProcessFrame(activeFrame(4096))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return res
}

// ─── Matching ────────────────────────────────────────────────────────────────

func TestMatchesPhraseAtWordBoundary(t *testing.T) {
	tr := &sttmock.Transcriber{Results: []stt.Transcript{{Text: "hey ada please"}}}
	d := newDetector(t, tr, "ada")
	defer d.Close()

	res := checkOnce(t, d)
	if !res.Detected {
		t.Fatalf("expected detection for %q", "hey ada please")
	}
	if res.Keyword != "ada" {
		t.Errorf("Keyword = %q, want %q", res.Keyword, "ada")
	}
	if res.Transcript != "hey ada please" {
		t.Errorf("Transcript = %q, want the checked text", res.Transcript)
	}
	if res.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0 for an exact match", res.Confidence)
	}
}

func TestRejectsEmbeddedPhrase(t *testing.T) {
	tr := &sttmock.Transcriber{Results: []stt.Transcript{{Text: "data is here"}}}
	d := newDetector(t, tr, "ada")
	defer d.Close()

	res := checkOnce(t, d)
	if res.Detected {
		t.Errorf("%q must not match the phrase %q", "data is here", "ada")
	}
	if res.Transcript != "data is here" {
		t.Errorf("Transcript = %q, want the checked text even on a miss", res.Transcript)
	}
}

func TestMatchIsCaseInsensitive(t *testing.T) {
	tr := &sttmock.Transcriber{Results: []stt.Transcript{{Text: "Ada, turn on the lights"}}}
	d := newDetector(t, tr, "ada")
	defer d.Close()

	if res := checkOnce(t, d); !res.Detected {
		t.Error("expected a case-insensitive match with trailing punctuation")
	}
}

func TestMultiWordPhraseNeedsConsecutiveTokens(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"well hey ada now", true},
		{"hey there ada", false},
		{"hey  ada", true},
	}
	for _, tc := range cases {
		tr := &sttmock.Transcriber{Results: []stt.Transcript{{Text: tc.text}}}
		d := newDetector(t, tr, "hey ada")
		res := checkOnce(t, d)
		if res.Detected != tc.want {
			t.Errorf("%q: Detected = %v, want %v", tc.text, res.Detected, tc.want)
		}
		d.Close()
	}
}

// ─── Phonetic assist ─────────────────────────────────────────────────────────

func TestPhoneticAssistAcceptsNearMiss(t *testing.T) {
	tr := &sttmock.Transcriber{Results: []stt.Transcript{{Text: "hey adda please"}}}
	d := newDetector(t, tr, "ada", transcript.WithPhoneticAssist(true))
	defer d.Close()

	res := checkOnce(t, d)
	if !res.Detected {
		t.Fatal("expected the phonetic assist to accept a near-miss token")
	}
	if res.Confidence < 0.8 || res.Confidence >= 1.0 {
		t.Errorf("Confidence = %v, want a similarity score in [0.8, 1.0)", res.Confidence)
	}
}

func TestPhoneticAssistOffByDefault(t *testing.T) {
	tr := &sttmock.Transcriber{Results: []stt.Transcript{{Text: "hey adda please"}}}
	d := newDetector(t, tr, "ada")
	defer d.Close()

	if res := checkOnce(t, d); res.Detected {
		t.Error("near-miss token matched without the phonetic assist enabled")
	}
}

func TestPhoneticAssistStillRejectsEmbeddedPhrase(t *testing.T) {
	// "data" and "ada" do not share a Double Metaphone code, so enabling
	// the assist must not weaken the word-boundary rule.
	tr := &sttmock.Transcriber{Results: []stt.Transcript{{Text: "data is here"}}}
	d := newDetector(t, tr, "ada", transcript.WithPhoneticAssist(true))
	defer d.Close()

	if res := checkOnce(t, d); res.Detected {
		t.Error("embedded phrase matched with the phonetic assist enabled")
	}
}

// ─── Cadence & gating ────────────────────────────────────────────────────────

func TestChecksOncePerIntervalOfNewAudio(t *testing.T) {
	tr := &sttmock.Transcriber{}
	d, err := transcript.New(tr, "ada",
		transcript.WithSampleRate(16000),
		transcript.WithWindow(3*time.Second),
		transcript.WithCheckInterval(time.Second),
		transcript.WithCheckWindow(time.Second),
		transcript.WithGate(nil),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer d.Close()

	// 16 frames x 4096 samples = 4.096 s of audio; one check per second of
	// new audio makes exactly 4.
	for i := 0; i < 16; i++ {
		if _, err := d.ProcessFrame(make([]float32, 4096)); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	if got := tr.TranscribeCallCount(); got != 4 {
		t.Errorf("transcribe calls = %d, want 4", got)
	}
}

func TestSilentWindowSkipsTranscription(t *testing.T) {
	tr := &sttmock.Transcriber{}
	d := newDetector(t, tr, "ada")
	defer d.Close()

	for i := 0; i < 8; i++ {
		if _, err := d.ProcessFrame(make([]float32, 4096)); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	if got := tr.TranscribeCallCount(); got != 0 {
		t.Errorf("transcribe calls = %d, want 0 for silent windows", got)
	}
}

func TestResetClearsRollingState(t *testing.T) {
	tr := &sttmock.Transcriber{}
	d, err := transcript.New(tr, "ada",
		transcript.WithSampleRate(16000),
		transcript.WithCheckInterval(time.Second),
		transcript.WithGate(nil),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer d.Close()

	// Three frames leave the detector just short of a check.
	for i := 0; i < 3; i++ {
		d.ProcessFrame(make([]float32, 4096))
	}
	d.Reset()

	// After the reset the interval starts over: three more frames must not
	// check, the fourth must.
	for i := 0; i < 3; i++ {
		d.ProcessFrame(make([]float32, 4096))
	}
	if got := tr.TranscribeCallCount(); got != 0 {
		t.Fatalf("transcribe calls after reset = %d, want 0", got)
	}
	d.ProcessFrame(make([]float32, 4096))
	if got := tr.TranscribeCallCount(); got != 1 {
		t.Errorf("transcribe calls = %d, want 1", got)
	}
}

// ─── Failure handling ────────────────────────────────────────────────────────

func TestTranscriptionErrorSurfacesToCaller(t *testing.T) {
	wantErr := errors.New("backend exploded")
	tr := &sttmock.Transcriber{TranscribeErr: wantErr}
	d := newDetector(t, tr, "ada")
	defer d.Close()

	res, err := d.ProcessFrame(activeFrame(4096))
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped transcription error, got %v", err)
	}
	if res.Detected {
		t.Error("failed check must not report a detection")
	}
}

func TestClosedDetectorReportsNothing(t *testing.T) {
	tr := &sttmock.Transcriber{Results: []stt.Transcript{{Text: "ada"}}}
	d := newDetector(t, tr, "ada")
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	res, err := d.ProcessFrame(activeFrame(4096))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Detected {
		t.Error("closed detector reported a detection")
	}
	if got := tr.TranscribeCallCount(); got != 0 {
		t.Errorf("transcribe calls = %d, want 0 after close", got)
	}
}

// ─── Construction ────────────────────────────────────────────────────────────

func TestNewValidation(t *testing.T) {
	tr := &sttmock.Transcriber{}
	cases := []struct {
		name string
		fn   func() (*transcript.Detector, error)
	}{
		{"nil transcriber", func() (*transcript.Detector, error) {
			return transcript.New(nil, "ada")
		}},
		{"empty phrase", func() (*transcript.Detector, error) {
			return transcript.New(tr, "   ")
		}},
		{"check window exceeds rolling window", func() (*transcript.Detector, error) {
			return transcript.New(tr, "ada",
				transcript.WithWindow(time.Second),
				transcript.WithCheckWindow(2*time.Second))
		}},
		{"non-positive interval", func() (*transcript.Detector, error) {
			return transcript.New(tr, "ada", transcript.WithCheckInterval(0))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.fn()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, wake.ErrBackendUnavailable) {
				t.Errorf("expected error to wrap wake.ErrBackendUnavailable, got %v", err)
			}
		})
	}
}
