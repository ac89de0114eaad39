package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voxvault/voxvault/pkg/provider/stt"
	sttmock "github.com/voxvault/voxvault/pkg/provider/stt/mock"
)

func TestTranscriber_PrimarySuccess(t *testing.T) {
	primary := &sttmock.Provider{Result: &stt.Result{Text: "from primary"}}
	fallback := &sttmock.Provider{Result: &stt.Result{Text: "from fallback"}}

	tr := NewTranscriber(primary, "whisper-asr", FallbackConfig{})
	tr.AddFallback("openai", fallback)

	res, err := tr.Transcribe(context.Background(), []byte{1}, stt.Request{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "from primary" {
		t.Errorf("Text = %q", res.Text)
	}
	if len(fallback.Calls) != 0 {
		t.Error("fallback called despite healthy primary")
	}
}

func TestTranscriber_FailsOverToFallback(t *testing.T) {
	primary := &sttmock.Provider{Err: errors.New("asr down")}
	fallback := &sttmock.Provider{Result: &stt.Result{Text: "from fallback"}}

	tr := NewTranscriber(primary, "whisper-asr", FallbackConfig{})
	tr.AddFallback("openai", fallback)

	res, err := tr.Transcribe(context.Background(), []byte{1}, stt.Request{Language: "de"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "from fallback" {
		t.Errorf("Text = %q", res.Text)
	}
	if len(fallback.Calls) != 1 {
		t.Fatalf("fallback calls = %d, want 1", len(fallback.Calls))
	}
	if fallback.Calls[0].Req.Language != "de" {
		t.Errorf("request not forwarded: %+v", fallback.Calls[0].Req)
	}
}

func TestTranscriber_AllFail(t *testing.T) {
	primary := &sttmock.Provider{Err: errors.New("asr down")}
	fallback := &sttmock.Provider{Err: errors.New("cloud down")}

	tr := NewTranscriber(primary, "whisper-asr", FallbackConfig{})
	tr.AddFallback("openai", fallback)

	_, err := tr.Transcribe(context.Background(), []byte{1}, stt.Request{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestTranscriber_OpenCircuitSkipsPrimary(t *testing.T) {
	primary := &sttmock.Provider{Err: errors.New("asr down")}
	fallback := &sttmock.Provider{Result: &stt.Result{Text: "ok"}}

	tr := NewTranscriber(primary, "whisper-asr", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	tr.AddFallback("openai", fallback)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := tr.Transcribe(ctx, []byte{1}, stt.Request{}); err != nil {
			t.Fatalf("Transcribe: %v", err)
		}
	}

	// Two failures open the primary's breaker; the third round must not have
	// touched it.
	if len(primary.Calls) != 2 {
		t.Errorf("primary calls = %d, want 2 (breaker open afterwards)", len(primary.Calls))
	}
}
