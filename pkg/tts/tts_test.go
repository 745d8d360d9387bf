package tts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teslashibe/go-wayfinder/pkg/tts"
)

func TestMock(t *testing.T) {
	mock := tts.NewMock()
	ctx := context.Background()

	result, err := mock.Synthesize(ctx, "chair ahead")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Audio) == 0 {
		t.Error("expected audio data")
	}
	if result.CharCount != 11 {
		t.Errorf("expected 11 chars, got %d", result.CharCount)
	}
	if result.Duration != 220*time.Millisecond {
		t.Errorf("expected 220ms, got %v", result.Duration)
	}

	if err := mock.Health(ctx); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got := mock.Texts(); len(got) != 1 || got[0] != "chair ahead" {
		t.Errorf("unexpected texts: %v", got)
	}
	if mock.HealthChecks() != 1 {
		t.Errorf("expected 1 health check, got %d", mock.HealthChecks())
	}

	mock.Reset()
	if len(mock.Texts()) != 0 || mock.HealthChecks() != 0 {
		t.Error("expected reset to clear history")
	}
}

func TestMock_Failing(t *testing.T) {
	testErr := errors.New("test error")
	mock := tts.Failing(testErr)
	ctx := context.Background()

	if _, err := mock.Synthesize(ctx, "Hello"); !errors.Is(err, testErr) {
		t.Errorf("expected test error, got %v", err)
	}
	if err := mock.Health(ctx); !errors.Is(err, testErr) {
		t.Errorf("expected test error, got %v", err)
	}
	if got := mock.Texts(); len(got) != 1 {
		t.Errorf("failed calls are still recorded, got %v", got)
	}
}

func TestMock_Latency(t *testing.T) {
	mock := tts.NewMock()
	mock.Latency = 50 * time.Millisecond

	start := time.Now()
	if _, err := mock.Synthesize(context.Background(), "Hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("expected at least 50ms latency, got %v", elapsed)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := mock.Synthesize(ctx, "Hello"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
}

func TestFunctionalOptions(t *testing.T) {
	cfg := tts.DefaultConfig()
	cfg.Apply(
		tts.WithVoice("en-US-Neural2-F"),
		tts.WithLanguage("sw"),
		tts.WithSpeakingRate(tts.RateSlow),
		tts.WithSampleRate(16000),
		tts.WithTimeout(5*time.Second),
		tts.WithRetry(0, time.Millisecond),
	)

	if cfg.VoiceID != "en-US-Neural2-F" {
		t.Errorf("unexpected voice %s", cfg.VoiceID)
	}
	if cfg.LanguageCode != "sw" {
		t.Errorf("unexpected language %s", cfg.LanguageCode)
	}
	if cfg.SpeakingRate != tts.RateSlow {
		t.Errorf("unexpected rate %v", cfg.SpeakingRate)
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("unexpected sample rate %d", cfg.SampleRate)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", cfg.Timeout)
	}
	if cfg.MaxRetries != 0 {
		t.Errorf("expected 0 retries, got %d", cfg.MaxRetries)
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := tts.DefaultConfig()
	if err := cfg.Validate(); err != tts.ErrNoAPIKey {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}

	cfg.APIKey = "test-key"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLanguageTag(t *testing.T) {
	tests := map[string]string{
		"":      "en-US",
		"en":    "en-US",
		"sw":    "sw-KE",
		"en-GB": "en-GB",
	}
	for in, want := range tests {
		if got := tts.LanguageTag(in); got != want {
			t.Errorf("LanguageTag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEstimateDuration(t *testing.T) {
	wav := tts.AudioFormat{Encoding: tts.EncodingWAV, SampleRate: 24000, Channels: 1, BitDepth: 16}
	if got := tts.EstimateDuration(wav, 48000); got != time.Second {
		t.Errorf("expected 1s, got %v", got)
	}

	mp3 := tts.AudioFormat{Encoding: tts.EncodingMP3, SampleRate: 44100, Channels: 1}
	if got := tts.EstimateDuration(mp3, 48000); got != 0 {
		t.Errorf("expected 0 for compressed audio, got %v", got)
	}
}

func TestAPIError(t *testing.T) {
	t.Run("IsRateLimited", func(t *testing.T) {
		err := &tts.APIError{StatusCode: 429, Message: "quota"}
		if !err.IsRateLimited() || !err.IsRetryable() {
			t.Error("expected rate limited and retryable")
		}
		if err.IsUnauthorized() {
			t.Error("expected IsUnauthorized false")
		}
	})

	t.Run("IsUnauthorized", func(t *testing.T) {
		for _, err := range []*tts.APIError{
			{StatusCode: 401},
			{StatusCode: 403, Reason: "API_KEY_SERVICE_BLOCKED"},
		} {
			if !err.IsUnauthorized() || err.IsRetryable() {
				t.Errorf("expected unauthorized and not retryable: %v", err)
			}
		}
	})

	t.Run("quota 403 is a rate limit", func(t *testing.T) {
		err := &tts.APIError{StatusCode: 403, Reason: "rateLimitExceeded"}
		if !err.IsRateLimited() || err.IsUnauthorized() {
			t.Errorf("unexpected classification: %v", err)
		}
	})

	t.Run("IsServerError", func(t *testing.T) {
		for _, code := range []int{500, 502, 503, 504} {
			err := &tts.APIError{StatusCode: code}
			if !err.IsServerError() || !err.IsRetryable() {
				t.Errorf("expected retryable server error for %d", code)
			}
		}
	})

	t.Run("Error message format", func(t *testing.T) {
		err := &tts.APIError{
			StatusCode: 400,
			Message:    "bad request",
			Reason:     "badRequest",
			Provider:   "google",
		}
		if msg := err.Error(); msg != "tts [google]: 400 badRequest: bad request" {
			t.Errorf("unexpected error message: %s", msg)
		}
	})
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	t.Run("requires providers", func(t *testing.T) {
		if _, err := tts.NewChain(nil); !errors.Is(err, tts.ErrProviderUnavailable) {
			t.Errorf("expected ErrProviderUnavailable, got %v", err)
		}
	})

	t.Run("first provider wins", func(t *testing.T) {
		primary, fallback := tts.NewMock(), tts.NewMock()
		chain, err := tts.NewChain([]tts.Provider{primary, fallback})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := chain.Synthesize(ctx, "Head north"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(primary.Texts()) != 1 || len(fallback.Texts()) != 0 {
			t.Errorf("primary=%v fallback=%v", primary.Texts(), fallback.Texts())
		}
	})

	t.Run("all fail", func(t *testing.T) {
		last := errors.New("fail 2")
		chain, _ := tts.NewChain([]tts.Provider{tts.Failing(errors.New("fail 1")), tts.Failing(last)})

		_, err := chain.Synthesize(ctx, "Hello")
		var chainErr *tts.ChainError
		if !errors.As(err, &chainErr) || len(chainErr.Errors) != 2 {
			t.Fatalf("expected ChainError with 2 errors, got %v", err)
		}
		if !errors.Is(err, last) || !errors.Is(err, tts.ErrAllProvidersFailed) {
			t.Errorf("unexpected unwrap chain: %v", err)
		}
	})

	t.Run("cancellation stops the chain", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		second := tts.NewMock()
		chain, _ := tts.NewChain([]tts.Provider{tts.Failing(context.Canceled), second})
		if _, err := chain.Synthesize(cctx, "Hello"); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if len(second.Texts()) != 0 {
			t.Error("fallback must not run after cancellation")
		}
	})

	t.Run("failed provider is benched", func(t *testing.T) {
		now := time.Unix(1_700_000_000, 0)
		cloud := tts.Failing(errors.New("offline"))
		local := tts.NewMock()
		chain, _ := tts.NewChain([]tts.Provider{cloud, local},
			tts.WithBench(time.Minute),
			tts.WithChainClock(func() time.Time { return now }),
		)

		for _, phrase := range []string{"chair center, close", "person left, far"} {
			if _, err := chain.Synthesize(ctx, phrase); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if got := cloud.Texts(); len(got) != 1 {
			t.Errorf("benched provider should be skipped, got %v", got)
		}

		cloud.Err = nil
		now = now.Add(2 * time.Minute)
		if _, err := chain.Synthesize(ctx, "Turn right"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := cloud.Texts(); len(got) != 2 || got[1] != "Turn right" {
			t.Errorf("provider should be retried after the bench, got %v", got)
		}
		if len(local.Texts()) != 2 {
			t.Errorf("fallback used while primary was benched, got %v", local.Texts())
		}
	})

	t.Run("benched provider is last resort", func(t *testing.T) {
		now := time.Unix(1_700_000_000, 0)
		flaky := tts.Failing(errors.New("timeout"))
		broken := tts.Failing(errors.New("not installed"))
		chain, _ := tts.NewChain([]tts.Provider{flaky, broken},
			tts.WithChainClock(func() time.Time { return now }),
		)

		_, _ = chain.Synthesize(ctx, "one")
		flaky.Err = nil
		if _, err := chain.Synthesize(ctx, "two"); err != nil {
			t.Fatalf("benched providers must still be tried, got %v", err)
		}
	})

	t.Run("health passes with one healthy provider", func(t *testing.T) {
		local := tts.NewMock()
		chain, _ := tts.NewChain([]tts.Provider{tts.Failing(errors.New("down")), local})
		if err := chain.Health(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if local.HealthChecks() != 1 {
			t.Error("expected every provider to be checked")
		}
	})

	t.Run("close reaches every provider", func(t *testing.T) {
		a, b := tts.NewMock(), tts.NewMock()
		chain, _ := tts.NewChain([]tts.Provider{a, b})
		if err := chain.Close(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !a.Closed() || !b.Closed() {
			t.Error("expected both providers closed")
		}
	})
}

func TestProviderError(t *testing.T) {
	inner := errors.New("connection failed")
	err := tts.WrapError("google", inner)

	if err.Error() != "tts [google]: connection failed" {
		t.Errorf("unexpected error message: %s", err.Error())
	}

	var pe *tts.ProviderError
	if !errors.As(err, &pe) || pe.Provider != "google" {
		t.Error("expected ProviderError for google")
	}
	if !errors.Is(err, inner) {
		t.Error("expected unwrap to inner error")
	}
	if tts.WrapError("google", nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestEspeak_MissingBinary(t *testing.T) {
	e := tts.NewEspeak(tts.WithEspeakBinary("definitely-not-a-speech-engine"))

	if _, err := e.Synthesize(context.Background(), "hello"); !errors.Is(err, tts.ErrEngineNotFound) {
		t.Errorf("expected ErrEngineNotFound, got %v", err)
	}
	if err := e.Health(context.Background()); !errors.Is(err, tts.ErrEngineNotFound) {
		t.Errorf("expected ErrEngineNotFound, got %v", err)
	}
	if _, err := e.Synthesize(context.Background(), "  "); !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
}

func TestWithSpeakingRate_ZeroKeepsDefault(t *testing.T) {
	cfg := tts.DefaultConfig()
	cfg.Apply(tts.WithSpeakingRate(0))
	if cfg.SpeakingRate != tts.RateNormal {
		t.Errorf("expected default rate, got %v", cfg.SpeakingRate)
	}
}
