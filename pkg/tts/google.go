package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"
)

// providerGoogle tags errors and log lines from this provider.
const providerGoogle = "google"

// Google implements Provider using the Cloud Text-to-Speech REST API.
type Google struct {
	config  *Config
	service *texttospeech.Service
	logger  *slog.Logger
}

// NewGoogle creates a Google Cloud TTS provider authenticated by API key.
func NewGoogle(ctx context.Context, opts ...Option) (*Google, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// API key auth only: the service runs next to a phone, not on GCP,
	// so there are no default credentials to find.
	clientOpts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		// Tests point this at an httptest server.
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.BaseURL))
	}

	svc, err := texttospeech.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("create service: %w", err))
	}

	return &Google{
		config:  cfg,
		service: svc,
		logger:  cfg.Logger.With("component", "tts.google"),
	}, nil
}

// Synthesize converts text to a LINEAR16 WAV buffer.
func (g *Google) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, WrapError(providerGoogle, ErrEmptyText)
	}

	// The timeout covers retries too, so a stalled API hands over to the
	// next provider in the chain while the phrase is still relevant.
	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	// LINEAR16 comes back as a complete WAV with header, which the
	// player can pipe straight into aplay or ffplay.
	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: LanguageTag(g.config.LanguageCode),
			Name:         g.config.VoiceID,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding:   "LINEAR16",
			SampleRateHertz: int64(g.config.SampleRate),
			SpeakingRate:    g.config.SpeakingRate,
		},
	}

	start := time.Now()
	resp, err := g.doWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	latency := time.Since(start).Milliseconds()

	// AudioContent is base64 in the REST JSON body.
	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("decode audio: %w", err))
	}

	format := AudioFormat{
		Encoding:   EncodingWAV,
		SampleRate: g.config.SampleRate,
		Channels:   1,
		BitDepth:   16,
	}

	g.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
	)

	return &AudioResult{
		Audio:     audio,
		Format:    format,
		Duration:  EstimateDuration(format, len(audio)),
		CharCount: len(text),
		LatencyMs: latency,
	}, nil
}

// doWithRetry retries rate-limited and server errors with linear backoff.
func (g *Google) doWithRetry(ctx context.Context, req *texttospeech.SynthesizeSpeechRequest) (*texttospeech.SynthesizeSpeechResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= g.config.MaxRetries; attempt++ {
		if attempt > 0 {
			// Linear backoff: delay, 2*delay, ...
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(g.config.RetryDelay * time.Duration(attempt)):
			}
		}

		resp, err := g.service.Text.Synthesize(req).Context(ctx).Do()
		if err == nil {
			return resp, nil
		}

		lastErr = convertError(err)

		// Bad keys and bad requests fail the same way every time.
		var apiErr *APIError
		if !errors.As(lastErr, &apiErr) || !apiErr.IsRetryable() {
			return nil, lastErr
		}

		g.logger.Debug("retrying request",
			"attempt", attempt+1,
			"status", apiErr.StatusCode,
		)
	}

	return nil, lastErr
}

// Health lists voices for the configured language.
func (g *Google) Health(ctx context.Context) error {
	_, err := g.service.Voices.List().LanguageCode(LanguageTag(g.config.LanguageCode)).Context(ctx).Do()
	if err != nil {
		return convertError(err)
	}
	return nil
}

// Close is a no-op; the REST service holds no connections of its own.
func (g *Google) Close() error {
	return nil
}

// convertError maps googleapi errors to APIError.
func convertError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		apiErr := &APIError{
			StatusCode: gerr.Code,
			Message:    gerr.Message,
			Provider:   providerGoogle,
		}
		// The first item carries the machine-readable reason, e.g.
		// rateLimitExceeded, which IsRateLimited checks for 403s.
		if len(gerr.Errors) > 0 {
			apiErr.Reason = gerr.Errors[0].Reason
		}
		return apiErr
	}
	return WrapError(providerGoogle, err)
}

// Verify Google implements Provider at compile time.
var _ Provider = (*Google)(nil)
