package tts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// providerEspeak tags errors and log lines from this provider.
const providerEspeak = "espeak"

// espeak-ng writes 22.05kHz mono 16-bit WAV with --stdout.
const espeakSampleRate = 22050

// Espeak implements Provider with a local espeak-ng process.
// It needs no network and serves as the last link of a chain.
type Espeak struct {
	binary string
	voice  string
	wpm    int
	logger *slog.Logger
}

// EspeakOption configures the local engine.
type EspeakOption func(*Espeak)

// WithEspeakBinary overrides the engine executable.
func WithEspeakBinary(path string) EspeakOption {
	return func(e *Espeak) { e.binary = path }
}

// WithEspeakVoice sets the espeak voice (language code).
func WithEspeakVoice(voice string) EspeakOption {
	return func(e *Espeak) { e.voice = voice }
}

// WithEspeakRate sets words per minute.
func WithEspeakRate(wpm int) EspeakOption {
	return func(e *Espeak) { e.wpm = wpm }
}

// WithEspeakLogger sets the structured logger.
func WithEspeakLogger(l *slog.Logger) EspeakOption {
	return func(e *Espeak) { e.logger = l }
}

// NewEspeak creates the local provider.
func NewEspeak(opts ...EspeakOption) *Espeak {
	e := &Espeak{
		binary: "espeak-ng",
		voice:  "en",
		wpm:    165,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "tts.espeak")
	return e
}

// Synthesize runs the engine and captures its WAV output.
func (e *Espeak) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, WrapError(providerEspeak, ErrEmptyText)
	}

	// Resolve per call so installing espeak-ng fixes a running service.
	path, err := exec.LookPath(e.binary)
	if err != nil {
		return nil, WrapError(providerEspeak, fmt.Errorf("%w: %s", ErrEngineNotFound, e.binary))
	}

	start := time.Now()

	// Text goes in as one argument, never through a shell.
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, "--stdout", "-v", e.voice, "-s", strconv.Itoa(e.wpm), text)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// A newer phrase cancelled us; that is not an engine failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, WrapError(providerEspeak, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())))
	}

	latency := time.Since(start).Milliseconds()
	format := AudioFormat{Encoding: EncodingWAV, SampleRate: espeakSampleRate, Channels: 1, BitDepth: 16}

	e.logger.Debug("synthesized audio", "chars", len(text), "bytes", stdout.Len(), "latency_ms", latency)

	return &AudioResult{
		Audio:     stdout.Bytes(),
		Format:    format,
		Duration:  EstimateDuration(format, stdout.Len()),
		CharCount: len(text),
		LatencyMs: latency,
	}, nil
}

// Health reports whether the engine binary is installed.
func (e *Espeak) Health(ctx context.Context) error {
	if _, err := exec.LookPath(e.binary); err != nil {
		return WrapError(providerEspeak, fmt.Errorf("%w: %s", ErrEngineNotFound, e.binary))
	}
	return nil
}

// Close is a no-op.
func (e *Espeak) Close() error {
	return nil
}

// Verify Espeak implements Provider at compile time.
var _ Provider = (*Espeak)(nil)
