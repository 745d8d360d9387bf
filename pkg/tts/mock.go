package tts

import (
	"context"
	"sync"
	"time"
)

// Mock is an in-memory Provider that returns silence and records every
// phrase it is asked to speak.
type Mock struct {
	// Err, when set, fails every Synthesize and Health call.
	Err error

	// Latency delays each Synthesize, honouring cancellation.
	Latency time.Duration

	mu     sync.Mutex
	texts  []string
	checks int
	closed bool
}

// NewMock returns a healthy mock.
func NewMock() *Mock {
	return &Mock{}
}

// Failing returns a mock whose calls all fail with err.
func Failing(err error) *Mock {
	return &Mock{Err: err}
}

// Synthesize records text and returns ~20ms of 24kHz PCM16 silence per
// character, which approximates speech pacing.
func (m *Mock) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()

	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.Err != nil {
		return nil, WrapError("mock", m.Err)
	}

	format := AudioFormat{Encoding: EncodingPCM24, SampleRate: 24000, Channels: 1, BitDepth: 16}
	audio := make([]byte, len(text)*960)
	return &AudioResult{
		Audio:     audio,
		Format:    format,
		Duration:  EstimateDuration(format, len(audio)),
		CharCount: len(text),
	}, nil
}

// Health counts the check and returns Err.
func (m *Mock) Health(ctx context.Context) error {
	m.mu.Lock()
	m.checks++
	m.mu.Unlock()
	return m.Err
}

// Close marks the mock closed.
func (m *Mock) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Texts returns every phrase passed to Synthesize, in order.
func (m *Mock) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// HealthChecks returns how many times Health was called.
func (m *Mock) HealthChecks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checks
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Reset forgets recorded phrases and health checks.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = nil
	m.checks = 0
}

var _ Provider = (*Mock)(nil)
