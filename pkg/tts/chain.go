package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultBench is how long a failed provider is skipped.
const DefaultBench = 30 * time.Second

// Chain speaks through the first provider that works. A provider that
// fails is benched for a while so that every phrase does not pay the
// timeout of a voice that is known to be down; benched providers are
// still tried when nothing else is left.
type Chain struct {
	members []*member
	bench   time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

type member struct {
	Provider
	index int

	mu       sync.Mutex
	until    time.Time
	failures int
}

func (m *member) benched(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return now.Before(m.until)
}

func (m *member) fail(now time.Time, bench time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
	m.until = now.Add(bench)
	return m.failures
}

func (m *member) reset() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	was := m.failures > 0
	m.failures = 0
	m.until = time.Time{}
	return was
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithBench sets how long a failed provider is skipped. Zero disables
// benching.
func WithBench(d time.Duration) ChainOption {
	return func(c *Chain) { c.bench = d }
}

// WithChainLogger sets the chain's logger.
func WithChainLogger(l *slog.Logger) ChainOption {
	return func(c *Chain) { c.logger = l.With("component", "tts.chain") }
}

// WithChainClock replaces time.Now, for tests.
func WithChainClock(now func() time.Time) ChainOption {
	return func(c *Chain) { c.now = now }
}

// NewChain tries providers in the given order. At least one is required.
func NewChain(providers []Provider, opts ...ChainOption) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	c := &Chain{
		bench:  DefaultBench,
		now:    time.Now,
		logger: slog.Default().With("component", "tts.chain"),
	}
	for i, p := range providers {
		c.members = append(c.members, &member{Provider: p, index: i})
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// order returns active providers first, then benched ones.
func (c *Chain) order() []*member {
	now := c.now()
	active := make([]*member, 0, len(c.members))
	var benched []*member
	for _, m := range c.members {
		if m.benched(now) {
			benched = append(benched, m)
		} else {
			active = append(active, m)
		}
	}
	return append(active, benched...)
}

// Synthesize returns audio from the first provider that succeeds.
func (c *Chain) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	var errs []error

	for _, m := range c.order() {
		result, err := m.Synthesize(ctx, text)
		if err == nil {
			if m.reset() {
				c.logger.Info("provider recovered", "provider_index", m.index)
			}
			return result, nil
		}

		// A cancelled utterance says nothing about the provider.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		errs = append(errs, err)
		n := m.fail(c.now(), c.bench)
		c.logger.Warn("provider failed",
			"provider_index", m.index,
			"failures", n,
			"bench", c.bench,
			"error", err,
		)
	}

	return nil, &ChainError{Errors: errs}
}

// Health succeeds when any provider is healthy. A healthy result also
// lifts that provider's bench.
func (c *Chain) Health(ctx context.Context) error {
	var errs []error
	for _, m := range c.members {
		if err := m.Health(ctx); err != nil {
			errs = append(errs, err)
			continue
		}
		m.reset()
	}
	if len(errs) == len(c.members) {
		return fmt.Errorf("all %d providers unhealthy: %w", len(c.members), errors.Join(errs...))
	}
	return nil
}

// Close closes every provider and returns their joined errors.
func (c *Chain) Close() error {
	var errs []error
	for _, m := range c.members {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ChainError is returned when every provider failed one phrase.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	switch len(e.Errors) {
	case 0:
		return ErrAllProvidersFailed.Error()
	case 1:
		return fmt.Sprintf("tts chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("tts chain: %d providers failed, last: %v", len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap exposes every provider error and ErrAllProvidersFailed to
// errors.Is and errors.As.
func (e *ChainError) Unwrap() []error {
	return append([]error{ErrAllProvidersFailed}, e.Errors...)
}

var _ Provider = (*Chain)(nil)
