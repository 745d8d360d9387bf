// Package speech is the single spoken-output channel shared by the
// detection loop and the navigation session.
//
// Every Speak stops whatever is playing and starts the new phrase.
// There is no queue: the last writer wins.
package speech

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-wayfinder/internal/text"
	"github.com/teslashibe/go-wayfinder/pkg/tts"
)

// Sink is a spoken-output channel.
type Sink interface {
	// Speak interrupts the current utterance and starts text.
	// It returns once the utterance is scheduled, not when it finishes.
	Speak(ctx context.Context, text string) error

	// Stop interrupts the current utterance, if any.
	Stop()
}

// Player plays an encoded audio clip, blocking until it ends or is cancelled.
type Player interface {
	Play(ctx context.Context, data []byte) error
	Cancel()
}

// Channel is the production Sink: synthesize with a tts.Provider, then play.
type Channel struct {
	provider tts.Provider
	player   Player
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	last   string
	wg     sync.WaitGroup

	// OnSpeak is called with each cleaned utterance before synthesis.
	OnSpeak func(text string)
}

// NewChannel creates a speech channel.
func NewChannel(provider tts.Provider, player Player, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		provider: provider,
		player:   player,
		logger:   logger.With("component", "speech.channel"),
	}
}

// Speak strips markup, stops the current utterance and speaks text in the
// background. Empty text only stops. The utterance outlives ctx
// cancellation so a finished HTTP request does not cut speech short.
func (c *Channel) Speak(ctx context.Context, raw string) error {
	phrase := text.StripHTML(raw)

	c.mu.Lock()
	c.stopLocked()
	if phrase == "" {
		c.mu.Unlock()
		return nil
	}

	uctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.last = phrase
	c.wg.Add(1)
	c.mu.Unlock()

	if c.OnSpeak != nil {
		c.OnSpeak(phrase)
	}

	go func() {
		defer c.wg.Done()
		defer cancel()
		c.say(uctx, phrase)
	}()
	return nil
}

func (c *Channel) say(ctx context.Context, phrase string) {
	result, err := c.provider.Synthesize(ctx, phrase)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("synthesis failed", "text", phrase, "error", err)
		}
		return
	}
	if ctx.Err() != nil {
		return
	}

	if err := c.player.Play(ctx, result.Audio); err != nil && ctx.Err() == nil {
		c.logger.Warn("playback failed", "text", phrase, "error", err)
	}
}

// Stop interrupts the current utterance.
func (c *Channel) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Channel) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.player.Cancel()
}

// Last returns the most recent phrase passed to Speak.
func (c *Channel) Last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Wait blocks until every started utterance goroutine has returned.
func (c *Channel) Wait() {
	c.wg.Wait()
}

// Close stops speech and waits for in-flight work.
func (c *Channel) Close() error {
	c.Stop()
	c.Wait()
	return nil
}

// Verify Channel implements Sink at compile time.
var _ Sink = (*Channel)(nil)
