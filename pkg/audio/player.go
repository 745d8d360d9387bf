// Package audio plays synthesized speech on the local output device.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

// ErrNoCommand is returned when the player has no playback command.
var ErrNoCommand = errors.New("audio: no playback command")

// waitDelay bounds how long Wait lingers on pipes after the process is killed.
const waitDelay = time.Second

// DefaultCommand plays any container ffmpeg understands from stdin.
var DefaultCommand = []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", "-i", "pipe:0"}

// Player pipes audio into an external playback process.
// Only one clip plays at a time; Play cancels the previous clip.
type Player struct {
	command []string
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64

	// Callbacks
	OnPlaybackStart func()
	OnPlaybackEnd   func()

	// State
	speaking   bool
	speakingMu sync.Mutex
}

// PlayerOption configures a Player.
type PlayerOption func(*Player)

// WithCommand sets the playback argv. Audio is written to its stdin.
func WithCommand(argv ...string) PlayerOption {
	return func(p *Player) { p.command = argv }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) PlayerOption {
	return func(p *Player) { p.logger = l }
}

// NewPlayer creates a player using DefaultCommand unless overridden.
func NewPlayer(opts ...PlayerOption) *Player {
	p := &Player{
		command: DefaultCommand,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "audio.player")
	return p
}

// Play writes data to a fresh playback process and blocks until it
// finishes, is cancelled by Cancel or a later Play, or ctx ends.
// Interruption by Cancel is not an error.
func (p *Player) Play(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if len(p.command) == 0 {
		return ErrNoCommand
	}

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	playCtx, cancel := context.WithCancel(ctx)
	p.gen++
	gen := p.gen
	p.cancel = cancel
	p.mu.Unlock()
	defer cancel()

	cmd := exec.CommandContext(playCtx, p.command[0], p.command[1:]...)
	cmd.Stdin = bytes.NewReader(data)
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		p.release(gen)
		return fmt.Errorf("start playback: %w", err)
	}

	p.setSpeaking(true)
	if p.OnPlaybackStart != nil {
		p.OnPlaybackStart()
	}

	err := cmd.Wait()

	current := p.release(gen)
	if current {
		p.setSpeaking(false)
	}
	if p.OnPlaybackEnd != nil {
		p.OnPlaybackEnd()
	}

	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case playCtx.Err() != nil:
		p.logger.Debug("playback interrupted")
		return nil
	case err != nil:
		return fmt.Errorf("playback: %w", err)
	}
	return nil
}

// release clears the cancel func if gen is still the current clip and
// reports whether it was.
func (p *Player) release(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen {
		return false
	}
	p.cancel = nil
	return true
}

// Cancel stops any current playback immediately.
func (p *Player) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.setSpeaking(false)
}

// IsSpeaking returns whether a clip is currently playing.
func (p *Player) IsSpeaking() bool {
	p.speakingMu.Lock()
	defer p.speakingMu.Unlock()
	return p.speaking
}

func (p *Player) setSpeaking(v bool) {
	p.speakingMu.Lock()
	p.speaking = v
	p.speakingMu.Unlock()
}
