// Package guidance turns classified detections into rate-limited spoken
// phrases.
package guidance

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-wayfinder/pkg/detection"
	"github.com/teslashibe/go-wayfinder/pkg/speech"
)

type cacheEntry struct {
	spokenAt time.Time
	height   float64
}

// Announcer owns the cooldown cache for one detection session.
// It is safe for concurrent use.
type Announcer struct {
	cfg    Config
	sink   speech.Sink
	now    func() time.Time
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewAnnouncer creates an announcer that speaks through sink.
func NewAnnouncer(sink speech.Sink, flavor Flavor, opts ...Option) *Announcer {
	cfg := DefaultConfig(flavor)
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Announcer{
		cfg:    cfg,
		sink:   sink,
		now:    time.Now,
		logger: cfg.Logger.With("component", "guidance.announcer"),
		cache:  make(map[string]cacheEntry),
	}
}

// SetClock replaces the time source. Used by tests.
func (a *Announcer) SetClock(now func() time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.now = now
}

// Config returns the effective configuration.
func (a *Announcer) Config() Config {
	return a.cfg
}

// Phrases selects what to say for this cycle and records it in the
// cooldown cache. Detections must already be classified.
func (a *Announcer) Phrases(dets []detection.Detection, frame detection.Frame) []string {
	if len(dets) == 0 {
		return nil
	}

	sorted := make([]detection.Detection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	if len(sorted) > a.cfg.MaxPerCycle {
		sorted = sorted[:a.cfg.MaxPerCycle]
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	var phrases []string

	for _, d := range sorted {
		if len(phrases) >= a.cfg.MaxPerCycle {
			break
		}

		key := a.key(d)
		height := d.BBox.Height()
		prev, seen := a.cache[key]

		closer := a.cfg.Flavor == FlavorHeight && seen && prev.height > 0 &&
			height > prev.height*a.cfg.GrowthFactor
		if seen && now.Sub(prev.spokenAt) < a.cfg.Cooldown && !closer {
			continue
		}

		phrases = append(phrases, a.phrase(d, frame, closer))
		a.cache[key] = cacheEntry{spokenAt: now, height: height}
	}

	return phrases
}

// Announce speaks this cycle's phrases as one utterance, since the sink
// keeps only the latest, and returns them.
func (a *Announcer) Announce(ctx context.Context, dets []detection.Detection, frame detection.Frame) []string {
	phrases := a.Phrases(dets, frame)
	if len(phrases) == 0 {
		return nil
	}

	utterance := strings.Join(phrases, ". ")
	if err := a.sink.Speak(ctx, utterance); err != nil {
		a.logger.Warn("speak failed", "text", utterance, "error", err)
	}
	return phrases
}

// Reset clears the cooldown cache. Called when a session starts.
func (a *Announcer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache = make(map[string]cacheEntry)
}

func (a *Announcer) key(d detection.Detection) string {
	if a.cfg.Flavor == FlavorHeight {
		return d.Name
	}
	return fmt.Sprintf("%s-%s-%s", d.Name, d.Pos, d.Prox)
}

func (a *Announcer) phrase(d detection.Detection, frame detection.Frame, closer bool) string {
	if a.cfg.Flavor != FlavorHeight {
		return fmt.Sprintf("%s %s, %s", d.Name, d.Pos, d.Prox.Spoken())
	}

	var p string
	switch dir := a.direction(d.BBox.CenterX(), frame.Width); dir {
	case detection.PositionLeft:
		p = d.Name + " on your left"
	case detection.PositionRight:
		p = d.Name + " on your right"
	default:
		p = d.Name + " ahead"
	}
	if closer {
		p += ", getting closer"
	}
	return p
}

// direction uses the narrower 48/52 split of the height flavor.
func (a *Announcer) direction(cx float64, width int) detection.Position {
	if width <= 0 {
		return detection.PositionCenter
	}
	r := cx / float64(width)
	switch {
	case r < a.cfg.LeftEdge:
		return detection.PositionLeft
	case r > a.cfg.RightEdge:
		return detection.PositionRight
	default:
		return detection.PositionCenter
	}
}
