// Package assistant runs the detection loop: capture a frame, detect
// objects, bucket them and speak a rate-limited subset.
package assistant

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-wayfinder/pkg/camera"
	"github.com/teslashibe/go-wayfinder/pkg/detection"
	"github.com/teslashibe/go-wayfinder/pkg/guidance"
	"github.com/teslashibe/go-wayfinder/pkg/store"
)

// ErrAlreadyRunning is returned when Run is called on an active loop.
var ErrAlreadyRunning = errors.New("assistant: session already running")

// UsageRecorder accumulates session time.
type UsageRecorder interface {
	RecordSession(ctx context.Context, d time.Duration) (store.UsageStats, error)
}

// Config holds loop configuration.
type Config struct {
	// Interval is the delay between the end of one cycle and the start
	// of the next.
	Interval time.Duration
	Usage    UsageRecorder
	Logger   *slog.Logger
}

// Option is a functional option for configuring the loop.
type Option func(*Config)

// WithInterval sets the cycle delay.
func WithInterval(d time.Duration) Option {
	return func(c *Config) {
		c.Interval = d
	}
}

// WithUsage records each session's length when it ends.
func WithUsage(u UsageRecorder) Option {
	return func(c *Config) {
		c.Usage = u
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns a 500ms cycle.
func DefaultConfig() Config {
	return Config{
		Interval: 500 * time.Millisecond,
		Logger:   slog.Default(),
	}
}

// State is what the loop last observed.
type State struct {
	SessionID  string                `json:"session_id,omitempty"`
	Active     bool                  `json:"active"`
	Running    bool                  `json:"running"`
	Muted      bool                  `json:"muted"`
	Ready      bool                  `json:"camera_ready"`
	Frame      detection.Frame       `json:"frame"`
	Detections []detection.Detection `json:"detections"`
	Spoken     []string              `json:"spoken,omitempty"`
	Cycles     int                   `json:"cycles"`
	Failures   int                   `json:"failures"`
	LastError  string                `json:"last_error,omitempty"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// Loop is one detection session at a time.
type Loop struct {
	cfg       Config
	source    camera.Source
	detector  detection.Detector
	announcer *guidance.Announcer
	logger    *slog.Logger

	active  atomic.Bool
	running atomic.Bool
	muted   atomic.Bool

	mu    sync.RWMutex
	state State

	// OnUpdate, if set, is called after every completed cycle.
	OnUpdate func(State)
}

// New creates a loop. It starts running and unmuted.
func New(source camera.Source, detector detection.Detector, announcer *guidance.Announcer, opts ...Option) *Loop {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	l := &Loop{
		cfg:       cfg,
		source:    source,
		detector:  detector,
		announcer: announcer,
		logger:    cfg.Logger.With("component", "assistant"),
	}
	l.running.Store(true)
	return l
}

// Run cycles until ctx is cancelled. The announcer cache is reset when
// the session starts.
func (l *Loop) Run(ctx context.Context) error {
	if !l.active.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.active.Store(false)

	session := uuid.NewString()
	started := time.Now()
	l.announcer.Reset()

	l.mu.Lock()
	l.state = State{SessionID: session, Active: true, Detections: []detection.Detection{}}
	l.mu.Unlock()

	l.logger.Info("detection session started", "session", session, "interval", l.cfg.Interval)

	timer := time.NewTimer(l.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			l.finish(ctx, session, time.Since(started))
			return nil
		case <-timer.C:
			l.Cycle(ctx)
			timer.Reset(l.cfg.Interval)
		}
	}
}

func (l *Loop) finish(ctx context.Context, session string, elapsed time.Duration) {
	l.mu.Lock()
	l.state.Active = false
	l.mu.Unlock()

	l.logger.Info("detection session ended", "session", session, "elapsed", elapsed.Round(time.Second))

	if l.cfg.Usage == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := l.cfg.Usage.RecordSession(rctx, elapsed); err != nil {
		l.logger.Warn("record usage failed", "error", err)
	}
}

// Cycle runs one capture, detect, announce pass. Failures are logged and
// counted; the caller's schedule is unaffected.
func (l *Loop) Cycle(ctx context.Context) {
	ready := l.source.Ready()
	l.mu.Lock()
	l.state.Ready = ready
	l.mu.Unlock()

	if !l.running.Load() || !ready {
		return
	}

	img, err := l.source.Capture(ctx)
	if err != nil {
		l.fail(ctx, "capture failed", err)
		return
	}

	res, err := l.detector.Detect(ctx, img)
	if err != nil {
		l.fail(ctx, "detect failed", err)
		return
	}
	if ctx.Err() != nil {
		return
	}
	if res == nil {
		// Nothing found; keep the captured size so the overlay still scales.
		res = &detection.Result{Frame: detection.Frame{Width: img.Width, Height: img.Height}}
	}
	detection.Classify(res)

	var spoken []string
	if !l.muted.Load() && len(res.Detections) > 0 {
		spoken = l.announcer.Announce(ctx, res.Detections, res.Frame)
	}

	dets := res.Detections
	if dets == nil {
		dets = []detection.Detection{}
	}

	l.mu.Lock()
	l.state.Frame = res.Frame
	l.state.Detections = dets
	l.state.Spoken = spoken
	l.state.Cycles++
	l.state.LastError = ""
	l.state.UpdatedAt = time.Now()
	l.mu.Unlock()

	l.logger.Debug("cycle", "detections", len(dets), "spoken", len(spoken))
	l.notify()
}

func (l *Loop) fail(ctx context.Context, msg string, err error) {
	if ctx.Err() != nil {
		return
	}
	l.logger.Warn(msg, "error", err)

	l.mu.Lock()
	l.state.Failures++
	l.state.LastError = err.Error()
	l.state.UpdatedAt = time.Now()
	l.mu.Unlock()
	l.notify()
}

// SetRunning pauses or resumes cycles without ending the session.
func (l *Loop) SetRunning(on bool) {
	l.running.Store(on)
	l.logger.Info("running changed", "running", on)
	l.notify()
}

// SetMuted gates speech independently of running.
func (l *Loop) SetMuted(on bool) {
	l.muted.Store(on)
	l.logger.Info("muted changed", "muted", on)
	l.notify()
}

// Running reports whether cycles are enabled.
func (l *Loop) Running() bool {
	return l.running.Load()
}

// Muted reports whether speech is gated.
func (l *Loop) Muted() bool {
	return l.muted.Load()
}

// State returns a copy of the latest observations.
func (l *Loop) State() State {
	l.mu.RLock()
	s := l.state
	l.mu.RUnlock()

	s.Running = l.running.Load()
	s.Muted = l.muted.Load()
	s.Detections = append([]detection.Detection{}, s.Detections...)
	if s.Spoken != nil {
		s.Spoken = append([]string(nil), s.Spoken...)
	}
	return s
}

func (l *Loop) notify() {
	if l.OnUpdate != nil {
		l.OnUpdate(l.State())
	}
}
