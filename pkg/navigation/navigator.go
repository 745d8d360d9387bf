// Package navigation runs the spoken turn-by-turn session: it announces
// the route, advances through steps, and keeps background location
// tracking alive while guiding.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-wayfinder/pkg/geo"
	"github.com/teslashibe/go-wayfinder/pkg/location"
	"github.com/teslashibe/go-wayfinder/pkg/speech"
)

// Phrases spoken by the session.
const (
	PhraseArrived = "You have arrived at your destination."
	PhraseEnded   = "Navigation ended."
)

// Sentinel errors for invalid starts.
var (
	ErrNoDestination = errors.New("navigation: destination required")
	ErrNoSteps       = errors.New("navigation: route has no steps")
)

// State is the session state.
type State string

const (
	StateIdle       State = "idle"
	StateNavigating State = "navigating"
	StateArrived    State = "arrived"
	StateStopped    State = "stopped"
)

// Step is one route instruction. End is optional.
type Step struct {
	Instruction string     `json:"instruction"`
	End         *geo.Point `json:"end,omitempty"`
}

// Steps wraps plain instructions.
func Steps(instructions ...string) []Step {
	out := make([]Step, len(instructions))
	for i, s := range instructions {
		out[i] = Step{Instruction: s}
	}
	return out
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	SessionID        string        `json:"session_id,omitempty"`
	State            State         `json:"state"`
	IsNavigating     bool          `json:"is_navigating"`
	Destination      string        `json:"destination,omitempty"`
	Steps            []Step        `json:"steps"`
	CurrentStepIndex int           `json:"current_step_index"`
	LastInstruction  string        `json:"last_instruction"`
	CurrentLocation  *location.Fix `json:"current_location,omitempty"`
	StartedAt        *time.Time    `json:"started_at,omitempty"`
}

// Navigator owns one navigation session at a time.
type Navigator struct {
	cfg      Config
	sink     speech.Sink
	platform location.Platform
	logger   *slog.Logger

	mu          sync.Mutex
	sessionID   string
	state       State
	destination string
	steps       []Step
	index       int
	lastInstr   string
	current     *location.Fix
	startedAt   time.Time
	cancelTimer context.CancelFunc
	wg          sync.WaitGroup

	// OnChange, if set, is called with a snapshot after every transition.
	OnChange func(Snapshot)
}

// New creates an idle navigator. platform may be nil when background
// tracking is unavailable.
func New(sink speech.Sink, platform location.Platform, opts ...Option) *Navigator {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Navigator{
		cfg:      cfg,
		sink:     sink,
		platform: platform,
		logger:   cfg.Logger.With("component", "navigation"),
		state:    StateIdle,
	}
}

// Start begins guiding to destination through plain-text steps.
func (n *Navigator) Start(ctx context.Context, destination string, steps []string) error {
	return n.StartRoute(ctx, destination, Steps(steps...))
}

// StartRoute begins a session, replacing any session in progress.
func (n *Navigator) StartRoute(ctx context.Context, destination string, steps []Step) error {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return ErrNoDestination
	}
	if len(steps) == 0 {
		return ErrNoSteps
	}

	n.mu.Lock()
	n.stopTimerLocked()

	n.sessionID = uuid.NewString()
	n.state = StateNavigating
	n.destination = destination
	n.steps = append([]Step(nil), steps...)
	n.index = 0
	n.lastInstr = steps[0].Instruction
	n.startedAt = time.Now()

	timerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	n.cancelTimer = cancel
	session := n.sessionID
	n.wg.Add(1)
	n.mu.Unlock()

	n.logger.Info("navigation started",
		"session", session,
		"destination", destination,
		"steps", len(steps),
		"mode", n.cfg.Mode,
	)

	n.speak(ctx, fmt.Sprintf("Starting navigation to %s. %s", destination, steps[0].Instruction))
	n.restartTracking(ctx, destination)

	go n.runTimer(timerCtx, session)

	n.notify()
	return nil
}

// Stop ends the session, if any, and announces it.
func (n *Navigator) Stop(ctx context.Context) {
	n.mu.Lock()
	n.stopTimerLocked()
	was := n.state
	n.state = StateStopped
	n.resetRouteLocked()
	n.mu.Unlock()

	n.logger.Info("navigation stopped", "previous_state", was)

	n.sink.Stop()
	n.speak(ctx, PhraseEnded)
	n.stopTracking(ctx)
	n.notify()
}

// Advance moves to the next step, or arrives after the last one.
// It is a no-op when not navigating.
func (n *Navigator) Advance(ctx context.Context) {
	n.mu.Lock()
	session := n.sessionID
	n.mu.Unlock()
	n.advance(ctx, session, false)
}

// advance applies one step for session. timerTick restricts proximity
// sessions to steps without an end coordinate.
func (n *Navigator) advance(ctx context.Context, session string, timerTick bool) {
	n.mu.Lock()
	if n.state != StateNavigating || n.sessionID != session {
		n.mu.Unlock()
		return
	}
	if timerTick && n.cfg.Mode == AdvanceProximity && n.steps[n.index].End != nil {
		n.mu.Unlock()
		return
	}

	next := n.index + 1
	if next < len(n.steps) {
		n.index = next
		n.lastInstr = n.steps[next].Instruction
		text := n.lastInstr
		n.mu.Unlock()

		n.logger.Debug("step advanced", "session", session, "index", next)
		n.speak(ctx, text)
		n.notify()
		return
	}

	// The finished route is dropped with the state change; the arrival
	// phrase still plays because no "Navigation ended." follows it.
	n.state = StateArrived
	n.stopTimerLocked()
	n.resetRouteLocked()
	n.mu.Unlock()

	n.logger.Info("arrived", "session", session)
	n.speak(ctx, PhraseArrived)
	n.stopTracking(ctx)
	n.notify()
}

func (n *Navigator) runTimer(ctx context.Context, session string) {
	defer n.wg.Done()

	ticker := time.NewTicker(n.cfg.StepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.advance(ctx, session, true)
		}
	}
}

// resetRouteLocked returns route state to its initial values. Caller
// holds n.mu.
func (n *Navigator) resetRouteLocked() {
	n.destination = ""
	n.steps = nil
	n.index = 0
	n.lastInstr = ""
}

// stopTimerLocked cancels the current step timer. Caller holds n.mu.
func (n *Navigator) stopTimerLocked() {
	if n.cancelTimer != nil {
		n.cancelTimer()
		n.cancelTimer = nil
	}
}

// HandleFix records the current position and, in proximity mode,
// advances when the current step's end is within ArrivalRadius.
func (n *Navigator) HandleFix(ctx context.Context, fix location.Fix) {
	n.mu.Lock()
	f := fix
	n.current = &f

	var reached bool
	session := n.sessionID
	if n.cfg.Mode == AdvanceProximity && n.state == StateNavigating {
		if end := n.steps[n.index].End; end != nil {
			reached = geo.Within(fix.Point(), *end, n.cfg.ArrivalRadius)
		}
	}
	n.mu.Unlock()

	if reached {
		n.logger.Debug("step end reached", "session", session)
		n.advance(ctx, session, false)
		return
	}
	n.notify()
}

// State returns a snapshot of the session.
func (n *Navigator) State() Snapshot {
	n.mu.Lock()
	defer n.mu.Unlock()

	s := Snapshot{
		SessionID:        n.sessionID,
		State:            n.state,
		IsNavigating:     n.state == StateNavigating,
		Destination:      n.destination,
		Steps:            append([]Step{}, n.steps...),
		CurrentStepIndex: n.index,
		LastInstruction:  n.lastInstr,
	}
	if n.current != nil {
		f := *n.current
		s.CurrentLocation = &f
	}
	if !n.startedAt.IsZero() {
		t := n.startedAt
		s.StartedAt = &t
	}
	return s
}

// IsNavigating reports whether a session is active.
func (n *Navigator) IsNavigating() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state == StateNavigating
}

// Wait blocks until the step timer goroutines have exited.
func (n *Navigator) Wait() {
	n.wg.Wait()
}

// Close stops the timer without speaking or touching tracking.
func (n *Navigator) Close() error {
	n.mu.Lock()
	n.stopTimerLocked()
	n.mu.Unlock()
	n.wg.Wait()
	return nil
}

func (n *Navigator) speak(ctx context.Context, text string) {
	if err := n.sink.Speak(ctx, text); err != nil {
		n.logger.Warn("speak failed", "text", text, "error", err)
	}
}

// restartTracking stops any running background task and starts a new one.
func (n *Navigator) restartTracking(ctx context.Context, destination string) {
	if n.platform == nil {
		return
	}
	if n.platform.UpdatesStarted(ctx) {
		if err := n.platform.StopUpdates(ctx); err != nil {
			n.logger.Warn("stop tracking failed", "error", err)
		}
	}
	if err := n.platform.StartUpdates(ctx, location.NavigationTaskOptions(destination)); err != nil {
		n.logger.Warn("start tracking failed", "error", err)
	}
}

func (n *Navigator) stopTracking(ctx context.Context) {
	if n.platform == nil || !n.platform.UpdatesStarted(ctx) {
		return
	}
	if err := n.platform.StopUpdates(ctx); err != nil {
		n.logger.Warn("stop tracking failed", "error", err)
	}
}

func (n *Navigator) notify() {
	if n.OnChange != nil {
		n.OnChange(n.State())
	}
}
