package location

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// freshFor is how old the last fix may be and still answer
// CurrentPosition without waiting.
const freshFor = 10 * time.Second

// FeedPlatform is a Platform backed by fixes pushed from the phone over
// HTTP or websocket. While updates are started it acts as the background
// task: every ingested fix is forwarded to the Service.
type FeedPlatform struct {
	service *Service
	logger  *slog.Logger
	now     func() time.Time

	mu         sync.Mutex
	foreground PermissionStatus
	background PermissionStatus
	last       *Fix
	started    bool
	opts       TaskOptions
	waiters    []chan Fix
}

// NewFeedPlatform creates a feed that publishes into service. Both
// permissions start granted: the phone only pushes fixes once the user
// has allowed it.
func NewFeedPlatform(service *Service, logger *slog.Logger) *FeedPlatform {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedPlatform{
		service:    service,
		logger:     logger.With("component", "location.feed"),
		now:        time.Now,
		foreground: PermissionGranted,
		background: PermissionGranted,
	}
}

// SetPermissions records what the device reported for each permission.
func (p *FeedPlatform) SetPermissions(foreground, background PermissionStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.foreground = foreground
	p.background = background
}

// Ingest accepts a fix from the device.
func (p *FeedPlatform) Ingest(fix Fix) error {
	if err := fix.Validate(); err != nil {
		return err
	}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = p.now()
	}

	p.mu.Lock()
	f := fix
	p.last = &f
	waiters := p.waiters
	p.waiters = nil
	started := p.started
	p.mu.Unlock()

	for _, w := range waiters {
		w <- fix
	}

	if started {
		p.service.Publish(fix)
	}
	return nil
}

// RequestForegroundPermission returns the recorded foreground status.
func (p *FeedPlatform) RequestForegroundPermission(ctx context.Context) (PermissionStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.foreground, nil
}

// RequestBackgroundPermission returns the recorded background status.
func (p *FeedPlatform) RequestBackgroundPermission(ctx context.Context) (PermissionStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.background, nil
}

// LastKnownPosition returns the newest ingested fix, or nil.
func (p *FeedPlatform) LastKnownPosition(ctx context.Context) (*Fix, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return nil, nil
	}
	f := *p.last
	return &f, nil
}

// CurrentPosition returns a recent fix, or waits for the next one.
// The feed cannot change device accuracy, so accuracy is advisory.
func (p *FeedPlatform) CurrentPosition(ctx context.Context, accuracy Accuracy) (Fix, error) {
	p.mu.Lock()
	if p.last != nil && p.now().Sub(p.last.Timestamp) < freshFor {
		f := *p.last
		p.mu.Unlock()
		return f, nil
	}
	w := make(chan Fix, 1)
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	select {
	case fix := <-w:
		return fix, nil
	case <-ctx.Done():
		p.removeWaiter(w)
		return Fix{}, ctx.Err()
	}
}

func (p *FeedPlatform) removeWaiter(w chan Fix) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.waiters {
		if c == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
}

// StartUpdates begins forwarding ingested fixes to the Service.
func (p *FeedPlatform) StartUpdates(ctx context.Context, opts TaskOptions) error {
	p.mu.Lock()
	p.started = true
	p.opts = opts
	p.mu.Unlock()

	p.service.Start()
	p.logger.Info("tracking started",
		"accuracy", opts.Accuracy.String(),
		"interval", opts.TimeInterval,
		"distance_m", opts.DistanceInterval,
		"notification", opts.Notification.Title,
	)
	return nil
}

// StopUpdates stops forwarding.
func (p *FeedPlatform) StopUpdates(ctx context.Context) error {
	p.mu.Lock()
	p.started = false
	p.mu.Unlock()

	p.service.Stop()
	p.logger.Info("tracking stopped")
	return nil
}

// UpdatesStarted reports whether background updates are running.
func (p *FeedPlatform) UpdatesStarted(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// Options returns the options of the running (or last) tracking task,
// so the phone can mirror the notification.
func (p *FeedPlatform) Options() (TaskOptions, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opts, p.started
}

// Verify FeedPlatform implements Platform at compile time.
var _ Platform = (*FeedPlatform)(nil)
