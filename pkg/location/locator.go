package location

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Locator keeps the current position up to date for one consumer.
type Locator struct {
	platform Platform
	service  *Service
	logger   *slog.Logger
	onFix    func(Fix)

	mu      sync.RWMutex
	current *Fix
}

// NewLocator creates a locator. onFix, if set, is called for every
// position it publishes.
func NewLocator(platform Platform, service *Service, onFix func(Fix), logger *slog.Logger) *Locator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Locator{
		platform: platform,
		service:  service,
		onFix:    onFix,
		logger:   logger.With("component", "location.locator"),
	}
}

// Run acquires permissions, seeds the position from the last known and a
// fresh fix, then follows background updates until ctx ends. It returns
// ErrPermissionDenied if foreground access is refused; every other
// failure is logged and skipped.
func (l *Locator) Run(ctx context.Context) error {
	status, err := l.platform.RequestForegroundPermission(ctx)
	if err != nil || status != PermissionGranted {
		l.logger.Warn("foreground location not granted", "status", status, "error", err)
		return ErrPermissionDenied
	}

	bg, err := l.platform.RequestBackgroundPermission(ctx)
	if err != nil || bg != PermissionGranted {
		l.logger.Warn("background location not granted, continuing", "status", bg, "error", err)
	}

	// Subscribe before seeding so no background fix is missed.
	sub := l.service.Subscribe(DefaultBuffer)
	defer sub.Close()

	if last, err := l.platform.LastKnownPosition(ctx); err != nil {
		l.logger.Warn("last known position failed", "error", err)
	} else if last != nil {
		l.publish(ctx, *last)
	}

	go func() {
		fix, err := l.platform.CurrentPosition(ctx, AccuracyBalanced)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				l.logger.Warn("current position failed", "error", err)
			}
			return
		}
		l.publish(ctx, fix)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case fix, ok := <-sub.C:
			if !ok {
				return nil
			}
			l.publish(ctx, fix)
		}
	}
}

// publish applies fix only while ctx is live.
func (l *Locator) publish(ctx context.Context, fix Fix) {
	if ctx.Err() != nil {
		return
	}
	l.mu.Lock()
	f := fix
	l.current = &f
	l.mu.Unlock()

	if l.onFix != nil {
		l.onFix(fix)
	}
}

// Current returns the latest published position.
func (l *Locator) Current() (Fix, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.current == nil {
		return Fix{}, false
	}
	return *l.current, true
}
