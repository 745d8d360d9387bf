package location

import (
	"context"
	"sync"
)

// FakePlatform implements Platform for testing. Fields may be set before
// use; calls are recorded.
type FakePlatform struct {
	Foreground PermissionStatus
	Background PermissionStatus
	Last       *Fix
	Current    Fix
	CurrentErr error
	StartErr   error

	// Service, if set, is started and stopped with updates.
	Service *Service

	mu      sync.Mutex
	started bool
	starts  []TaskOptions
	stops   int
}

// NewFakePlatform returns a fake with both permissions granted.
func NewFakePlatform() *FakePlatform {
	return &FakePlatform{
		Foreground: PermissionGranted,
		Background: PermissionGranted,
	}
}

func (f *FakePlatform) RequestForegroundPermission(ctx context.Context) (PermissionStatus, error) {
	return f.Foreground, nil
}

func (f *FakePlatform) RequestBackgroundPermission(ctx context.Context) (PermissionStatus, error) {
	return f.Background, nil
}

func (f *FakePlatform) LastKnownPosition(ctx context.Context) (*Fix, error) {
	return f.Last, nil
}

func (f *FakePlatform) CurrentPosition(ctx context.Context, accuracy Accuracy) (Fix, error) {
	if f.CurrentErr != nil {
		return Fix{}, f.CurrentErr
	}
	return f.Current, nil
}

func (f *FakePlatform) StartUpdates(ctx context.Context, opts TaskOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, opts)
	if f.StartErr != nil {
		return f.StartErr
	}
	f.started = true
	if f.Service != nil {
		f.Service.Start()
	}
	return nil
}

func (f *FakePlatform) StopUpdates(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.started = false
	if f.Service != nil {
		f.Service.Stop()
	}
	return nil
}

func (f *FakePlatform) UpdatesStarted(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

// Starts returns the options of every StartUpdates call.
func (f *FakePlatform) Starts() []TaskOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]TaskOptions, len(f.starts))
	copy(out, f.starts)
	return out
}

// Stops returns how many times StopUpdates was called.
func (f *FakePlatform) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// Verify FakePlatform implements Platform at compile time.
var _ Platform = (*FakePlatform)(nil)
