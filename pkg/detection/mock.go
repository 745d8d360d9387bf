package detection

import (
	"context"
	"sync"
)

// Mock implements Detector for testing.
type Mock struct {
	// DetectFunc is called when Detect is invoked.
	// If nil, returns an empty result sized to the image.
	DetectFunc func(ctx context.Context, img Image) (*Result, error)

	mu    sync.Mutex
	calls int
}

// NewMock returns a mock that always reports the given detections in a
// frame of the given size.
func NewMock(frame Frame, dets ...Detection) *Mock {
	return &Mock{
		DetectFunc: func(ctx context.Context, img Image) (*Result, error) {
			out := make([]Detection, len(dets))
			copy(out, dets)
			return &Result{Frame: frame, Detections: out}, nil
		},
	}
}

// Detect calls DetectFunc and records the call.
func (m *Mock) Detect(ctx context.Context, img Image) (*Result, error) {
	m.mu.Lock()
	m.calls++
	fn := m.DetectFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, img)
	}
	return &Result{Frame: Frame{Width: img.Width, Height: img.Height}, Detections: []Detection{}}, nil
}

// Calls returns how many times Detect was invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close is a no-op.
func (m *Mock) Close() error {
	return nil
}

// Verify Mock implements Detector at compile time.
var _ Detector = (*Mock)(nil)
