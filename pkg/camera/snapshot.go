package camera

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/teslashibe/go-wayfinder/internal/httpc"
	"github.com/teslashibe/go-wayfinder/pkg/detection"
)

// Snapshot fetches a JPEG from an HTTP endpoint on every capture,
// e.g. an IP-camera app running on the phone.
type Snapshot struct {
	url    string
	client *http.Client
	logger *slog.Logger
	closed atomic.Bool
}

// NewSnapshot creates a snapshot source for url.
func NewSnapshot(url string, cfg Config, logger *slog.Logger) *Snapshot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Snapshot{
		url:    url,
		client: httpc.NewClient(cfg.SnapshotTimeout),
		logger: logger.With("component", "camera.snapshot"),
	}
}

// Ready is true until Close; each capture is an independent request.
func (s *Snapshot) Ready() bool {
	return !s.closed.Load() && s.url != ""
}

// Capture downloads one frame.
func (s *Snapshot) Capture(ctx context.Context) (detection.Image, error) {
	if s.closed.Load() {
		return detection.Image{}, ErrClosed
	}
	if s.url == "" {
		return detection.Image{}, ErrNotReady
	}

	resp, err := httpc.Get(ctx, s.client, s.url)
	if err != nil {
		return detection.Image{}, fmt.Errorf("fetch snapshot: %w", err)
	}
	if !resp.OK() {
		return detection.Image{}, fmt.Errorf("fetch snapshot: status %d", resp.StatusCode)
	}
	data := resp.Body

	img, err := ImageFromJPEG(data)
	if err != nil {
		return detection.Image{}, err
	}
	s.logger.Debug("snapshot captured", "bytes", len(data), "width", img.Width, "height", img.Height)
	return img, nil
}

// Close marks the source closed.
func (s *Snapshot) Close() error {
	s.closed.Store(true)
	return nil
}

// Verify Snapshot implements Source at compile time.
var _ Source = (*Snapshot)(nil)
