package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-wayfinder/pkg/detection"
)

// Webcam captures from a local video device through OpenCV.
type Webcam struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	cap    *gocv.VideoCapture
	frame  gocv.Mat
	closed bool
}

// OpenWebcam opens device (an index like "0" or a path/URL OpenCV understands).
func OpenWebcam(device string, cfg Config, logger *slog.Logger) (*Webcam, error) {
	if logger == nil {
		logger = slog.Default()
	}

	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open webcam %s: %w", device, err)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	w := &Webcam{
		cfg:    cfg,
		logger: logger.With("component", "camera.webcam"),
		cap:    vc,
		frame:  gocv.NewMat(),
	}
	w.logger.Info("webcam opened", "device", device, "width", cfg.Width, "height", cfg.Height)
	return w, nil
}

// Ready reports whether the device is open.
func (w *Webcam) Ready() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.closed && w.cap != nil && w.cap.IsOpened()
}

// Capture grabs a frame and encodes it as JPEG.
func (w *Webcam) Capture(ctx context.Context) (detection.Image, error) {
	if err := ctx.Err(); err != nil {
		return detection.Image{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return detection.Image{}, ErrClosed
	}
	if ok := w.cap.Read(&w.frame); !ok || w.frame.Empty() {
		return detection.Image{}, ErrNotReady
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, w.frame, []int{gocv.IMWriteJpegQuality, w.cfg.Quality})
	if err != nil {
		return detection.Image{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	return detection.Image{JPEG: data, Width: w.frame.Cols(), Height: w.frame.Rows()}, nil
}

// Close releases the device.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.frame.Close()
	return w.cap.Close()
}

// Verify Webcam implements Source at compile time.
var _ Source = (*Webcam)(nil)
