package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"

	"github.com/teslashibe/go-wayfinder/pkg/detection"
)

// Sentinel errors for common conditions.
var (
	// ErrNotReady is returned when Capture is called before the source
	// has a device or a first frame.
	ErrNotReady = errors.New("camera: not ready")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("camera: closed")

	// ErrBadFrame is returned when captured bytes are not a decodable JPEG.
	ErrBadFrame = errors.New("camera: invalid frame")
)

// Source produces JPEG frames for the detection loop.
type Source interface {
	// Ready reports whether Capture can currently succeed.
	Ready() bool

	// Capture returns the current frame.
	Capture(ctx context.Context) (detection.Image, error)

	// Close releases the device or connection.
	Close() error
}

// ImageFromJPEG reads the pixel size from the JPEG header.
func ImageFromJPEG(data []byte) (detection.Image, error) {
	if len(data) == 0 {
		return detection.Image{}, ErrBadFrame
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return detection.Image{}, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	if format != "jpeg" {
		return detection.Image{}, fmt.Errorf("%w: format %s", ErrBadFrame, format)
	}
	return detection.Image{JPEG: data, Width: cfg.Width, Height: cfg.Height}, nil
}
