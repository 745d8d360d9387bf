// Package camera provides frame sources for the detection loop: an HTTP
// snapshot endpoint on the phone, a local webcam, and a WebRTC stream
// published by the phone.
package camera

import "time"

// Mode selects the frame source.
type Mode string

const (
	ModeSnapshot Mode = "snapshot"
	ModeWebcam   Mode = "webcam"
	ModeWebRTC   Mode = "webrtc"
)

// Config holds capture parameters shared by the sources.
type Config struct {
	Width     int `json:"width"`     // Requested frame width in pixels
	Height    int `json:"height"`    // Requested frame height in pixels
	Framerate int `json:"framerate"` // Target FPS for webcam capture
	Quality   int `json:"quality"`   // JPEG quality 1-100

	// DecodeInterval rate-limits H264 decoding on the WebRTC source.
	DecodeInterval time.Duration `json:"decode_interval"`

	// SnapshotTimeout bounds one snapshot GET.
	SnapshotTimeout time.Duration `json:"snapshot_timeout"`
}

// DefaultConfig returns 640x480 capture, which is what the detector is
// tuned for.
func DefaultConfig() Config {
	return Config{
		Width:           640,
		Height:          480,
		Framerate:       15,
		Quality:         80,
		DecodeInterval:  200 * time.Millisecond,
		SnapshotTimeout: 5 * time.Second,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Width < 160 || c.Width > 3840 {
		errors = append(errors, "width must be between 160 and 3840")
	}
	if c.Height < 120 || c.Height > 2160 {
		errors = append(errors, "height must be between 120 and 2160")
	}
	if c.Framerate < 1 || c.Framerate > 60 {
		errors = append(errors, "framerate must be between 1 and 60")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}
	if c.DecodeInterval < 0 {
		errors = append(errors, "decode_interval must not be negative")
	}

	return errors
}
