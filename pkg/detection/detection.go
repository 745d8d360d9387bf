// Package detection provides object detection results, spatial bucketing,
// and the detector backends (remote HTTP inference and on-device YOLO).
package detection

import (
	"context"
	"math"
)

// Position is the horizontal third of the frame a detection sits in.
type Position string

const (
	PositionLeft   Position = "left"
	PositionCenter Position = "center"
	PositionRight  Position = "right"
)

// Proximity is a coarse distance bucket derived from box size.
type Proximity string

const (
	ProximityAhead     Proximity = "ahead"
	ProximityClose     Proximity = "close"
	ProximityVeryClose Proximity = "very_close"
)

// Spoken returns the phrase form of the bucket ("very close").
func (p Proximity) Spoken() string {
	if p == ProximityVeryClose {
		return "very close"
	}
	return string(p)
}

// Box is a bounding box [x1, y1, x2, y2] in frame pixel coordinates.
type Box [4]float64

// Width returns the box width, never negative.
func (b Box) Width() float64 {
	return math.Max(0, b[2]-b[0])
}

// Height returns the box height, never negative.
func (b Box) Height() float64 {
	return math.Max(0, b[3]-b[1])
}

// Area returns the box area, never negative.
func (b Box) Area() float64 {
	return b.Width() * b.Height()
}

// CenterX returns the horizontal center of the box.
func (b Box) CenterX() float64 {
	return (b[0] + b[2]) / 2
}

// Frame is the coordinate space bounding boxes are expressed in.
type Frame struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns width*height.
func (f Frame) Area() float64 {
	return float64(f.Width) * float64(f.Height)
}

// Detection is one recognized object.
type Detection struct {
	Name  string    `json:"name"`
	Score float64   `json:"score"`
	BBox  Box       `json:"bbox"`
	Pos   Position  `json:"pos,omitempty"`
	Prox  Proximity `json:"prox,omitempty"`
}

// Result is one detector pass over a frame.
type Result struct {
	Frame      Frame       `json:"frame"`
	Detections []Detection `json:"detections"`
}

// Image is a captured JPEG frame and its pixel size.
type Image struct {
	JPEG   []byte
	Width  int
	Height int
}

// Detector is the interface for detection backends.
type Detector interface {
	// Detect finds objects in the image. Boxes are returned in the
	// coordinate space described by Result.Frame.
	Detect(ctx context.Context, img Image) (*Result, error)

	// Close releases resources.
	Close() error
}
