package detection

// Bucket thresholds. Lower bounds are inclusive.
const (
	LeftBoundary   = 0.33
	RightBoundary  = 0.66
	CloseRatio     = 0.07
	VeryCloseRatio = 0.20
)

// BucketPosition maps a box center to a horizontal third of the frame.
// An unknown frame width yields center.
func BucketPosition(cx float64, frameWidth int) Position {
	if frameWidth <= 0 {
		return PositionCenter
	}
	r := cx / float64(frameWidth)
	switch {
	case r < LeftBoundary:
		return PositionLeft
	case r < RightBoundary:
		return PositionCenter
	default:
		return PositionRight
	}
}

// BucketProximity maps the box-to-frame area ratio to a proximity bucket.
// An unknown frame size yields ahead.
func BucketProximity(b Box, f Frame) Proximity {
	frameArea := f.Area()
	if frameArea <= 0 {
		return ProximityAhead
	}
	ratio := b.Area() / frameArea
	switch {
	case ratio >= VeryCloseRatio:
		return ProximityVeryClose
	case ratio >= CloseRatio:
		return ProximityClose
	default:
		return ProximityAhead
	}
}

// Classify fills Pos and Prox on every detection of the result in place
// and returns the same result for chaining.
func Classify(r *Result) *Result {
	if r == nil {
		return nil
	}
	for i := range r.Detections {
		d := &r.Detections[i]
		d.Pos = BucketPosition(d.BBox.CenterX(), r.Frame.Width)
		d.Prox = BucketProximity(d.BBox, r.Frame)
	}
	return r
}

// ScaleBox rescales a frame-space box to a display of size view,
// clamping the origin at zero. A zero frame dimension leaves that axis
// unscaled.
func ScaleBox(b Box, frame, view Frame) (left, top, width, height float64) {
	sx, sy := 1.0, 1.0
	if frame.Width > 0 {
		sx = float64(view.Width) / float64(frame.Width)
	}
	if frame.Height > 0 {
		sy = float64(view.Height) / float64(frame.Height)
	}

	left = max(0, b[0]*sx)
	top = max(0, b[1]*sy)
	width = b.Width() * sx
	height = b.Height() * sy
	return left, top, width, height
}
