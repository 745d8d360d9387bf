// Package location acquires device position for navigation: permission
// requests, one-shot fixes, and a process-wide broadcast of background
// updates.
package location

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-wayfinder/pkg/geo"
)

// Sentinel errors for common conditions.
var (
	// ErrPermissionDenied is returned when foreground location is refused.
	ErrPermissionDenied = errors.New("location: permission denied")

	// ErrNoFix is returned when no position is available.
	ErrNoFix = errors.New("location: no fix available")

	// ErrInvalidFix is returned for coordinates outside WGS84 ranges.
	ErrInvalidFix = errors.New("location: invalid coordinates")
)

// Accuracy is the requested positioning accuracy.
type Accuracy int

const (
	AccuracyLowest Accuracy = iota + 1
	AccuracyLow
	AccuracyBalanced
	AccuracyHigh
	AccuracyHighest
	AccuracyBestForNavigation
)

// String returns the accuracy name.
func (a Accuracy) String() string {
	switch a {
	case AccuracyLowest:
		return "lowest"
	case AccuracyLow:
		return "low"
	case AccuracyBalanced:
		return "balanced"
	case AccuracyHigh:
		return "high"
	case AccuracyHighest:
		return "highest"
	case AccuracyBestForNavigation:
		return "best_for_navigation"
	default:
		return fmt.Sprintf("accuracy(%d)", int(a))
	}
}

// PermissionStatus is the outcome of a permission request.
type PermissionStatus string

const (
	PermissionGranted      PermissionStatus = "granted"
	PermissionDenied       PermissionStatus = "denied"
	PermissionUndetermined PermissionStatus = "undetermined"
)

// Fix is one position report.
type Fix struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  float64   `json:"accuracy,omitempty"` // meters
	Timestamp time.Time `json:"timestamp"`
}

// Point returns the fix coordinate.
func (f Fix) Point() geo.Point {
	return geo.Point{Lat: f.Lat, Lng: f.Lng}
}

// Validate checks coordinate ranges.
func (f Fix) Validate() error {
	if f.Lat < -90 || f.Lat > 90 || f.Lng < -180 || f.Lng > 180 {
		return fmt.Errorf("%w: %f,%f", ErrInvalidFix, f.Lat, f.Lng)
	}
	return nil
}

// Notification is the persistent notice shown while tracking in the
// background.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// TaskOptions configure continuous background updates.
type TaskOptions struct {
	Accuracy                 Accuracy      `json:"accuracy"`
	TimeInterval             time.Duration `json:"time_interval"`
	DistanceInterval         float64       `json:"distance_interval_m"`
	ShowsBackgroundIndicator bool          `json:"shows_background_indicator"`
	Notification             Notification  `json:"notification"`
}

// NavigationTaskOptions returns the tracking options used while guiding
// the user to destination.
func NavigationTaskOptions(destination string) TaskOptions {
	return TaskOptions{
		Accuracy:                 AccuracyBestForNavigation,
		TimeInterval:             2 * time.Second,
		DistanceInterval:         5,
		ShowsBackgroundIndicator: true,
		Notification: Notification{
			Title: "Wayfinder Navigation",
			Body:  "Guiding you to " + destination,
		},
	}
}

// Platform is the device location capability.
type Platform interface {
	RequestForegroundPermission(ctx context.Context) (PermissionStatus, error)
	RequestBackgroundPermission(ctx context.Context) (PermissionStatus, error)

	// LastKnownPosition returns nil without error when nothing is cached.
	LastKnownPosition(ctx context.Context) (*Fix, error)
	CurrentPosition(ctx context.Context, accuracy Accuracy) (Fix, error)

	// StartUpdates begins background tracking; fixes are delivered to the
	// process-wide Service.
	StartUpdates(ctx context.Context, opts TaskOptions) error
	StopUpdates(ctx context.Context) error
	UpdatesStarted(ctx context.Context) bool
}
