package navigation

import (
	"log/slog"
	"time"
)

// AdvanceMode selects what moves the session to the next step.
type AdvanceMode string

const (
	// AdvanceTimer moves one step per StepInterval.
	AdvanceTimer AdvanceMode = "timer"

	// AdvanceProximity moves when a fix lands within ArrivalRadius of the
	// step's end coordinate. Steps without one fall back to the timer.
	AdvanceProximity AdvanceMode = "proximity"
)

// Config holds Navigator configuration.
type Config struct {
	StepInterval  time.Duration
	Mode          AdvanceMode
	ArrivalRadius float64 // meters
	Logger        *slog.Logger
}

// Option is a functional option for configuring the Navigator.
type Option func(*Config)

// WithStepInterval sets the step timer period.
func WithStepInterval(d time.Duration) Option {
	return func(c *Config) {
		c.StepInterval = d
	}
}

// WithAdvanceMode sets the advancement mode.
func WithAdvanceMode(m AdvanceMode) Option {
	return func(c *Config) {
		c.Mode = m
	}
}

// WithArrivalRadius sets the proximity radius in meters.
func WithArrivalRadius(m float64) Option {
	return func(c *Config) {
		c.ArrivalRadius = m
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns timer advancement every 15 seconds.
func DefaultConfig() Config {
	return Config{
		StepInterval:  15 * time.Second,
		Mode:          AdvanceTimer,
		ArrivalRadius: 20,
		Logger:        slog.Default(),
	}
}
