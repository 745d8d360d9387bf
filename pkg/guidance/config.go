package guidance

import (
	"log/slog"
	"time"
)

// Flavor selects the proximity and phrasing policy.
type Flavor string

const (
	// FlavorArea keys on name, position and proximity bucket and speaks
	// "{name} {pos}, {prox}".
	FlavorArea Flavor = "area"

	// FlavorHeight keys on name alone, speaks a directional phrase and
	// re-announces early when the box height grows past GrowthFactor.
	FlavorHeight Flavor = "height"
)

// Config holds Announcer configuration.
type Config struct {
	Flavor       Flavor
	Cooldown     time.Duration
	MaxPerCycle  int
	GrowthFactor float64

	// Directional thresholds for FlavorHeight, as fractions of frame width.
	LeftEdge  float64
	RightEdge float64

	Logger *slog.Logger
}

// Option is a functional option for configuring the Announcer.
type Option func(*Config)

// WithCooldown overrides the flavor's cooldown window.
func WithCooldown(d time.Duration) Option {
	return func(c *Config) {
		c.Cooldown = d
	}
}

// WithMaxPerCycle caps phrases per cycle.
func WithMaxPerCycle(n int) Option {
	return func(c *Config) {
		c.MaxPerCycle = n
	}
}

// WithGrowthFactor sets the height growth that counts as "getting closer".
func WithGrowthFactor(f float64) Option {
	return func(c *Config) {
		c.GrowthFactor = f
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns the defaults for a flavor. Unknown flavors get
// the area defaults.
func DefaultConfig(flavor Flavor) Config {
	cfg := Config{
		Flavor:       FlavorArea,
		Cooldown:     3500 * time.Millisecond,
		MaxPerCycle:  3,
		GrowthFactor: 1.25,
		LeftEdge:     0.48,
		RightEdge:    0.52,
		Logger:       slog.Default(),
	}
	if flavor == FlavorHeight {
		cfg.Flavor = FlavorHeight
		cfg.Cooldown = 10 * time.Second
	}
	return cfg
}

// ParseFlavor maps a config string to a Flavor, defaulting to area.
func ParseFlavor(s string) Flavor {
	if Flavor(s) == FlavorHeight {
		return FlavorHeight
	}
	return FlavorArea
}
