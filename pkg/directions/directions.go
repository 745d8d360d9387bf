// Package directions wraps the Google Maps web services used to pick a
// destination and plan a walking route to it.
package directions

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"googlemaps.github.io/maps"

	"github.com/teslashibe/go-wayfinder/internal/httpc"
	"github.com/teslashibe/go-wayfinder/internal/text"
	"github.com/teslashibe/go-wayfinder/pkg/geo"
)

// MinQueryLength is the shortest input sent to autocomplete.
const MinQueryLength = 3

// DefaultStep is used when a route leg carries no steps.
const DefaultStep = "Proceed to destination"

// Suggestion is one autocomplete prediction.
type Suggestion struct {
	PlaceID     string `json:"place_id"`
	Description string `json:"description"`
	MainText    string `json:"main_text,omitempty"`
}

// Step is one walking instruction with the coordinate where it ends.
type Step struct {
	Instruction string    `json:"instruction"`
	End         geo.Point `json:"end"`
}

// Route is a walking route summary.
type Route struct {
	Distance       string        `json:"distance"` // "1.2 km"
	Duration       string        `json:"duration"` // "15 min"
	DistanceMeters int           `json:"distance_m"`
	DurationTotal  time.Duration `json:"-"`
	Steps          []Step        `json:"steps"`
}

// Instructions returns the plain instruction text of every step.
func (r Route) Instructions() []string {
	out := make([]string, len(r.Steps))
	for i, s := range r.Steps {
		out[i] = s.Instruction
	}
	return out
}

// Config holds client configuration.
type Config struct {
	APIKey   string
	BaseURL  string // overrides maps.googleapis.com, for tests
	Country  string
	Language string
	Timeout  time.Duration

	// AutocompleteEvery spaces autocomplete calls while the user types.
	AutocompleteEvery time.Duration
	Logger            *slog.Logger
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithAPIKey sets the Maps API key.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithBaseURL points the client at another host.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithCountry restricts autocomplete to an ISO 3166-1 country.
func WithCountry(country string) Option {
	return func(c *Config) {
		c.Country = country
	}
}

// WithLanguage sets the result language.
func WithLanguage(lang string) Option {
	return func(c *Config) {
		c.Language = lang
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithAutocompleteInterval sets the minimum spacing of autocomplete calls.
func WithAutocompleteInterval(d time.Duration) Option {
	return func(c *Config) {
		c.AutocompleteEvery = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns Kenya/English defaults.
func DefaultConfig() Config {
	return Config{
		Country:           "ke",
		Language:          "en",
		Timeout:           15 * time.Second,
		AutocompleteEvery: 250 * time.Millisecond,
		Logger:            slog.Default(),
	}
}

// Client queries places and walking directions.
type Client struct {
	maps    *maps.Client
	config  Config
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a directions client.
func New(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	mopts := []maps.ClientOption{
		maps.WithAPIKey(cfg.APIKey),
		maps.WithHTTPClient(httpc.NewClient(cfg.Timeout)),
	}
	if cfg.BaseURL != "" {
		mopts = append(mopts, maps.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")))
	}
	mc, err := maps.NewClient(mopts...)
	if err != nil {
		return nil, fmt.Errorf("directions: %w", err)
	}

	limit := rate.Inf
	if cfg.AutocompleteEvery > 0 {
		limit = rate.Every(cfg.AutocompleteEvery)
	}

	return &Client{
		maps:    mc,
		config:  cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  cfg.Logger.With("component", "directions"),
	}, nil
}

// Autocomplete returns place suggestions for input. Inputs shorter than
// MinQueryLength return nothing without calling the provider.
func (c *Client) Autocomplete(ctx context.Context, input string) ([]Suggestion, error) {
	input = strings.TrimSpace(input)
	if len([]rune(input)) < MinQueryLength {
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := &maps.PlaceAutocompleteRequest{
		Input:    input,
		Language: c.config.Language,
	}
	if c.config.Country != "" {
		req.Components = map[maps.Component][]string{
			maps.ComponentCountry: {c.config.Country},
		}
	}

	resp, err := c.maps.PlaceAutocomplete(ctx, req)
	if err != nil {
		return nil, convertError("autocomplete", err)
	}

	out := make([]Suggestion, 0, len(resp.Predictions))
	for _, p := range resp.Predictions {
		out = append(out, Suggestion{
			PlaceID:     p.PlaceID,
			Description: p.Description,
			MainText:    p.StructuredFormatting.MainText,
		})
	}
	c.logger.Debug("autocomplete", "input", input, "results", len(out))
	return out, nil
}

// PlaceLocation returns the coordinate of a place.
func (c *Client) PlaceLocation(ctx context.Context, placeID string) (geo.Point, error) {
	res, err := c.maps.PlaceDetails(ctx, &maps.PlaceDetailsRequest{
		PlaceID: placeID,
		Fields:  []maps.PlaceDetailsFieldMask{maps.PlaceDetailsFieldMaskGeometry},
	})
	if err != nil {
		return geo.Point{}, convertError("place details", err)
	}

	loc := res.Geometry.Location
	p := geo.Point{Lat: loc.Lat, Lng: loc.Lng}
	if p.IsZero() {
		return geo.Point{}, ErrNoGeometry
	}
	return p, nil
}

// Walking plans a walking route between two points.
func (c *Client) Walking(ctx context.Context, origin, destination geo.Point) (Route, error) {
	routes, _, err := c.maps.Directions(ctx, &maps.DirectionsRequest{
		Origin:      origin.String(),
		Destination: destination.String(),
		Mode:        maps.TravelModeWalking,
		Language:    c.config.Language,
	})
	if err != nil {
		return Route{}, convertError("directions", err)
	}
	if len(routes) == 0 {
		return Route{}, ErrNoRoute
	}

	route := buildRoute(routes[0], destination)
	c.logger.Info("route planned",
		"distance", route.Distance,
		"duration", route.Duration,
		"steps", len(route.Steps),
	)
	return route, nil
}

// buildRoute totals every leg and takes the instructions of the first.
func buildRoute(r maps.Route, destination geo.Point) Route {
	var meters int
	var total time.Duration
	for _, leg := range r.Legs {
		meters += leg.Distance.Meters
		total += leg.Duration
	}

	var steps []Step
	if len(r.Legs) > 0 {
		for _, s := range r.Legs[0].Steps {
			instr := text.StripHTML(s.HTMLInstructions)
			if instr == "" {
				continue
			}
			steps = append(steps, Step{
				Instruction: instr,
				End:         geo.Point{Lat: s.EndLocation.Lat, Lng: s.EndLocation.Lng},
			})
		}
	}
	if len(steps) == 0 {
		steps = []Step{{Instruction: DefaultStep, End: destination}}
	}

	return Route{
		Distance:       fmt.Sprintf("%.1f km", float64(meters)/1000),
		Duration:       fmt.Sprintf("%d min", int(math.Round(total.Minutes()))),
		DistanceMeters: meters,
		DurationTotal:  total,
		Steps:          steps,
	}
}
