package tts

import (
	"log/slog"
	"time"
)

// Config configures the Google provider. Guidance phrases are short, so
// the defaults favour a quick first byte over voice quality.
type Config struct {
	APIKey  string
	BaseURL string

	// VoiceID empty lets the API pick a voice for LanguageCode.
	VoiceID      string
	LanguageCode string
	SpeakingRate float64
	SampleRate   int

	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	Logger *slog.Logger
}

// Option sets a Config field.
type Option func(*Config)

// WithAPIKey sets the Cloud API key.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithBaseURL overrides the default API endpoint.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithVoice sets the voice name (e.g. "en-US-Neural2-F").
func WithVoice(voiceID string) Option {
	return func(c *Config) {
		c.VoiceID = voiceID
	}
}

// WithLanguage sets the BCP-47 language code.
func WithLanguage(code string) Option {
	return func(c *Config) {
		c.LanguageCode = code
	}
}

// WithSpeakingRate sets the speaking rate; zero keeps the default.
func WithSpeakingRate(rate float64) Option {
	return func(c *Config) {
		if rate > 0 {
			c.SpeakingRate = rate
		}
	}
}

// WithSampleRate sets the output sample rate in Hz.
func WithSampleRate(hz int) Option {
	return func(c *Config) {
		c.SampleRate = hz
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithRetry sets how often a retryable failure is retried before the
// chain moves on to the next provider.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns the settings used for spoken guidance.
func DefaultConfig() *Config {
	return &Config{
		LanguageCode: "en-US",
		SpeakingRate: RateNormal,
		SampleRate:   24000,
		Timeout:      8 * time.Second,
		MaxRetries:   1,
		RetryDelay:   200 * time.Millisecond,
		Logger:       slog.Default(),
	}
}

func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate reports ErrNoAPIKey when no key is set.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}

// LanguageTag expands a bare language ("en") to the regional default
// used by the Google voices ("en-US").
func LanguageTag(lang string) string {
	switch lang {
	case "":
		return "en-US"
	case "en":
		return "en-US"
	case "sw":
		return "sw-KE"
	case "fr":
		return "fr-FR"
	}
	return lang
}
