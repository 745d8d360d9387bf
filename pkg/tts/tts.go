// Package tts provides a unified interface for text-to-speech providers.
//
// Guidance phrases are short, so providers return a complete audio buffer
// rather than a stream. The Google Cloud provider is the primary voice; the
// local espeak provider keeps speech working when the network is down.
//
// Example usage:
//
//	google, _ := tts.NewGoogle(ctx, tts.WithAPIKey(os.Getenv("GOOGLE_TTS_API_KEY")))
//	chain, _ := tts.NewChain([]tts.Provider{google, tts.NewEspeak()})
//	defer chain.Close()
//
//	result, _ := chain.Synthesize(ctx, "Chair center, close")
//	// result.Audio contains a WAV file
package tts

import (
	"context"
	"time"
)

// Provider defines the TTS provider interface.
type Provider interface {
	// Synthesize converts text to audio, returning the complete audio buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks provider connectivity and credentials.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult represents a complete audio synthesis result.
type AudioResult struct {
	// Audio contains the encoded audio data.
	Audio []byte

	// Format describes the audio encoding and sample rate.
	Format AudioFormat

	// Duration is the estimated audio playback duration.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the synthesis round trip in milliseconds.
	LatencyMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
	BitDepth   int
}

// Encoding represents audio container/codec types.
type Encoding string

const (
	EncodingWAV   Encoding = "wav"       // RIFF/WAVE, PCM16
	EncodingMP3   Encoding = "mp3"       // MPEG layer 3
	EncodingOGG   Encoding = "ogg_opus"  // Opus in Ogg
	EncodingPCM24 Encoding = "pcm_24000" // raw 24kHz mono PCM16
)

// SpeakingRate presets, relative to the voice's normal speed.
const (
	RateSlow   = 0.85
	RateNormal = 1.0
	RateFast   = 1.2
)

// EstimateDuration approximates playback length for PCM16 audio.
// It returns zero for compressed encodings.
func EstimateDuration(f AudioFormat, size int) time.Duration {
	if f.Encoding != EncodingWAV && f.Encoding != EncodingPCM24 {
		return 0
	}
	if f.SampleRate <= 0 || f.Channels <= 0 || f.BitDepth <= 0 {
		return 0
	}
	bytesPerSecond := f.SampleRate * f.Channels * f.BitDepth / 8
	return time.Duration(size) * time.Second / time.Duration(bytesPerSecond)
}
