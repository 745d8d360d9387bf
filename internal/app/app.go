// Package app wires the wayfinder components together and owns their
// lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-wayfinder/internal/config"
	"github.com/teslashibe/go-wayfinder/pkg/assistant"
	"github.com/teslashibe/go-wayfinder/pkg/audio"
	"github.com/teslashibe/go-wayfinder/pkg/backend"
	"github.com/teslashibe/go-wayfinder/pkg/camera"
	"github.com/teslashibe/go-wayfinder/pkg/detection"
	"github.com/teslashibe/go-wayfinder/pkg/directions"
	"github.com/teslashibe/go-wayfinder/pkg/guidance"
	"github.com/teslashibe/go-wayfinder/pkg/location"
	"github.com/teslashibe/go-wayfinder/pkg/navigation"
	"github.com/teslashibe/go-wayfinder/pkg/speech"
	"github.com/teslashibe/go-wayfinder/pkg/store"
	"github.com/teslashibe/go-wayfinder/pkg/tts"
	"github.com/teslashibe/go-wayfinder/pkg/web"
)

// App is the wayfinder service.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	kv    store.KV
	prefs *store.Prefs

	sink      *speech.Channel
	source    camera.Source
	rtc       *camera.WebRTC
	detector  detection.Detector
	assistant *assistant.Loop

	locations *location.Service
	feed      *location.FeedPlatform
	locator   *location.Locator
	navigator *navigation.Navigator
	planner   *directions.Client
	backend   *backend.Client

	server *web.Server

	closeOnce sync.Once
}

// New validates cfg and returns an uninitialized app.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{cfg: cfg, logger: logger}, nil
}

// Init builds every component. Call it once, after New and before Run.
func (a *App) Init(ctx context.Context) error {
	if err := a.initStore(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := a.initSpeech(ctx); err != nil {
		return fmt.Errorf("speech: %w", err)
	}
	if err := a.initCamera(); err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	if err := a.initDetector(); err != nil {
		return fmt.Errorf("detector: %w", err)
	}
	a.initAssistant()
	a.initNavigation()
	if err := a.initDirections(); err != nil {
		return fmt.Errorf("directions: %w", err)
	}
	a.backend = backend.New(a.cfg.APIURL, a.prefs, backend.WithLogger(a.logger))
	a.initServer()
	return nil
}

func (a *App) initStore() error {
	db, err := store.Open(a.cfg.StorePath)
	if err != nil {
		return err
	}
	a.kv = db
	a.prefs = store.NewPrefs(db, a.logger)
	return nil
}

// initSpeech prefers Google TTS and falls back to espeak.
func (a *App) initSpeech(ctx context.Context) error {
	var providers []tts.Provider
	if a.cfg.TTSAPIKey != "" {
		g, err := tts.NewGoogle(ctx,
			tts.WithAPIKey(a.cfg.TTSAPIKey),
			tts.WithVoice(a.cfg.TTSVoice),
			tts.WithSpeakingRate(a.cfg.TTSRate),
			tts.WithLanguage(tts.LanguageTag(a.cfg.SpeechLanguage)),
			tts.WithLogger(a.logger),
		)
		if err != nil {
			a.logger.Warn("google tts unavailable", "error", err)
		} else {
			providers = append(providers, g)
		}
	}
	providers = append(providers, tts.NewEspeak(tts.WithEspeakLogger(a.logger)))

	chain, err := tts.NewChain(providers, tts.WithChainLogger(a.logger))
	if err != nil {
		return err
	}
	a.sink = speech.NewChannel(chain, audio.NewPlayer(audio.WithLogger(a.logger)), a.logger)
	return nil
}

func (a *App) initCamera() error {
	cc := camera.DefaultConfig()
	switch camera.Mode(a.cfg.CameraMode) {
	case camera.ModeWebcam:
		w, err := camera.OpenWebcam(fmt.Sprint(a.cfg.CameraDevice), cc, a.logger)
		if err != nil {
			return err
		}
		a.source = w
	case camera.ModeWebRTC:
		a.rtc = camera.NewWebRTC(cc, a.logger)
		a.source = a.rtc
	default:
		a.source = camera.NewSnapshot(a.cfg.CameraURL, cc, a.logger)
	}
	return nil
}

func (a *App) initDetector() error {
	if a.cfg.DetectMode == "local" {
		yc := detection.DefaultYOLOConfig()
		yc.ModelPath = a.cfg.YOLOModel
		d, err := detection.NewYOLO(yc, a.logger)
		if err != nil {
			return err
		}
		a.detector = d
		return nil
	}
	a.detector = detection.NewRemote(a.cfg.DetectURL, detection.WithLogger(a.logger))
	return nil
}

func (a *App) initAssistant() {
	announcer := guidance.NewAnnouncer(a.sink,
		guidance.ParseFlavor(a.cfg.GuidanceFlavor),
		guidance.WithLogger(a.logger),
	)
	a.assistant = assistant.New(a.source, a.detector, announcer,
		assistant.WithInterval(a.cfg.DetectInterval),
		assistant.WithUsage(a.prefs),
		assistant.WithLogger(a.logger),
	)
}

func (a *App) initNavigation() {
	a.locations = location.Default()
	a.feed = location.NewFeedPlatform(a.locations, a.logger)
	a.navigator = navigation.New(a.sink, a.feed,
		navigation.WithStepInterval(a.cfg.StepInterval),
		navigation.WithAdvanceMode(navigation.AdvanceMode(a.cfg.AdvanceMode)),
		navigation.WithArrivalRadius(a.cfg.ArrivalRadiusM),
		navigation.WithLogger(a.logger),
	)
	a.locator = location.NewLocator(a.feed, a.locations, func(fix location.Fix) {
		a.navigator.HandleFix(context.Background(), fix)
	}, a.logger)
}

// initDirections leaves the planner nil without a Maps key; the place and
// route endpoints then report themselves unavailable.
func (a *App) initDirections() error {
	if a.cfg.MapsAPIKey == "" {
		a.logger.Warn("GOOGLE_MAPS_API_KEY not set, places and routes disabled")
		return nil
	}
	c, err := directions.New(
		directions.WithAPIKey(a.cfg.MapsAPIKey),
		directions.WithCountry(a.cfg.PlacesCountry),
		directions.WithLanguage(a.cfg.SpeechLanguage),
		directions.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}
	a.planner = c
	return nil
}

func (a *App) initServer() {
	deps := web.Deps{
		Assistant: a.assistant,
		Navigator: a.navigator,
		Feed:      a.feed,
		Locations: a.locations,
		Prefs:     a.prefs,
		Account:   a.backend,
	}
	if a.planner != nil {
		deps.Planner = a.planner
	}
	if a.rtc != nil {
		deps.Camera = a.rtc
	}
	a.server = web.New(deps, web.WithLogger(a.logger))

	a.assistant.OnUpdate = a.server.PublishAssistant
	a.navigator.OnChange = a.server.PublishNavigation
}

// Run serves until ctx is cancelled. The detection loop, the locator and
// the HTTP server run side by side; the first hard failure stops all.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+a.cfg.Port)
	if err != nil {
		return err
	}

	if a.backend != nil {
		go func() {
			pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			a.logger.Info("backend reachable", "url", a.backend.BaseURL(), "ok", a.backend.Ping(pctx))
		}()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.server.Run(ctx, ln)
	})
	g.Go(func() error {
		if err := a.assistant.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("assistant: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// Without location permission navigation still speaks steps on
		// the timer, so this is not fatal.
		if err := a.locator.Run(ctx); err != nil {
			a.logger.Warn("locator stopped", "error", err)
		}
		return nil
	})

	a.logger.Info("wayfinder running",
		"port", a.cfg.Port,
		"camera", a.cfg.CameraMode,
		"detector", a.cfg.DetectMode,
		"advance", a.cfg.AdvanceMode,
	)
	return g.Wait()
}

// Shutdown stops speech and releases devices. Safe to call more than once.
func (a *App) Shutdown() {
	a.closeOnce.Do(func() {
		if a.navigator != nil {
			a.navigator.Close()
		}
		if a.sink != nil {
			a.sink.Stop()
		}
		if a.source != nil {
			if err := a.source.Close(); err != nil {
				a.logger.Warn("camera close", "error", err)
			}
		}
		if a.detector != nil {
			if err := a.detector.Close(); err != nil {
				a.logger.Warn("detector close", "error", err)
			}
		}
		if a.kv != nil {
			if err := a.kv.Close(); err != nil {
				a.logger.Warn("store close", "error", err)
			}
		}
		a.logger.Info("wayfinder stopped")
	})
}

// Server returns the HTTP server, valid after Init.
func (a *App) Server() *web.Server {
	return a.server
}
