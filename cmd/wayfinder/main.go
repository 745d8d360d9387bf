// Command wayfinder runs the guidance service: the camera detection loop,
// walking navigation and the HTTP API the phone talks to.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-wayfinder/internal/app"
	"github.com/teslashibe/go-wayfinder/internal/config"
	"github.com/teslashibe/go-wayfinder/internal/log"
)

func main() {
	cfg, err := parseFlags()
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	log.InitWithOptions(log.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	logger := log.L()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Init(ctx); err != nil {
		logger.Error("initialization failed", "error", err)
		os.Exit(1)
	}
	defer a.Shutdown()

	if err := a.Run(ctx); err != nil {
		logger.Error("runtime error", "error", err)
		a.Shutdown()
		os.Exit(1)
	}
}

// parseFlags loads the environment, then applies command line overrides.
func parseFlags() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	port := flag.String("port", cfg.Port, "HTTP listen port")
	debug := flag.Bool("debug", false, "Enable debug logging")
	camera := flag.String("camera", cfg.CameraMode, "Frame source: snapshot, webcam, webrtc")
	cameraURL := flag.String("camera-url", cfg.CameraURL, "Snapshot URL for the phone camera")
	detect := flag.String("detect", cfg.DetectMode, "Detector: remote or local")
	advance := flag.String("advance", cfg.AdvanceMode, "Step advancement: timer or proximity")
	storePath := flag.String("store", cfg.StorePath, "SQLite database path")
	flag.Parse()

	cfg.Port, cfg.CameraMode, cfg.CameraURL = *port, *camera, *cameraURL
	cfg.DetectMode, cfg.AdvanceMode, cfg.StorePath = *detect, *advance, *storePath
	if *debug {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}
