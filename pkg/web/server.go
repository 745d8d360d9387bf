// Package web serves the HTTP and websocket surface of the guidance
// service: assistant and navigation control, places and routes, device
// location ingest and the WebRTC camera offer.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-wayfinder/pkg/assistant"
	"github.com/teslashibe/go-wayfinder/pkg/backend"
	"github.com/teslashibe/go-wayfinder/pkg/directions"
	"github.com/teslashibe/go-wayfinder/pkg/geo"
	"github.com/teslashibe/go-wayfinder/pkg/hub"
	"github.com/teslashibe/go-wayfinder/pkg/location"
	"github.com/teslashibe/go-wayfinder/pkg/navigation"
	"github.com/teslashibe/go-wayfinder/pkg/store"
)

// Planner finds places and walking routes.
type Planner interface {
	Autocomplete(ctx context.Context, input string) ([]directions.Suggestion, error)
	PlaceLocation(ctx context.Context, placeID string) (geo.Point, error)
	Walking(ctx context.Context, origin, destination geo.Point) (directions.Route, error)
}

// OfferHandler answers a WebRTC camera offer.
type OfferHandler interface {
	HandleOffer(ctx context.Context, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error)
}

// Deps are the components the server exposes. Any of them may be nil;
// their routes then answer 503.
type Deps struct {
	Assistant *assistant.Loop
	Navigator *navigation.Navigator
	Planner   Planner
	Feed      *location.FeedPlatform
	Locations *location.Service
	Camera    OfferHandler
	Prefs     *store.Prefs
	Account   Account
}

// Server is the HTTP server.
type Server struct {
	app      *fiber.App
	deps     Deps
	validate *validator.Validate
	logger   *slog.Logger

	statusHub     *hub.Hub
	detectionsHub *hub.Hub
	ingest        ingestStats
}

// Option configures the server.
type Option func(*options)

type options struct {
	staticDir string
	logger    *slog.Logger
}

// WithStaticDir serves files from dir at "/".
func WithStaticDir(dir string) Option {
	return func(o *options) {
		o.staticDir = dir
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New builds the server and its routes.
func New(deps Deps, opts ...Option) *Server {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With("component", "web")

	s := &Server{
		deps:          deps,
		validate:      validator.New(),
		logger:        logger,
		statusHub:     hub.New("status", o.logger),
		detectionsHub: hub.New("detections", o.logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Wayfinder",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
		ReadTimeout:           20 * time.Second,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	if o.staticDir != "" {
		app.Static("/", o.staticDir)
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/detections", s.handleDetections)
	api.Post("/assistant/running", s.handleSetRunning)
	api.Post("/assistant/muted", s.handleSetMuted)

	api.Get("/navigation", s.handleNavigation)
	api.Post("/navigation/start", s.handleNavigationStart)
	api.Post("/navigation/stop", s.handleNavigationStop)

	api.Get("/places/autocomplete", s.handleAutocomplete)
	api.Get("/places/:id", s.handlePlace)
	api.Post("/routes", s.handleRoute)

	api.Get("/location", s.handleGetLocation)
	api.Post("/location", s.handlePostLocation)

	api.Post("/camera/offer", s.handleCameraOffer)

	api.Get("/prefs/accessibility", s.handleGetAccessibility)
	api.Put("/prefs/accessibility", s.handlePutAccessibility)
	api.Get("/insights", s.handleInsights)
	api.Post("/insights/reset", s.handleInsightsReset)
	api.Get("/contacts", s.handleGetContacts)
	api.Put("/contacts", s.handlePutContacts)
	api.Get("/myinfo", s.handleGetMyInfo)
	api.Put("/myinfo", s.handlePutMyInfo)
	api.Post("/sos", s.handleSOS)

	s.registerAccount(api)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.statusHub.Serve))
	app.Get("/ws/detections", websocket.New(s.detectionsHub.Serve))
	s.registerIngest(app)

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the hubs and serves on ln until ctx is cancelled.
func (s *Server) Run(ctx context.Context, ln net.Listener) error {
	go s.statusHub.Run(ctx)
	go s.detectionsHub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listener(ln)
	}()

	s.logger.Info("listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.app.ShutdownWithContext(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Listen serves on addr until ctx is cancelled.
func (s *Server) Listen(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Run(ctx, ln)
}

// PublishAssistant pushes assistant state to websocket clients.
func (s *Server) PublishAssistant(st assistant.State) {
	if err := s.detectionsHub.BroadcastJSON(detectionsView{
		Frame:      st.Frame,
		Detections: st.Detections,
	}); err != nil {
		s.logger.Warn("encode detections", "error", err)
	}
	s.publishStatus()
}

// PublishNavigation pushes navigation state to websocket clients.
func (s *Server) PublishNavigation(navigation.Snapshot) {
	s.publishStatus()
}

func (s *Server) publishStatus() {
	if err := s.statusHub.BroadcastJSON(s.status()); err != nil {
		s.logger.Warn("encode status", "error", err)
	}
}

// handleError renders every error as {"error": message}.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= 500 {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}

	var ve validator.ValidationErrors
	var apiErr *directions.APIError
	var backendErr *backend.APIError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, navigation.ErrNoSteps),
		errors.Is(err, navigation.ErrNoDestination),
		errors.Is(err, location.ErrInvalidFix),
		errors.Is(err, store.ErrInvalidPatch):
		return fiber.StatusBadRequest
	case errors.Is(err, directions.ErrNoRoute),
		errors.Is(err, directions.ErrNoGeometry):
		return fiber.StatusNotFound
	case errors.Is(err, location.ErrNoFix):
		return fiber.StatusConflict
	case errors.Is(err, backend.ErrNotAuthenticated):
		return fiber.StatusUnauthorized
	case errors.As(err, &backendErr) && backendErr.IsUnauthorized():
		return fiber.StatusUnauthorized
	case errors.Is(err, backend.ErrRejected),
		errors.As(err, &backendErr) && backendErr.StatusCode < 500:
		// The account API understood the request and refused it.
		return fiber.StatusUnprocessableEntity
	case errors.As(err, &apiErr),
		errors.As(err, &backendErr):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}
