package web

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-wayfinder/pkg/assistant"
	"github.com/teslashibe/go-wayfinder/pkg/detection"
	"github.com/teslashibe/go-wayfinder/pkg/directions"
	"github.com/teslashibe/go-wayfinder/pkg/geo"
	"github.com/teslashibe/go-wayfinder/pkg/location"
	"github.com/teslashibe/go-wayfinder/pkg/navigation"
	"github.com/teslashibe/go-wayfinder/pkg/store"
)

type statusView struct {
	Assistant  *assistant.State     `json:"assistant,omitempty"`
	Navigation *navigation.Snapshot `json:"navigation,omitempty"`
	Location   *location.Fix        `json:"location,omitempty"`
	Ingest     ingestView           `json:"ingest"`
}

type ingestView struct {
	Connections int64 `json:"connections"`
	Accepted    int64 `json:"accepted"`
	Rejected    int64 `json:"rejected"`
}

type detectionsView struct {
	Frame      detection.Frame       `json:"frame"`
	Detections []detection.Detection `json:"detections"`
}

type toggleRequest struct {
	On *bool `json:"on" validate:"required"`
}

type startRequest struct {
	Destination string   `json:"destination" validate:"required"`
	Steps       []string `json:"steps" validate:"required,min=1,dive,required"`
}

type routeRequest struct {
	PlaceID     string     `json:"place_id" validate:"required_without=Destination"`
	Destination *geo.Point `json:"destination" validate:"required_without=PlaceID"`
	Origin      *geo.Point `json:"origin"`
	Name        string     `json:"name"`
	Start       bool       `json:"start"`
}

type routeResponse struct {
	directions.Route
	Destination geo.Point `json:"destination"`
	Started     bool      `json:"started"`
}

type offerRequest struct {
	SDP  string `json:"sdp" validate:"required"`
	Type string `json:"type"`
}

func (s *Server) status() statusView {
	v := statusView{Ingest: ingestView{
		Connections: s.ingest.connections.Load(),
		Accepted:    s.ingest.accepted.Load(),
		Rejected:    s.ingest.rejected.Load(),
	}}
	if s.deps.Assistant != nil {
		st := s.deps.Assistant.State()
		v.Assistant = &st
	}
	if s.deps.Navigator != nil {
		snap := s.deps.Navigator.State()
		v.Navigation = &snap
	}
	if s.deps.Locations != nil {
		if fix, ok := s.deps.Locations.Last(); ok {
			v.Location = &fix
		}
	}
	return v
}

// bind decodes the body into v and validates it.
func (s *Server) bind(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body: "+err.Error())
	}
	return s.validate.Struct(v)
}

func unavailable(what string) error {
	return fiber.NewError(fiber.StatusServiceUnavailable, what+" not configured")
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status())
}

func (s *Server) handleDetections(c *fiber.Ctx) error {
	if s.deps.Assistant == nil {
		return unavailable("assistant")
	}
	st := s.deps.Assistant.State()
	return c.JSON(detectionsView{Frame: st.Frame, Detections: st.Detections})
}

func (s *Server) handleSetRunning(c *fiber.Ctx) error {
	if s.deps.Assistant == nil {
		return unavailable("assistant")
	}
	var req toggleRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	s.deps.Assistant.SetRunning(*req.On)
	return c.JSON(s.deps.Assistant.State())
}

func (s *Server) handleSetMuted(c *fiber.Ctx) error {
	if s.deps.Assistant == nil {
		return unavailable("assistant")
	}
	var req toggleRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	s.deps.Assistant.SetMuted(*req.On)
	return c.JSON(s.deps.Assistant.State())
}

func (s *Server) handleNavigation(c *fiber.Ctx) error {
	if s.deps.Navigator == nil {
		return unavailable("navigation")
	}
	return c.JSON(s.deps.Navigator.State())
}

func (s *Server) handleNavigationStart(c *fiber.Ctx) error {
	if s.deps.Navigator == nil {
		return unavailable("navigation")
	}
	var req startRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	if err := s.deps.Navigator.Start(c.UserContext(), req.Destination, req.Steps); err != nil {
		return err
	}
	return c.JSON(s.deps.Navigator.State())
}

func (s *Server) handleNavigationStop(c *fiber.Ctx) error {
	if s.deps.Navigator == nil {
		return unavailable("navigation")
	}
	s.deps.Navigator.Stop(c.UserContext())
	return c.JSON(s.deps.Navigator.State())
}

func (s *Server) handleAutocomplete(c *fiber.Ctx) error {
	if s.deps.Planner == nil {
		return unavailable("places")
	}
	list, err := s.deps.Planner.Autocomplete(c.UserContext(), strings.TrimSpace(c.Query("input")))
	if err != nil {
		return err
	}
	if list == nil {
		list = []directions.Suggestion{}
	}
	return c.JSON(fiber.Map{"predictions": list})
}

func (s *Server) handlePlace(c *fiber.Ctx) error {
	if s.deps.Planner == nil {
		return unavailable("places")
	}
	p, err := s.deps.Planner.PlaceLocation(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"place_id": c.Params("id"), "location": p})
}

// handleRoute plans a walking route from the given origin, or the last
// known fix, and optionally starts navigating it.
func (s *Server) handleRoute(c *fiber.Ctx) error {
	if s.deps.Planner == nil {
		return unavailable("directions")
	}
	var req routeRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()

	origin := req.Origin
	if origin == nil {
		fix, err := s.lastFix(c)
		if err != nil {
			return err
		}
		p := fix.Point()
		origin = &p
	}

	var dest geo.Point
	if req.Destination != nil {
		dest = *req.Destination
	} else {
		p, err := s.deps.Planner.PlaceLocation(ctx, req.PlaceID)
		if err != nil {
			return err
		}
		dest = p
	}

	route, err := s.deps.Planner.Walking(ctx, *origin, dest)
	if err != nil {
		return err
	}

	resp := routeResponse{Route: route, Destination: dest}
	if req.Start {
		if s.deps.Navigator == nil {
			return unavailable("navigation")
		}
		name := req.Name
		if name == "" {
			name = "your destination"
		}
		steps := make([]navigation.Step, len(route.Steps))
		for i, st := range route.Steps {
			end := st.End
			steps[i] = navigation.Step{Instruction: st.Instruction, End: &end}
		}
		if err := s.deps.Navigator.StartRoute(ctx, name, steps); err != nil {
			return err
		}
		resp.Started = true
	}
	return c.JSON(resp)
}

func (s *Server) lastFix(c *fiber.Ctx) (location.Fix, error) {
	if s.deps.Locations != nil {
		if fix, ok := s.deps.Locations.Last(); ok {
			return fix, nil
		}
	}
	if s.deps.Feed != nil {
		fix, err := s.deps.Feed.LastKnownPosition(c.UserContext())
		if err != nil {
			return location.Fix{}, err
		}
		if fix != nil {
			return *fix, nil
		}
	}
	return location.Fix{}, location.ErrNoFix
}

func (s *Server) handleGetLocation(c *fiber.Ctx) error {
	fix, err := s.lastFix(c)
	if err != nil {
		return err
	}
	return c.JSON(fix)
}

func (s *Server) handlePostLocation(c *fiber.Ctx) error {
	if s.deps.Feed == nil {
		return unavailable("location feed")
	}
	var fix location.Fix
	if err := c.BodyParser(&fix); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body: "+err.Error())
	}
	if err := s.deps.Feed.Ingest(fix); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleCameraOffer(c *fiber.Ctx) error {
	if s.deps.Camera == nil {
		return unavailable("webrtc camera")
	}
	var req offerRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: req.SDP}
	answer, err := s.deps.Camera.HandleOffer(c.UserContext(), offer)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"sdp": answer.SDP, "type": answer.Type.String()})
}

func (s *Server) handleGetAccessibility(c *fiber.Ctx) error {
	if s.deps.Prefs == nil {
		return unavailable("preferences")
	}
	a, err := s.deps.Prefs.Accessibility(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(a)
}

func (s *Server) handlePutAccessibility(c *fiber.Ctx) error {
	if s.deps.Prefs == nil {
		return unavailable("preferences")
	}
	a, err := s.deps.Prefs.UpdateAccessibility(c.UserContext(), c.Body())
	if err != nil {
		return err
	}
	return c.JSON(a)
}

func (s *Server) handleInsights(c *fiber.Ctx) error {
	if s.deps.Prefs == nil {
		return unavailable("preferences")
	}
	u, err := s.deps.Prefs.UsageStats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(insightsView(u))
}

func (s *Server) handleInsightsReset(c *fiber.Ctx) error {
	if s.deps.Prefs == nil {
		return unavailable("preferences")
	}
	u, err := s.deps.Prefs.ResetUsage(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(insightsView(u))
}

func insightsView(u store.UsageStats) fiber.Map {
	return fiber.Map{
		"usage":           u,
		"average_minutes": u.AverageMinutes(),
	}
}

func (s *Server) handleGetContacts(c *fiber.Ctx) error {
	if s.deps.Prefs == nil {
		return unavailable("preferences")
	}
	list, err := s.deps.Prefs.Contacts(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"contacts": list})
}

func (s *Server) handlePutContacts(c *fiber.Ctx) error {
	if s.deps.Prefs == nil {
		return unavailable("preferences")
	}
	var req struct {
		Contacts []store.Contact `json:"contacts" validate:"dive"`
	}
	if err := s.bind(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()
	list, err := s.deps.Prefs.SaveContacts(ctx, req.Contacts)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"contacts": list, "uploaded": s.uploadContacts(ctx, list)})
}
