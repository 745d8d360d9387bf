package web

import (
	"encoding/json"
	"sync/atomic"

	contribws "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-wayfinder/pkg/location"
)

// ingestStats counts fixes received over the ingest socket.
type ingestStats struct {
	connections atomic.Int64
	accepted    atomic.Int64
	rejected    atomic.Int64
}

type ingestReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (s *Server) registerIngest(app *fiber.App) {
	app.Get("/ws/location/ingest", contribws.New(s.handleIngest))
}

// handleIngest reads one JSON fix per message from a device and feeds it
// to the location platform. Each message gets an {"ok":...} reply.
func (s *Server) handleIngest(c *contribws.Conn) {
	device := c.Query("device", "default")
	s.ingest.connections.Add(1)
	s.logger.Info("location device connected", "device", device)
	defer func() {
		s.ingest.connections.Add(-1)
		s.logger.Info("location device disconnected", "device", device)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			s.logger.Debug("ingest read ended", "device", device, "error", err)
			return
		}

		reply := ingestReply{OK: true}
		if err := s.ingestFix(data); err != nil {
			s.ingest.rejected.Add(1)
			reply = ingestReply{Error: err.Error()}
		} else {
			s.ingest.accepted.Add(1)
		}

		out, _ := json.Marshal(reply)
		if err := c.WriteMessage(contribws.TextMessage, out); err != nil {
			return
		}
	}
}

func (s *Server) ingestFix(data []byte) error {
	if s.deps.Feed == nil {
		return unavailable("location feed")
	}
	var fix location.Fix
	if err := json.Unmarshal(data, &fix); err != nil {
		return err
	}
	return s.deps.Feed.Ingest(fix)
}
