package web

import (
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-wayfinder/pkg/backend"
	"github.com/teslashibe/go-wayfinder/pkg/location"
	"github.com/teslashibe/go-wayfinder/pkg/store"
)

func (s *Server) handleGetMyInfo(c *fiber.Ctx) error {
	if s.deps.Prefs == nil {
		return unavailable("preferences")
	}
	info, err := s.deps.Prefs.MyInfo(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(info)
}

func (s *Server) handlePutMyInfo(c *fiber.Ctx) error {
	if s.deps.Prefs == nil {
		return unavailable("preferences")
	}
	var info store.MyInfo
	if err := s.bind(c, &info); err != nil {
		return err
	}
	if err := s.deps.Prefs.SaveMyInfo(c.UserContext(), info); err != nil {
		return err
	}
	return c.JSON(info)
}

// handleSOS alerts every saved contact, attaching the last known fix
// when there is one.
func (s *Server) handleSOS(c *fiber.Ctx) error {
	if s.deps.Account == nil {
		return unavailable("account backend")
	}
	if s.deps.Prefs == nil {
		return unavailable("preferences")
	}
	ctx := c.UserContext()

	info, err := s.deps.Prefs.MyInfo(ctx)
	if err != nil {
		return err
	}
	contacts, err := s.deps.Prefs.Contacts(ctx)
	if err != nil {
		return err
	}

	var fix *location.Fix
	if f, err := s.lastFix(c); err == nil {
		fix = &f
	}

	sos := backend.NewSOS(info.FullName, contacts, fix)
	if len(sos.Phones) == 0 && len(sos.Emails) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no emergency contacts saved")
	}
	if err := s.deps.Account.SendSOS(ctx, sos); err != nil {
		return err
	}

	s.logger.Info("sos sent",
		"phones", len(sos.Phones),
		"emails", len(sos.Emails),
		"located", fix != nil,
	)
	return c.JSON(fiber.Map{"sent": true, "sos": sos})
}
