package web

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-wayfinder/pkg/backend"
	"github.com/teslashibe/go-wayfinder/pkg/store"
)

// Account is the account API: sign-in, profile, server-side contacts
// and SOS delivery. A successful login saves the bearer token that every
// other call here needs.
type Account interface {
	Authenticated(ctx context.Context) bool
	Ping(ctx context.Context) bool

	LoginPassword(ctx context.Context, email, password string) error
	StartLogin(ctx context.Context, email string) error
	VerifyLogin(ctx context.Context, email, otp string) error
	Register(ctx context.Context, r backend.Registration) error
	Logout(ctx context.Context) error
	LogoutAll(ctx context.Context) error
	ChangePassword(ctx context.Context, current, next string) error
	TOTPSetup(ctx context.Context, email string) (string, error)
	TOTPVerify(ctx context.Context, email, token string) error

	Profile(ctx context.Context) (backend.Profile, error)
	UpdateProfile(ctx context.Context, patch backend.Profile) error
	Contacts(ctx context.Context) ([]store.Contact, error)
	SaveContacts(ctx context.Context, list []store.Contact) error

	SendSOS(ctx context.Context, s backend.SOS) error
}

var _ Account = (*backend.Client)(nil)

type passwordLogin struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type otpRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required"`
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone"`
	Password string `json:"password" validate:"required,min=6"`
}

type passwordChange struct {
	Current string `json:"currentPassword" validate:"required"`
	Next    string `json:"newPassword" validate:"required,min=6,nefield=Current"`
}

type totpRequest struct {
	Email string `json:"email" validate:"required,email"`
	Token string `json:"token" validate:"required,len=6,numeric"`
}

func (s *Server) registerAccount(api fiber.Router) {
	auth := api.Group("/auth")
	auth.Get("/", s.handleAuthStatus)
	auth.Post("/login/password", s.handleLoginPassword)
	auth.Post("/login/start", s.handleLoginStart)
	auth.Post("/login/verify", s.handleLoginVerify)
	auth.Post("/register", s.handleRegister)
	auth.Post("/logout", s.handleLogout)
	auth.Post("/logout-all", s.handleLogoutAll)
	auth.Post("/change-password", s.handleChangePassword)
	auth.Post("/totp/setup", s.handleTOTPSetup)
	auth.Post("/totp/verify", s.handleTOTPVerify)

	api.Get("/profile", s.handleGetProfile)
	api.Put("/profile", s.handlePutProfile)
	api.Post("/contacts/sync", s.handleSyncContacts)

	api.Get("/biometric", s.handleGetBiometric)
	api.Post("/biometric", s.handleEnableBiometric)
}

// account returns the account API, or a 503 when none is configured.
func (s *Server) account() (Account, error) {
	if s.deps.Account == nil {
		return nil, unavailable("account backend")
	}
	return s.deps.Account, nil
}

func (s *Server) authStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"authenticated": s.deps.Account.Authenticated(c.UserContext())})
}

func (s *Server) handleAuthStatus(c *fiber.Ctx) error {
	acc, err := s.account()
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	return c.JSON(fiber.Map{
		"authenticated": acc.Authenticated(ctx),
		"reachable":     acc.Ping(ctx),
	})
}

func (s *Server) handleLoginPassword(c *fiber.Ctx) error {
	acc, err := s.account()
	if err != nil {
		return err
	}
	var req passwordLogin
	if err := s.bind(c, &req); err != nil {
		return err
	}
	if err := acc.LoginPassword(c.UserContext(), req.Email, req.Password); err != nil {
		return err
	}
	s.logger.Info("signed in", "method", "password")
	s.seedMyInfo(c.UserContext(), acc)
	return s.authStatus(c)
}

func (s *Server) handleLoginStart(c *fiber.Ctx) error {
	acc, err := s.account()
	if err != nil {
		return err
	}
	var req emailRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	if err := acc.StartLogin(c.UserContext(), req.Email); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"otp_sent": true})
}

func (s *Server) handleLoginVerify(c *fiber.Ctx) error {
	acc, err := s.account()
	if err != nil {
		return err
	}
	var req otpRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	if err := acc.VerifyLogin(c.UserContext(), req.Email, req.OTP); err != nil {
		return err
	}
	s.logger.Info("signed in", "method", "otp")
	s.seedMyInfo(c.UserContext(), acc)
	return s.authStatus(c)
}

// handleRegister creates the account; the API then mails a login code,
// which the client confirms through /auth/login/verify.
func (s *Server) handleRegister(c *fiber.Ctx) error {
	acc, err := s.account()
	if err != nil {
		return err
	}
	var req registerRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	reg := backend.Registration{Email: req.Email, Phone: req.Phone, Password: req.Password}
	if err := acc.Register(c.UserContext(), reg); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"otp_sent": true})
}

func (s *Server) handleLogout(c *fiber.Ctx) error {
	acc, err := s.account()
	if err != nil {
		return err
	}
	if err := acc.Logout(c.UserContext()); err != nil {
		return err
	}
	return s.authStatus(c)
}

func (s *Server) handleLogoutAll(c *fiber.Ctx) error {
	acc, err := s.account()
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	if err := acc.LogoutAll(ctx); err != nil {
		return err
	}
	// Every server session is gone, this one included.
	if err := acc.Logout(ctx); err != nil {
		return err
	}
	return s.authStatus(c)
}

func (s *Server) handleChangePassword(c *fiber.Ctx) error {
	acc, err := s.account()
	if err != nil {
		return err
	}
	var req passwordChange
	if err := s.bind(c, &req); err != nil {
		return err
	}
	if err := acc.ChangePassword(c.UserContext(), req.Current, req.Next); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleTOTPSetup(c *fiber.Ctx) error {
	acc, err := s.account()
	if err != nil {
		return err
	}
	var req emailRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	qr, err := acc.TOTPSetup(c.UserContext(), req.Email)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"qr_data_url": qr})
}

func (s *Server) handleTOTPVerify(c *fiber.Ctx) error {
	acc, err := s.account()
	if err != nil {
		return err
	}
	var req totpRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	if err := acc.TOTPVerify(c.UserContext(), req.Email, req.Token); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"verified": true})
}

func (s *Server) handleGetProfile(c *fiber.Ctx) error {
	acc, err := s.account()
	if err != nil {
		return err
	}
	p, err := acc.Profile(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(p)
}

// handlePutProfile updates the server profile and mirrors name and phone
// into the local my-info used for SOS messages.
func (s *Server) handlePutProfile(c *fiber.Ctx) error {
	acc, err := s.account()
	if err != nil {
		return err
	}
	var patch backend.Profile
	if err := s.bind(c, &patch); err != nil {
		return err
	}
	ctx := c.UserContext()
	if err := acc.UpdateProfile(ctx, patch); err != nil {
		return err
	}
	if s.deps.Prefs != nil {
		info, err := s.deps.Prefs.MyInfo(ctx)
		if err != nil {
			return err
		}
		if name := patch.FullName(); name != "" {
			info.FullName = name
		}
		if patch.Phone != "" {
			info.Phone = patch.Phone
		}
		if err := s.deps.Prefs.SaveMyInfo(ctx, info); err != nil {
			return err
		}
	}
	return c.JSON(patch)
}

// handleSyncContacts replaces the local contacts with the server copy
// when the server has any.
func (s *Server) handleSyncContacts(c *fiber.Ctx) error {
	acc, err := s.account()
	if err != nil {
		return err
	}
	if s.deps.Prefs == nil {
		return unavailable("preferences")
	}
	ctx := c.UserContext()
	remote, err := acc.Contacts(ctx)
	if err != nil {
		return err
	}
	if len(remote) == 0 {
		local, err := s.deps.Prefs.Contacts(ctx)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"contacts": local, "synced": false})
	}
	list, err := s.deps.Prefs.SaveContacts(ctx, remote)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"contacts": list, "synced": true})
}

// uploadContacts mirrors a local save to the server. It is best effort:
// the local copy is what SOS uses.
func (s *Server) uploadContacts(ctx context.Context, list []store.Contact) bool {
	if s.deps.Account == nil || !s.deps.Account.Authenticated(ctx) {
		return false
	}
	if err := s.deps.Account.SaveContacts(ctx, list); err != nil {
		s.logger.Warn("contacts upload failed", "error", err)
		return false
	}
	return true
}

// seedMyInfo fills an empty local my-info from the server profile after
// sign-in. Failures only cost the prefill.
func (s *Server) seedMyInfo(ctx context.Context, acc Account) {
	if s.deps.Prefs == nil {
		return
	}
	info, err := s.deps.Prefs.MyInfo(ctx)
	if err != nil || info.FullName != "" {
		return
	}
	p, err := acc.Profile(ctx)
	if err != nil {
		s.logger.Debug("profile prefill skipped", "error", err)
		return
	}
	info.FullName = p.FullName()
	if info.Phone == "" {
		info.Phone = p.Phone
	}
	if err := s.deps.Prefs.SaveMyInfo(ctx, info); err != nil {
		s.logger.Warn("save my info", "error", err)
	}
}

func (s *Server) handleGetBiometric(c *fiber.Ctx) error {
	if s.deps.Prefs == nil {
		return unavailable("preferences")
	}
	on, err := s.deps.Prefs.BiometricEnabled(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"enabled": on})
}

// handleEnableBiometric records the opt-in. There is no opt-out; the
// flag is only ever written once.
func (s *Server) handleEnableBiometric(c *fiber.Ctx) error {
	if s.deps.Prefs == nil {
		return unavailable("preferences")
	}
	if err := s.deps.Prefs.EnableBiometric(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"enabled": true})
}
