package backend

import (
	"context"
	"net/http"
)

type accessResponse struct {
	Access string `json:"access"`
}

// LoginPassword signs in and saves the access token.
func (c *Client) LoginPassword(ctx context.Context, email, password string) error {
	var resp accessResponse
	err := c.do(ctx, false, http.MethodPost, "/auth/login/password", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return err
	}
	return c.saveAccess(ctx, resp.Access)
}

// StartLogin sends a one-time code to email.
func (c *Client) StartLogin(ctx context.Context, email string) error {
	return c.do(ctx, false, http.MethodPost, "/auth/login/start", map[string]string{"email": email}, nil)
}

// VerifyLogin exchanges a one-time code for a token and saves it.
func (c *Client) VerifyLogin(ctx context.Context, email, otp string) error {
	var resp accessResponse
	err := c.do(ctx, false, http.MethodPost, "/auth/login/verify", map[string]string{
		"email": email,
		"otp":   otp,
	}, &resp)
	if err != nil {
		return err
	}
	return c.saveAccess(ctx, resp.Access)
}

// Registration is a new account.
type Registration struct {
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

// Register creates an account and starts the email code login.
func (c *Client) Register(ctx context.Context, r Registration) error {
	if err := c.do(ctx, false, http.MethodPost, "/auth/register", r, nil); err != nil {
		return err
	}
	return c.StartLogin(ctx, r.Email)
}

// Logout clears the server session (best effort) and the saved token.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, true, http.MethodPost, "/auth/logout", nil, nil); err != nil {
		c.logger.Debug("logout request failed", "error", err)
	}
	return c.tokens.SaveToken(ctx, "")
}

// LogoutAll revokes every session of the account.
func (c *Client) LogoutAll(ctx context.Context) error {
	return c.do(ctx, true, http.MethodPost, "/auth/logout-all", nil, nil)
}

// ChangePassword updates the account password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	return c.do(ctx, true, http.MethodPost, "/auth/change-password", map[string]string{
		"currentPassword": current,
		"newPassword":     next,
	}, nil)
}

// TOTPSetup starts authenticator enrollment and returns the QR code as a
// data URL.
func (c *Client) TOTPSetup(ctx context.Context, email string) (string, error) {
	var resp struct {
		QR string `json:"qr_data_url"`
	}
	if err := c.do(ctx, true, http.MethodPost, "/auth/totp/setup", map[string]string{"email": email}, &resp); err != nil {
		return "", err
	}
	return resp.QR, nil
}

// TOTPVerify confirms enrollment with a code from the authenticator.
func (c *Client) TOTPVerify(ctx context.Context, email, token string) error {
	return c.do(ctx, true, http.MethodPost, "/auth/totp/verify", map[string]string{
		"email": email,
		"token": token,
	}, nil)
}

// Ping reports whether the API answers.
func (c *Client) Ping(ctx context.Context) bool {
	return c.do(ctx, false, http.MethodGet, "/auth/ping", nil, nil) == nil
}

func (c *Client) saveAccess(ctx context.Context, access string) error {
	if access == "" {
		return ErrRejected
	}
	return c.tokens.SaveToken(ctx, access)
}
