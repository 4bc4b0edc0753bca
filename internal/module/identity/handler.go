package identity

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ctrdhq/account-directory-server/internal/apperror"
	"github.com/ctrdhq/account-directory-server/internal/module/account"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

// CookieSettings shape the session cookies. SameSite stays None so
// browser clients on other origins can carry the session, which is why
// Secure should only ever be disabled in local development.
type CookieSettings struct {
	Domain        string
	Secure        bool
	AccessMaxAge  time.Duration
	RefreshMaxAge time.Duration
}

type IdentityHandler struct {
	service  IdentityService
	accounts account.AccountService
	cookies  CookieSettings
}

func NewIdentityHandler(service IdentityService, accounts account.AccountService, cookies CookieSettings) *IdentityHandler {
	return &IdentityHandler{
		service:  service,
		accounts: accounts,
		cookies:  cookies,
	}
}

func respondError(c *fiber.Ctx, title string, err error) error {
	status := apperror.StatusCode(err)
	if appErr, ok := apperror.As(err); ok && appErr.RetryAfter > 0 {
		c.Set(fiber.HeaderRetryAfter, formatSeconds(appErr.RetryAfter))
	}

	return c.Status(status).JSON(fiber.Map{
		"error":   title,
		"message": apperror.ClientMessage(err),
	})
}

func formatSeconds(d time.Duration) string {
	seconds := int64(d.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return strconv.FormatInt(seconds, 10)
}

func (h *IdentityHandler) setSessionCookies(c *fiber.Ctx, session *SessionResponse) {
	c.Cookie(&fiber.Cookie{
		Name:     AccessTokenCookie,
		Value:    session.AccessToken,
		Domain:   h.cookies.Domain,
		MaxAge:   int(h.cookies.AccessMaxAge.Seconds()),
		HTTPOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: fiber.CookieSameSiteNoneMode,
	})
	c.Cookie(&fiber.Cookie{
		Name:     RefreshTokenCookie,
		Value:    session.RefreshToken,
		Domain:   h.cookies.Domain,
		MaxAge:   int(h.cookies.RefreshMaxAge.Seconds()),
		HTTPOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: fiber.CookieSameSiteNoneMode,
	})
}

func (h *IdentityHandler) clearSessionCookies(c *fiber.Ctx) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Domain:   h.cookies.Domain,
			MaxAge:   -1,
			HTTPOnly: true,
			Secure:   h.cookies.Secure,
			SameSite: fiber.CookieSameSiteNoneMode,
		})
	}
}

func (h *IdentityHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, "Invalid request body", apperror.Validation("request body is malformed"))
	}

	challenge, err := h.service.Register(c.Context(), &req)
	if err != nil {
		return respondError(c, "Failed to register", err)
	}

	// No challenge means the identifier has no delivery channel and the
	// account went live on its password alone.
	if challenge == nil {
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message": "Account registered",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Account registered, verification code sent",
		"data":    challenge,
	})
}

func (h *IdentityHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, "Invalid request body", apperror.Validation("request body is malformed"))
	}

	// A body without a password asks for a one-time code instead.
	if req.Password == "" {
		challenge, err := h.service.RequestOTP(c.Context(), &RequestOTPRequest{Identifier: req.Identifier})
		if err != nil {
			return respondError(c, "Failed to send verification code", err)
		}
		return c.JSON(fiber.Map{
			"message": "Verification code sent",
			"data":    challenge,
		})
	}

	session, err := h.service.Login(c.Context(), &req)
	if err != nil {
		return respondError(c, "Failed to login", err)
	}

	h.setSessionCookies(c, session)

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"data":    session,
	})
}

func (h *IdentityHandler) RequestOTP(c *fiber.Ctx) error {
	var req RequestOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, "Invalid request body", apperror.Validation("request body is malformed"))
	}

	challenge, err := h.service.RequestOTP(c.Context(), &req)
	if err != nil {
		return respondError(c, "Failed to send verification code", err)
	}

	return c.JSON(fiber.Map{
		"message": "Verification code sent",
		"data":    challenge,
	})
}

func (h *IdentityHandler) VerifyOTP(c *fiber.Ctx) error {
	var req VerifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, "Invalid request body", apperror.Validation("request body is malformed"))
	}

	session, err := h.service.VerifyOTP(c.Context(), &req)
	if err != nil {
		return respondError(c, "Failed to verify code", err)
	}

	h.setSessionCookies(c, session)

	return c.JSON(fiber.Map{
		"message": "Verification successful",
		"data":    session,
	})
}

func (h *IdentityHandler) ResendOTP(c *fiber.Ctx) error {
	var req ResendOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, "Invalid request body", apperror.Validation("request body is malformed"))
	}

	challenge, err := h.service.ResendOTP(c.Context(), &req)
	if err != nil {
		return respondError(c, "Failed to resend verification code", err)
	}

	return c.JSON(fiber.Map{
		"message": "Verification code resent",
		"data":    challenge,
	})
}

// ChangePassword swaps the credential for the authenticated account.
// The service revokes every session along the way, so the cookies are
// cleared and the caller signs in again with the new password.
func (h *IdentityHandler) ChangePassword(c *fiber.Ctx) error {
	accountID, _ := c.Locals(account.LocalsAccountID).(string)
	if accountID == "" {
		return respondError(c, "Failed to change password", apperror.Auth("authentication required"))
	}

	var req ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, "Invalid request body", apperror.Validation("request body is malformed"))
	}

	if err := h.service.ChangePassword(c.Context(), accountID, &req); err != nil {
		return respondError(c, "Failed to change password", err)
	}

	h.clearSessionCookies(c)

	return c.JSON(fiber.Map{
		"message": "Password changed, sign in again",
	})
}

func (h *IdentityHandler) ResetPassword(c *fiber.Ctx) error {
	var req ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, "Invalid request body", apperror.Validation("request body is malformed"))
	}

	if err := h.service.ResetPassword(c.Context(), &req); err != nil {
		return respondError(c, "Failed to reset password", err)
	}

	return c.JSON(fiber.Map{
		"message": "Password reset, sign in with the new password",
	})
}

func (h *IdentityHandler) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	_ = c.BodyParser(&req)
	if req.RefreshToken == "" {
		req.RefreshToken = c.Cookies(RefreshTokenCookie)
	}

	session, err := h.service.RefreshSession(c.Context(), req.RefreshToken)
	if err != nil {
		h.clearSessionCookies(c)
		return respondError(c, "Failed to refresh session", err)
	}

	h.setSessionCookies(c, session)

	return c.JSON(fiber.Map{
		"message": "Session refreshed",
		"data":    session,
	})
}

func (h *IdentityHandler) Logout(c *fiber.Ctx) error {
	accountID, _ := c.Locals(account.LocalsAccountID).(string)

	var req RefreshRequest
	_ = c.BodyParser(&req)
	if req.RefreshToken == "" {
		req.RefreshToken = c.Cookies(RefreshTokenCookie)
	}

	if err := h.service.Logout(c.Context(), accountID, req.RefreshToken); err != nil {
		return respondError(c, "Failed to logout", err)
	}

	h.clearSessionCookies(c)

	return c.JSON(fiber.Map{
		"message": "Logout successful",
	})
}

// DeleteAccount hides the account. The record survives for restore
// until a permanent delete purges it.
func (h *IdentityHandler) DeleteAccount(c *fiber.Ctx) error {
	accountID, _ := c.Locals(account.LocalsAccountID).(string)
	if accountID == "" {
		return respondError(c, "Failed to delete account", apperror.Auth("authentication required"))
	}

	if err := h.accounts.SoftDeleteAccount(c.Context(), accountID); err != nil {
		return respondError(c, "Failed to delete account", err)
	}

	h.clearSessionCookies(c)

	return c.JSON(fiber.Map{
		"message": "Account deleted",
	})
}

func (h *IdentityHandler) DeleteAccountPermanently(c *fiber.Ctx) error {
	accountID, _ := c.Locals(account.LocalsAccountID).(string)
	if accountID == "" {
		return respondError(c, "Failed to delete account", apperror.Auth("authentication required"))
	}

	if err := h.accounts.HardDeleteAccount(c.Context(), accountID); err != nil {
		return respondError(c, "Failed to delete account", err)
	}

	h.clearSessionCookies(c)

	return c.JSON(fiber.Map{
		"message": "Account permanently deleted",
	})
}
