package v1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ctrdhq/account-directory-server/internal/module/identity"
)

// AuthLimiters are the per-route throttles. Any nil handler is simply
// not installed.
type AuthLimiters struct {
	Login     fiber.Handler
	OTPVerify fiber.Handler
	OTPResend fiber.Handler
}

func RegisterAuthRoutes(
	router fiber.Router,
	handler *identity.IdentityHandler,
	middleware *identity.AuthMiddleware,
	limiters AuthLimiters,
) {
	auth := router.Group("/auth")

	auth.Post("/register", handler.Register)
	auth.Post("/login", withLimiter(limiters.Login), handler.Login)

	auth.Post("/otp/request", withLimiter(limiters.OTPResend), handler.RequestOTP)
	auth.Post("/otp/verify", withLimiter(limiters.OTPVerify), handler.VerifyOTP)
	auth.Post("/otp/resend", withLimiter(limiters.OTPResend), handler.ResendOTP)

	auth.Post("/password/forgot", withLimiter(limiters.OTPResend), handler.RequestOTP)
	auth.Post("/password/reset", withLimiter(limiters.OTPVerify), handler.ResetPassword)
	auth.Post("/password/change", middleware.RequireSession(), handler.ChangePassword)

	auth.Post("/refresh", handler.Refresh)
	auth.Post("/logout", middleware.RequireSession(), handler.Logout)

	auth.Delete("/account", middleware.RequireSession(), handler.DeleteAccount)
	auth.Delete("/account/permanent", middleware.RequireSession(), handler.DeleteAccountPermanently)
}

func withLimiter(limiter fiber.Handler) fiber.Handler {
	if limiter != nil {
		return limiter
	}
	return func(c *fiber.Ctx) error {
		return c.Next()
	}
}
