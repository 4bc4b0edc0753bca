package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/ctrdhq/account-directory-server/internal/config"
	"github.com/ctrdhq/account-directory-server/internal/module/account"
	"github.com/ctrdhq/account-directory-server/internal/module/identity"
	"github.com/ctrdhq/account-directory-server/internal/router/middleware"
	v1 "github.com/ctrdhq/account-directory-server/internal/router/v1"
	"github.com/ctrdhq/account-directory-server/package/ratelimit"
)

type RouterConfig struct {
	Config          *config.Config
	IdentityService identity.IdentityService
	AccountService  account.AccountService
	Limiters        Limiters
	HealthHandler   fiber.Handler
	Logger          zerolog.Logger
}

// Limiters holds the shared counters the auth routes consume. They
// are injected rather than built here so tests and bootstrap decide
// the backing store.
type Limiters struct {
	General   ratelimit.Limiter
	Login     ratelimit.Limiter
	OTPVerify ratelimit.Limiter
	OTPResend ratelimit.Limiter
}

func Setup(routerConfig RouterConfig) *fiber.App {
	cfg := routerConfig.Config

	app := fiber.New(fiber.Config{
		AppName:      cfg.Server.AppName,
		Prefork:      cfg.Server.Prefork,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${ip}]:${port} ${status} - ${method} ${path}\n",
	}))

	if cfg.Security.CORSEnabled {
		app.Use(middleware.CORS(cfg.Security.CORSOrigins))
	}

	if cfg.RateLimit.Enabled && routerConfig.Limiters.General != nil {
		app.Use(middleware.RateLimit(routerConfig.Limiters.General, routerConfig.Logger))
	}

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": cfg.Server.AppName + " API",
			"version": "1.0.0",
			"status":  "running",
		})
	})

	api := app.Group("/api")
	apiV1 := api.Group("/v1")

	if routerConfig.HealthHandler != nil {
		apiV1.Get("/health", routerConfig.HealthHandler)
	} else {
		apiV1.Get("/health", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{
				"status":    "healthy",
				"timestamp": time.Now().Unix(),
			})
		})
	}

	identityHandler := identity.NewHandler(routerConfig.IdentityService, routerConfig.AccountService, identity.CookieSettings{
		Domain:        cfg.Auth.CookieDomain,
		Secure:        cfg.Auth.SecureCookies,
		AccessMaxAge:  cfg.Auth.AccessTTL,
		RefreshMaxAge: cfg.Auth.RefreshTTL,
	})
	authMiddleware := identity.NewMiddleware(routerConfig.IdentityService)
	accountHandler := account.NewHandler(routerConfig.AccountService)

	authLimiters := v1.AuthLimiters{}
	if cfg.RateLimit.Enabled {
		authLimiters.Login = limitHandler(routerConfig.Limiters.Login, routerConfig.Logger)
		authLimiters.OTPVerify = limitHandler(routerConfig.Limiters.OTPVerify, routerConfig.Logger)
		authLimiters.OTPResend = limitHandler(routerConfig.Limiters.OTPResend, routerConfig.Logger)
	}

	v1.RegisterAuthRoutes(apiV1, identityHandler, authMiddleware, authLimiters)
	v1.RegisterAccountRoutes(apiV1, accountHandler, authMiddleware)

	app.Use("*", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
			"path":    c.Path(),
		})
	})

	return app
}

func limitHandler(limiter ratelimit.Limiter, logger zerolog.Logger) fiber.Handler {
	if limiter == nil {
		return nil
	}
	return middleware.RateLimit(limiter, logger)
}
