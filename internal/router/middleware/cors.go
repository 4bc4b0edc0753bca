package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORS allows credentialed cross-origin requests so browser clients
// can carry the session cookies.
func CORS(origins string) fiber.Handler {
	allowCredentials := origins != "" && origins != "*"

	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: allowCredentials,
		ExposeHeaders:    "Content-Length, Content-Type, Retry-After",
		MaxAge:           86400,
	})
}
