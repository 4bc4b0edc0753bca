package middleware

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/ctrdhq/account-directory-server/package/ratelimit"
)

// RateLimit throttles by the identifier carried in the request body,
// falling back to the caller IP. Tying the counter to the identifier
// makes a brute force against one account share a single budget no
// matter how many source addresses it comes from.
func RateLimit(limiter ratelimit.Limiter, logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := identifierKey(c)

		result, err := limiter.Allow(c.Context(), key)
		if err != nil {
			// A broken counter backend should not take the API down.
			logger.Error().Err(err).Str("key", key).Msg("rate limiter unavailable, allowing request")
			return c.Next()
		}

		c.Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))

		if !result.Allowed {
			retryAfter := int64(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.FormatInt(retryAfter, 10))

			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "Too many requests",
				"message": "rate limit exceeded, slow down",
			})
		}

		return c.Next()
	}
}

// identifierKey extracts the identifier from a JSON body without
// binding the full request, so throttling happens before parsing.
func identifierKey(c *fiber.Ctx) string {
	body := c.Body()
	if len(body) > 0 {
		var probe struct {
			Identifier string `json:"identifier"`
		}
		if err := json.Unmarshal(body, &probe); err == nil && probe.Identifier != "" {
			return probe.Identifier
		}
	}
	return c.IP()
}
