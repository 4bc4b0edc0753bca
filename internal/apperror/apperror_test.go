package apperror

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", Validation("email is invalid"), fiber.StatusUnprocessableEntity},
		{"auth", Auth("invalid credentials"), fiber.StatusUnauthorized},
		{"forbidden", Forbidden("account is not verified"), fiber.StatusForbidden},
		{"not found", NotFound("account not found"), fiber.StatusNotFound},
		{"conflict", Conflict("email already registered"), fiber.StatusConflict},
		{"rate limited", RateLimited("too many attempts", time.Minute), fiber.StatusTooManyRequests},
		{"dependency", Dependency("email delivery failed", errors.New("timeout")), fiber.StatusBadGateway},
		{"internal", Internal("hashing failed", errors.New("boom")), fiber.StatusInternalServerError},
		{"plain error", errors.New("boom"), fiber.StatusInternalServerError},
		{"wrapped app error", fmt.Errorf("login: %w", Auth("invalid credentials")), fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StatusCode(tt.err))
		})
	}
}

func TestClientMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"validation passes through", Validation("email is invalid"), "email is invalid"},
		{"conflict passes through", Conflict("email already registered"), "email already registered"},
		{"dependency is masked", Dependency("resend send failed", errors.New("api key rejected")), "upstream service unavailable"},
		{"internal is masked", Internal("mongo write failed", errors.New("socket closed")), "internal server error"},
		{"plain error is masked", errors.New("socket closed"), "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClientMessage(tt.err))
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Dependency("email delivery failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "dependency")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("verify: %w", Forbidden("account is locked"))

	assert.True(t, IsKind(err, KindForbidden))
	assert.False(t, IsKind(err, KindAuth))
	assert.False(t, IsKind(errors.New("boom"), KindInternal))
}

func TestRateLimited_RetryAfter(t *testing.T) {
	err := RateLimited("too many attempts", 42*time.Second)

	appErr, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, 42*time.Second, appErr.RetryAfter)
}
