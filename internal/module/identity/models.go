package identity

import (
	"strings"

	"github.com/ctrdhq/account-directory-server/internal/module/account"
)

type RegisterRequest struct {
	Identifier  string `json:"identifier" validate:"required"`
	Password    string `json:"password" validate:"omitempty,min=8,max=128"`
	FullName    string `json:"full_name" validate:"required,min=1,max=200"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Address     string `json:"address,omitempty"`
	Gender      string `json:"gender,omitempty"`
}

type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type RequestOTPRequest struct {
	Identifier string `json:"identifier" validate:"required"`
}

type VerifyOTPRequest struct {
	ChallengeToken string `json:"challenge_token" validate:"required"`
	Code           string `json:"code" validate:"required"`
}

type ResendOTPRequest struct {
	ChallengeToken string `json:"challenge_token" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

type ResetPasswordRequest struct {
	ChallengeToken string `json:"challenge_token" validate:"required"`
	Code           string `json:"code" validate:"required"`
	NewPassword    string `json:"new_password" validate:"required,min=8,max=128"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

// ChallengeResponse hands the caller the token that scopes the pending
// code to one account. The token authorizes only verify and resend.
type ChallengeResponse struct {
	ChallengeToken string `json:"challenge_token"`
	ExpiresIn      int64  `json:"expires_in"`
	DeliveredTo    string `json:"delivered_to"`
}

type SessionResponse struct {
	AccessToken  string                   `json:"access_token"`
	RefreshToken string                   `json:"refresh_token"`
	TokenType    string                   `json:"token_type"`
	ExpiresIn    int64                    `json:"expires_in"`
	Account      *account.AccountResponse `json:"account"`
}

type SessionClaims struct {
	AccountID string `json:"account_id"`
}

func (c *SessionClaims) ToCustomClaims() map[string]any {
	return map[string]any{
		"account_id": c.AccountID,
	}
}

// maskDestination hides most of a delivery address in API responses,
// keeping just enough for the user to recognize it.
func maskDestination(destination string) string {
	if at := strings.Index(destination, "@"); at > 0 {
		local := destination[:at]
		domain := destination[at:]
		if len(local) <= 2 {
			return strings.Repeat("*", len(local)) + domain
		}
		return local[:1] + strings.Repeat("*", len(local)-2) + local[len(local)-1:] + domain
	}

	if len(destination) <= 4 {
		return strings.Repeat("*", len(destination))
	}
	return strings.Repeat("*", len(destination)-4) + destination[len(destination)-4:]
}
