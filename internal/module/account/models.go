package account

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account is the directory record. Exactly one of Email, MobileNumber
// or Username may be empty depending on how the account registered,
// but at least one identifier is always present.
type Account struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Email        string             `json:"email,omitempty" bson:"email,omitempty"`
	MobileNumber string             `json:"mobile_number,omitempty" bson:"mobile_number,omitempty"`
	Username     string             `json:"username,omitempty" bson:"username,omitempty"`

	FullName     string    `json:"full_name" bson:"full_name"`
	DateOfBirth  string    `json:"date_of_birth,omitempty" bson:"date_of_birth,omitempty"`
	Address      string    `json:"address,omitempty" bson:"address,omitempty"`
	Gender       string    `json:"gender,omitempty" bson:"gender,omitempty"`
	ProfileImage string    `json:"profile_image,omitempty" bson:"profile_image,omitempty"`

	PasswordHash     string     `json:"-" bson:"password_hash,omitempty"`
	OTPHash          string     `json:"-" bson:"otp_hash,omitempty"`
	OTPExpiresAt     *time.Time `json:"-" bson:"otp_expires_at,omitempty"`
	RefreshTokenHash string     `json:"-" bson:"refresh_token_hash,omitempty"`

	IsVerified    bool       `json:"is_verified" bson:"is_verified"`
	IsDeleted     bool       `json:"-" bson:"is_deleted"`
	DeletedAt     *time.Time `json:"-" bson:"deleted_at,omitempty"`
	LoginAttempts int        `json:"-" bson:"login_attempts"`
	LockUntil     *time.Time `json:"-" bson:"lock_until,omitempty"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty" bson:"last_login_at,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// IsLocked reports whether the account is under a failed-attempt
// lockout at the given instant.
func (a *Account) IsLocked(now time.Time) bool {
	return a.LockUntil != nil && now.Before(*a.LockUntil)
}

// OTPExpired reports whether the pending challenge code, if any, has
// passed its deadline.
func (a *Account) OTPExpired(now time.Time) bool {
	return a.OTPExpiresAt == nil || now.After(*a.OTPExpiresAt)
}

func (a *Account) HasPendingOTP() bool {
	return a.OTPHash != ""
}

type UpdateProfileRequest struct {
	FullName     *string `json:"full_name,omitempty" validate:"omitempty,min=1,max=200"`
	DateOfBirth  *string `json:"date_of_birth,omitempty"`
	Address      *string `json:"address,omitempty" validate:"omitempty,max=500"`
	Gender       *string `json:"gender,omitempty"`
	Email        *string `json:"email,omitempty"`
	MobileNumber *string `json:"mobile_number,omitempty"`
	Username     *string `json:"username,omitempty"`
}

type AccountResponse struct {
	ID           string     `json:"id"`
	Email        string     `json:"email,omitempty"`
	MobileNumber string     `json:"mobile_number,omitempty"`
	Username     string     `json:"username,omitempty"`
	FullName     string     `json:"full_name"`
	DateOfBirth  string     `json:"date_of_birth,omitempty"`
	Address      string     `json:"address,omitempty"`
	Gender       string     `json:"gender,omitempty"`
	ProfileImage string     `json:"profile_image,omitempty"`
	IsVerified   bool       `json:"is_verified"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type ListAccountsRequest struct {
	Page       int64  `query:"page" validate:"min=1"`
	Limit      int64  `query:"limit" validate:"min=1,max=100"`
	Search     string `query:"search"`
	IsVerified *bool  `query:"is_verified"`
	Deleted    bool   `query:"deleted"`
}

func (a *Account) ToResponse() *AccountResponse {
	return &AccountResponse{
		ID:           a.ID.Hex(),
		Email:        a.Email,
		MobileNumber: a.MobileNumber,
		Username:     a.Username,
		FullName:     a.FullName,
		DateOfBirth:  a.DateOfBirth,
		Address:      a.Address,
		Gender:       a.Gender,
		ProfileImage: a.ProfileImage,
		IsVerified:   a.IsVerified,
		LastLoginAt:  a.LastLoginAt,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}
