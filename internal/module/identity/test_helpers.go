package identity

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ctrdhq/account-directory-server/internal/module/account"
)

type MockOTPDeliverer struct {
	mock.Mock
}

func (m *MockOTPDeliverer) Supports(kind account.IdentifierKind) bool {
	args := m.Called(kind)
	return args.Bool(0)
}

func (m *MockOTPDeliverer) DeliverOTP(ctx context.Context, identifier account.Identifier, code string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, identifier, code, ttl)
	return args.String(0), args.Error(1)
}

type MockIdentityService struct {
	mock.Mock
}

func (m *MockIdentityService) Register(ctx context.Context, req *RegisterRequest) (*ChallengeResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ChallengeResponse), args.Error(1)
}

func (m *MockIdentityService) Login(ctx context.Context, req *LoginRequest) (*SessionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SessionResponse), args.Error(1)
}

func (m *MockIdentityService) RequestOTP(ctx context.Context, req *RequestOTPRequest) (*ChallengeResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ChallengeResponse), args.Error(1)
}

func (m *MockIdentityService) VerifyOTP(ctx context.Context, req *VerifyOTPRequest) (*SessionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SessionResponse), args.Error(1)
}

func (m *MockIdentityService) ResendOTP(ctx context.Context, req *ResendOTPRequest) (*ChallengeResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ChallengeResponse), args.Error(1)
}

func (m *MockIdentityService) ChangePassword(ctx context.Context, accountID string, req *ChangePasswordRequest) error {
	args := m.Called(ctx, accountID, req)
	return args.Error(0)
}

func (m *MockIdentityService) ResetPassword(ctx context.Context, req *ResetPasswordRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockIdentityService) RefreshSession(ctx context.Context, refreshToken string) (*SessionResponse, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SessionResponse), args.Error(1)
}

func (m *MockIdentityService) Logout(ctx context.Context, accountID string, refreshToken string) error {
	args := m.Called(ctx, accountID, refreshToken)
	return args.Error(0)
}

func (m *MockIdentityService) ValidateAccessToken(ctx context.Context, token string) (*SessionClaims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SessionClaims), args.Error(1)
}
