package account

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ctrdhq/account-directory-server/package/minio"
	"github.com/ctrdhq/account-directory-server/package/mongo"
)

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, account *Account) (*Account, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account), args.Error(1)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account), args.Error(1)
}

func (m *MockAccountRepository) GetByIdentifier(ctx context.Context, identifier Identifier) (*Account, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account), args.Error(1)
}

func (m *MockAccountRepository) GetByIdentifierAny(ctx context.Context, identifier Identifier) (*Account, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account), args.Error(1)
}

func (m *MockAccountRepository) Update(ctx context.Context, id primitive.ObjectID, updateData bson.M) (*Account, error) {
	args := m.Called(ctx, id, updateData)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account), args.Error(1)
}

func (m *MockAccountRepository) UpdateIf(ctx context.Context, filter bson.M, update bson.M) (*Account, error) {
	args := m.Called(ctx, filter, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account), args.Error(1)
}

func (m *MockAccountRepository) List(ctx context.Context, filter bson.M, pagination mongo.PaginationOptions) (*mongo.PaginatedResult[Account], error) {
	args := m.Called(ctx, filter, pagination)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mongo.PaginatedResult[Account]), args.Error(1)
}

func (m *MockAccountRepository) Count(ctx context.Context, filter bson.M) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAccountRepository) SetPassword(ctx context.Context, id primitive.ObjectID, passwordHash string) (*Account, error) {
	args := m.Called(ctx, id, passwordHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account), args.Error(1)
}

func (m *MockAccountRepository) SetOTP(ctx context.Context, id primitive.ObjectID, otpHash string, expiresAt time.Time) (*Account, error) {
	args := m.Called(ctx, id, otpHash, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account), args.Error(1)
}

func (m *MockAccountRepository) ConsumeOTP(ctx context.Context, id primitive.ObjectID, observedHash string, extra bson.M) (*Account, error) {
	args := m.Called(ctx, id, observedHash, extra)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account), args.Error(1)
}

func (m *MockAccountRepository) RecordFailedAttempt(ctx context.Context, id primitive.ObjectID) (*Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account), args.Error(1)
}

func (m *MockAccountRepository) LockIfAttemptsExceed(ctx context.Context, id primitive.ObjectID, threshold int, until time.Time) (*Account, error) {
	args := m.Called(ctx, id, threshold, until)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account), args.Error(1)
}

func (m *MockAccountRepository) SetRefreshTokenHash(ctx context.Context, id primitive.ObjectID, hash string, lastLoginAt time.Time) (*Account, error) {
	args := m.Called(ctx, id, hash, lastLoginAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account), args.Error(1)
}

func (m *MockAccountRepository) ClearRefreshTokenIf(ctx context.Context, id primitive.ObjectID, observedHash string) (*Account, error) {
	args := m.Called(ctx, id, observedHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account), args.Error(1)
}

func (m *MockAccountRepository) SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time) (*Account, error) {
	args := m.Called(ctx, id, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account), args.Error(1)
}

func (m *MockAccountRepository) Restore(ctx context.Context, id primitive.ObjectID) (*Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account), args.Error(1)
}

func (m *MockAccountRepository) Purge(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockMediaService struct {
	mock.Mock
}

func (m *MockMediaService) HealthCheck(ctx context.Context) minio.HealthStatus {
	args := m.Called(ctx)
	return args.Get(0).(minio.HealthStatus)
}

func (m *MockMediaService) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	args := m.Called(ctx, objectName, reader, size, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockMediaService) DeleteByURL(ctx context.Context, referenceURL string) error {
	args := m.Called(ctx, referenceURL)
	return args.Error(0)
}

func (m *MockMediaService) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) GetAccountByID(ctx context.Context, id string) (*AccountResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*AccountResponse), args.Error(1)
}

func (m *MockAccountService) GetAccountByIdentifier(ctx context.Context, rawIdentifier string) (*AccountResponse, error) {
	args := m.Called(ctx, rawIdentifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*AccountResponse), args.Error(1)
}

func (m *MockAccountService) UpdateProfile(ctx context.Context, id string, req *UpdateProfileRequest) (*AccountResponse, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*AccountResponse), args.Error(1)
}

func (m *MockAccountService) UploadAvatar(ctx context.Context, id string, filename string, contentType string, reader io.Reader, size int64) (*AccountResponse, error) {
	args := m.Called(ctx, id, filename, contentType, reader, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*AccountResponse), args.Error(1)
}

func (m *MockAccountService) ListAccounts(ctx context.Context, req *ListAccountsRequest) (*mongo.PaginatedResult[AccountResponse], error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mongo.PaginatedResult[AccountResponse]), args.Error(1)
}

func (m *MockAccountService) SoftDeleteAccount(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAccountService) RestoreAccount(ctx context.Context, id string) (*AccountResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*AccountResponse), args.Error(1)
}

func (m *MockAccountService) HardDeleteAccount(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
