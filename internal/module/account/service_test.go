package account

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ctrdhq/account-directory-server/internal/apperror"
	"github.com/ctrdhq/account-directory-server/package/mongo"
)

func newTestService(repository *MockAccountRepository, media *MockMediaService) AccountService {
	return NewAccountService(repository, media, zerolog.Nop())
}

func testAccount() *Account {
	now := time.Now()
	return &Account{
		ID:         primitive.NewObjectID(),
		Email:      "alice@example.com",
		Username:   "alice_01",
		FullName:   "Alice Example",
		IsVerified: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestGetAccountByID(t *testing.T) {
	account := testAccount()

	t.Run("success", func(t *testing.T) {
		repository := new(MockAccountRepository)
		repository.On("GetByID", mock.Anything, account.ID).Return(account, nil)

		service := newTestService(repository, new(MockMediaService))
		response, err := service.GetAccountByID(context.Background(), account.ID.Hex())

		require.NoError(t, err)
		assert.Equal(t, account.ID.Hex(), response.ID)
		assert.Equal(t, "alice@example.com", response.Email)
		repository.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		repository := new(MockAccountRepository)
		repository.On("GetByID", mock.Anything, mock.Anything).Return(nil, nil)

		service := newTestService(repository, new(MockMediaService))
		_, err := service.GetAccountByID(context.Background(), primitive.NewObjectID().Hex())

		assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	})

	t.Run("malformed id", func(t *testing.T) {
		service := newTestService(new(MockAccountRepository), new(MockMediaService))
		_, err := service.GetAccountByID(context.Background(), "not-an-object-id")

		assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	})
}

func TestUpdateProfile(t *testing.T) {
	account := testAccount()

	t.Run("updates provided fields only", func(t *testing.T) {
		repository := new(MockAccountRepository)
		repository.On("Update", mock.Anything, account.ID, bson.M{"full_name": "Alice Renamed"}).Return(account, nil)

		service := newTestService(repository, new(MockMediaService))
		name := "Alice Renamed"
		_, err := service.UpdateProfile(context.Background(), account.ID.Hex(), &UpdateProfileRequest{FullName: &name})

		require.NoError(t, err)
		repository.AssertExpectations(t)
	})

	t.Run("rejects blank full name", func(t *testing.T) {
		service := newTestService(new(MockAccountRepository), new(MockMediaService))
		name := "   "
		_, err := service.UpdateProfile(context.Background(), account.ID.Hex(), &UpdateProfileRequest{FullName: &name})

		assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	})

	t.Run("rejects malformed birth date", func(t *testing.T) {
		service := newTestService(new(MockAccountRepository), new(MockMediaService))
		dob := "31-01-1990"
		_, err := service.UpdateProfile(context.Background(), account.ID.Hex(), &UpdateProfileRequest{DateOfBirth: &dob})

		assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	})

	t.Run("rejects empty update", func(t *testing.T) {
		service := newTestService(new(MockAccountRepository), new(MockMediaService))
		_, err := service.UpdateProfile(context.Background(), account.ID.Hex(), &UpdateProfileRequest{})

		assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	})

	t.Run("changes email when available", func(t *testing.T) {
		repository := new(MockAccountRepository)
		repository.On("GetByIdentifierAny", mock.Anything, Identifier{Kind: IdentifierEmail, Value: "alice.new@example.com"}).Return(nil, nil)
		repository.On("Update", mock.Anything, account.ID, bson.M{"email": "alice.new@example.com"}).Return(account, nil)

		service := newTestService(repository, new(MockMediaService))
		email := "Alice.New@example.com"
		_, err := service.UpdateProfile(context.Background(), account.ID.Hex(), &UpdateProfileRequest{Email: &email})

		require.NoError(t, err)
		repository.AssertExpectations(t)
	})

	t.Run("conflicts when another account owns the identifier", func(t *testing.T) {
		other := testAccount()
		repository := new(MockAccountRepository)
		repository.On("GetByIdentifierAny", mock.Anything, mock.Anything).Return(other, nil)

		service := newTestService(repository, new(MockMediaService))
		username := "taken_name"
		_, err := service.UpdateProfile(context.Background(), account.ID.Hex(), &UpdateProfileRequest{Username: &username})

		assert.True(t, apperror.IsKind(err, apperror.KindConflict))
		repository.AssertNotCalled(t, "Update")
	})

	t.Run("keeps identifier when the account already owns it", func(t *testing.T) {
		repository := new(MockAccountRepository)
		repository.On("GetByIdentifierAny", mock.Anything, mock.Anything).Return(account, nil)
		repository.On("Update", mock.Anything, account.ID, bson.M{"username": "alice_01"}).Return(account, nil)

		service := newTestService(repository, new(MockMediaService))
		username := "alice_01"
		_, err := service.UpdateProfile(context.Background(), account.ID.Hex(), &UpdateProfileRequest{Username: &username})

		require.NoError(t, err)
		repository.AssertExpectations(t)
	})

	t.Run("rejects value that is not the declared identifier kind", func(t *testing.T) {
		service := newTestService(new(MockAccountRepository), new(MockMediaService))
		email := "not-an-email"
		_, err := service.UpdateProfile(context.Background(), account.ID.Hex(), &UpdateProfileRequest{Email: &email})

		assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	})
}

func TestSoftDeleteAccount(t *testing.T) {
	account := testAccount()

	t.Run("success", func(t *testing.T) {
		repository := new(MockAccountRepository)
		repository.On("SoftDelete", mock.Anything, account.ID, mock.AnythingOfType("time.Time")).Return(account, nil)

		service := newTestService(repository, new(MockMediaService))
		err := service.SoftDeleteAccount(context.Background(), account.ID.Hex())

		assert.NoError(t, err)
		repository.AssertExpectations(t)
	})

	t.Run("already deleted reports conflict", func(t *testing.T) {
		deleted := testAccount()
		deleted.IsDeleted = true

		repository := new(MockAccountRepository)
		repository.On("SoftDelete", mock.Anything, deleted.ID, mock.AnythingOfType("time.Time")).Return(nil, nil)
		repository.On("List", mock.Anything, bson.M{"_id": deleted.ID}, mock.Anything).
			Return(&mongo.PaginatedResult[Account]{Data: []Account{*deleted}}, nil)

		service := newTestService(repository, new(MockMediaService))
		err := service.SoftDeleteAccount(context.Background(), deleted.ID.Hex())

		assert.True(t, apperror.IsKind(err, apperror.KindConflict))
	})

	t.Run("unknown account reports not found", func(t *testing.T) {
		id := primitive.NewObjectID()

		repository := new(MockAccountRepository)
		repository.On("SoftDelete", mock.Anything, id, mock.AnythingOfType("time.Time")).Return(nil, nil)
		repository.On("List", mock.Anything, bson.M{"_id": id}, mock.Anything).
			Return(&mongo.PaginatedResult[Account]{Data: []Account{}}, nil)

		service := newTestService(repository, new(MockMediaService))
		err := service.SoftDeleteAccount(context.Background(), id.Hex())

		assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	})
}

func TestRestoreAccount(t *testing.T) {
	account := testAccount()

	t.Run("success", func(t *testing.T) {
		repository := new(MockAccountRepository)
		repository.On("Restore", mock.Anything, account.ID).Return(account, nil)

		service := newTestService(repository, new(MockMediaService))
		response, err := service.RestoreAccount(context.Background(), account.ID.Hex())

		require.NoError(t, err)
		assert.Equal(t, account.ID.Hex(), response.ID)
	})

	t.Run("nothing to restore", func(t *testing.T) {
		repository := new(MockAccountRepository)
		repository.On("Restore", mock.Anything, mock.Anything).Return(nil, nil)

		service := newTestService(repository, new(MockMediaService))
		_, err := service.RestoreAccount(context.Background(), primitive.NewObjectID().Hex())

		assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	})
}

func TestHardDeleteAccount(t *testing.T) {
	t.Run("releases avatar before purge", func(t *testing.T) {
		account := testAccount()
		account.ProfileImage = "http://localhost:9000/account-media/avatars/a.png"

		repository := new(MockAccountRepository)
		repository.On("List", mock.Anything, bson.M{"_id": account.ID}, mock.Anything).
			Return(&mongo.PaginatedResult[Account]{Data: []Account{*account}}, nil)
		repository.On("Purge", mock.Anything, account.ID).Return(nil)

		media := new(MockMediaService)
		media.On("DeleteByURL", mock.Anything, account.ProfileImage).Return(nil)

		service := newTestService(repository, media)
		err := service.HardDeleteAccount(context.Background(), account.ID.Hex())

		require.NoError(t, err)
		repository.AssertExpectations(t)
		media.AssertExpectations(t)
	})

	t.Run("purges even when media release fails", func(t *testing.T) {
		account := testAccount()
		account.ProfileImage = "http://localhost:9000/account-media/avatars/a.png"

		repository := new(MockAccountRepository)
		repository.On("List", mock.Anything, bson.M{"_id": account.ID}, mock.Anything).
			Return(&mongo.PaginatedResult[Account]{Data: []Account{*account}}, nil)
		repository.On("Purge", mock.Anything, account.ID).Return(nil)

		media := new(MockMediaService)
		media.On("DeleteByURL", mock.Anything, account.ProfileImage).Return(errors.New("bucket gone"))

		service := newTestService(repository, media)
		err := service.HardDeleteAccount(context.Background(), account.ID.Hex())

		assert.NoError(t, err)
		repository.AssertExpectations(t)
	})
}

func TestUploadAvatar(t *testing.T) {
	t.Run("stores image and replaces previous", func(t *testing.T) {
		account := testAccount()
		account.ProfileImage = "http://localhost:9000/account-media/avatars/old.png"
		newURL := "http://localhost:9000/account-media/avatars/" + account.ID.Hex() + ".png"

		repository := new(MockAccountRepository)
		repository.On("GetByID", mock.Anything, account.ID).Return(account, nil)
		repository.On("Update", mock.Anything, account.ID, bson.M{"profile_image": newURL}).Return(account, nil)

		media := new(MockMediaService)
		media.On("Upload", mock.Anything, "avatars/"+account.ID.Hex()+".png", mock.Anything, int64(4), "image/png").
			Return(newURL, nil)
		media.On("DeleteByURL", mock.Anything, account.ProfileImage).Return(nil)

		service := newTestService(repository, media)
		_, err := service.UploadAvatar(context.Background(), account.ID.Hex(), "me.PNG", "image/png", strings.NewReader("data"), 4)

		require.NoError(t, err)
		media.AssertExpectations(t)
	})

	t.Run("rejects non-image content", func(t *testing.T) {
		account := testAccount()

		repository := new(MockAccountRepository)
		repository.On("GetByID", mock.Anything, account.ID).Return(account, nil)

		service := newTestService(repository, new(MockMediaService))
		_, err := service.UploadAvatar(context.Background(), account.ID.Hex(), "notes.txt", "text/plain", strings.NewReader("data"), 4)

		assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	})
}

func TestListAccounts(t *testing.T) {
	repository := new(MockAccountRepository)
	repository.On("List", mock.Anything, bson.M{"is_deleted": false}, mongo.PaginationOptions{Page: 1, Limit: 20}).
		Return(&mongo.PaginatedResult[Account]{
			Data:  []Account{*testAccount()},
			Total: 1, Page: 1, Limit: 20, TotalPages: 1,
		}, nil)

	service := newTestService(repository, new(MockMediaService))
	result, err := service.ListAccounts(context.Background(), &ListAccountsRequest{})

	require.NoError(t, err)
	assert.Len(t, result.Data, 1)
	assert.Equal(t, int64(1), result.Total)
	repository.AssertExpectations(t)
}
