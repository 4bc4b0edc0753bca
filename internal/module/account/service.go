package account

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ctrdhq/account-directory-server/internal/apperror"
	"github.com/ctrdhq/account-directory-server/package/minio"
	"github.com/ctrdhq/account-directory-server/package/mongo"
)

type AccountService interface {
	GetAccountByID(ctx context.Context, id string) (*AccountResponse, error)
	GetAccountByIdentifier(ctx context.Context, rawIdentifier string) (*AccountResponse, error)
	UpdateProfile(ctx context.Context, id string, req *UpdateProfileRequest) (*AccountResponse, error)
	UploadAvatar(ctx context.Context, id string, filename string, contentType string, reader io.Reader, size int64) (*AccountResponse, error)
	ListAccounts(ctx context.Context, req *ListAccountsRequest) (*mongo.PaginatedResult[AccountResponse], error)
	SoftDeleteAccount(ctx context.Context, id string) error
	RestoreAccount(ctx context.Context, id string) (*AccountResponse, error)
	HardDeleteAccount(ctx context.Context, id string) error
}

type accountService struct {
	repository AccountRepository
	media      minio.MinIOService
	logger     zerolog.Logger
}

func NewAccountService(repository AccountRepository, media minio.MinIOService, logger zerolog.Logger) AccountService {
	return &accountService{
		repository: repository,
		media:      media,
		logger:     logger,
	}
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperror.Validation("account id is malformed")
	}
	return objectID, nil
}

func (s *accountService) getAccount(ctx context.Context, id string) (*Account, error) {
	objectID, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	found, err := s.repository.GetByID(ctx, objectID)
	if err != nil {
		return nil, apperror.Internal("failed to load account", err)
	}
	if found == nil {
		return nil, apperror.NotFound("account not found")
	}

	return found, nil
}

func (s *accountService) GetAccountByID(ctx context.Context, id string) (*AccountResponse, error) {
	found, err := s.getAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	return found.ToResponse(), nil
}

func (s *accountService) GetAccountByIdentifier(ctx context.Context, rawIdentifier string) (*AccountResponse, error) {
	identifier, err := ParseIdentifier(rawIdentifier)
	if err != nil {
		return nil, err
	}

	found, err := s.repository.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, apperror.Internal("failed to load account", err)
	}
	if found == nil {
		return nil, apperror.NotFound("account not found")
	}

	return found.ToResponse(), nil
}

func (s *accountService) UpdateProfile(ctx context.Context, id string, req *UpdateProfileRequest) (*AccountResponse, error) {
	objectID, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	updateData := bson.M{}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return nil, apperror.Validation("full name cannot be empty")
		}
		updateData["full_name"] = name
	}
	if req.DateOfBirth != nil {
		if *req.DateOfBirth != "" {
			if _, err := time.Parse("2006-01-02", *req.DateOfBirth); err != nil {
				return nil, apperror.Validation("date of birth must be YYYY-MM-DD")
			}
		}
		updateData["date_of_birth"] = *req.DateOfBirth
	}
	if req.Address != nil {
		updateData["address"] = *req.Address
	}
	if req.Gender != nil {
		updateData["gender"] = *req.Gender
	}

	for kind, value := range map[IdentifierKind]*string{
		IdentifierEmail:    req.Email,
		IdentifierMobile:   req.MobileNumber,
		IdentifierUsername: req.Username,
	} {
		if value == nil {
			continue
		}
		identifier, err := ParseIdentifier(*value)
		if err != nil {
			return nil, err
		}
		if identifier.Kind != kind {
			return nil, apperror.Validation(fmt.Sprintf("%s has an invalid format", kind))
		}
		owner, err := s.repository.GetByIdentifierAny(ctx, identifier)
		if err != nil {
			return nil, apperror.Internal("failed to check identifier availability", err)
		}
		if owner != nil && owner.ID != objectID {
			return nil, apperror.Conflict(fmt.Sprintf("%s is already in use", kind))
		}
		updateData[string(kind)] = identifier.Value
	}

	if len(updateData) == 0 {
		return nil, apperror.Validation("no profile fields to update")
	}

	updated, err := s.repository.Update(ctx, objectID, updateData)
	if err != nil {
		return nil, apperror.Internal("failed to update profile", err)
	}
	if updated == nil {
		return nil, apperror.NotFound("account not found")
	}

	return updated.ToResponse(), nil
}

func (s *accountService) UploadAvatar(ctx context.Context, id string, filename string, contentType string, reader io.Reader, size int64) (*AccountResponse, error) {
	current, err := s.getAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	if size <= 0 {
		return nil, apperror.Validation("avatar file is empty")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, apperror.Validation("avatar must be an image")
	}

	objectName := "avatars/" + current.ID.Hex() + strings.ToLower(path.Ext(filename))
	url, err := s.media.Upload(ctx, objectName, reader, size, contentType)
	if err != nil {
		return nil, apperror.Dependency("failed to store avatar", err)
	}

	if current.ProfileImage != "" && current.ProfileImage != url {
		if err := s.media.DeleteByURL(ctx, current.ProfileImage); err != nil {
			s.logger.Warn().Err(err).Str("account_id", id).Msg("failed to release previous avatar")
		}
	}

	updated, err := s.repository.Update(ctx, current.ID, bson.M{"profile_image": url})
	if err != nil {
		return nil, apperror.Internal("failed to save avatar reference", err)
	}
	if updated == nil {
		return nil, apperror.NotFound("account not found")
	}

	return updated.ToResponse(), nil
}

func (s *accountService) ListAccounts(ctx context.Context, req *ListAccountsRequest) (*mongo.PaginatedResult[AccountResponse], error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 20
	}

	filter := bson.M{"is_deleted": req.Deleted}
	if req.IsVerified != nil {
		filter["is_verified"] = *req.IsVerified
	}
	if search := strings.TrimSpace(req.Search); search != "" {
		pattern := primitive.Regex{Pattern: regexQuote(search), Options: "i"}
		filter["$or"] = []bson.M{
			{"email": pattern},
			{"username": pattern},
			{"full_name": pattern},
		}
	}

	result, err := s.repository.List(ctx, filter, mongo.PaginationOptions{
		Page:  req.Page,
		Limit: req.Limit,
	})
	if err != nil {
		return nil, apperror.Internal("failed to list accounts", err)
	}

	responses := make([]AccountResponse, len(result.Data))
	for i := range result.Data {
		responses[i] = *result.Data[i].ToResponse()
	}

	return &mongo.PaginatedResult[AccountResponse]{
		Data:       responses,
		Total:      result.Total,
		Page:       result.Page,
		Limit:      result.Limit,
		TotalPages: result.TotalPages,
		HasNext:    result.HasNext,
		HasPrev:    result.HasPrev,
	}, nil
}

// SoftDeleteAccount hides the account from the directory and revokes
// every credential tied to it. Deleting twice reports a conflict.
func (s *accountService) SoftDeleteAccount(ctx context.Context, id string) error {
	objectID, err := parseObjectID(id)
	if err != nil {
		return err
	}

	deleted, err := s.repository.SoftDelete(ctx, objectID, time.Now())
	if err != nil {
		return apperror.Internal("failed to delete account", err)
	}
	if deleted == nil {
		if record, lookupErr := s.lookupAny(ctx, objectID); lookupErr == nil && record != nil && record.IsDeleted {
			return apperror.Conflict("account is already deleted")
		}
		return apperror.NotFound("account not found")
	}

	return nil
}

func (s *accountService) lookupAny(ctx context.Context, id primitive.ObjectID) (*Account, error) {
	records, err := s.repository.List(ctx, bson.M{"_id": id}, mongo.PaginationOptions{Page: 1, Limit: 1})
	if err != nil || records == nil || len(records.Data) == 0 {
		return nil, err
	}
	return &records.Data[0], nil
}

func (s *accountService) RestoreAccount(ctx context.Context, id string) (*AccountResponse, error) {
	objectID, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	restored, err := s.repository.Restore(ctx, objectID)
	if err != nil {
		return nil, apperror.Internal("failed to restore account", err)
	}
	if restored == nil {
		return nil, apperror.NotFound("no deleted account to restore")
	}

	return restored.ToResponse(), nil
}

// HardDeleteAccount purges the record after releasing stored media.
// Media release is best effort so an unreachable object store cannot
// leave the account half alive.
func (s *accountService) HardDeleteAccount(ctx context.Context, id string) error {
	objectID, err := parseObjectID(id)
	if err != nil {
		return err
	}

	record, err := s.lookupAny(ctx, objectID)
	if err != nil {
		return apperror.Internal("failed to load account", err)
	}
	if record == nil {
		return apperror.NotFound("account not found")
	}

	if record.ProfileImage != "" {
		if err := s.media.DeleteByURL(ctx, record.ProfileImage); err != nil {
			s.logger.Warn().Err(err).Str("account_id", id).Msg("failed to release avatar during purge")
		}
	}

	if err := s.repository.Purge(ctx, objectID); err != nil {
		return apperror.Internal("failed to purge account", err)
	}

	return nil
}

func regexQuote(s string) string {
	special := `\.+*?()|[]{}^$`
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
