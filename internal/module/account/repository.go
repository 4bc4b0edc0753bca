package account

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ctrdhq/account-directory-server/package/mongo"
)

const CollectionName = "accounts"

// AccountRepository wraps the accounts collection. Every guarded write
// goes through a single find-and-modify so concurrent requests cannot
// interleave between the read and the write.
type AccountRepository interface {
	Create(ctx context.Context, account *Account) (*Account, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*Account, error)
	GetByIdentifier(ctx context.Context, identifier Identifier) (*Account, error)
	GetByIdentifierAny(ctx context.Context, identifier Identifier) (*Account, error)
	Update(ctx context.Context, id primitive.ObjectID, updateData bson.M) (*Account, error)
	UpdateIf(ctx context.Context, filter bson.M, update bson.M) (*Account, error)
	List(ctx context.Context, filter bson.M, pagination mongo.PaginationOptions) (*mongo.PaginatedResult[Account], error)
	Count(ctx context.Context, filter bson.M) (int64, error)

	SetPassword(ctx context.Context, id primitive.ObjectID, passwordHash string) (*Account, error)
	SetOTP(ctx context.Context, id primitive.ObjectID, otpHash string, expiresAt time.Time) (*Account, error)
	ConsumeOTP(ctx context.Context, id primitive.ObjectID, observedHash string, extra bson.M) (*Account, error)
	RecordFailedAttempt(ctx context.Context, id primitive.ObjectID) (*Account, error)
	LockIfAttemptsExceed(ctx context.Context, id primitive.ObjectID, threshold int, until time.Time) (*Account, error)
	SetRefreshTokenHash(ctx context.Context, id primitive.ObjectID, hash string, lastLoginAt time.Time) (*Account, error)
	ClearRefreshTokenIf(ctx context.Context, id primitive.ObjectID, observedHash string) (*Account, error)
	SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time) (*Account, error)
	Restore(ctx context.Context, id primitive.ObjectID) (*Account, error)
	Purge(ctx context.Context, id primitive.ObjectID) error
}

type accountRepository struct {
	repo mongo.Repository[Account]
}

func NewAccountRepository(mongoService *mongo.MongoService) AccountRepository {
	return &accountRepository{
		repo: mongo.NewRepository[Account](mongoService, CollectionName),
	}
}

func notDeleted(filter bson.M) bson.M {
	filter["is_deleted"] = bson.M{"$ne": true}
	return filter
}

func withTimestamp(update bson.M) bson.M {
	set, ok := update["$set"].(bson.M)
	if !ok {
		set = bson.M{}
		update["$set"] = set
	}
	set["updated_at"] = time.Now()
	return update
}

func (r *accountRepository) Create(ctx context.Context, account *Account) (*Account, error) {
	account.ID = primitive.NewObjectID()

	result, err := r.repo.Create(ctx, *account)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return result, nil
}

func (r *accountRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*Account, error) {
	result, err := r.repo.FindOne(ctx, notDeleted(bson.M{"_id": id}))
	if err != nil {
		return nil, fmt.Errorf("failed to get account by ID: %w", err)
	}

	return result, nil
}

func (r *accountRepository) GetByIdentifier(ctx context.Context, identifier Identifier) (*Account, error) {
	result, err := r.repo.FindOne(ctx, notDeleted(identifier.Filter()))
	if err != nil {
		return nil, fmt.Errorf("failed to get account by %s: %w", identifier.Kind, err)
	}

	return result, nil
}

// GetByIdentifierAny looks the identifier up across deleted records
// too, which registration needs to revive soft deleted accounts.
func (r *accountRepository) GetByIdentifierAny(ctx context.Context, identifier Identifier) (*Account, error) {
	result, err := r.repo.FindOne(ctx, identifier.Filter())
	if err != nil {
		return nil, fmt.Errorf("failed to get account by %s: %w", identifier.Kind, err)
	}

	return result, nil
}

func (r *accountRepository) Update(ctx context.Context, id primitive.ObjectID, updateData bson.M) (*Account, error) {
	result, err := r.repo.UpdateIf(ctx, notDeleted(bson.M{"_id": id}), withTimestamp(bson.M{"$set": updateData}))
	if err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	return result, nil
}

func (r *accountRepository) UpdateIf(ctx context.Context, filter bson.M, update bson.M) (*Account, error) {
	result, err := r.repo.UpdateIf(ctx, filter, withTimestamp(update))
	if err != nil {
		return nil, fmt.Errorf("failed to apply conditional update: %w", err)
	}

	return result, nil
}

func (r *accountRepository) List(ctx context.Context, filter bson.M, pagination mongo.PaginationOptions) (*mongo.PaginatedResult[Account], error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	result, err := r.repo.FindWithPagination(ctx, filter, pagination, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	return result, nil
}

func (r *accountRepository) Count(ctx context.Context, filter bson.M) (int64, error) {
	count, err := r.repo.Count(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}

	return count, nil
}

// SetPassword installs the new hash and revokes any outstanding
// refresh token in the same write, so sessions minted under the old
// password stop working at once.
func (r *accountRepository) SetPassword(ctx context.Context, id primitive.ObjectID, passwordHash string) (*Account, error) {
	return r.UpdateIf(ctx,
		notDeleted(bson.M{"_id": id}),
		bson.M{
			"$set":   bson.M{"password_hash": passwordHash, "login_attempts": 0},
			"$unset": bson.M{"refresh_token_hash": "", "lock_until": ""},
		},
	)
}

func (r *accountRepository) SetOTP(ctx context.Context, id primitive.ObjectID, otpHash string, expiresAt time.Time) (*Account, error) {
	return r.UpdateIf(ctx,
		notDeleted(bson.M{"_id": id}),
		bson.M{"$set": bson.M{"otp_hash": otpHash, "otp_expires_at": expiresAt}},
	)
}

// ConsumeOTP clears the challenge code only when the stored hash still
// matches what the caller verified against. A resend or concurrent
// consume in between changes the hash and the filter misses, so one
// code is never accepted twice. The extra fields are applied in the
// same operation. The refresh hash is dropped too: flows that end in a
// session write a fresh one immediately, and flows that change the
// credential must not leave the old session alive.
func (r *accountRepository) ConsumeOTP(ctx context.Context, id primitive.ObjectID, observedHash string, extra bson.M) (*Account, error) {
	set := bson.M{"login_attempts": 0}
	for key, value := range extra {
		set[key] = value
	}

	return r.UpdateIf(ctx,
		notDeleted(bson.M{"_id": id, "otp_hash": observedHash}),
		bson.M{
			"$set":   set,
			"$unset": bson.M{"otp_hash": "", "otp_expires_at": "", "lock_until": "", "refresh_token_hash": ""},
		},
	)
}

func (r *accountRepository) RecordFailedAttempt(ctx context.Context, id primitive.ObjectID) (*Account, error) {
	return r.UpdateIf(ctx,
		notDeleted(bson.M{"_id": id}),
		bson.M{"$inc": bson.M{"login_attempts": 1}},
	)
}

// LockIfAttemptsExceed sets the lockout deadline once the counter has
// reached the threshold. The nil-or-past guard keeps a later failure
// from extending a lock that is already ticking.
func (r *accountRepository) LockIfAttemptsExceed(ctx context.Context, id primitive.ObjectID, threshold int, until time.Time) (*Account, error) {
	return r.UpdateIf(ctx,
		notDeleted(bson.M{
			"_id":            id,
			"login_attempts": bson.M{"$gte": threshold},
			"$or": []bson.M{
				{"lock_until": bson.M{"$exists": false}},
				{"lock_until": bson.M{"$lt": time.Now()}},
			},
		}),
		bson.M{"$set": bson.M{"lock_until": until}},
	)
}

func (r *accountRepository) SetRefreshTokenHash(ctx context.Context, id primitive.ObjectID, hash string, lastLoginAt time.Time) (*Account, error) {
	return r.UpdateIf(ctx,
		notDeleted(bson.M{"_id": id}),
		bson.M{"$set": bson.M{
			"refresh_token_hash": hash,
			"last_login_at":      lastLoginAt,
			"login_attempts":     0,
		}, "$unset": bson.M{"lock_until": ""}},
	)
}

// ClearRefreshTokenIf revokes the session only when the stored hash
// matches the presented token, so a logout with a stale token cannot
// kill a session established afterwards.
func (r *accountRepository) ClearRefreshTokenIf(ctx context.Context, id primitive.ObjectID, observedHash string) (*Account, error) {
	return r.UpdateIf(ctx,
		notDeleted(bson.M{"_id": id, "refresh_token_hash": observedHash}),
		bson.M{"$unset": bson.M{"refresh_token_hash": ""}},
	)
}

func (r *accountRepository) SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time) (*Account, error) {
	return r.UpdateIf(ctx,
		notDeleted(bson.M{"_id": id}),
		bson.M{
			"$set":   bson.M{"is_deleted": true, "deleted_at": at},
			"$unset": bson.M{"refresh_token_hash": "", "otp_hash": "", "otp_expires_at": ""},
		},
	)
}

func (r *accountRepository) Restore(ctx context.Context, id primitive.ObjectID) (*Account, error) {
	return r.UpdateIf(ctx,
		bson.M{"_id": id, "is_deleted": true},
		bson.M{
			"$set":   bson.M{"is_deleted": false},
			"$unset": bson.M{"deleted_at": ""},
		},
	)
}

func (r *accountRepository) Purge(ctx context.Context, id primitive.ObjectID) error {
	if err := r.repo.Delete(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to purge account: %w", err)
	}

	return nil
}
