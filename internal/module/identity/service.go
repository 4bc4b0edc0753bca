package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ctrdhq/account-directory-server/internal/apperror"
	"github.com/ctrdhq/account-directory-server/internal/module/account"
	"github.com/ctrdhq/account-directory-server/package/argon2"
	"github.com/ctrdhq/account-directory-server/package/jwt"
)

type IdentityService interface {
	Register(ctx context.Context, req *RegisterRequest) (*ChallengeResponse, error)
	Login(ctx context.Context, req *LoginRequest) (*SessionResponse, error)
	RequestOTP(ctx context.Context, req *RequestOTPRequest) (*ChallengeResponse, error)
	VerifyOTP(ctx context.Context, req *VerifyOTPRequest) (*SessionResponse, error)
	ResendOTP(ctx context.Context, req *ResendOTPRequest) (*ChallengeResponse, error)
	ChangePassword(ctx context.Context, accountID string, req *ChangePasswordRequest) error
	ResetPassword(ctx context.Context, req *ResetPasswordRequest) error
	RefreshSession(ctx context.Context, refreshToken string) (*SessionResponse, error)
	Logout(ctx context.Context, accountID string, refreshToken string) error
	ValidateAccessToken(ctx context.Context, token string) (*SessionClaims, error)
}

// Policy carries the credential rules the service enforces.
type Policy struct {
	OTPLength     int
	OTPExpiry     time.Duration
	LockThreshold int
	LockDuration  time.Duration
}

type identityService struct {
	repository account.AccountRepository
	tokens     *jwt.TokenService
	deliverer  OTPDeliverer
	policy     Policy
	logger     zerolog.Logger
	now        func() time.Time
}

func NewIdentityService(
	repository account.AccountRepository,
	tokens *jwt.TokenService,
	deliverer OTPDeliverer,
	policy Policy,
	logger zerolog.Logger,
) IdentityService {
	return &identityService{
		repository: repository,
		tokens:     tokens,
		deliverer:  deliverer,
		policy:     policy,
		logger:     logger,
		now:        time.Now,
	}
}

// Register creates an account and, when the identifier has a delivery
// channel, opens a challenge for it. A verified duplicate is a
// conflict; an unverified one, soft deleted or not, is reclaimed in
// place so an abandoned signup never blocks the identifier forever.
// Deliverability is checked before any write: an identifier with no
// channel and no password would be an unreachable account, so it is
// rejected without touching storage.
func (s *identityService) Register(ctx context.Context, req *RegisterRequest) (*ChallengeResponse, error) {
	identifier, err := account.ParseIdentifier(req.Identifier)
	if err != nil {
		return nil, err
	}
	if req.FullName == "" {
		return nil, apperror.Validation("full name is required")
	}
	if req.Password != "" && len(req.Password) < 8 {
		return nil, apperror.Validation("password must be at least 8 characters")
	}

	deliverable := s.deliverer.Supports(identifier.Kind)
	if !deliverable && req.Password == "" {
		return nil, apperror.Validation(
			fmt.Sprintf("a password is required when registering with a %s", identifier.Kind))
	}

	existing, err := s.repository.GetByIdentifierAny(ctx, identifier)
	if err != nil {
		return nil, apperror.Internal("failed to check identifier", err)
	}
	// A verified record owns its identifier even while soft deleted;
	// the restore endpoint is the way back. Only an unverified record
	// can be reclaimed.
	if existing != nil && existing.IsVerified {
		return nil, apperror.Conflict(fmt.Sprintf("%s is already registered", identifier.Kind))
	}

	var passwordHash string
	if req.Password != "" {
		passwordHash, err = argon2.Hash(req.Password)
		if err != nil {
			return nil, apperror.Internal("failed to hash password", err)
		}
	}

	var target *account.Account
	if existing != nil && !existing.IsVerified {
		updateData := bson.M{
			"full_name":     req.FullName,
			"date_of_birth": req.DateOfBirth,
			"address":       req.Address,
			"gender":        req.Gender,
			"password_hash": passwordHash,
			"is_deleted":    false,
			"is_verified":   !deliverable,
		}
		target, err = s.repository.UpdateIf(ctx,
			bson.M{"_id": existing.ID, "is_verified": false},
			bson.M{"$set": updateData, "$unset": bson.M{"deleted_at": "", "lock_until": ""}},
		)
		if err != nil {
			return nil, apperror.Internal("failed to reclaim account", err)
		}
		if target == nil {
			return nil, apperror.Conflict(fmt.Sprintf("%s is already registered", identifier.Kind))
		}
	} else {
		now := s.now()
		record := &account.Account{
			FullName:     req.FullName,
			DateOfBirth:  req.DateOfBirth,
			Address:      req.Address,
			Gender:       req.Gender,
			PasswordHash: passwordHash,
			IsVerified:   !deliverable,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		switch identifier.Kind {
		case account.IdentifierEmail:
			record.Email = identifier.Value
		case account.IdentifierMobile:
			record.MobileNumber = identifier.Value
		case account.IdentifierUsername:
			record.Username = identifier.Value
		}

		target, err = s.repository.Create(ctx, record)
		if err != nil {
			return nil, apperror.Internal("failed to create account", err)
		}
	}

	// Channel-less identifiers were created verified with the password
	// as their credential. There is nothing to verify, so no challenge
	// opens.
	if !deliverable {
		return nil, nil
	}

	return s.openChallenge(ctx, target.ID, identifier)
}

// openChallenge mints a code, delivers it, and only then persists its
// hash. A delivery failure therefore leaves no live code behind.
func (s *identityService) openChallenge(ctx context.Context, id primitive.ObjectID, identifier account.Identifier) (*ChallengeResponse, error) {
	code, err := generateOTP(s.policy.OTPLength)
	if err != nil {
		return nil, apperror.Internal("failed to generate verification code", err)
	}

	codeHash, err := argon2.Hash(code)
	if err != nil {
		return nil, apperror.Internal("failed to hash verification code", err)
	}

	destination, err := s.deliverer.DeliverOTP(ctx, identifier, code, s.policy.OTPExpiry)
	if err != nil {
		return nil, err
	}

	expiresAt := s.now().Add(s.policy.OTPExpiry)
	if _, err := s.repository.SetOTP(ctx, id, codeHash, expiresAt); err != nil {
		return nil, apperror.Internal("failed to persist challenge", err)
	}

	claims := SessionClaims{AccountID: id.Hex()}
	challengeToken, err := s.tokens.Generate(jwt.KindChallenge, claims.ToCustomClaims())
	if err != nil {
		return nil, apperror.Internal("failed to issue challenge token", err)
	}

	return &ChallengeResponse{
		ChallengeToken: challengeToken,
		ExpiresIn:      int64(s.policy.OTPExpiry.Seconds()),
		DeliveredTo:    maskDestination(destination),
	}, nil
}

func (s *identityService) Login(ctx context.Context, req *LoginRequest) (*SessionResponse, error) {
	identifier, err := account.ParseIdentifier(req.Identifier)
	if err != nil {
		return nil, err
	}
	if req.Password == "" {
		return nil, apperror.Validation("password is required")
	}

	found, err := s.repository.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, apperror.Internal("failed to load account", err)
	}
	if found == nil {
		return nil, apperror.Auth("invalid credentials")
	}

	if found.IsLocked(s.now()) {
		return nil, apperror.Forbidden("account is temporarily locked")
	}
	if !found.IsVerified {
		return nil, apperror.Forbidden("account is not verified")
	}
	if found.PasswordHash == "" {
		return nil, apperror.Auth("invalid credentials")
	}

	match, err := argon2.Verify(req.Password, found.PasswordHash)
	if err != nil {
		return nil, apperror.Internal("failed to verify password", err)
	}
	if !match {
		s.registerFailure(ctx, found.ID)
		return nil, apperror.Auth("invalid credentials")
	}

	return s.issueSession(ctx, found)
}

// registerFailure bumps the attempt counter and arms the lock once the
// threshold is reached. Both writes are conditional round trips, so
// parallel failures cannot rewind the counter or stack lockouts.
func (s *identityService) registerFailure(ctx context.Context, id primitive.ObjectID) {
	updated, err := s.repository.RecordFailedAttempt(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", id.Hex()).Msg("failed to record login attempt")
		return
	}
	if updated == nil || updated.LoginAttempts < s.policy.LockThreshold {
		return
	}

	until := s.now().Add(s.policy.LockDuration)
	if _, err := s.repository.LockIfAttemptsExceed(ctx, id, s.policy.LockThreshold, until); err != nil {
		s.logger.Error().Err(err).Str("account_id", id.Hex()).Msg("failed to arm account lock")
	}
}

func (s *identityService) RequestOTP(ctx context.Context, req *RequestOTPRequest) (*ChallengeResponse, error) {
	identifier, err := account.ParseIdentifier(req.Identifier)
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
	if found.IsLocked(s.now()) {
		return nil, apperror.Forbidden("account is temporarily locked")
	}

	return s.openChallenge(ctx, found.ID, identifier)
}

func (s *identityService) VerifyOTP(ctx context.Context, req *VerifyOTPRequest) (*SessionResponse, error) {
	if req.Code == "" {
		return nil, apperror.Validation("verification code is required")
	}

	id, err := s.challengeAccountID(req.ChallengeToken)
	if err != nil {
		return nil, err
	}

	found, err := s.repository.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.Internal("failed to load account", err)
	}
	if found == nil {
		return nil, apperror.NotFound("account not found")
	}

	now := s.now()
	if found.IsLocked(now) {
		return nil, apperror.Forbidden("account is temporarily locked")
	}
	if !found.HasPendingOTP() {
		return nil, apperror.Auth("no active verification code")
	}
	if found.OTPExpired(now) {
		return nil, apperror.Auth("verification code has expired")
	}

	match, err := argon2.Verify(req.Code, found.OTPHash)
	if err != nil {
		return nil, apperror.Internal("failed to verify code", err)
	}
	if !match {
		s.registerFailure(ctx, found.ID)
		return nil, apperror.Auth("verification code is incorrect")
	}

	// The consume is conditional on the hash we just checked. If a
	// resend or another verify won the race, the filter misses and the
	// code counts as spent.
	consumed, err := s.repository.ConsumeOTP(ctx, found.ID, found.OTPHash, bson.M{
		"is_verified":   true,
		"last_login_at": now,
	})
	if err != nil {
		return nil, apperror.Internal("failed to consume verification code", err)
	}
	if consumed == nil {
		return nil, apperror.Auth("verification code is no longer valid")
	}

	return s.issueSession(ctx, consumed)
}

func (s *identityService) ResendOTP(ctx context.Context, req *ResendOTPRequest) (*ChallengeResponse, error) {
	id, err := s.challengeAccountID(req.ChallengeToken)
	if err != nil {
		return nil, err
	}

	found, err := s.repository.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.Internal("failed to load account", err)
	}
	if found == nil {
		return nil, apperror.NotFound("account not found")
	}
	if found.IsLocked(s.now()) {
		return nil, apperror.Forbidden("account is temporarily locked")
	}

	identifier, err := primaryIdentifier(found)
	if err != nil {
		return nil, err
	}

	return s.openChallenge(ctx, found.ID, identifier)
}

// ChangePassword swaps the credential of an authenticated account. The
// repository write clears the refresh hash in the same round trip, so
// every outstanding session dies with the old password.
func (s *identityService) ChangePassword(ctx context.Context, accountID string, req *ChangePasswordRequest) error {
	if req.CurrentPassword == "" {
		return apperror.Validation("current password is required")
	}
	if len(req.NewPassword) < 8 {
		return apperror.Validation("new password must be at least 8 characters")
	}
	if req.NewPassword == req.CurrentPassword {
		return apperror.Validation("new password must differ from the current one")
	}

	id, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		return apperror.Validation("account id is malformed")
	}

	found, err := s.repository.GetByID(ctx, id)
	if err != nil {
		return apperror.Internal("failed to load account", err)
	}
	if found == nil {
		return apperror.NotFound("account not found")
	}
	if found.IsLocked(s.now()) {
		return apperror.Forbidden("account is temporarily locked")
	}
	if found.PasswordHash == "" {
		return apperror.Auth("current password is incorrect")
	}

	match, err := argon2.Verify(req.CurrentPassword, found.PasswordHash)
	if err != nil {
		return apperror.Internal("failed to verify password", err)
	}
	if !match {
		s.registerFailure(ctx, found.ID)
		return apperror.Auth("current password is incorrect")
	}

	newHash, err := argon2.Hash(req.NewPassword)
	if err != nil {
		return apperror.Internal("failed to hash password", err)
	}

	updated, err := s.repository.SetPassword(ctx, found.ID, newHash)
	if err != nil {
		return apperror.Internal("failed to update password", err)
	}
	if updated == nil {
		return apperror.NotFound("account not found")
	}

	return nil
}

// ResetPassword finishes a forgot-password flow. The caller proves
// control of the identifier with a challenge code, and the conditional
// consume also installs the new hash and revokes any live refresh
// token in one write.
func (s *identityService) ResetPassword(ctx context.Context, req *ResetPasswordRequest) error {
	if req.Code == "" {
		return apperror.Validation("verification code is required")
	}
	if len(req.NewPassword) < 8 {
		return apperror.Validation("new password must be at least 8 characters")
	}

	id, err := s.challengeAccountID(req.ChallengeToken)
	if err != nil {
		return err
	}

	found, err := s.repository.GetByID(ctx, id)
	if err != nil {
		return apperror.Internal("failed to load account", err)
	}
	if found == nil {
		return apperror.NotFound("account not found")
	}

	now := s.now()
	if found.IsLocked(now) {
		return apperror.Forbidden("account is temporarily locked")
	}
	if !found.HasPendingOTP() {
		return apperror.Auth("no active verification code")
	}
	if found.OTPExpired(now) {
		return apperror.Auth("verification code has expired")
	}

	match, err := argon2.Verify(req.Code, found.OTPHash)
	if err != nil {
		return apperror.Internal("failed to verify code", err)
	}
	if !match {
		s.registerFailure(ctx, found.ID)
		return apperror.Auth("verification code is incorrect")
	}

	newHash, err := argon2.Hash(req.NewPassword)
	if err != nil {
		return apperror.Internal("failed to hash password", err)
	}

	consumed, err := s.repository.ConsumeOTP(ctx, found.ID, found.OTPHash, bson.M{
		"password_hash": newHash,
		"is_verified":   true,
	})
	if err != nil {
		return apperror.Internal("failed to consume verification code", err)
	}
	if consumed == nil {
		return apperror.Auth("verification code is no longer valid")
	}

	return nil
}

// RefreshSession rotates the token pair. The stored hash is swapped
// for the new one in a single conditional write keyed on the presented
// token, so the old refresh token dies the moment the new one is born.
func (s *identityService) RefreshSession(ctx context.Context, refreshToken string) (*SessionResponse, error) {
	if refreshToken == "" {
		return nil, apperror.Auth("refresh token is required")
	}

	claims, err := s.tokens.Verify(jwt.KindRefresh, refreshToken)
	if err != nil {
		return nil, apperror.Auth("refresh token is invalid or expired")
	}

	id, err := accountIDFromClaims(claims)
	if err != nil {
		return nil, err
	}

	found, err := s.repository.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.Internal("failed to load account", err)
	}
	if found == nil {
		return nil, apperror.Auth("session has been revoked")
	}

	presentedHash := hashToken(refreshToken)
	if found.RefreshTokenHash == "" ||
		subtle.ConstantTimeCompare([]byte(found.RefreshTokenHash), []byte(presentedHash)) != 1 {
		return nil, apperror.Auth("session has been revoked")
	}

	accessToken, newRefreshToken, err := s.mintTokenPair(found.ID)
	if err != nil {
		return nil, err
	}

	rotated, err := s.repository.UpdateIf(ctx,
		bson.M{"_id": found.ID, "refresh_token_hash": presentedHash, "is_deleted": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{"refresh_token_hash": hashToken(newRefreshToken)}},
	)
	if err != nil {
		return nil, apperror.Internal("failed to rotate session", err)
	}
	if rotated == nil {
		return nil, apperror.Auth("session has been revoked")
	}

	return &SessionResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.tokens.TTL(jwt.KindAccess).Seconds()),
		Account:      rotated.ToResponse(),
	}, nil
}

func (s *identityService) Logout(ctx context.Context, accountID string, refreshToken string) error {
	id, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		return apperror.Validation("account id is malformed")
	}

	if refreshToken != "" {
		if _, err := s.repository.ClearRefreshTokenIf(ctx, id, hashToken(refreshToken)); err != nil {
			return apperror.Internal("failed to revoke session", err)
		}
		return nil
	}

	if _, err := s.repository.UpdateIf(ctx,
		bson.M{"_id": id},
		bson.M{"$unset": bson.M{"refresh_token_hash": ""}},
	); err != nil {
		return apperror.Internal("failed to revoke session", err)
	}

	return nil
}

func (s *identityService) ValidateAccessToken(ctx context.Context, token string) (*SessionClaims, error) {
	claims, err := s.tokens.Verify(jwt.KindAccess, token)
	if err != nil {
		return nil, apperror.Auth("access token is invalid or expired")
	}

	id, err := accountIDFromClaims(claims)
	if err != nil {
		return nil, err
	}

	return &SessionClaims{AccountID: id.Hex()}, nil
}

// issueSession mints the pair and stores the refresh hash. Storing the
// hash is the final write of every authentication flow, so a session
// only exists once all prior steps have succeeded.
func (s *identityService) issueSession(ctx context.Context, found *account.Account) (*SessionResponse, error) {
	accessToken, refreshToken, err := s.mintTokenPair(found.ID)
	if err != nil {
		return nil, err
	}

	updated, err := s.repository.SetRefreshTokenHash(ctx, found.ID, hashToken(refreshToken), s.now())
	if err != nil {
		return nil, apperror.Internal("failed to persist session", err)
	}
	if updated == nil {
		return nil, apperror.NotFound("account not found")
	}

	return &SessionResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.tokens.TTL(jwt.KindAccess).Seconds()),
		Account:      updated.ToResponse(),
	}, nil
}

func (s *identityService) mintTokenPair(id primitive.ObjectID) (string, string, error) {
	claims := SessionClaims{AccountID: id.Hex()}

	accessToken, err := s.tokens.Generate(jwt.KindAccess, claims.ToCustomClaims())
	if err != nil {
		return "", "", apperror.Internal("failed to issue access token", err)
	}

	refreshToken, err := s.tokens.Generate(jwt.KindRefresh, claims.ToCustomClaims())
	if err != nil {
		return "", "", apperror.Internal("failed to issue refresh token", err)
	}

	return accessToken, refreshToken, nil
}

func (s *identityService) challengeAccountID(challengeToken string) (primitive.ObjectID, error) {
	if challengeToken == "" {
		return primitive.NilObjectID, apperror.Auth("challenge token is required")
	}

	claims, err := s.tokens.Verify(jwt.KindChallenge, challengeToken)
	if err != nil {
		return primitive.NilObjectID, apperror.Auth("challenge token is invalid or expired")
	}

	return accountIDFromClaims(claims)
}

func accountIDFromClaims(claims *jwt.Claims) (primitive.ObjectID, error) {
	raw, ok := claims.CustomClaims["account_id"].(string)
	if !ok || raw == "" {
		return primitive.NilObjectID, apperror.Auth("token carries no account")
	}

	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperror.Auth("token carries a malformed account")
	}

	return id, nil
}

func primaryIdentifier(found *account.Account) (account.Identifier, error) {
	switch {
	case found.Email != "":
		return account.Identifier{Kind: account.IdentifierEmail, Value: found.Email}, nil
	case found.MobileNumber != "":
		return account.Identifier{Kind: account.IdentifierMobile, Value: found.MobileNumber}, nil
	case found.Username != "":
		return account.Identifier{Kind: account.IdentifierUsername, Value: found.Username}, nil
	default:
		return account.Identifier{}, apperror.Internal("account has no identifier", nil)
	}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateOTP(length int) (string, error) {
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
