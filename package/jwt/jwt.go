package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrTokenClaims  = errors.New("invalid token claims")
)

// Kind selects which signing secret and lifetime a token carries.
// Access and refresh tokens prove a full session; a challenge token is
// issued after an OTP send and is only good for verify/resend.
type Kind string

const (
	KindAccess    Kind = "access"
	KindRefresh   Kind = "refresh"
	KindChallenge Kind = "challenge"
)

type KindConfig struct {
	Secret string
	TTL    time.Duration
}

type Config struct {
	Issuer    string
	Access    KindConfig
	Refresh   KindConfig
	Challenge KindConfig
}

type Claims struct {
	jwt.RegisteredClaims
	Kind         Kind           `json:"kind"`
	CustomClaims map[string]any `json:"custom_claims,omitempty"`
}

type TokenService struct {
	config Config
}

func NewTokenService(config Config) (*TokenService, error) {
	if config.Access.Secret == "" || config.Refresh.Secret == "" || config.Challenge.Secret == "" {
		return nil, fmt.Errorf("all token signing secrets are required")
	}

	if config.Access.TTL <= 0 {
		config.Access.TTL = 15 * time.Minute
	}

	if config.Refresh.TTL <= 0 {
		config.Refresh.TTL = 7 * 24 * time.Hour
	}

	if config.Challenge.TTL <= 0 {
		config.Challenge.TTL = 10 * time.Minute
	}

	if config.Issuer == "" {
		config.Issuer = "account-directory"
	}

	return &TokenService{config: config}, nil
}

func (s *TokenService) kindConfig(kind Kind) (KindConfig, error) {
	switch kind {
	case KindAccess:
		return s.config.Access, nil
	case KindRefresh:
		return s.config.Refresh, nil
	case KindChallenge:
		return s.config.Challenge, nil
	default:
		return KindConfig{}, fmt.Errorf("unknown token kind: %s", kind)
	}
}

func (s *TokenService) Generate(kind Kind, customClaims map[string]any) (string, error) {
	kc, err := s.kindConfig(kind)
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(kc.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.config.Issuer,
		},
		Kind:         kind,
		CustomClaims: customClaims,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(kc.Secret))
}

// Verify checks the signature against the requested kind's secret and the
// kind claim embedded in the token. A challenge token presented to an
// access-guarded operation fails here even before any session lookup.
func (s *TokenService) Verify(kind Kind, tokenString string) (*Claims, error) {
	kc, err := s.kindConfig(kind)
	if err != nil {
		return nil, err
	}

	keyFunc := func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected token signing method: %v", token.Header["alg"])
		}
		return []byte(kc.Secret), nil
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrTokenClaims
	}

	if claims.Kind != kind {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (s *TokenService) TTL(kind Kind) time.Duration {
	kc, err := s.kindConfig(kind)
	if err != nil {
		return 0
	}
	return kc.TTL
}

func (c *Claims) GetCustomClaim(key string) (any, bool) {
	if c.CustomClaims == nil {
		return nil, false
	}
	value, exists := c.CustomClaims[key]
	return value, exists
}

func (c *Claims) GetStringClaim(key string) string {
	value, ok := c.GetCustomClaim(key)
	if !ok {
		return ""
	}
	s, _ := value.(string)
	return s
}
