package account

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/ctrdhq/account-directory-server/internal/apperror"
)

// IdentifierKind tags which directory field an identifier addresses.
type IdentifierKind string

const (
	IdentifierEmail    IdentifierKind = "email"
	IdentifierMobile   IdentifierKind = "mobile_number"
	IdentifierUsername IdentifierKind = "username"
)

// Identifier is a classified login handle. The kind decides which
// field is queried and which delivery channel a challenge code uses.
type Identifier struct {
	Kind  IdentifierKind `json:"kind"`
	Value string         `json:"value"`
}

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	mobilePattern   = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
)

// ParseIdentifier classifies a raw handle. Anything with an at sign is
// treated as an email so a malformed address fails validation instead
// of silently becoming a username.
func ParseIdentifier(raw string) (Identifier, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Identifier{}, apperror.Validation("identifier is required")
	}

	switch {
	case strings.Contains(value, "@"):
		if !emailPattern.MatchString(value) {
			return Identifier{}, apperror.Validation("email address is invalid")
		}
		return Identifier{Kind: IdentifierEmail, Value: strings.ToLower(value)}, nil
	case mobilePattern.MatchString(value):
		return Identifier{Kind: IdentifierMobile, Value: value}, nil
	default:
		if !usernamePattern.MatchString(value) {
			return Identifier{}, apperror.Validation("username must be 3-30 characters of letters, digits or underscores")
		}
		return Identifier{Kind: IdentifierUsername, Value: value}, nil
	}
}

// Filter returns the query clause matching this identifier.
func (i Identifier) Filter() bson.M {
	return bson.M{string(i.Kind): i.Value}
}
