package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/ctrdhq/account-directory-server/internal/apperror"
)

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected Identifier
		wantErr  bool
	}{
		{
			name:     "email address",
			raw:      "alice@example.com",
			expected: Identifier{Kind: IdentifierEmail, Value: "alice@example.com"},
		},
		{
			name:     "email is lowercased",
			raw:      "Alice@Example.COM",
			expected: Identifier{Kind: IdentifierEmail, Value: "alice@example.com"},
		},
		{
			name:     "surrounding whitespace trimmed",
			raw:      "  alice@example.com  ",
			expected: Identifier{Kind: IdentifierEmail, Value: "alice@example.com"},
		},
		{
			name:     "mobile number with country code",
			raw:      "+66812345678",
			expected: Identifier{Kind: IdentifierMobile, Value: "+66812345678"},
		},
		{
			name:     "mobile number without plus",
			raw:      "0812345678",
			expected: Identifier{Kind: IdentifierMobile, Value: "0812345678"},
		},
		{
			name:     "username",
			raw:      "alice_01",
			expected: Identifier{Kind: IdentifierUsername, Value: "alice_01"},
		},
		{
			name:    "empty",
			raw:     "",
			wantErr: true,
		},
		{
			name:    "whitespace only",
			raw:     "   ",
			wantErr: true,
		},
		{
			name:    "malformed email stays email",
			raw:     "alice@",
			wantErr: true,
		},
		{
			name:    "username too short",
			raw:     "ab",
			wantErr: true,
		},
		{
			name:    "username with illegal characters",
			raw:     "alice!bob",
			wantErr: true,
		},
		{
			name:     "digits too long for mobile fall back to username",
			raw:      "12345678901234567890",
			expected: Identifier{Kind: IdentifierUsername, Value: "12345678901234567890"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identifier, err := ParseIdentifier(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperror.IsKind(err, apperror.KindValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, identifier)
		})
	}
}

func TestIdentifier_Filter(t *testing.T) {
	tests := []struct {
		name       string
		identifier Identifier
		expected   bson.M
	}{
		{
			name:       "email targets email field",
			identifier: Identifier{Kind: IdentifierEmail, Value: "alice@example.com"},
			expected:   bson.M{"email": "alice@example.com"},
		},
		{
			name:       "mobile targets mobile field",
			identifier: Identifier{Kind: IdentifierMobile, Value: "+66812345678"},
			expected:   bson.M{"mobile_number": "+66812345678"},
		},
		{
			name:       "username targets username field",
			identifier: Identifier{Kind: IdentifierUsername, Value: "alice_01"},
			expected:   bson.M{"username": "alice_01"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.identifier.Filter())
		})
	}
}

func TestUsernameWithDigitsOnlyShortIsMobile(t *testing.T) {
	identifier, err := ParseIdentifier("1234567")
	require.NoError(t, err)
	assert.Equal(t, IdentifierMobile, identifier.Kind)
}
