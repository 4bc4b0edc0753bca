package argon2

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash(t *testing.T) {
	tests := []struct {
		name        string
		secret      string
		expectError bool
	}{
		{
			name:   "valid password",
			secret: "Abcd1234!",
		},
		{
			name:   "six digit otp code",
			secret: "482913",
		},
		{
			name:   "unicode secret",
			secret: "pässwörd-日本語",
		},
		{
			name:        "empty secret",
			secret:      "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := Hash(tt.secret)

			if tt.expectError {
				assert.Error(t, err)
				assert.Empty(t, encoded)
				return
			}

			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(encoded, "$argon2id$"))
			assert.Len(t, strings.Split(encoded, "$"), 6)
		})
	}
}

func TestHash_SaltUniqueness(t *testing.T) {
	first, err := Hash("same-secret")
	require.NoError(t, err)

	second, err := Hash("same-secret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "two hashes of the same input must differ")
}

func TestVerify(t *testing.T) {
	encoded, err := Hash("correct-horse-battery")
	require.NoError(t, err)

	tests := []struct {
		name        string
		secret      string
		encoded     string
		expectMatch bool
		expectError bool
	}{
		{
			name:        "correct secret",
			secret:      "correct-horse-battery",
			encoded:     encoded,
			expectMatch: true,
		},
		{
			name:    "wrong secret",
			secret:  "incorrect-horse-battery",
			encoded: encoded,
		},
		{
			name:        "empty secret",
			secret:      "",
			encoded:     encoded,
			expectError: true,
		},
		{
			name:        "empty hash",
			secret:      "correct-horse-battery",
			encoded:     "",
			expectError: true,
		},
		{
			name:        "malformed hash",
			secret:      "correct-horse-battery",
			encoded:     "not-a-hash",
			expectError: true,
		},
		{
			name:        "unsupported variant",
			secret:      "correct-horse-battery",
			encoded:     "$argon2i$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, err := Verify(tt.secret, tt.encoded)

			if tt.expectError {
				assert.Error(t, err)
				assert.False(t, match)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectMatch, match)
		})
	}
}

func TestVerify_TamperedDigest(t *testing.T) {
	encoded, err := Hash("secret")
	require.NoError(t, err)

	parts := strings.Split(encoded, "$")
	require.Len(t, parts, 6)

	// flip the digest part
	parts[5] = "AAAA" + parts[5][4:]
	tampered := strings.Join(parts, "$")

	match, err := Verify("secret", tampered)
	if err == nil {
		assert.False(t, match)
	}
}

func TestIsEncoded(t *testing.T) {
	encoded, err := Hash("secret")
	require.NoError(t, err)

	assert.True(t, IsEncoded(encoded))
	assert.False(t, IsEncoded(""))
	assert.False(t, IsEncoded("secret"))
	assert.False(t, IsEncoded("482913"))
	assert.False(t, IsEncoded("$2b$10$bcryptstylehash"))
}

func TestHash_DigestIsNotHashedAgain(t *testing.T) {
	encoded, err := Hash("secret")
	require.NoError(t, err)

	// the guard the set-secret paths rely on
	if IsEncoded(encoded) {
		return
	}
	t.Fatal("digest not recognized as encoded")
}
