package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctrdhq/account-directory-server/package/vault"
)

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", config.Server.Port)
	assert.Equal(t, "account_directory", config.MongoDB.Database)
	assert.Equal(t, "localhost:6379", config.Redis.Address)
	assert.Equal(t, "account-media", config.MinIO.BucketName)

	assert.Equal(t, 15*time.Minute, config.Auth.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, config.Auth.RefreshTTL)
	assert.Equal(t, 10*time.Minute, config.Auth.ChallengeTTL)
	assert.Equal(t, 6, config.Auth.OTPLength)
	assert.Equal(t, 10*time.Minute, config.Auth.OTPExpiry)
	assert.Equal(t, 5, config.Auth.LockThreshold)
	assert.Equal(t, 15*time.Minute, config.Auth.LockDuration)

	assert.True(t, config.RateLimit.Enabled)
	assert.Equal(t, int64(5), config.RateLimit.Login.Limit)
	assert.Equal(t, 15*time.Minute, config.RateLimit.Login.Window)
	assert.Equal(t, int64(3), config.RateLimit.OTPResend.Limit)
	assert.Equal(t, 5*time.Minute, config.RateLimit.OTPResend.Window)

	assert.False(t, config.Consul.Enabled)
	assert.False(t, config.Vault.Enabled)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("AUTH_OTP_LENGTH", "8")
	t.Setenv("AUTH_LOCK_DURATION", "30m")
	t.Setenv("RATE_LIMIT_LOGIN_LIMIT", "10")

	config, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", config.Server.Port)
	assert.Equal(t, 8, config.Auth.OTPLength)
	assert.Equal(t, 30*time.Minute, config.Auth.LockDuration)
	assert.Equal(t, int64(10), config.RateLimit.Login.Limit)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"otp length too short", "AUTH_OTP_LENGTH", "2"},
		{"otp length too long", "AUTH_OTP_LENGTH", "16"},
		{"negative lock threshold", "AUTH_LOCK_THRESHOLD", "-1"},
		{"zero otp expiry", "AUTH_OTP_EXPIRY", "0s"},
		{"refresh not exceeding access", "AUTH_REFRESH_TTL", "5m"},
		{"zero rate limit", "RATE_LIMIT_LOGIN_LIMIT", "0"},
		{"unparseable duration", "AUTH_ACCESS_TTL", "not-a-duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := loadConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_DisabledRateLimitSkipsRuleValidation(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("RATE_LIMIT_LOGIN_LIMIT", "0")

	_, err := loadConfig()
	assert.NoError(t, err)
}

type secretSourceStub struct {
	data map[string]interface{}
	err  error
	path string
}

func (s *secretSourceStub) HealthCheck(ctx context.Context) vault.HealthStatus {
	return vault.HealthStatus{Connected: true}
}

func (s *secretSourceStub) GetSecret(ctx context.Context, path string) (map[string]interface{}, error) {
	s.path = path
	return s.data, s.err
}

func (s *secretSourceStub) GetSecretString(ctx context.Context, path, field string) (string, error) {
	s.path = path
	if s.err != nil {
		return "", s.err
	}
	if value, ok := s.data[field].(string); ok {
		return value, nil
	}
	return "", errors.New("field not found")
}

func (s *secretSourceStub) Close() error { return nil }

func TestResolveSigningSecrets_FromEnvironment(t *testing.T) {
	config := &Config{}
	config.Auth.AccessSecret = "a"
	config.Auth.RefreshSecret = "b"
	config.Auth.ChallengeSecret = "c"

	err := config.ResolveSigningSecrets(context.Background(), nil)
	assert.NoError(t, err)
}

func TestResolveSigningSecrets_FromVault(t *testing.T) {
	stub := &secretSourceStub{
		data: map[string]interface{}{
			"access_signing_key":    "vault-access",
			"refresh_signing_key":   "vault-refresh",
			"challenge_signing_key": "vault-challenge",
		},
	}

	config := &Config{}
	config.Vault.Enabled = true
	config.Vault.SecretPath = "kv/data/account-directory"

	err := config.ResolveSigningSecrets(context.Background(), stub)
	require.NoError(t, err)

	assert.Equal(t, "kv/data/account-directory", stub.path)
	assert.Equal(t, "vault-access", config.Auth.AccessSecret)
	assert.Equal(t, "vault-refresh", config.Auth.RefreshSecret)
	assert.Equal(t, "vault-challenge", config.Auth.ChallengeSecret)
}

func TestResolveSigningSecrets_VaultPartialFallsBackToEnv(t *testing.T) {
	stub := &secretSourceStub{
		data: map[string]interface{}{
			"access_signing_key": "vault-access",
		},
	}

	config := &Config{}
	config.Vault.Enabled = true
	config.Auth.RefreshSecret = "env-refresh"
	config.Auth.ChallengeSecret = "env-challenge"

	err := config.ResolveSigningSecrets(context.Background(), stub)
	require.NoError(t, err)

	assert.Equal(t, "vault-access", config.Auth.AccessSecret)
	assert.Equal(t, "env-refresh", config.Auth.RefreshSecret)
}

func TestResolveSigningSecrets_MissingSecrets(t *testing.T) {
	config := &Config{}
	config.Auth.AccessSecret = "a"

	err := config.ResolveSigningSecrets(context.Background(), nil)
	assert.Error(t, err)
}

func TestResolveSigningSecrets_DuplicateSecrets(t *testing.T) {
	config := &Config{}
	config.Auth.AccessSecret = "same"
	config.Auth.RefreshSecret = "same"
	config.Auth.ChallengeSecret = "c"

	err := config.ResolveSigningSecrets(context.Background(), nil)
	assert.Error(t, err)
}

func TestResolveSigningSecrets_VaultError(t *testing.T) {
	stub := &secretSourceStub{err: errors.New("permission denied")}

	config := &Config{}
	config.Vault.Enabled = true

	err := config.ResolveSigningSecrets(context.Background(), stub)
	assert.Error(t, err)
}

func TestResolveProviderSecrets_FromVault(t *testing.T) {
	stub := &secretSourceStub{
		data: map[string]interface{}{
			"resend_api_key":    "re_vault_key",
			"twilio_auth_token": "vault_twilio_token",
		},
	}

	config := &Config{}
	config.Vault.Enabled = true
	config.Vault.SecretPath = "kv/data/account-directory"
	config.Resend.ApiKey = "re_env_key"
	config.Twilio.AuthToken = "env_twilio_token"

	config.ResolveProviderSecrets(context.Background(), stub)

	assert.Equal(t, "re_vault_key", config.Resend.ApiKey)
	assert.Equal(t, "vault_twilio_token", config.Twilio.AuthToken)
}

func TestResolveProviderSecrets_MissingFieldKeepsEnvValue(t *testing.T) {
	stub := &secretSourceStub{data: map[string]interface{}{}}

	config := &Config{}
	config.Vault.Enabled = true
	config.Resend.ApiKey = "re_env_key"

	config.ResolveProviderSecrets(context.Background(), stub)

	assert.Equal(t, "re_env_key", config.Resend.ApiKey)
}

func TestResolveProviderSecrets_DisabledVaultIsNoop(t *testing.T) {
	stub := &secretSourceStub{
		data: map[string]interface{}{"resend_api_key": "re_vault_key"},
	}

	config := &Config{}
	config.Resend.ApiKey = "re_env_key"

	config.ResolveProviderSecrets(context.Background(), stub)

	assert.Equal(t, "re_env_key", config.Resend.ApiKey)
	assert.Empty(t, stub.path)
}

func TestTwilioConfigEnabled(t *testing.T) {
	assert.False(t, TwilioConfig{}.Enabled())
	assert.False(t, TwilioConfig{AccountSID: "AC1", AuthToken: "t"}.Enabled())
	assert.True(t, TwilioConfig{AccountSID: "AC1", AuthToken: "t", FromNumber: "+15005550006"}.Enabled())
}
