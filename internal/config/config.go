package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ctrdhq/account-directory-server/package/env"
	"github.com/ctrdhq/account-directory-server/package/vault"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	MongoDB   MongoDBConfig   `json:"mongodb"`
	Redis     RedisConfig     `json:"redis"`
	MinIO     MinIOConfig     `json:"minio"`
	Resend    ResendConfig    `json:"resend"`
	Twilio    TwilioConfig    `json:"twilio"`
	Auth      AuthConfig      `json:"auth"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Consul    ConsulConfig    `json:"consul"`
	Vault     VaultConfig     `json:"vault"`
	Logging   LoggingConfig   `json:"logging"`
	Security  SecurityConfig  `json:"security"`
}

type ServerConfig struct {
	Port         string        `json:"port"`
	Host         string        `json:"host"`
	AppName      string        `json:"app_name"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	Prefork      bool          `json:"prefork"`
}

type MongoDBConfig struct {
	Address   string        `json:"address"`
	Username  string        `json:"username"`
	Password  string        `json:"password"`
	Database  string        `json:"database"`
	OpTimeout time.Duration `json:"op_timeout"`
}

type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	Database int    `json:"database"`
}

type MinIOConfig struct {
	Endpoint      string `json:"endpoint"`
	AccessKey     string `json:"access_key"`
	SecretKey     string `json:"secret_key"`
	BucketName    string `json:"bucket_name"`
	UseSSL        bool   `json:"use_ssl"`
	PublicBaseURL string `json:"public_base_url"`
}

type ResendConfig struct {
	ApiKey      string `json:"api_key"`
	FromAddress string `json:"from_address"`
	FromName    string `json:"from_name"`
}

// TwilioConfig is the SMS channel. The channel stays disabled until all
// three fields are present, in which case mobile-number identifiers can
// receive verification codes.
type TwilioConfig struct {
	AccountSID string `json:"account_sid"`
	AuthToken  string `json:"-"`
	FromNumber string `json:"from_number"`
}

func (t TwilioConfig) Enabled() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.FromNumber != ""
}

// AuthConfig holds signing secrets and the credential policy knobs.
// Each token kind signs with its own secret so a token issued for one
// purpose never verifies for another.
type AuthConfig struct {
	AccessSecret    string        `json:"-"`
	RefreshSecret   string        `json:"-"`
	ChallengeSecret string        `json:"-"`
	Issuer          string        `json:"issuer"`
	AccessTTL       time.Duration `json:"access_ttl"`
	RefreshTTL      time.Duration `json:"refresh_ttl"`
	ChallengeTTL    time.Duration `json:"challenge_ttl"`
	OTPLength       int           `json:"otp_length"`
	OTPExpiry       time.Duration `json:"otp_expiry"`
	LockThreshold   int           `json:"lock_threshold"`
	LockDuration    time.Duration `json:"lock_duration"`
	CookieDomain    string        `json:"cookie_domain"`
	SecureCookies   bool          `json:"secure_cookies"`
}

type RateLimitRule struct {
	Limit  int64         `json:"limit"`
	Window time.Duration `json:"window"`
}

type RateLimitConfig struct {
	Enabled   bool          `json:"enabled"`
	General   RateLimitRule `json:"general"`
	Login     RateLimitRule `json:"login"`
	OTPVerify RateLimitRule `json:"otp_verify"`
	OTPResend RateLimitRule `json:"otp_resend"`
}

type ConsulConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	Datacenter string `json:"datacenter"`
	ServiceID  string `json:"service_id"`
}

type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	SecretPath string `json:"secret_path"`
}

type LoggingConfig struct {
	Level string `json:"level"`
}

type SecurityConfig struct {
	CORSEnabled bool   `json:"cors_enabled"`
	CORSOrigins string `json:"cors_origins"`
}

var (
	instance *Config
	once     sync.Once
	mu       sync.RWMutex
)

func Load() (*Config, error) {
	var err error
	once.Do(func() {
		instance, err = loadConfig()
	})
	return instance, err
}

func MustLoad() *Config {
	config, err := Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}
	return config
}

func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if instance == nil {
		panic("configuration not loaded - call Load() or MustLoad() first")
	}
	return instance
}

func loadConfig() (*Config, error) {
	config := &Config{}
	var err error

	config.Server.Port, err = env.Get("PORT", "8080")
	if err != nil {
		return nil, err
	}

	config.Server.Host, err = env.Get("HOST", "0.0.0.0")
	if err != nil {
		return nil, err
	}

	config.Server.AppName, err = env.Get("APP_NAME", "Account Directory")
	if err != nil {
		return nil, err
	}

	config.Server.ReadTimeout, err = env.Get("READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	config.Server.WriteTimeout, err = env.Get("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	config.Server.IdleTimeout, err = env.Get("IDLE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	config.Server.Prefork, err = env.Get("PREFORK", false)
	if err != nil {
		return nil, err
	}

	config.MongoDB.Address, err = env.Get("MONGODB_ADDRESS", "localhost:27017")
	if err != nil {
		return nil, err
	}

	config.MongoDB.Username, err = env.Get("MONGODB_USERNAME", "")
	if err != nil {
		return nil, err
	}

	config.MongoDB.Password, err = env.Get("MONGODB_PASSWORD", "")
	if err != nil {
		return nil, err
	}

	config.MongoDB.Database, err = env.Get("MONGODB_DATABASE", "account_directory")
	if err != nil {
		return nil, err
	}

	config.MongoDB.OpTimeout, err = env.Get("MONGODB_OP_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	config.Redis.Address, err = env.Get("REDIS_ADDRESS", "localhost:6379")
	if err != nil {
		return nil, err
	}

	config.Redis.Password, err = env.Get("REDIS_PASSWORD", "")
	if err != nil {
		return nil, err
	}

	config.Redis.Database, err = env.Get("REDIS_DATABASE", 0)
	if err != nil {
		return nil, err
	}

	config.MinIO.Endpoint, err = env.Get("MINIO_ENDPOINT", "localhost:9000")
	if err != nil {
		return nil, err
	}

	config.MinIO.AccessKey, err = env.Get("MINIO_ACCESS_KEY", "minioadmin")
	if err != nil {
		return nil, err
	}

	config.MinIO.SecretKey, err = env.Get("MINIO_SECRET_KEY", "minioadmin")
	if err != nil {
		return nil, err
	}

	config.MinIO.BucketName, err = env.Get("MINIO_BUCKET_NAME", "account-media")
	if err != nil {
		return nil, err
	}

	config.MinIO.UseSSL, err = env.Get("MINIO_USE_SSL", false)
	if err != nil {
		return nil, err
	}

	config.MinIO.PublicBaseURL, err = env.Get("MINIO_PUBLIC_BASE_URL", "")
	if err != nil {
		return nil, err
	}

	config.Resend.ApiKey, err = env.Get("RESEND_API_KEY", "")
	if err != nil {
		return nil, err
	}

	config.Resend.FromAddress, err = env.Get("RESEND_FROM_ADDRESS", "no-reply@account-directory.dev")
	if err != nil {
		return nil, err
	}

	config.Resend.FromName, err = env.Get("RESEND_FROM_NAME", "Account Directory")
	if err != nil {
		return nil, err
	}

	config.Twilio.AccountSID, err = env.Get("TWILIO_ACCOUNT_SID", "")
	if err != nil {
		return nil, err
	}

	config.Twilio.AuthToken, err = env.Get("TWILIO_AUTH_TOKEN", "")
	if err != nil {
		return nil, err
	}

	config.Twilio.FromNumber, err = env.Get("TWILIO_FROM_NUMBER", "")
	if err != nil {
		return nil, err
	}

	config.Auth.AccessSecret, err = env.Get("AUTH_ACCESS_SECRET", "")
	if err != nil {
		return nil, err
	}

	config.Auth.RefreshSecret, err = env.Get("AUTH_REFRESH_SECRET", "")
	if err != nil {
		return nil, err
	}

	config.Auth.ChallengeSecret, err = env.Get("AUTH_CHALLENGE_SECRET", "")
	if err != nil {
		return nil, err
	}

	config.Auth.Issuer, err = env.Get("AUTH_ISSUER", "account-directory")
	if err != nil {
		return nil, err
	}

	config.Auth.AccessTTL, err = env.Get("AUTH_ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	config.Auth.RefreshTTL, err = env.Get("AUTH_REFRESH_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}

	config.Auth.ChallengeTTL, err = env.Get("AUTH_CHALLENGE_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	config.Auth.OTPLength, err = env.Get("AUTH_OTP_LENGTH", 6)
	if err != nil {
		return nil, err
	}

	config.Auth.OTPExpiry, err = env.Get("AUTH_OTP_EXPIRY", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	config.Auth.LockThreshold, err = env.Get("AUTH_LOCK_THRESHOLD", 5)
	if err != nil {
		return nil, err
	}

	config.Auth.LockDuration, err = env.Get("AUTH_LOCK_DURATION", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	config.Auth.CookieDomain, err = env.Get("AUTH_COOKIE_DOMAIN", "")
	if err != nil {
		return nil, err
	}

	config.Auth.SecureCookies, err = env.Get("AUTH_SECURE_COOKIES", true)
	if err != nil {
		return nil, err
	}

	config.RateLimit.Enabled, err = env.Get("RATE_LIMIT_ENABLED", true)
	if err != nil {
		return nil, err
	}

	config.RateLimit.General.Limit, err = env.Get("RATE_LIMIT_GENERAL_LIMIT", int64(60))
	if err != nil {
		return nil, err
	}

	config.RateLimit.General.Window, err = env.Get("RATE_LIMIT_GENERAL_WINDOW", time.Minute)
	if err != nil {
		return nil, err
	}

	config.RateLimit.Login.Limit, err = env.Get("RATE_LIMIT_LOGIN_LIMIT", int64(5))
	if err != nil {
		return nil, err
	}

	config.RateLimit.Login.Window, err = env.Get("RATE_LIMIT_LOGIN_WINDOW", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	config.RateLimit.OTPVerify.Limit, err = env.Get("RATE_LIMIT_OTP_VERIFY_LIMIT", int64(5))
	if err != nil {
		return nil, err
	}

	config.RateLimit.OTPVerify.Window, err = env.Get("RATE_LIMIT_OTP_VERIFY_WINDOW", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	config.RateLimit.OTPResend.Limit, err = env.Get("RATE_LIMIT_OTP_RESEND_LIMIT", int64(3))
	if err != nil {
		return nil, err
	}

	config.RateLimit.OTPResend.Window, err = env.Get("RATE_LIMIT_OTP_RESEND_WINDOW", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	config.Consul.Enabled, err = env.Get("CONSUL_ENABLED", false)
	if err != nil {
		return nil, err
	}

	config.Consul.Address, err = env.Get("CONSUL_ADDRESS", "localhost:8500")
	if err != nil {
		return nil, err
	}

	config.Consul.Token, err = env.Get("CONSUL_TOKEN", "")
	if err != nil {
		return nil, err
	}

	config.Consul.Datacenter, err = env.Get("CONSUL_DATACENTER", "")
	if err != nil {
		return nil, err
	}

	config.Consul.ServiceID, err = env.Get("CONSUL_SERVICE_ID", "")
	if err != nil {
		return nil, err
	}

	config.Vault.Enabled, err = env.Get("VAULT_ENABLED", false)
	if err != nil {
		return nil, err
	}

	config.Vault.Address, err = env.Get("VAULT_ADDRESS", "http://localhost:8200")
	if err != nil {
		return nil, err
	}

	config.Vault.Token, err = env.Get("VAULT_TOKEN", "")
	if err != nil {
		return nil, err
	}

	config.Vault.SecretPath, err = env.Get("VAULT_SECRET_PATH", "kv/data/account-directory")
	if err != nil {
		return nil, err
	}

	config.Logging.Level, err = env.Get("LOG_LEVEL", "info")
	if err != nil {
		return nil, err
	}

	config.Security.CORSEnabled, err = env.Get("CORS_ENABLED", true)
	if err != nil {
		return nil, err
	}

	config.Security.CORSOrigins, err = env.Get("CORS_ORIGINS", "*")
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the invariants Load cannot default its way around.
// Signing secrets are allowed to be empty here because Vault may fill
// them in afterwards; ResolveSigningSecrets enforces their presence.
func (c *Config) Validate() error {
	if c.Auth.OTPLength < 4 || c.Auth.OTPLength > 10 {
		return fmt.Errorf("AUTH_OTP_LENGTH must be between 4 and 10, got %d", c.Auth.OTPLength)
	}
	if c.Auth.OTPExpiry <= 0 {
		return fmt.Errorf("AUTH_OTP_EXPIRY must be positive")
	}
	if c.Auth.LockThreshold <= 0 {
		return fmt.Errorf("AUTH_LOCK_THRESHOLD must be positive")
	}
	if c.Auth.LockDuration <= 0 {
		return fmt.Errorf("AUTH_LOCK_DURATION must be positive")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 || c.Auth.ChallengeTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if c.Auth.RefreshTTL <= c.Auth.AccessTTL {
		return fmt.Errorf("AUTH_REFRESH_TTL must exceed AUTH_ACCESS_TTL")
	}
	if c.RateLimit.Enabled {
		for name, rule := range map[string]RateLimitRule{
			"general":    c.RateLimit.General,
			"login":      c.RateLimit.Login,
			"otp_verify": c.RateLimit.OTPVerify,
			"otp_resend": c.RateLimit.OTPResend,
		} {
			if rule.Limit <= 0 || rule.Window <= 0 {
				return fmt.Errorf("rate limit rule %s requires a positive limit and window", name)
			}
		}
	}
	return nil
}

// ResolveSigningSecrets fills the token signing secrets from Vault when
// enabled, then verifies all three are present. Environment values act
// as the fallback when Vault is disabled or a field is missing.
func (c *Config) ResolveSigningSecrets(ctx context.Context, secrets vault.VaultService) error {
	if c.Vault.Enabled && secrets != nil {
		data, err := secrets.GetSecret(ctx, c.Vault.SecretPath)
		if err != nil {
			return fmt.Errorf("failed to read signing secrets from vault: %w", err)
		}

		fields := map[string]*string{
			"access_signing_key":    &c.Auth.AccessSecret,
			"refresh_signing_key":   &c.Auth.RefreshSecret,
			"challenge_signing_key": &c.Auth.ChallengeSecret,
		}
		for field, target := range fields {
			if value, ok := data[field].(string); ok && value != "" {
				*target = value
			}
		}
	}

	if c.Auth.AccessSecret == "" || c.Auth.RefreshSecret == "" || c.Auth.ChallengeSecret == "" {
		return fmt.Errorf("token signing secrets are not configured")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret || c.Auth.AccessSecret == c.Auth.ChallengeSecret || c.Auth.RefreshSecret == c.Auth.ChallengeSecret {
		return fmt.Errorf("token signing secrets must be distinct")
	}

	return nil
}

// ResolveProviderSecrets overlays optional provider credentials stored
// alongside the signing secrets in Vault. A field that is absent or
// unreadable keeps its environment value, since these providers also
// run without Vault.
func (c *Config) ResolveProviderSecrets(ctx context.Context, secrets vault.VaultService) {
	if !c.Vault.Enabled || secrets == nil {
		return
	}

	fields := map[string]*string{
		"resend_api_key":    &c.Resend.ApiKey,
		"twilio_auth_token": &c.Twilio.AuthToken,
	}
	for field, target := range fields {
		if value, err := secrets.GetSecretString(ctx, c.Vault.SecretPath, field); err == nil && value != "" {
			*target = value
		}
	}
}
