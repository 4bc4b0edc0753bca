package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ctrdhq/account-directory-server/internal/config"
	"github.com/ctrdhq/account-directory-server/internal/module/account"
	"github.com/ctrdhq/account-directory-server/internal/module/identity"
	"github.com/ctrdhq/account-directory-server/internal/router"
	"github.com/ctrdhq/account-directory-server/package/consul"
	"github.com/ctrdhq/account-directory-server/package/jwt"
	"github.com/ctrdhq/account-directory-server/package/log"
	"github.com/ctrdhq/account-directory-server/package/minio"
	"github.com/ctrdhq/account-directory-server/package/mongo"
	"github.com/ctrdhq/account-directory-server/package/ratelimit"
	"github.com/ctrdhq/account-directory-server/package/redis"
	"github.com/ctrdhq/account-directory-server/package/resend"
	"github.com/ctrdhq/account-directory-server/package/twilio"
	"github.com/ctrdhq/account-directory-server/package/vault"
)

// Run wires the service graph, starts the HTTP listener and blocks
// until a shutdown signal drains everything again.
func Run() {
	logger := log.New("account-directory")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var secretSource vault.VaultService
	if cfg.Vault.Enabled {
		secretSource, err = vault.NewVaultClient(vault.VaultConfig{
			Address: cfg.Vault.Address,
			Token:   cfg.Vault.Token,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to vault")
		}
		defer secretSource.Close()
	}

	if err := cfg.ResolveSigningSecrets(ctx, secretSource); err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve signing secrets")
	}
	cfg.ResolveProviderSecrets(ctx, secretSource)

	mongoService, err := mongo.NewMongoService(mongo.MongoConfig{
		Address:   cfg.MongoDB.Address,
		Username:  cfg.MongoDB.Username,
		Password:  cfg.MongoDB.Password,
		Database:  cfg.MongoDB.Database,
		OpTimeout: cfg.MongoDB.OpTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to mongodb")
	}

	redisService, err := redis.NewRedisService(redis.RedisConfig{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		Database: cfg.Redis.Database,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}

	minioService, err := minio.NewMinIOService(minio.MinIOConfig{
		Endpoint:        cfg.MinIO.Endpoint,
		AccessKeyID:     cfg.MinIO.AccessKey,
		SecretAccessKey: cfg.MinIO.SecretKey,
		UseSSL:          cfg.MinIO.UseSSL,
		BucketName:      cfg.MinIO.BucketName,
		PublicBaseURL:   cfg.MinIO.PublicBaseURL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to minio")
	}

	resendService, err := resend.NewClient(resend.ResendConfig{
		ApiKey: cfg.Resend.ApiKey,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize resend client")
	}

	tokens, err := jwt.NewTokenService(jwt.Config{
		Issuer:    cfg.Auth.Issuer,
		Access:    jwt.KindConfig{Secret: cfg.Auth.AccessSecret, TTL: cfg.Auth.AccessTTL},
		Refresh:   jwt.KindConfig{Secret: cfg.Auth.RefreshSecret, TTL: cfg.Auth.RefreshTTL},
		Challenge: jwt.KindConfig{Secret: cfg.Auth.ChallengeSecret, TTL: cfg.Auth.ChallengeTTL},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize token service")
	}

	accountRepository := account.NewRepository(mongoService)
	accountService := account.NewService(accountRepository, minioService, logger)

	channels := []identity.OTPDeliverer{
		identity.NewEmailOTPDeliverer(resendService, cfg.Resend.FromAddress, cfg.Resend.FromName),
	}
	var smsService twilio.TwilioService
	if cfg.Twilio.Enabled() {
		smsService, err = twilio.NewClient(twilio.TwilioConfig{
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
			FromNumber: cfg.Twilio.FromNumber,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize twilio client")
		}
		channels = append(channels, identity.NewSMSOTPDeliverer(smsService))
		logger.Info().Msg("sms delivery channel enabled")
	}

	deliverer := identity.NewDeliverer(channels...)
	identityService := identity.NewService(accountRepository, tokens, deliverer, identity.Policy{
		OTPLength:     cfg.Auth.OTPLength,
		OTPExpiry:     cfg.Auth.OTPExpiry,
		LockThreshold: cfg.Auth.LockThreshold,
		LockDuration:  cfg.Auth.LockDuration,
	}, logger)

	limiters, err := buildLimiters(cfg, redisService)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize rate limiters")
	}

	app := router.Setup(router.RouterConfig{
		Config:          cfg,
		IdentityService: identityService,
		AccountService:  accountService,
		Limiters:        limiters,
		HealthHandler:   healthHandler(mongoService, redisService, minioService, resendService, smsService, secretSource),
		Logger:          logger,
	})

	var serviceRegistry consul.ConsulService
	var serviceID string
	if cfg.Consul.Enabled {
		serviceRegistry, serviceID, err = registerWithConsul(cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to register with consul")
		}
		logger.Info().Str("service_id", serviceID).Msg("registered with consul")
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		logger.Info().Str("address", address).Msg("server starting")
		if err := app.Listen(address); err != nil {
			logger.Error().Err(err).Msg("server stopped")
		}
	}()

	<-signals
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if serviceRegistry != nil {
		if err := serviceRegistry.Deregister(shutdownCtx, serviceID); err != nil {
			logger.Error().Err(err).Msg("failed to deregister from consul")
		}
		serviceRegistry.Close()
	}

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	if err := mongoService.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to close mongodb connection")
	}
	if err := redisService.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to close redis connection")
	}
	minioService.Close()
	resendService.Close()
	if smsService != nil {
		smsService.Close()
	}

	logger.Info().Msg("server exited")
}

func buildLimiters(cfg *config.Config, cache redis.RedisService) (router.Limiters, error) {
	if !cfg.RateLimit.Enabled {
		return router.Limiters{}, nil
	}

	limiters := router.Limiters{}
	for _, binding := range []struct {
		name   string
		rule   config.RateLimitRule
		target *ratelimit.Limiter
	}{
		{"general", cfg.RateLimit.General, &limiters.General},
		{"login", cfg.RateLimit.Login, &limiters.Login},
		{"otp_verify", cfg.RateLimit.OTPVerify, &limiters.OTPVerify},
		{"otp_resend", cfg.RateLimit.OTPResend, &limiters.OTPResend},
	} {
		limiter, err := ratelimit.NewRedisLimiter(cache, ratelimit.Rule{
			Name:   binding.name,
			Limit:  binding.rule.Limit,
			Window: binding.rule.Window,
		})
		if err != nil {
			return router.Limiters{}, fmt.Errorf("limiter %s: %w", binding.name, err)
		}
		*binding.target = limiter
	}

	return limiters, nil
}

func registerWithConsul(cfg *config.Config) (consul.ConsulService, string, error) {
	client, err := consul.NewConsulClient(consul.ConsulConfig{
		Address:    cfg.Consul.Address,
		Token:      cfg.Consul.Token,
		Datacenter: cfg.Consul.Datacenter,
	})
	if err != nil {
		return nil, "", err
	}

	port, err := strconv.Atoi(cfg.Server.Port)
	if err != nil {
		return nil, "", fmt.Errorf("invalid server port %q: %w", cfg.Server.Port, err)
	}

	serviceID := cfg.Consul.ServiceID
	if serviceID == "" {
		hostname, _ := os.Hostname()
		serviceID = "account-directory-" + hostname
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = client.Register(ctx, consul.Registration{
		ID:             serviceID,
		Name:           "account-directory",
		Address:        cfg.Server.Host,
		Port:           port,
		Tags:           []string{"api", "v1"},
		HealthEndpoint: fmt.Sprintf("http://%s:%s/api/v1/health", cfg.Server.Host, cfg.Server.Port),
		Interval:       15 * time.Second,
	})
	if err != nil {
		client.Close()
		return nil, "", err
	}

	return client, serviceID, nil
}

// healthHandler aggregates dependency probes. The endpoint reports 503
// when a required backend is down so orchestrators stop routing here.
func healthHandler(
	mongoService *mongo.MongoService,
	redisService redis.RedisService,
	minioService minio.MinIOService,
	resendService resend.ResendService,
	smsService twilio.TwilioService,
	secretSource vault.VaultService,
) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
		defer cancel()

		mongoHealth := mongoService.HealthCheck(ctx)
		redisHealth := redisService.HealthCheck(ctx)
		minioHealth := minioService.HealthCheck(ctx)
		resendHealth := resendService.HealthCheck(ctx)

		checks := fiber.Map{
			"mongodb": mongoHealth,
			"redis":   redisHealth,
			"minio":   minioHealth,
			"resend":  resendHealth,
		}

		healthy := mongoHealth.Connected && redisHealth.Connected && minioHealth.Connected

		if smsService != nil {
			checks["twilio"] = smsService.HealthCheck(ctx)
		}

		if secretSource != nil {
			vaultHealth := secretSource.HealthCheck(ctx)
			checks["vault"] = vaultHealth
			healthy = healthy && vaultHealth.Connected
		}

		status := "healthy"
		code := fiber.StatusOK
		if !healthy {
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status":    status,
			"timestamp": time.Now().Unix(),
			"checks":    checks,
		})
	}
}
