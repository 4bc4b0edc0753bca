package identity

import (
	"github.com/rs/zerolog"

	"github.com/ctrdhq/account-directory-server/internal/module/account"
	"github.com/ctrdhq/account-directory-server/package/jwt"
)

func NewService(
	repository account.AccountRepository,
	tokens *jwt.TokenService,
	deliverer OTPDeliverer,
	policy Policy,
	logger zerolog.Logger,
) IdentityService {
	return NewIdentityService(repository, tokens, deliverer, policy, logger)
}

func NewDeliverer(channels ...OTPDeliverer) OTPDeliverer {
	return NewChannelDeliverer(channels...)
}

func NewHandler(service IdentityService, accounts account.AccountService, cookies CookieSettings) *IdentityHandler {
	return NewIdentityHandler(service, accounts, cookies)
}

func NewMiddleware(service IdentityService) *AuthMiddleware {
	return NewAuthMiddleware(service)
}
