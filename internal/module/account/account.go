package account

import (
	"github.com/rs/zerolog"

	"github.com/ctrdhq/account-directory-server/package/minio"
	"github.com/ctrdhq/account-directory-server/package/mongo"
)

func NewRepository(mongoService *mongo.MongoService) AccountRepository {
	return NewAccountRepository(mongoService)
}

func NewService(repository AccountRepository, media minio.MinIOService, logger zerolog.Logger) AccountService {
	return NewAccountService(repository, media, logger)
}

func NewHandler(service AccountService) *AccountHandler {
	return NewAccountHandler(service)
}
