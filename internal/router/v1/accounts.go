package v1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ctrdhq/account-directory-server/internal/module/account"
	"github.com/ctrdhq/account-directory-server/internal/module/identity"
)

func RegisterAccountRoutes(
	router fiber.Router,
	handler *account.AccountHandler,
	authMiddleware *identity.AuthMiddleware,
) {
	accounts := router.Group("/accounts")

	accounts.Get("/", authMiddleware.RequireSession(), handler.ListAccounts)

	accounts.Get("/me", authMiddleware.RequireSession(), handler.GetMe)
	accounts.Put("/me", authMiddleware.RequireSession(), handler.UpdateProfile)
	accounts.Post("/me/avatar", authMiddleware.RequireSession(), handler.UploadAvatar)

	accounts.Get("/:id", authMiddleware.RequireSession(), handler.GetAccount)
	accounts.Post("/:id/restore", authMiddleware.RequireSession(), handler.RestoreAccount)
}
