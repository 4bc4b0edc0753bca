package account

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ctrdhq/account-directory-server/internal/apperror"
)

// LocalsAccountID is the request locals key the session middleware
// fills with the authenticated account id.
const LocalsAccountID = "account_id"

type AccountHandler struct {
	service AccountService
}

func NewAccountHandler(service AccountService) *AccountHandler {
	return &AccountHandler{
		service: service,
	}
}

func respondError(c *fiber.Ctx, title string, err error) error {
	return c.Status(apperror.StatusCode(err)).JSON(fiber.Map{
		"error":   title,
		"message": apperror.ClientMessage(err),
	})
}

func authenticatedAccountID(c *fiber.Ctx) (string, error) {
	id, ok := c.Locals(LocalsAccountID).(string)
	if !ok || id == "" {
		return "", apperror.Auth("authentication required")
	}
	return id, nil
}

func (h *AccountHandler) GetMe(c *fiber.Ctx) error {
	id, err := authenticatedAccountID(c)
	if err != nil {
		return respondError(c, "Failed to get account", err)
	}

	found, err := h.service.GetAccountByID(c.Context(), id)
	if err != nil {
		return respondError(c, "Failed to get account", err)
	}

	return c.JSON(fiber.Map{
		"message": "Account retrieved successfully",
		"data":    found,
	})
}

func (h *AccountHandler) GetAccount(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return respondError(c, "Invalid request", apperror.Validation("account id is required"))
	}

	found, err := h.service.GetAccountByID(c.Context(), id)
	if err != nil {
		return respondError(c, "Failed to get account", err)
	}

	return c.JSON(fiber.Map{
		"message": "Account retrieved successfully",
		"data":    found,
	})
}

func (h *AccountHandler) UpdateProfile(c *fiber.Ctx) error {
	id, err := authenticatedAccountID(c)
	if err != nil {
		return respondError(c, "Failed to update profile", err)
	}

	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, "Invalid request body", apperror.Validation("request body is malformed"))
	}

	updated, err := h.service.UpdateProfile(c.Context(), id, &req)
	if err != nil {
		return respondError(c, "Failed to update profile", err)
	}

	return c.JSON(fiber.Map{
		"message": "Profile updated successfully",
		"data":    updated,
	})
}

func (h *AccountHandler) UploadAvatar(c *fiber.Ctx) error {
	id, err := authenticatedAccountID(c)
	if err != nil {
		return respondError(c, "Failed to upload avatar", err)
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		return respondError(c, "Invalid request", apperror.Validation("avatar file is required"))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return respondError(c, "Failed to upload avatar", apperror.Internal("failed to open uploaded file", err))
	}
	defer file.Close()

	updated, err := h.service.UploadAvatar(
		c.Context(),
		id,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
		fileHeader.Size,
	)
	if err != nil {
		return respondError(c, "Failed to upload avatar", err)
	}

	return c.JSON(fiber.Map{
		"message": "Avatar uploaded successfully",
		"data":    updated,
	})
}

func (h *AccountHandler) ListAccounts(c *fiber.Ctx) error {
	var req ListAccountsRequest
	if err := c.QueryParser(&req); err != nil {
		return respondError(c, "Invalid request", apperror.Validation("query parameters are malformed"))
	}

	result, err := h.service.ListAccounts(c.Context(), &req)
	if err != nil {
		return respondError(c, "Failed to list accounts", err)
	}

	return c.JSON(fiber.Map{
		"message": "Accounts retrieved successfully",
		"data":    result,
	})
}

func (h *AccountHandler) RestoreAccount(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return respondError(c, "Invalid request", apperror.Validation("account id is required"))
	}

	restored, err := h.service.RestoreAccount(c.Context(), id)
	if err != nil {
		return respondError(c, "Failed to restore account", err)
	}

	return c.JSON(fiber.Map{
		"message": "Account restored successfully",
		"data":    restored,
	})
}
