package portfolio

import (
	"brickshare-backend/internal/application/portfolio"
	"brickshare-backend/internal/domain"
	"brickshare-backend/internal/pkg/response"
	"brickshare-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *portfolio.Service
}

const invalidUserID = "Invalid UUID format for user_id"

// Investments GET /api/v1/portfolio/:user_id/investments
func (h *Handlers) Investments(c *fiber.Ctx) error {
	id, ok := validation.ParseID(c.Params("user_id"))
	if !ok {
		return response.Error(c, invalidUserID, 400, nil)
	}
	data, err := h.Service.Investments(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Investments fetched successfully", data, fiber.Map{"count": len(data)})
}

// Applications GET /api/v1/portfolio/:user_id/applications?status=
func (h *Handlers) Applications(c *fiber.Ctx) error {
	id, ok := validation.ParseID(c.Params("user_id"))
	if !ok {
		return response.Error(c, invalidUserID, 400, nil)
	}
	status := c.Query("status")
	if !validation.OneOf(status, domain.ApplicationStatusPending, domain.ApplicationStatusAccepted, domain.ApplicationStatusRejected) {
		return response.Error(c, "Invalid status filter", 400, nil)
	}
	data, err := h.Service.Applications(c.UserContext(), id, status)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Applications fetched successfully", data, fiber.Map{"count": len(data)})
}

// Transactions GET /api/v1/portfolio/:user_id/transactions
func (h *Handlers) Transactions(c *fiber.Ctx) error {
	id, ok := validation.ParseID(c.Params("user_id"))
	if !ok {
		return response.Error(c, invalidUserID, 400, nil)
	}
	data, err := h.Service.Transactions(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Transactions fetched successfully", data, fiber.Map{"count": len(data)})
}

// Wallet GET /api/v1/portfolio/:user_id/wallet
func (h *Handlers) Wallet(c *fiber.Ctx) error {
	id, ok := validation.ParseID(c.Params("user_id"))
	if !ok {
		return response.Error(c, invalidUserID, 400, nil)
	}
	data, err := h.Service.Wallet(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Wallet fetched successfully", data, nil)
}

func fail(c *fiber.Ctx, err error) error {
	statusMap := map[string]int{
		portfolio.ErrUserNotFound.Error(): 404,
	}
	if code, ok := statusMap[err.Error()]; ok {
		return response.Error(c, err.Error(), code, nil)
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("Portfolio read failed")
	return response.Error(c, "Internal Server Error", 500, nil)
}
