package properties

import (
	"brickshare-backend/internal/application/forecast"
	propsvc "brickshare-backend/internal/application/properties"
	"brickshare-backend/internal/domain"
	"brickshare-backend/internal/pkg/response"
	"brickshare-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service         *propsvc.Service
	ForecastService *forecast.Service
}

// ListProperties GET /api/v1/properties?status=
func (h *Handlers) ListProperties(c *fiber.Ctx) error {
	status := c.Query("status")
	if !validation.OneOf(status, domain.PropertyStatusPending, domain.PropertyStatusAvailable, domain.PropertyStatusSold, domain.PropertyStatusRented, domain.PropertyStatusDeclined) {
		return response.Error(c, "Invalid status filter", 400, nil)
	}
	data, err := h.Service.ListProperties(c.UserContext(), status)
	if err != nil {
		log.Error().Err(err).Msg("List properties failed")
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.Success(c, "Properties fetched successfully", data, fiber.Map{"count": len(data)})
}

// GetProperty GET /api/v1/properties/:id
func (h *Handlers) GetProperty(c *fiber.Ctx) error {
	id, ok := validation.ParseID(c.Params("id"))
	if !ok {
		return response.Error(c, "Invalid UUID format for property_id", 400, nil)
	}
	data, err := h.Service.GetProperty(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, "Property fetched successfully", data, nil)
}

// AuditTrail GET /api/v1/properties/:id/audit?event_type=
func (h *Handlers) AuditTrail(c *fiber.Ctx) error {
	id, ok := validation.ParseID(c.Params("id"))
	if !ok {
		return response.Error(c, "Invalid UUID format for property_id", 400, nil)
	}
	data, err := h.Service.AuditTrail(c.UserContext(), id, c.Query("event_type"))
	if err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, "Audit trail fetched successfully", data, fiber.Map{"count": len(data)})
}

// Forecast GET /api/v1/properties/:id/forecast
func (h *Handlers) Forecast(c *fiber.Ctx) error {
	id, ok := validation.ParseID(c.Params("id"))
	if !ok {
		return response.Error(c, "Invalid UUID format for property_id", 400, nil)
	}
	data, err := h.ForecastService.PropertyForecast(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, "Forecast computed successfully", data, nil)
}

func (h *Handlers) fail(c *fiber.Ctx, err error) error {
	statusMap := map[string]int{
		propsvc.ErrPropertyNotFound.Error(): 404,
	}
	if code, ok := statusMap[err.Error()]; ok {
		return response.Error(c, err.Error(), code, nil)
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("Property read failed")
	return response.Error(c, "Internal Server Error", 500, nil)
}
