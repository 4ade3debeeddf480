package settlement

import (
	"context"

	"brickshare-backend/internal/application/finalize"
	"brickshare-backend/internal/application/ledger"
	settlesvc "brickshare-backend/internal/application/settlement"
	"brickshare-backend/internal/pkg/response"
	"brickshare-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Sweep    *settlesvc.Service
	Finalize *finalize.Service
	// OnSweep observes every completed run (health summary).
	OnSweep func(ctx context.Context, result *settlesvc.SweepResult)
}

// RunSweep POST /api/v1/settlement/run-sweep
func (h *Handlers) RunSweep(c *fiber.Ctx) error {
	result, err := h.Sweep.Run(c.UserContext())
	if err != nil {
		log.Error().Err(err).Msg("Sweep run failed")
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	if h.OnSweep != nil {
		h.OnSweep(c.UserContext(), result)
	}
	return response.Success(c, "Sweep completed", result, nil)
}

// SettleProperty POST /api/v1/settlement/properties/:id/settle runs the sweep for one property.
func (h *Handlers) SettleProperty(c *fiber.Ctx) error {
	propertyID, ok := validation.ParseID(c.Params("id"))
	if !ok {
		return response.Error(c, "Invalid UUID format for property_id", 400, nil)
	}
	result, err := h.Sweep.SettleProperty(c.UserContext(), propertyID)
	if err != nil {
		statusMap := map[string]int{
			settlesvc.ErrPropertyNotFound.Error(): 404,
			ledger.ErrPropertyLockTaken.Error():   409,
			ledger.ErrConcurrentUpdate.Error():    409,
		}
		if code, ok := statusMap[err.Error()]; ok {
			return response.Error(c, err.Error(), code, nil)
		}
		log.Error().Err(err).Str("property_id", propertyID.String()).Msg("Settle property failed")
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.Success(c, "Property settled", result, nil)
}

// FinalizeProperty POST /api/v1/settlement/finalize
func (h *Handlers) FinalizeProperty(c *fiber.Ctx) error {
	var body struct {
		PropertyID string `json:"property_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.PropertyID == "" {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	propertyID, ok := validation.ParseID(body.PropertyID)
	if !ok {
		return response.Error(c, "Invalid UUID format for property_id", 400, nil)
	}

	result, err := h.Finalize.Finalize(c.UserContext(), propertyID)
	if err != nil {
		statusMap := map[string]int{
			finalize.ErrPropertyNotFound.Error():       404,
			finalize.ErrDeadlineNotReached.Error():     409,
			finalize.ErrAlreadyFinalized.Error():       409,
			finalize.ErrPaymentPlanUnderfunded.Error(): 422,
			ledger.ErrPropertyLockTaken.Error():        409,
			ledger.ErrConcurrentUpdate.Error():         409,
		}
		if code, ok := statusMap[err.Error()]; ok {
			return response.Error(c, err.Error(), code, nil)
		}
		log.Error().Err(err).Str("property_id", propertyID.String()).Msg("Finalize failed")
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.Success(c, "Property finalized", result, nil)
}
