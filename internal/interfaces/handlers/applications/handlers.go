package applications

import (
	"encoding/json"

	"brickshare-backend/internal/application/intake"
	"brickshare-backend/internal/application/ledger"
	"brickshare-backend/internal/pkg/response"
	"brickshare-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *intake.Service
}

type commitBody struct {
	UserID          string `json:"user_id"`
	PropertyID      string `json:"property_id"`
	RequestedShares int64  `json:"requested_shares"`
}

// CommitApplication POST /api/v1/applications/commit-application
func (h *Handlers) CommitApplication(c *fiber.Ctx) error {
	var body commitBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	if body.UserID == "" || body.PropertyID == "" || body.RequestedShares == 0 {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	userID, ok := validation.ParseID(body.UserID)
	if !ok {
		return response.Error(c, "Invalid UUID format for user_id", 400, nil)
	}
	propertyID, ok := validation.ParseID(body.PropertyID)
	if !ok {
		return response.Error(c, "Invalid UUID format for property_id", 400, nil)
	}
	if !validation.IsValidShares(body.RequestedShares) {
		return response.Error(c, intake.ErrInvalidShares.Error(), 400, nil)
	}

	result, err := h.Service.Commit(c.UserContext(), intake.CommitInput{
		UserID:          userID,
		PropertyID:      propertyID,
		RequestedShares: body.RequestedShares,
	})
	if err != nil {
		statusMap := map[string]int{
			intake.ErrPropertyNotFound.Error():   404,
			intake.ErrUserNotFound.Error():       404,
			intake.ErrInvalidShares.Error():      400,
			intake.ErrPropertyClosed.Error():     409,
			intake.ErrNoActiveTranche.Error():    409,
			intake.ErrInsufficientFunds.Error():  400,
			intake.ErrInsufficientShares.Error(): 409,
			intake.ErrTrancheOverfunded.Error():  409,
			ledger.ErrPropertyLockTaken.Error():  409,
			ledger.ErrConcurrentUpdate.Error():   409,
		}
		if code, ok := statusMap[err.Error()]; ok {
			return response.Error(c, err.Error(), code, nil)
		}
		log.Error().Err(err).Str("property_id", propertyID.String()).Str("user_id", userID.String()).Msg("Commit failed")
		return response.Error(c, "Internal Server Error", 500, nil)
	}

	msg := "Application submitted successfully"
	if result.Kind == intake.KindInvestment {
		msg = "Investment created successfully"
	}
	return response.SuccessCreated(c, msg, result, nil)
}

// RateLimitKey buckets commit requests by the user in the body, falling back to the client IP.
func RateLimitKey(c *fiber.Ctx) string {
	var body commitBody
	if err := json.Unmarshal(c.Body(), &body); err == nil && body.UserID != "" {
		return "user:" + body.UserID
	}
	return "ip:" + c.IP()
}
