package finalize

import (
	"errors"

	"brickshare-backend/internal/application/ledger"
)

var (
	ErrPropertyNotFound       = ledger.ErrPropertyNotFound
	ErrDeadlineNotReached     = errors.New("Application deadline has not passed yet")
	ErrAlreadyFinalized       = errors.New("Property is already finalized")
	ErrPaymentPlanUnderfunded = errors.New("Payment plan is less than 40% funded")
)
