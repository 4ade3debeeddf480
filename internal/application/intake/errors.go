package intake

import (
	"errors"

	"brickshare-backend/internal/application/ledger"
)

var (
	ErrInvalidShares      = errors.New("Requested shares must be a positive number")
	ErrPropertyNotFound   = ledger.ErrPropertyNotFound
	ErrUserNotFound       = ledger.ErrUserNotFound
	ErrPropertyClosed     = errors.New("Property is no longer accepting applications")
	ErrNoActiveTranche    = errors.New("No active tranche for this property")
	ErrInsufficientFunds  = errors.New("Insufficient funds")
	ErrInsufficientShares = errors.New("Insufficient shares available")
	ErrTrancheOverfunded  = errors.New("Commitment exceeds the outstanding amount of the active tranche")
)
