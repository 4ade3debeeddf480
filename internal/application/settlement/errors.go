package settlement

import (
	"errors"

	"brickshare-backend/internal/application/ledger"
)

var (
	ErrPropertyNotFound = ledger.ErrPropertyNotFound
	// ErrOversubscribed means the pending round asks for more shares than the property has left.
	ErrOversubscribed = errors.New("Pending applications exceed the unallocated shares")
)
