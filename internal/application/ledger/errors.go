package ledger

import "errors"

var (
	ErrPropertyNotFound  = errors.New("Property not found")
	ErrUserNotFound      = errors.New("User not found")
	ErrConcurrentUpdate  = errors.New("Concurrent update, please retry")
	ErrNegativeBalance   = errors.New("Wallet balance cannot go negative")
	ErrShareUnderflow    = errors.New("Available shares cannot go negative")
	ErrTrancheOverflow   = errors.New("Tranche paid amount cannot exceed its total")
	ErrPropertyLockTaken = errors.New("Property is busy, please retry")
)
