package domain

import "errors"

// Error kinds surfaced to the boundary. Callers classify with errors.Is;
// layers in between only add context with %w wrapping.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("record not found")
	ErrBadCredential     = errors.New("invalid credentials")
	ErrConflict          = errors.New("already exists")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountClosed     = errors.New("account is closed")
	ErrSelfTransfer      = errors.New("cannot transfer to the same account")
	ErrNonZeroBalance    = errors.New("account balance is not zero")
	ErrBusy              = errors.New("resource busy, retry")
	ErrStorageCorruption = errors.New("storage corruption detected")
)
