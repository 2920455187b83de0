package domain

import (
	"errors"
	"fmt"
)

var (
	// Dispatch errors
	ErrUnrecognizedTransactionType = errors.New("unrecognized transaction type")
	ErrInvalidEvent                = errors.New("invalid transaction event")
	ErrHandlerPanic                = errors.New("transaction handler panicked")
	ErrDuplicateMessage            = errors.New("message already processed or in flight")

	// Ledger errors
	ErrInsufficientFunds         = errors.New("insufficient funds")
	ErrPredecessorNotFound       = errors.New("predecessor transaction not found")
	ErrPredecessorAlreadySettled = errors.New("predecessor transaction already settled")
	ErrSameAccount               = errors.New("cannot transfer to same account")
	ErrInvalidAmount             = errors.New("amount must be positive")

	// Storage errors
	ErrStorageFailure  = errors.New("storage failure")
	ErrVersionConflict = errors.New("balance version conflict")
	ErrDuplicateEvent  = errors.New("transaction event already recorded")
	ErrStateNotFound   = errors.New("object state not found")
)

// StorageFailure wraps an adapter error so callers can match it with
// errors.Is(err, ErrStorageFailure) while keeping the cause reachable.
func StorageFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStorageFailure, op, err)
}

// IsRejection reports whether err is a business rejection rather than an
// infrastructure problem. Rejections are final; redelivery cannot fix them.
func IsRejection(err error) bool {
	switch {
	case errors.Is(err, ErrUnrecognizedTransactionType),
		errors.Is(err, ErrInvalidEvent),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrAmountTooSmall),
		errors.Is(err, ErrAmountTooLarge),
		errors.Is(err, ErrInvalidAccountRef),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrPredecessorNotFound),
		errors.Is(err, ErrPredecessorAlreadySettled),
		errors.Is(err, ErrSameAccount),
		errors.Is(err, ErrDuplicateEvent),
		errors.Is(err, ErrDuplicateMessage):
		return true
	}
	return false
}
