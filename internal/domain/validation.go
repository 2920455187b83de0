package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrAmountTooLarge    = errors.New("amount exceeds maximum allowed")
	ErrAmountTooSmall    = errors.New("amount below minimum allowed")
	ErrInvalidAccountRef = errors.New("invalid account reference")
)

// Validation constants
const (
	MaxAccountRefLength  = 64
	MaxTransactionAmount = "1000000000000" // 1 trillion
	MinTransactionAmount = "0.01"
)

var (
	minAmount = decimal.RequireFromString(MinTransactionAmount)
	maxAmount = decimal.RequireFromString(MaxTransactionAmount)
)

// ValidateAmount validates a transaction amount
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	if amount.LessThan(minAmount) {
		return fmt.Errorf("%w: minimum amount is %s", ErrAmountTooSmall, MinTransactionAmount)
	}

	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxTransactionAmount)
	}

	return nil
}

// ValidateAccountRef validates an account reference used in lookups
func ValidateAccountRef(ref string) error {
	if ref == "" {
		return fmt.Errorf("%w: reference cannot be empty", ErrInvalidAccountRef)
	}

	if strings.TrimSpace(ref) != ref {
		return fmt.Errorf("%w: reference has surrounding whitespace", ErrInvalidAccountRef)
	}

	if len(ref) > MaxAccountRefLength {
		return fmt.Errorf("%w: reference exceeds %d characters", ErrInvalidAccountRef, MaxAccountRefLength)
	}

	// '#' separates key segments in single-table stores
	if strings.Contains(ref, "#") {
		return fmt.Errorf("%w: contains forbidden characters", ErrInvalidAccountRef)
	}

	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}
