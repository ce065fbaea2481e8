package validation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avalontax/tax-engine/internal/apperrors"
	"github.com/avalontax/tax-engine/internal/model"
)

// ValidateTaxpayerID checks that a taxpayer ID is present.
func ValidateTaxpayerID(id string) error {
	if id == "" {
		return apperrors.ErrEmptyID
	}
	return nil
}

// ValidateState checks a state value against the supported set. The store
// carries a matching CHECK constraint, but the core validates independently.
func ValidateState(state string) error {
	switch state {
	case model.StateCalifornia, model.StateTexas:
		return nil
	default:
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidState, state)
	}
}

// ValidateAmount checks that a monetary amount is non-negative.
func ValidateAmount(field string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%s must not be negative, got %s: %w", field, amount, apperrors.ErrInvalidRecord)
	}
	return nil
}

// ValidateQuantity checks that a transaction quantity is strictly positive.
func ValidateQuantity(quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return fmt.Errorf("quantity must be positive, got %s: %w", quantity, apperrors.ErrInvalidRecord)
	}
	return nil
}

// ParseDate parses a calendar date in "2006-01-02" form. A malformed date
// is an InvalidRecord error.
func ParseDate(str string) (time.Time, error) {
	date, err := time.Parse("2006-01-02", str)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed date %q: %w", str, apperrors.ErrInvalidRecord)
	}
	return date.UTC(), nil
}
