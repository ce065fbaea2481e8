package calculation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/avalontax/tax-engine/internal/apperrors"
	"github.com/avalontax/tax-engine/internal/model"
)

// The five required year offsets, oldest first.
const (
	oldestOffset = -5
	newestOffset = -1
)

// AverageIncome computes the exponentially weighted moving average over a
// five-year income history. The recurrence runs oldest to newest, seeded
// with the T-5 amount:
//
//	e(-5) = amount(-5)
//	e(k)  = alpha*amount(k) + (1-alpha)*e(k-1)   for k = -4..-1
//
// so the most recent year carries the heaviest weight. Exactly one entry
// per offset -5..-1 is required; a missing or duplicated offset fails with
// ErrIncompleteHistory rather than defaulting to zero. The result is
// rounded to two fractional digits, half up.
func AverageIncome(entries []model.IncomeHistoryEntry, alpha decimal.Decimal) (decimal.Decimal, error) {
	byOffset := make(map[int]decimal.Decimal, len(entries))
	for _, e := range entries {
		if e.Amount.IsNegative() {
			return decimal.Zero, fmt.Errorf("income history offset %d: amount must not be negative: %w",
				e.YearOffset, apperrors.ErrInvalidRecord)
		}
		if _, dup := byOffset[e.YearOffset]; dup {
			return decimal.Zero, fmt.Errorf("duplicate income history offset %d: %w",
				e.YearOffset, apperrors.ErrIncompleteHistory)
		}
		byOffset[e.YearOffset] = e.Amount
	}

	for offset := oldestOffset; offset <= newestOffset; offset++ {
		if _, ok := byOffset[offset]; !ok {
			return decimal.Zero, fmt.Errorf("missing income history offset %d: %w",
				offset, apperrors.ErrIncompleteHistory)
		}
	}

	oneMinusAlpha := decimal.NewFromInt(1).Sub(alpha)
	ewma := byOffset[oldestOffset]
	for offset := oldestOffset + 1; offset <= newestOffset; offset++ {
		ewma = alpha.Mul(byOffset[offset]).Add(oneMinusAlpha.Mul(ewma))
	}

	// History amounts are non-negative, so Round's half-away-from-zero
	// behaviour is exactly half-up here.
	return ewma.Round(2), nil
}
