package calculation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/avalontax/tax-engine/internal/apperrors"
	"github.com/avalontax/tax-engine/internal/config"
	"github.com/avalontax/tax-engine/internal/model"
)

// Deduction is the selected deduction with its audit type.
type Deduction struct {
	Amount decimal.Decimal
	Type   string
}

// StandardDeduction computes the scheduled standard amount for a filing
// profile: the configured base plus the per-child increment, capped at the
// configured maximum number of children.
func StandardDeduction(schedule config.StandardDeduction, numChildren int) decimal.Decimal {
	children := numChildren
	if children > schedule.MaxChildren {
		children = schedule.MaxChildren
	}
	return schedule.Base.Add(schedule.PerChild.Mul(decimal.NewFromInt(int64(children))))
}

// ItemizedDeduction sums the taxpayer's charitable donations. Negative
// donation amounts are data errors, not reductions.
func ItemizedDeduction(donations []model.CharitableDonation) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, d := range donations {
		if d.Amount.IsNegative() {
			return decimal.Zero, fmt.Errorf("donation %d: amount must not be negative: %w",
				d.ID, apperrors.ErrInvalidRecord)
		}
		total = total.Add(d.Amount)
	}
	return total, nil
}

// SelectDeduction picks the greater of the standard and itemized amounts.
// A tie selects Standard, which avoids itemization bookkeeping when it buys
// nothing.
func SelectDeduction(standard, itemized decimal.Decimal) Deduction {
	if itemized.GreaterThan(standard) {
		return Deduction{Amount: itemized, Type: model.DeductionItemized}
	}
	return Deduction{Amount: standard, Type: model.DeductionStandard}
}
