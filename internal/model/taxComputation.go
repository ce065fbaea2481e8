package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Deduction type chosen for a taxpayer. Ties between standard and itemized
// select STANDARD.
const (
	DeductionStandard = "STANDARD"
	DeductionItemized = "ITEMIZED"
)

// TaxComputation holds the final federal and state figures for one taxpayer.
// Exactly one row per taxpayer, overwritten on each successful processing
// pass. TotalFederalTax and TotalStateTax are rounded to whole currency
// units; the other amounts keep two fractional digits.
type TaxComputation struct {
	TaxpayerID           string
	FederalGrossIncome   decimal.Decimal
	FederalTaxableIncome decimal.Decimal
	FederalDeductionType string
	FederalSurcharge     decimal.Decimal
	TotalFederalTax      decimal.Decimal
	StateSurcharge       decimal.Decimal // zero unless state is California
	TotalStateTax        decimal.Decimal
	ComputedAt           time.Time
}
