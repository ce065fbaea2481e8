package calculation

import (
	"github.com/shopspring/decimal"

	"github.com/avalontax/tax-engine/internal/config"
	"github.com/avalontax/tax-engine/internal/model"
)

// TaxInput carries everything the tax computer needs for one taxpayer.
type TaxInput struct {
	State      string
	W2Income   decimal.Decimal
	NetGain    decimal.Decimal
	EwmaIncome decimal.Decimal
	Deduction  Deduction
}

// TaxResult is the final set of federal and state figures. Total taxes are
// rounded to whole currency units; the remaining amounts keep two
// fractional digits.
type TaxResult struct {
	FederalGrossIncome   decimal.Decimal
	FederalTaxableIncome decimal.Decimal
	FederalDeductionType string
	FederalSurcharge     decimal.Decimal
	TotalFederalTax      decimal.Decimal
	StateSurcharge       decimal.Decimal
	TotalStateTax        decimal.Decimal
}

// BracketTax computes progressive tax over the bracket table: each bracket
// taxes the slice of income between the previous bound and its own.
func BracketTax(income decimal.Decimal, brackets []config.Bracket) decimal.Decimal {
	tax := decimal.Zero
	previous := decimal.Zero

	for _, b := range brackets {
		if income.LessThanOrEqual(previous) {
			break
		}
		upper := income
		if b.UpTo != nil {
			upper = decimal.Min(income, *b.UpTo)
		}
		tax = tax.Add(upper.Sub(previous).Mul(b.Rate))
		if b.UpTo == nil {
			break
		}
		previous = *b.UpTo
	}

	return tax
}

// surchargeAmount applies a high-income surcharge rule to an EWMA income:
// rate times the excess over the threshold, zero at or below it.
func surchargeAmount(ewma decimal.Decimal, rule config.Surcharge) decimal.Decimal {
	if ewma.LessThanOrEqual(rule.Threshold) {
		return decimal.Zero
	}
	return rule.Rate.Mul(ewma.Sub(rule.Threshold)).Round(2)
}

// roundWhole rounds to a whole currency unit using the configured mode.
func roundWhole(d decimal.Decimal, mode string) decimal.Decimal {
	if mode == config.RoundHalfEven {
		return d.RoundBank(0)
	}
	return d.Round(0)
}

// ComputeTax runs the federal and state computations for one taxpayer.
// Federal: gross = w2 + net capital gain (unclamped, losses flow through),
// taxable = max(0, gross - deduction), surcharge per the federal rule, and
// the total is bracket tax plus surcharge rounded to a whole unit.
// State: Texas levies no income tax. California taxes federal taxable
// income through its own bracket table and applies its own surcharge rate
// to the same EWMA excess.
func ComputeTax(in TaxInput, rules config.Rules) TaxResult {
	gross := in.W2Income.Add(in.NetGain).Round(2)

	taxable := gross.Sub(in.Deduction.Amount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	taxable = taxable.Round(2)

	federalSurcharge := surchargeAmount(in.EwmaIncome, rules.FederalSurcharge)
	totalFederal := roundWhole(BracketTax(taxable, rules.FederalBrackets).Add(federalSurcharge), rules.Rounding)

	stateSurcharge := decimal.Zero
	totalState := decimal.Zero
	if in.State == model.StateCalifornia {
		stateSurcharge = surchargeAmount(in.EwmaIncome, rules.CaliforniaSurcharge)
		totalState = roundWhole(BracketTax(taxable, rules.CaliforniaBrackets).Add(stateSurcharge), rules.Rounding)
	}

	return TaxResult{
		FederalGrossIncome:   gross,
		FederalTaxableIncome: taxable,
		FederalDeductionType: in.Deduction.Type,
		FederalSurcharge:     federalSurcharge,
		TotalFederalTax:      totalFederal,
		StateSurcharge:       stateSurcharge,
		TotalStateTax:        totalState,
	}
}
