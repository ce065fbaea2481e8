package calculation

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/avalontax/tax-engine/internal/config"
	"github.com/avalontax/tax-engine/internal/model"
)

// TestBracketTax tests progressive bracket math.
func TestBracketTax(t *testing.T) {
	d := decimal.RequireFromString
	brackets := config.DefaultRules().FederalBrackets

	tests := []struct {
		name     string
		income   string
		expected string
	}{
		{"zero income", "0", "0"},
		{"inside first bracket", "50000", "2500"},
		{"at first bracket bound", "100000", "5000"},
		{"spans two brackets", "150000", "10000"},
		{"spans all brackets", "350000", "40000"},
		{"fractional income", "100.50", "5.025"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BracketTax(d(tt.income), brackets)
			if !got.Equal(d(tt.expected)) {
				t.Errorf("Expected tax %s on income %s, got %s", tt.expected, tt.income, got)
			}
		})
	}
}

// TestComputeTax tests the combined federal and state computation.
//
// WHY: This is the last pure step before persistence; gross, taxable,
// surcharge and both totals must line up with the bracket tables for the
// figures in the store to mean anything.
func TestComputeTax(t *testing.T) {
	d := decimal.RequireFromString
	rules := config.DefaultRules()
	standard := Deduction{Amount: d("10000"), Type: model.DeductionStandard}

	t.Run("federal figures for a Texas taxpayer", func(t *testing.T) {
		result := ComputeTax(TaxInput{
			State:      model.StateTexas,
			W2Income:   d("100000"),
			NetGain:    d("300"),
			EwmaIncome: d("120000"),
			Deduction:  standard,
		}, rules)

		if !result.FederalGrossIncome.Equal(d("100300")) {
			t.Errorf("Expected gross 100300, got %s", result.FederalGrossIncome)
		}
		if !result.FederalTaxableIncome.Equal(d("90300")) {
			t.Errorf("Expected taxable 90300, got %s", result.FederalTaxableIncome)
		}
		if !result.FederalSurcharge.IsZero() {
			t.Errorf("Expected no surcharge below the threshold, got %s", result.FederalSurcharge)
		}
		if !result.TotalFederalTax.Equal(d("4515")) {
			t.Errorf("Expected federal tax 4515, got %s", result.TotalFederalTax)
		}
	})

	t.Run("Texas levies no state tax", func(t *testing.T) {
		result := ComputeTax(TaxInput{
			State:      model.StateTexas,
			W2Income:   d("2000000"),
			NetGain:    d("0"),
			EwmaIncome: d("2000000"),
			Deduction:  standard,
		}, rules)

		if !result.TotalStateTax.IsZero() || !result.StateSurcharge.IsZero() {
			t.Errorf("Expected zero state figures, got tax %s surcharge %s",
				result.TotalStateTax, result.StateSurcharge)
		}
	})

	t.Run("California taxes federal taxable income", func(t *testing.T) {
		result := ComputeTax(TaxInput{
			State:      model.StateCalifornia,
			W2Income:   d("100000"),
			NetGain:    d("300"),
			EwmaIncome: d("120000"),
			Deduction:  standard,
		}, rules)

		// 90000 at 1% plus 300 at 3%.
		if !result.TotalStateTax.Equal(d("909")) {
			t.Errorf("Expected state tax 909, got %s", result.TotalStateTax)
		}
	})

	t.Run("surcharges apply to the EWMA excess", func(t *testing.T) {
		result := ComputeTax(TaxInput{
			State:      model.StateCalifornia,
			W2Income:   d("100000"),
			NetGain:    d("0"),
			EwmaIncome: d("1500000"),
			Deduction:  standard,
		}, rules)

		if !result.FederalSurcharge.Equal(d("10000")) {
			t.Errorf("Expected federal surcharge 10000, got %s", result.FederalSurcharge)
		}
		if !result.StateSurcharge.Equal(d("5000")) {
			t.Errorf("Expected state surcharge 5000, got %s", result.StateSurcharge)
		}
	})

	t.Run("no surcharge at exactly the threshold", func(t *testing.T) {
		result := ComputeTax(TaxInput{
			State:      model.StateTexas,
			W2Income:   d("100000"),
			NetGain:    d("0"),
			EwmaIncome: d("1000000"),
			Deduction:  standard,
		}, rules)

		if !result.FederalSurcharge.IsZero() {
			t.Errorf("Expected no surcharge at the threshold, got %s", result.FederalSurcharge)
		}
	})

	t.Run("capital losses reduce gross income", func(t *testing.T) {
		result := ComputeTax(TaxInput{
			State:      model.StateTexas,
			W2Income:   d("100000"),
			NetGain:    d("-20000"),
			EwmaIncome: d("100000"),
			Deduction:  standard,
		}, rules)

		if !result.FederalGrossIncome.Equal(d("80000")) {
			t.Errorf("Expected gross 80000, got %s", result.FederalGrossIncome)
		}
		if !result.TotalFederalTax.Equal(d("3500")) {
			t.Errorf("Expected federal tax 3500, got %s", result.TotalFederalTax)
		}
	})

	t.Run("taxable income never goes negative", func(t *testing.T) {
		result := ComputeTax(TaxInput{
			State:      model.StateCalifornia,
			W2Income:   d("5000"),
			NetGain:    d("0"),
			EwmaIncome: d("5000"),
			Deduction:  standard,
		}, rules)

		if !result.FederalTaxableIncome.IsZero() {
			t.Errorf("Expected taxable 0, got %s", result.FederalTaxableIncome)
		}
		if !result.TotalFederalTax.IsZero() || !result.TotalStateTax.IsZero() {
			t.Errorf("Expected zero taxes, got federal %s state %s",
				result.TotalFederalTax, result.TotalStateTax)
		}
	})

	t.Run("deduction type flows through to the result", func(t *testing.T) {
		itemized := Deduction{Amount: d("15000"), Type: model.DeductionItemized}
		result := ComputeTax(TaxInput{
			State:      model.StateTexas,
			W2Income:   d("100000"),
			NetGain:    d("0"),
			EwmaIncome: d("100000"),
			Deduction:  itemized,
		}, rules)

		if result.FederalDeductionType != model.DeductionItemized {
			t.Errorf("Expected ITEMIZED, got %s", result.FederalDeductionType)
		}
	})
}

// TestComputeTax_RoundingModes tests whole-unit rounding under both modes.
//
// WHY: A half-unit bracket result is the one place the two modes diverge;
// both must stay supported and selectable through configuration.
func TestComputeTax_RoundingModes(t *testing.T) {
	d := decimal.RequireFromString
	standard := Deduction{Amount: d("10000"), Type: model.DeductionStandard}

	// Taxable 50010 at 5% is 2500.50, a half-unit case.
	input := TaxInput{
		State:      model.StateTexas,
		W2Income:   d("60010"),
		NetGain:    d("0"),
		EwmaIncome: d("60010"),
		Deduction:  standard,
	}

	t.Run("half-up rounds the half away", func(t *testing.T) {
		rules := config.DefaultRules()
		rules.Rounding = config.RoundHalfUp

		result := ComputeTax(input, rules)
		if !result.TotalFederalTax.Equal(d("2501")) {
			t.Errorf("Expected 2501 under half-up, got %s", result.TotalFederalTax)
		}
	})

	t.Run("half-even rounds the half to even", func(t *testing.T) {
		rules := config.DefaultRules()
		rules.Rounding = config.RoundHalfEven

		result := ComputeTax(input, rules)
		if !result.TotalFederalTax.Equal(d("2500")) {
			t.Errorf("Expected 2500 under half-even, got %s", result.TotalFederalTax)
		}
	})
}
