package calculation

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/avalontax/tax-engine/internal/apperrors"
	"github.com/avalontax/tax-engine/internal/config"
	"github.com/avalontax/tax-engine/internal/model"
)

// TestStandardDeduction tests the base-plus-children schedule.
func TestStandardDeduction(t *testing.T) {
	d := decimal.RequireFromString
	schedule := config.StandardDeduction{
		Base:        d("10000"),
		PerChild:    d("1500"),
		MaxChildren: 10,
	}

	tests := []struct {
		name     string
		children int
		expected string
	}{
		{"no children", 0, "10000"},
		{"two children", 2, "13000"},
		{"at the cap", 10, "25000"},
		{"above the cap", 14, "25000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StandardDeduction(schedule, tt.children)
			if !got.Equal(d(tt.expected)) {
				t.Errorf("Expected %s for %d children, got %s", tt.expected, tt.children, got)
			}
		})
	}
}

// TestItemizedDeduction tests donation summing.
func TestItemizedDeduction(t *testing.T) {
	d := decimal.RequireFromString

	t.Run("sums all donations", func(t *testing.T) {
		donations := []model.CharitableDonation{
			{ID: 1, Amount: d("500.25")},
			{ID: 2, Amount: d("1200")},
			{ID: 3, Amount: d("99.75")},
		}

		total, err := ItemizedDeduction(donations)
		if err != nil {
			t.Fatalf("ItemizedDeduction() returned unexpected error: %v", err)
		}
		if !total.Equal(d("1800")) {
			t.Errorf("Expected 1800, got %s", total)
		}
	})

	t.Run("no donations sum to zero", func(t *testing.T) {
		total, err := ItemizedDeduction(nil)
		if err != nil {
			t.Fatalf("ItemizedDeduction() returned unexpected error: %v", err)
		}
		if !total.IsZero() {
			t.Errorf("Expected zero, got %s", total)
		}
	})

	t.Run("rejects negative donations", func(t *testing.T) {
		donations := []model.CharitableDonation{{ID: 1, Amount: d("-50")}}

		_, err := ItemizedDeduction(donations)
		if !errors.Is(err, apperrors.ErrInvalidRecord) {
			t.Fatalf("Expected ErrInvalidRecord, got %v", err)
		}
	})
}

// TestSelectDeduction tests the standard-versus-itemized choice.
//
// WHY: The tie rule matters for audit output; equal amounts must report
// STANDARD, not ITEMIZED.
func TestSelectDeduction(t *testing.T) {
	d := decimal.RequireFromString

	tests := []struct {
		name         string
		standard     string
		itemized     string
		expectedType string
		expectedAmt  string
	}{
		{"itemized wins when greater", "10000", "15000", model.DeductionItemized, "15000"},
		{"standard wins when greater", "13000", "8000", model.DeductionStandard, "13000"},
		{"tie selects standard", "10000", "10000", model.DeductionStandard, "10000"},
		{"zero itemized selects standard", "10000", "0", model.DeductionStandard, "10000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectDeduction(d(tt.standard), d(tt.itemized))
			if got.Type != tt.expectedType {
				t.Errorf("Expected type %s, got %s", tt.expectedType, got.Type)
			}
			if !got.Amount.Equal(d(tt.expectedAmt)) {
				t.Errorf("Expected amount %s, got %s", tt.expectedAmt, got.Amount)
			}
		})
	}
}
