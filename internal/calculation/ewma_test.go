package calculation

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/avalontax/tax-engine/internal/apperrors"
	"github.com/avalontax/tax-engine/internal/model"
)

func history(t *testing.T, amounts ...string) []model.IncomeHistoryEntry {
	t.Helper()
	entries := make([]model.IncomeHistoryEntry, len(amounts))
	for i, a := range amounts {
		entries[i] = model.IncomeHistoryEntry{
			YearOffset: i - len(amounts),
			Amount:     decimal.RequireFromString(a),
		}
	}
	return entries
}

// TestAverageIncome tests the five-year EWMA recurrence.
//
// WHY: The surcharge threshold comparison sits on this number; the
// recurrence must weight recent years and never default a missing year.
func TestAverageIncome(t *testing.T) {
	d := decimal.RequireFromString
	alpha := d("0.6")

	t.Run("computes the recurrence oldest to newest", func(t *testing.T) {
		// e(-5)=100, e(-4)=0.6*200+0.4*100=160, e(-3)=0.6*300+0.4*160=244,
		// e(-2)=0.6*400+0.4*244=337.6, e(-1)=0.6*500+0.4*337.6=435.04.
		ewma, err := AverageIncome(history(t, "100", "200", "300", "400", "500"), alpha)
		if err != nil {
			t.Fatalf("AverageIncome() returned unexpected error: %v", err)
		}
		if !ewma.Equal(d("435.04")) {
			t.Errorf("Expected EWMA 435.04, got %s", ewma)
		}
	})

	t.Run("constant history yields that constant", func(t *testing.T) {
		ewma, err := AverageIncome(history(t, "1000", "1000", "1000", "1000", "1000"), alpha)
		if err != nil {
			t.Fatalf("AverageIncome() returned unexpected error: %v", err)
		}
		if !ewma.Equal(d("1000")) {
			t.Errorf("Expected EWMA 1000, got %s", ewma)
		}
	})

	t.Run("is deterministic regardless of entry order", func(t *testing.T) {
		entries := history(t, "120000", "130000", "125000", "140000", "155000")
		shuffled := []model.IncomeHistoryEntry{entries[3], entries[0], entries[4], entries[2], entries[1]}

		a, err := AverageIncome(entries, alpha)
		if err != nil {
			t.Fatalf("AverageIncome() returned unexpected error: %v", err)
		}
		b, err := AverageIncome(shuffled, alpha)
		if err != nil {
			t.Fatalf("AverageIncome() returned unexpected error: %v", err)
		}
		if !a.Equal(b) {
			t.Errorf("Order changed the result: %s vs %s", a, b)
		}
	})

	t.Run("rounds to two fractional digits", func(t *testing.T) {
		ewma, err := AverageIncome(history(t, "100.555", "100.555", "100.555", "100.555", "100.555"), alpha)
		if err != nil {
			t.Fatalf("AverageIncome() returned unexpected error: %v", err)
		}
		if ewma.Exponent() < -2 {
			t.Errorf("Expected at most two fractional digits, got %s", ewma)
		}
	})

	t.Run("fails on a missing offset", func(t *testing.T) {
		entries := history(t, "100", "200", "300", "400", "500")
		_, err := AverageIncome(entries[:4], alpha)
		if !errors.Is(err, apperrors.ErrIncompleteHistory) {
			t.Fatalf("Expected ErrIncompleteHistory, got %v", err)
		}
	})

	t.Run("fails on a duplicate offset", func(t *testing.T) {
		entries := history(t, "100", "200", "300", "400", "500")
		entries[1].YearOffset = -5

		_, err := AverageIncome(entries, alpha)
		if !errors.Is(err, apperrors.ErrIncompleteHistory) {
			t.Fatalf("Expected ErrIncompleteHistory, got %v", err)
		}
	})

	t.Run("fails on empty history", func(t *testing.T) {
		_, err := AverageIncome(nil, alpha)
		if !errors.Is(err, apperrors.ErrIncompleteHistory) {
			t.Fatalf("Expected ErrIncompleteHistory, got %v", err)
		}
	})

	t.Run("fails on a negative amount", func(t *testing.T) {
		entries := history(t, "100", "-200", "300", "400", "500")
		_, err := AverageIncome(entries, alpha)
		if !errors.Is(err, apperrors.ErrInvalidRecord) {
			t.Fatalf("Expected ErrInvalidRecord, got %v", err)
		}
	})
}
