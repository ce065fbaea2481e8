package calculation

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avalontax/tax-engine/internal/apperrors"
	"github.com/avalontax/tax-engine/internal/model"
)

func day(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("Failed to parse date %q: %v", value, err)
	}
	return parsed
}

func buy(id int64, asset, date string, quantity, price string, t *testing.T) model.AssetTransaction {
	t.Helper()
	return model.AssetTransaction{
		ID:              id,
		AssetID:         asset,
		TransactionDate: day(t, date),
		TransactionType: model.TransactionBuy,
		Quantity:        decimal.RequireFromString(quantity),
		UnitPrice:       decimal.RequireFromString(price),
	}
}

func sell(id int64, asset, date string, quantity, price string, t *testing.T) model.AssetTransaction {
	t.Helper()
	tx := buy(id, asset, date, quantity, price, t)
	tx.TransactionType = model.TransactionSell
	return tx
}

// TestMatchRealizedGains tests FIFO matching over a taxpayer's transactions.
//
// WHY: Realized gains feed directly into taxable income; a wrong match
// order or a dropped partial lot changes every downstream tax figure.
func TestMatchRealizedGains(t *testing.T) {
	d := decimal.RequireFromString

	t.Run("matches sell against oldest buy first", func(t *testing.T) {
		txs := []model.AssetTransaction{
			buy(1, "AAPL", "2024-01-01", "5", "10", t),
			buy(2, "AAPL", "2024-02-01", "5", "20", t),
			sell(3, "AAPL", "2024-03-01", "7", "30", t),
		}

		result, err := MatchRealizedGains(txs)
		if err != nil {
			t.Fatalf("MatchRealizedGains() returned unexpected error: %v", err)
		}

		if len(result.Matches) != 2 {
			t.Fatalf("Expected 2 matches, got %d", len(result.Matches))
		}

		first := result.Matches[0]
		if first.BuyTransactionID != 1 || !first.Quantity.Equal(d("5")) || !first.Gain.Equal(d("100")) {
			t.Errorf("First match should take 5 from buy 1 with gain 100, got %+v", first)
		}

		second := result.Matches[1]
		if second.BuyTransactionID != 2 || !second.Quantity.Equal(d("2")) || !second.Gain.Equal(d("20")) {
			t.Errorf("Second match should take 2 from buy 2 with gain 20, got %+v", second)
		}

		if !result.NetGain.Equal(d("120")) {
			t.Errorf("Expected net gain 120, got %s", result.NetGain)
		}
		if !result.RemainingByBuy[1].Equal(d("0")) || !result.RemainingByBuy[2].Equal(d("3")) {
			t.Errorf("Expected remaining [0, 3], got %v", result.RemainingByBuy)
		}
	})

	t.Run("breaks same-date ties by transaction id", func(t *testing.T) {
		txs := []model.AssetTransaction{
			buy(2, "AAPL", "2024-01-01", "5", "20", t),
			buy(1, "AAPL", "2024-01-01", "5", "10", t),
			sell(3, "AAPL", "2024-02-01", "5", "30", t),
		}

		result, err := MatchRealizedGains(txs)
		if err != nil {
			t.Fatalf("MatchRealizedGains() returned unexpected error: %v", err)
		}

		if len(result.Matches) != 1 || result.Matches[0].BuyTransactionID != 1 {
			t.Fatalf("Sell should consume buy 1 first, got %+v", result.Matches)
		}
	})

	t.Run("conserves matched quantity", func(t *testing.T) {
		txs := []model.AssetTransaction{
			buy(1, "AAPL", "2024-01-01", "4", "10", t),
			buy(2, "AAPL", "2024-01-05", "4", "12", t),
			buy(3, "AAPL", "2024-01-10", "4", "14", t),
			sell(4, "AAPL", "2024-02-01", "9", "20", t),
		}

		result, err := MatchRealizedGains(txs)
		if err != nil {
			t.Fatalf("MatchRealizedGains() returned unexpected error: %v", err)
		}

		matched := decimal.Zero
		for _, m := range result.Matches {
			matched = matched.Add(m.Quantity)
		}
		if !matched.Equal(d("9")) {
			t.Errorf("Matched quantity %s should equal sold quantity 9", matched)
		}
	})

	t.Run("reports losses as negative gains", func(t *testing.T) {
		txs := []model.AssetTransaction{
			buy(1, "AAPL", "2024-01-01", "10", "50", t),
			sell(2, "AAPL", "2024-02-01", "10", "40", t),
		}

		result, err := MatchRealizedGains(txs)
		if err != nil {
			t.Fatalf("MatchRealizedGains() returned unexpected error: %v", err)
		}

		if !result.NetGain.Equal(d("-100")) {
			t.Errorf("Expected net gain -100, got %s", result.NetGain)
		}
	})

	t.Run("keeps assets independent", func(t *testing.T) {
		txs := []model.AssetTransaction{
			buy(1, "AAPL", "2024-01-01", "5", "10", t),
			buy(2, "MSFT", "2024-01-02", "5", "100", t),
			sell(3, "MSFT", "2024-02-01", "5", "110", t),
		}

		result, err := MatchRealizedGains(txs)
		if err != nil {
			t.Fatalf("MatchRealizedGains() returned unexpected error: %v", err)
		}

		if len(result.Matches) != 1 || result.Matches[0].BuyTransactionID != 2 {
			t.Fatalf("MSFT sell must only consume MSFT lots, got %+v", result.Matches)
		}
		if !result.RemainingByBuy[1].Equal(d("5")) {
			t.Errorf("AAPL lot should be untouched, remaining %s", result.RemainingByBuy[1])
		}
	})

	t.Run("fails when a sell exceeds open lots", func(t *testing.T) {
		txs := []model.AssetTransaction{
			buy(1, "AAPL", "2024-01-01", "5", "10", t),
			sell(2, "AAPL", "2024-02-01", "6", "20", t),
		}

		_, err := MatchRealizedGains(txs)
		if !errors.Is(err, apperrors.ErrInsufficientLots) {
			t.Fatalf("Expected ErrInsufficientLots, got %v", err)
		}
	})

	t.Run("fails on a sell before any buy", func(t *testing.T) {
		txs := []model.AssetTransaction{
			sell(1, "AAPL", "2024-01-01", "1", "20", t),
			buy(2, "AAPL", "2024-02-01", "5", "10", t),
		}

		_, err := MatchRealizedGains(txs)
		if !errors.Is(err, apperrors.ErrInsufficientLots) {
			t.Fatalf("Expected ErrInsufficientLots, got %v", err)
		}
	})

	t.Run("rejects invalid transactions", func(t *testing.T) {
		invalid := buy(1, "AAPL", "2024-01-01", "5", "10", t)
		invalid.Quantity = d("0")

		_, err := MatchRealizedGains([]model.AssetTransaction{invalid})
		if !errors.Is(err, apperrors.ErrInvalidRecord) {
			t.Fatalf("Expected ErrInvalidRecord, got %v", err)
		}
	})

	t.Run("handles no transactions", func(t *testing.T) {
		result, err := MatchRealizedGains(nil)
		if err != nil {
			t.Fatalf("MatchRealizedGains() returned unexpected error: %v", err)
		}
		if len(result.Matches) != 0 || !result.NetGain.IsZero() {
			t.Errorf("Expected empty result, got %+v", result)
		}
	})

	t.Run("handles fractional quantities", func(t *testing.T) {
		txs := []model.AssetTransaction{
			buy(1, "AAPL", "2024-01-01", "2.5", "10", t),
			sell(2, "AAPL", "2024-02-01", "1.25", "14", t),
		}

		result, err := MatchRealizedGains(txs)
		if err != nil {
			t.Fatalf("MatchRealizedGains() returned unexpected error: %v", err)
		}

		if !result.NetGain.Equal(d("5")) {
			t.Errorf("Expected net gain 5, got %s", result.NetGain)
		}
		if !result.RemainingByBuy[1].Equal(d("1.25")) {
			t.Errorf("Expected remaining 1.25, got %s", result.RemainingByBuy[1])
		}
	})
}
