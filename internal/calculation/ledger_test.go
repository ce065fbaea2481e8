package calculation

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/avalontax/tax-engine/internal/apperrors"
)

// TestLotLedger_Consume tests oldest-first lot consumption.
//
// WHY: FIFO correctness depends entirely on the ledger draining lots in
// open order and never handing out more than a lot holds.
func TestLotLedger_Consume(t *testing.T) {
	d := decimal.RequireFromString

	t.Run("consumes oldest lot first", func(t *testing.T) {
		ledger := NewLotLedger()
		ledger.OpenLot("AAPL", 1, d("5"), d("10"))
		ledger.OpenLot("AAPL", 2, d("5"), d("20"))

		takes, err := ledger.Consume("AAPL", d("7"))
		if err != nil {
			t.Fatalf("Consume() returned unexpected error: %v", err)
		}

		if len(takes) != 2 {
			t.Fatalf("Expected 2 takes, got %d", len(takes))
		}
		if takes[0].Lot.TransactionID != 1 || !takes[0].Quantity.Equal(d("5")) {
			t.Errorf("First take should drain lot 1 fully, got lot %d qty %s",
				takes[0].Lot.TransactionID, takes[0].Quantity)
		}
		if takes[1].Lot.TransactionID != 2 || !takes[1].Quantity.Equal(d("2")) {
			t.Errorf("Second take should take 2 from lot 2, got lot %d qty %s",
				takes[1].Lot.TransactionID, takes[1].Quantity)
		}
		if !ledger.Available("AAPL").Equal(d("3")) {
			t.Errorf("Expected 3 remaining, got %s", ledger.Available("AAPL"))
		}
	})

	t.Run("drops exhausted lots", func(t *testing.T) {
		ledger := NewLotLedger()
		ledger.OpenLot("AAPL", 1, d("5"), d("10"))
		ledger.OpenLot("AAPL", 2, d("5"), d("20"))

		if _, err := ledger.Consume("AAPL", d("5")); err != nil {
			t.Fatalf("Consume() returned unexpected error: %v", err)
		}

		takes, err := ledger.Consume("AAPL", d("5"))
		if err != nil {
			t.Fatalf("Consume() returned unexpected error: %v", err)
		}
		if len(takes) != 1 || takes[0].Lot.TransactionID != 2 {
			t.Errorf("Expected a single take from lot 2, got %+v", takes)
		}
	})

	t.Run("fails with InsufficientLots when lots cannot cover", func(t *testing.T) {
		ledger := NewLotLedger()
		ledger.OpenLot("AAPL", 1, d("5"), d("10"))

		_, err := ledger.Consume("AAPL", d("6"))
		if !errors.Is(err, apperrors.ErrInsufficientLots) {
			t.Fatalf("Expected ErrInsufficientLots, got %v", err)
		}

		// Failure must not mutate the ledger.
		if !ledger.Available("AAPL").Equal(d("5")) {
			t.Errorf("Failed consume mutated the ledger: %s remaining", ledger.Available("AAPL"))
		}
	})

	t.Run("fails for unknown asset", func(t *testing.T) {
		ledger := NewLotLedger()

		_, err := ledger.Consume("MSFT", d("1"))
		if !errors.Is(err, apperrors.ErrInsufficientLots) {
			t.Fatalf("Expected ErrInsufficientLots, got %v", err)
		}
	})

	t.Run("assets are independent", func(t *testing.T) {
		ledger := NewLotLedger()
		ledger.OpenLot("AAPL", 1, d("5"), d("10"))
		ledger.OpenLot("MSFT", 2, d("3"), d("30"))

		if _, err := ledger.Consume("AAPL", d("5")); err != nil {
			t.Fatalf("Consume() returned unexpected error: %v", err)
		}
		if !ledger.Available("MSFT").Equal(d("3")) {
			t.Errorf("Consuming AAPL changed MSFT availability: %s", ledger.Available("MSFT"))
		}
	})
}
