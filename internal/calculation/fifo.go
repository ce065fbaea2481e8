package calculation

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/avalontax/tax-engine/internal/apperrors"
	"github.com/avalontax/tax-engine/internal/model"
)

// GainMatch pairs one sell with one buy lot it consumed.
type GainMatch struct {
	SellTransactionID int64
	BuyTransactionID  int64
	Quantity          decimal.Decimal
	Gain              decimal.Decimal
}

// MatchResult is the full output of one taxpayer's FIFO matching pass.
type MatchResult struct {
	Matches []GainMatch
	// NetGain is the sum of all match gains. It may be negative; no loss
	// limitation is applied.
	NetGain decimal.Decimal
	// RemainingByBuy maps each buy transaction id to its remaining quantity
	// after matching, so the store can be brought in line.
	RemainingByBuy map[int64]decimal.Decimal
}

// MatchRealizedGains runs FIFO matching over a taxpayer's asset
// transactions. Transactions are processed per asset in (date, id)
// ascending order; each buy opens a lot, each sell consumes the oldest open
// lots first and emits one match per consumed lot. Matching is independent
// per asset, and the ledger lives only for the duration of this call.
func MatchRealizedGains(transactions []model.AssetTransaction) (*MatchResult, error) {
	ordered := make([]model.AssetTransaction, len(transactions))
	copy(ordered, transactions)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].TransactionDate.Equal(ordered[j].TransactionDate) {
			return ordered[i].TransactionDate.Before(ordered[j].TransactionDate)
		}
		return ordered[i].ID < ordered[j].ID
	})

	ledger := NewLotLedger()
	result := &MatchResult{
		NetGain:        decimal.Zero,
		RemainingByBuy: make(map[int64]decimal.Decimal),
	}

	for i := range ordered {
		tx := &ordered[i]
		if err := validateTransaction(tx); err != nil {
			return nil, err
		}

		switch tx.TransactionType {
		case model.TransactionBuy:
			ledger.OpenLot(tx.AssetID, tx.ID, tx.Quantity, tx.UnitPrice)
			result.RemainingByBuy[tx.ID] = tx.Quantity

		case model.TransactionSell:
			takes, err := ledger.Consume(tx.AssetID, tx.Quantity)
			if err != nil {
				return nil, err
			}
			for _, take := range takes {
				gain := take.Quantity.Mul(tx.UnitPrice.Sub(take.Lot.UnitPrice))
				result.Matches = append(result.Matches, GainMatch{
					SellTransactionID: tx.ID,
					BuyTransactionID:  take.Lot.TransactionID,
					Quantity:          take.Quantity,
					Gain:              gain,
				})
				result.NetGain = result.NetGain.Add(gain)
				result.RemainingByBuy[take.Lot.TransactionID] = take.Lot.Remaining
			}
		}
	}

	return result, nil
}

func validateTransaction(tx *model.AssetTransaction) error {
	if tx.TransactionType != model.TransactionBuy && tx.TransactionType != model.TransactionSell {
		return fmt.Errorf("transaction %d: unknown type %q: %w", tx.ID, tx.TransactionType, apperrors.ErrInvalidRecord)
	}
	if !tx.Quantity.IsPositive() {
		return fmt.Errorf("transaction %d: quantity must be positive, got %s: %w", tx.ID, tx.Quantity, apperrors.ErrInvalidRecord)
	}
	if tx.UnitPrice.IsNegative() {
		return fmt.Errorf("transaction %d: unit price must not be negative, got %s: %w", tx.ID, tx.UnitPrice, apperrors.ErrInvalidRecord)
	}
	if tx.TransactionDate.IsZero() {
		return fmt.Errorf("transaction %d: missing transaction date: %w", tx.ID, apperrors.ErrInvalidRecord)
	}
	return nil
}
