// Package calculation implements the pure computation core of the tax
// engine: FIFO lot matching, income averaging, deduction selection and the
// federal/state tax computers. Nothing in this package touches the store;
// inputs arrive as model values and results are returned for the service
// layer to persist.
package calculation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/avalontax/tax-engine/internal/apperrors"
)

// Lot is an open buy with unsold quantity left. Lots belong to exactly one
// taxpayer's matching pass and are never shared.
type Lot struct {
	TransactionID int64
	UnitPrice     decimal.Decimal
	Remaining     decimal.Decimal
}

// LotTake records quantity taken from a single lot by one consume call.
type LotTake struct {
	Lot      *Lot
	Quantity decimal.Decimal
}

// LotLedger holds open buy lots per asset, ordered oldest first. Callers
// must open lots in (transaction date, transaction id) order; the ledger
// preserves insertion order and consumes from the front.
type LotLedger struct {
	lots map[string][]*Lot
}

// NewLotLedger creates an empty ledger.
func NewLotLedger() *LotLedger {
	return &LotLedger{lots: make(map[string][]*Lot)}
}

// OpenLot appends a lot for the asset with remaining quantity equal to the
// full buy quantity.
func (l *LotLedger) OpenLot(assetID string, transactionID int64, quantity, unitPrice decimal.Decimal) {
	l.lots[assetID] = append(l.lots[assetID], &Lot{
		TransactionID: transactionID,
		UnitPrice:     unitPrice,
		Remaining:     quantity,
	})
}

// Available returns the total remaining quantity across open lots for the asset.
func (l *LotLedger) Available(assetID string) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range l.lots[assetID] {
		total = total.Add(lot.Remaining)
	}
	return total
}

// Consume draws needed quantity from the asset's open lots, oldest first,
// decrementing each lot's remaining quantity and dropping exhausted lots.
// If the open lots cannot cover the full quantity it fails with
// ErrInsufficientLots before mutating anything; a short sale is reported,
// never silently clipped.
func (l *LotLedger) Consume(assetID string, needed decimal.Decimal) ([]LotTake, error) {
	if l.Available(assetID).LessThan(needed) {
		return nil, fmt.Errorf("asset %s: need %s, have %s: %w",
			assetID, needed, l.Available(assetID), apperrors.ErrInsufficientLots)
	}

	var takes []LotTake
	remaining := needed
	open := l.lots[assetID]

	for len(open) > 0 && remaining.IsPositive() {
		lot := open[0]
		take := decimal.Min(remaining, lot.Remaining)

		lot.Remaining = lot.Remaining.Sub(take)
		remaining = remaining.Sub(take)
		takes = append(takes, LotTake{Lot: lot, Quantity: take})

		if lot.Remaining.IsZero() {
			open = open[1:]
		}
	}
	l.lots[assetID] = open

	return takes, nil
}
