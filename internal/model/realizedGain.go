package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RealizedGain links one sell transaction to one buy lot it consumed.
// A sell that spans multiple lots produces one row per lot, oldest lot
// first. Rows are immutable once written; reprocessing a taxpayer replaces
// the full set.
type RealizedGain struct {
	ID                string
	TaxpayerID        string
	SellTransactionID int64
	BuyTransactionID  int64
	MatchedQuantity   decimal.Decimal
	GainAmount        decimal.Decimal // matched_quantity x (sell price - buy price), may be negative
	CreatedAt         time.Time
}
