package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction type values for asset transactions.
const (
	TransactionBuy  = "BUY"
	TransactionSell = "SELL"
)

// AssetTransaction is a single buy or sell of an asset. For buys,
// RemainingQuantity starts at Quantity and is drawn down by the FIFO matcher
// as later sells consume the lot; it is nil for sells. The integer ID
// reflects submission order and breaks ties between transactions on the same
// date.
type AssetTransaction struct {
	ID                int64
	TaxpayerID        string
	AssetID           string
	TransactionDate   time.Time
	TransactionType   string
	Quantity          decimal.Decimal
	UnitPrice         decimal.Decimal
	RemainingQuantity *decimal.Decimal
}

// IsBuy reports whether the transaction opens a lot.
func (t *AssetTransaction) IsBuy() bool {
	return t.TransactionType == TransactionBuy
}
