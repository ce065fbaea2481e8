package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Processing status values for a taxpayer record. A taxpayer starts PENDING,
// moves to COMPLETED when the full pipeline succeeds, or ERROR when any stage
// fails. Reprocessing resets derived data and recomputes from scratch.
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusError     = "ERROR"
)

// Supported states. Any other value is rejected at ingestion.
const (
	StateCalifornia = "California"
	StateTexas      = "Texas"
)

// Taxpayer is the aggregate root. All child rows (income history, donations,
// asset transactions, realized gains, tax computation) are owned by it and are
// removed when it is deleted.
type Taxpayer struct {
	TaxpayerID       string
	State            string
	W2Income         decimal.Decimal
	NumChildren      int
	EwmaIncome       *decimal.Decimal // nil until computed
	ProcessingStatus string
	ErrorStage       string // set when ProcessingStatus is ERROR
	ErrorMessage     string
	Seq              int64 // ingestion order, drives export ordering
	CreatedAt        time.Time
}

// IncomeHistoryEntry is one year of prior income. YearOffset runs -5..-1,
// with -1 being the most recent year. Exactly one entry per offset is
// required for the EWMA computation.
type IncomeHistoryEntry struct {
	ID         int64
	TaxpayerID string
	YearOffset int
	Amount     decimal.Decimal
}

// CharitableDonation is a single donation; the sum per taxpayer feeds the
// itemized deduction.
type CharitableDonation struct {
	ID         int64
	TaxpayerID string
	Amount     decimal.Decimal
}
