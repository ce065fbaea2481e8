package testutil

import (
	"database/sql"
	"sync/atomic"
	"testing"

	"github.com/avalontax/tax-engine/internal/model"
)

var seqCounter atomic.Int64

// TaxpayerBuilder provides a fluent interface for creating test taxpayers.
//
// Example usage:
//
//	// Simple creation with defaults
//	taxpayer := testutil.NewTaxpayer("tp-1").Build(t, db)
//
//	// Customized taxpayer
//	taxpayer := testutil.NewTaxpayer("tp-2").
//	    WithState(model.StateCalifornia).
//	    WithW2Income("250000").
//	    WithChildren(2).
//	    Build(t, db)
type TaxpayerBuilder struct {
	ID          string
	State       string
	W2Income    string
	NumChildren int
}

// NewTaxpayer creates a TaxpayerBuilder with sensible defaults.
func NewTaxpayer(id string) *TaxpayerBuilder {
	return &TaxpayerBuilder{
		ID:       id,
		State:    model.StateTexas,
		W2Income: "100000",
	}
}

// WithState sets a custom state.
func (b *TaxpayerBuilder) WithState(state string) *TaxpayerBuilder {
	b.State = state
	return b
}

// WithW2Income sets a custom W-2 income.
func (b *TaxpayerBuilder) WithW2Income(amount string) *TaxpayerBuilder {
	b.W2Income = amount
	return b
}

// WithChildren sets the number of children.
func (b *TaxpayerBuilder) WithChildren(n int) *TaxpayerBuilder {
	b.NumChildren = n
	return b
}

// Build inserts the taxpayer with PENDING status and returns its ID.
func (b *TaxpayerBuilder) Build(t *testing.T, db *sql.DB) string {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO taxpayers (taxpayer_id, state, w2_income, num_children, processing_status, seq)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.State, b.W2Income, b.NumChildren, model.StatusPending, seqCounter.Add(1),
	)
	if err != nil {
		t.Fatalf("Failed to insert test taxpayer: %v", err)
	}
	return b.ID
}

// AddIncomeHistory inserts one income history row per amount, oldest year
// first (the first amount lands on offset -5).
func AddIncomeHistory(t *testing.T, db *sql.DB, taxpayerID string, amounts ...string) {
	t.Helper()

	for i, amount := range amounts {
		_, err := db.Exec(`
			INSERT INTO income_history (taxpayer_id, year_offset, amount)
			VALUES (?, ?, ?)`,
			taxpayerID, i-len(amounts), amount,
		)
		if err != nil {
			t.Fatalf("Failed to insert income history: %v", err)
		}
	}
}

// AddDonation inserts one charitable donation.
func AddDonation(t *testing.T, db *sql.DB, taxpayerID, amount string) {
	t.Helper()

	if _, err := db.Exec(`
		INSERT INTO charitable_donations (taxpayer_id, amount) VALUES (?, ?)`,
		taxpayerID, amount,
	); err != nil {
		t.Fatalf("Failed to insert donation: %v", err)
	}
}

// AddBuy inserts a buy transaction with remaining_quantity initialized to
// the full quantity, and returns its id.
func AddBuy(t *testing.T, db *sql.DB, taxpayerID, assetID, date, quantity, price string) int64 {
	t.Helper()
	return addTransaction(t, db, taxpayerID, assetID, date, model.TransactionBuy, quantity, price)
}

// AddSell inserts a sell transaction and returns its id.
func AddSell(t *testing.T, db *sql.DB, taxpayerID, assetID, date, quantity, price string) int64 {
	t.Helper()
	return addTransaction(t, db, taxpayerID, assetID, date, model.TransactionSell, quantity, price)
}

func addTransaction(t *testing.T, db *sql.DB, taxpayerID, assetID, date, txType, quantity, price string) int64 {
	t.Helper()

	var remaining any
	if txType == model.TransactionBuy {
		remaining = quantity
	}
	result, err := db.Exec(`
		INSERT INTO asset_transactions
			(taxpayer_id, asset_id, transaction_date, transaction_type, quantity, unit_price, remaining_quantity)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		taxpayerID, assetID, date, txType, quantity, price, remaining,
	)
	if err != nil {
		t.Fatalf("Failed to insert asset transaction: %v", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		t.Fatalf("Failed to read transaction id: %v", err)
	}
	return id
}

// GetStatus reads a taxpayer's processing status, error stage and message.
func GetStatus(t *testing.T, db *sql.DB, taxpayerID string) (status, stage, message string) {
	t.Helper()

	var stageNull, messageNull sql.NullString
	err := db.QueryRow(`
		SELECT processing_status, error_stage, error_message
		FROM taxpayers WHERE taxpayer_id = ?`, taxpayerID,
	).Scan(&status, &stageNull, &messageNull)
	if err != nil {
		t.Fatalf("Failed to read taxpayer status: %v", err)
	}
	return status, stageNull.String, messageNull.String
}

// CountRows returns the number of rows in table for the taxpayer.
func CountRows(t *testing.T, db *sql.DB, table, taxpayerID string) int {
	t.Helper()

	var count int
	if err := db.QueryRow(
		`SELECT COUNT(*) FROM `+table+` WHERE taxpayer_id = ?`, taxpayerID,
	).Scan(&count); err != nil {
		t.Fatalf("Failed to count rows in %s: %v", table, err)
	}
	return count
}
