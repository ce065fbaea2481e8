package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/avalontax/tax-engine/internal/model"
)

// AssetTransactionRepository provides data access methods for the asset_transactions table.
type AssetTransactionRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewAssetTransactionRepository creates a new AssetTransactionRepository with the provided database connection.
func NewAssetTransactionRepository(db *sql.DB) *AssetTransactionRepository {
	return &AssetTransactionRepository{db: db}
}

// WithTx returns a new AssetTransactionRepository scoped to the provided transaction.
func (r *AssetTransactionRepository) WithTx(tx *sql.Tx) *AssetTransactionRepository {
	return &AssetTransactionRepository{db: r.db, tx: tx}
}

func (r *AssetTransactionRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// InsertTransaction inserts one asset transaction. Buys start with
// remaining_quantity equal to quantity; sells carry NULL.
func (r *AssetTransactionRepository) InsertTransaction(ctx context.Context, t *model.AssetTransaction) error {
	var remaining any
	if t.IsBuy() {
		remaining = t.Quantity.String()
	}

	query := `
		INSERT INTO asset_transactions
			(taxpayer_id, asset_id, transaction_date, transaction_type, quantity, unit_price, remaining_quantity)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.getQuerier().ExecContext(ctx, query,
		t.TaxpayerID,
		t.AssetID,
		t.TransactionDate.Format("2006-01-02"),
		t.TransactionType,
		t.Quantity.String(),
		t.UnitPrice.String(),
		remaining,
	)
	if err != nil {
		return fmt.Errorf("failed to insert asset transaction: %w", err)
	}
	if t.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read asset transaction id: %w", err)
	}
	return nil
}

// GetTransactions retrieves all of a taxpayer's asset transactions ordered
// by transaction date ascending, ties broken by id ascending. This is the
// exact order the FIFO matcher consumes, and it is what the
// (taxpayer_id, transaction_date) index serves.
func (r *AssetTransactionRepository) GetTransactions(ctx context.Context, taxpayerID string) ([]model.AssetTransaction, error) {
	query := `
		SELECT id, taxpayer_id, asset_id, transaction_date, transaction_type,
		       quantity, unit_price, remaining_quantity
		FROM asset_transactions
		WHERE taxpayer_id = ?
		ORDER BY transaction_date ASC, id ASC
	`
	rows, err := r.getQuerier().QueryContext(ctx, query, taxpayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query asset transactions: %w", err)
	}
	defer rows.Close()

	transactions := []model.AssetTransaction{}
	for rows.Next() {
		var t model.AssetTransaction
		var dateStr, quantityStr, priceStr string
		var remainingStr sql.NullString

		err := rows.Scan(
			&t.ID,
			&t.TaxpayerID,
			&t.AssetID,
			&dateStr,
			&t.TransactionType,
			&quantityStr,
			&priceStr,
			&remainingStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset transaction row: %w", err)
		}

		if t.TransactionDate, err = ParseTime(dateStr); err != nil {
			return nil, err
		}
		if t.Quantity, err = ParseDecimal(quantityStr); err != nil {
			return nil, err
		}
		if t.UnitPrice, err = ParseDecimal(priceStr); err != nil {
			return nil, err
		}
		if t.RemainingQuantity, err = ParseNullDecimal(remainingStr); err != nil {
			return nil, err
		}

		transactions = append(transactions, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating asset transactions: %w", err)
	}
	return transactions, nil
}

// UpdateRemainingQuantity sets a buy transaction's remaining quantity after
// FIFO matching. Only the matcher may call this; remaining_quantity is
// core-owned.
func (r *AssetTransactionRepository) UpdateRemainingQuantity(ctx context.Context, transactionID int64, remaining decimal.Decimal) error {
	query := `UPDATE asset_transactions SET remaining_quantity = ? WHERE id = ?`
	if _, err := r.getQuerier().ExecContext(ctx, query, remaining.String(), transactionID); err != nil {
		return fmt.Errorf("failed to update remaining quantity: %w", err)
	}
	return nil
}

// ResetRemainingQuantities restores remaining_quantity to the full buy
// quantity for every buy of a taxpayer. Used before a reprocessing pass so
// matching starts from a clean ledger.
func (r *AssetTransactionRepository) ResetRemainingQuantities(ctx context.Context, taxpayerID string) error {
	query := `
		UPDATE asset_transactions
		SET remaining_quantity = quantity
		WHERE taxpayer_id = ? AND transaction_type = ?
	`
	if _, err := r.getQuerier().ExecContext(ctx, query, taxpayerID, model.TransactionBuy); err != nil {
		return fmt.Errorf("failed to reset remaining quantities: %w", err)
	}
	return nil
}
