package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/avalontax/tax-engine/internal/model"
)

// IncomeHistoryRepository provides data access methods for the income_history table.
type IncomeHistoryRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewIncomeHistoryRepository creates a new IncomeHistoryRepository with the provided database connection.
func NewIncomeHistoryRepository(db *sql.DB) *IncomeHistoryRepository {
	return &IncomeHistoryRepository{db: db}
}

// WithTx returns a new IncomeHistoryRepository scoped to the provided transaction.
func (r *IncomeHistoryRepository) WithTx(tx *sql.Tx) *IncomeHistoryRepository {
	return &IncomeHistoryRepository{db: r.db, tx: tx}
}

func (r *IncomeHistoryRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// InsertEntries inserts income history entries for a taxpayer.
func (r *IncomeHistoryRepository) InsertEntries(ctx context.Context, entries []model.IncomeHistoryEntry) error {
	query := `INSERT INTO income_history (taxpayer_id, year_offset, amount) VALUES (?, ?, ?)`
	for _, e := range entries {
		if _, err := r.getQuerier().ExecContext(ctx, query, e.TaxpayerID, e.YearOffset, e.Amount.String()); err != nil {
			return fmt.Errorf("failed to insert income history entry: %w", err)
		}
	}
	return nil
}

// GetEntries retrieves a taxpayer's income history ordered by year offset
// ascending (oldest year first).
func (r *IncomeHistoryRepository) GetEntries(ctx context.Context, taxpayerID string) ([]model.IncomeHistoryEntry, error) {
	query := `
		SELECT id, taxpayer_id, year_offset, amount
		FROM income_history
		WHERE taxpayer_id = ?
		ORDER BY year_offset ASC
	`
	rows, err := r.getQuerier().QueryContext(ctx, query, taxpayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query income history: %w", err)
	}
	defer rows.Close()

	entries := []model.IncomeHistoryEntry{}
	for rows.Next() {
		var e model.IncomeHistoryEntry
		var amountStr string
		if err := rows.Scan(&e.ID, &e.TaxpayerID, &e.YearOffset, &amountStr); err != nil {
			return nil, fmt.Errorf("failed to scan income history row: %w", err)
		}
		if e.Amount, err = ParseDecimal(amountStr); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating income history: %w", err)
	}
	return entries, nil
}
