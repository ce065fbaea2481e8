package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/avalontax/tax-engine/internal/model"
)

// RealizedGainRepository provides data access methods for the realized_gains table.
type RealizedGainRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewRealizedGainRepository creates a new RealizedGainRepository with the provided database connection.
func NewRealizedGainRepository(db *sql.DB) *RealizedGainRepository {
	return &RealizedGainRepository{db: db}
}

// WithTx returns a new RealizedGainRepository scoped to the provided transaction.
func (r *RealizedGainRepository) WithTx(tx *sql.Tx) *RealizedGainRepository {
	return &RealizedGainRepository{db: r.db, tx: tx}
}

func (r *RealizedGainRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// InsertGains appends realized gain rows.
func (r *RealizedGainRepository) InsertGains(ctx context.Context, gains []model.RealizedGain) error {
	query := `
		INSERT INTO realized_gains
			(id, taxpayer_id, sell_transaction_id, buy_transaction_id, matched_quantity, gain_amount)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	for _, g := range gains {
		_, err := r.getQuerier().ExecContext(ctx, query,
			g.ID,
			g.TaxpayerID,
			g.SellTransactionID,
			g.BuyTransactionID,
			g.MatchedQuantity.String(),
			g.GainAmount.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert realized gain: %w", err)
		}
	}
	return nil
}

// DeleteForTaxpayer removes all realized gain rows for a taxpayer, ahead of
// a reprocessing pass.
func (r *RealizedGainRepository) DeleteForTaxpayer(ctx context.Context, taxpayerID string) error {
	if _, err := r.getQuerier().ExecContext(ctx, `DELETE FROM realized_gains WHERE taxpayer_id = ?`, taxpayerID); err != nil {
		return fmt.Errorf("failed to delete realized gains: %w", err)
	}
	return nil
}

// GetGains retrieves the realized gain audit trail for a taxpayer, oldest
// match first.
func (r *RealizedGainRepository) GetGains(ctx context.Context, taxpayerID string) ([]model.RealizedGain, error) {
	query := `
		SELECT id, taxpayer_id, sell_transaction_id, buy_transaction_id,
		       matched_quantity, gain_amount, created_at
		FROM realized_gains
		WHERE taxpayer_id = ?
		ORDER BY sell_transaction_id ASC, buy_transaction_id ASC
	`
	rows, err := r.getQuerier().QueryContext(ctx, query, taxpayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query realized gains: %w", err)
	}
	defer rows.Close()

	gains := []model.RealizedGain{}
	for rows.Next() {
		var g model.RealizedGain
		var quantityStr, gainStr string
		var createdAtStr sql.NullString

		err := rows.Scan(
			&g.ID,
			&g.TaxpayerID,
			&g.SellTransactionID,
			&g.BuyTransactionID,
			&quantityStr,
			&gainStr,
			&createdAtStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan realized gain row: %w", err)
		}

		if g.MatchedQuantity, err = ParseDecimal(quantityStr); err != nil {
			return nil, err
		}
		if g.GainAmount, err = ParseDecimal(gainStr); err != nil {
			return nil, err
		}
		if createdAtStr.Valid {
			if g.CreatedAt, err = parseSQLiteTimestamp(createdAtStr.String); err != nil {
				return nil, err
			}
		}

		gains = append(gains, g)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating realized gains: %w", err)
	}
	return gains, nil
}
