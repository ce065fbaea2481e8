package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/avalontax/tax-engine/internal/model"
)

// DonationRepository provides data access methods for the charitable_donations table.
type DonationRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewDonationRepository creates a new DonationRepository with the provided database connection.
func NewDonationRepository(db *sql.DB) *DonationRepository {
	return &DonationRepository{db: db}
}

// WithTx returns a new DonationRepository scoped to the provided transaction.
func (r *DonationRepository) WithTx(tx *sql.Tx) *DonationRepository {
	return &DonationRepository{db: r.db, tx: tx}
}

func (r *DonationRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// InsertDonations inserts donation rows for a taxpayer.
func (r *DonationRepository) InsertDonations(ctx context.Context, donations []model.CharitableDonation) error {
	query := `INSERT INTO charitable_donations (taxpayer_id, amount) VALUES (?, ?)`
	for _, d := range donations {
		if _, err := r.getQuerier().ExecContext(ctx, query, d.TaxpayerID, d.Amount.String()); err != nil {
			return fmt.Errorf("failed to insert donation: %w", err)
		}
	}
	return nil
}

// GetDonations retrieves all donations for a taxpayer.
func (r *DonationRepository) GetDonations(ctx context.Context, taxpayerID string) ([]model.CharitableDonation, error) {
	query := `
		SELECT id, taxpayer_id, amount
		FROM charitable_donations
		WHERE taxpayer_id = ?
		ORDER BY id ASC
	`
	rows, err := r.getQuerier().QueryContext(ctx, query, taxpayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query donations: %w", err)
	}
	defer rows.Close()

	donations := []model.CharitableDonation{}
	for rows.Next() {
		var d model.CharitableDonation
		var amountStr string
		if err := rows.Scan(&d.ID, &d.TaxpayerID, &amountStr); err != nil {
			return nil, fmt.Errorf("failed to scan donation row: %w", err)
		}
		if d.Amount, err = ParseDecimal(amountStr); err != nil {
			return nil, err
		}
		donations = append(donations, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating donations: %w", err)
	}
	return donations, nil
}
