package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/avalontax/tax-engine/internal/apperrors"
	"github.com/avalontax/tax-engine/internal/model"
)

// TaxComputationRepository provides data access methods for the tax_computations table.
type TaxComputationRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewTaxComputationRepository creates a new TaxComputationRepository with the provided database connection.
func NewTaxComputationRepository(db *sql.DB) *TaxComputationRepository {
	return &TaxComputationRepository{db: db}
}

// WithTx returns a new TaxComputationRepository scoped to the provided transaction.
func (r *TaxComputationRepository) WithTx(tx *sql.Tx) *TaxComputationRepository {
	return &TaxComputationRepository{db: r.db, tx: tx}
}

func (r *TaxComputationRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// UpsertComputation writes the single tax computation row for a taxpayer,
// replacing any prior pass's values wholesale so no stale fields survive.
func (r *TaxComputationRepository) UpsertComputation(ctx context.Context, c *model.TaxComputation) error {
	query := `
		INSERT INTO tax_computations
			(taxpayer_id, federal_gross_income, federal_taxable_income, federal_deduction_type,
			 federal_surcharge, total_federal_tax, state_surcharge, total_state_tax, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (taxpayer_id) DO UPDATE SET
			federal_gross_income = excluded.federal_gross_income,
			federal_taxable_income = excluded.federal_taxable_income,
			federal_deduction_type = excluded.federal_deduction_type,
			federal_surcharge = excluded.federal_surcharge,
			total_federal_tax = excluded.total_federal_tax,
			state_surcharge = excluded.state_surcharge,
			total_state_tax = excluded.total_state_tax,
			computed_at = CURRENT_TIMESTAMP
	`
	_, err := r.getQuerier().ExecContext(ctx, query,
		c.TaxpayerID,
		c.FederalGrossIncome.String(),
		c.FederalTaxableIncome.String(),
		c.FederalDeductionType,
		c.FederalSurcharge.String(),
		c.TotalFederalTax.String(),
		c.StateSurcharge.String(),
		c.TotalStateTax.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert tax computation: %w", err)
	}
	return nil
}

// DeleteForTaxpayer removes a taxpayer's computation row. Used when a
// reprocessing pass fails so no stale result survives an ERROR status.
func (r *TaxComputationRepository) DeleteForTaxpayer(ctx context.Context, taxpayerID string) error {
	if _, err := r.getQuerier().ExecContext(ctx, `DELETE FROM tax_computations WHERE taxpayer_id = ?`, taxpayerID); err != nil {
		return fmt.Errorf("failed to delete tax computation: %w", err)
	}
	return nil
}

// ExportRow is the final per-taxpayer liability pair used by the export
// stage. Taxes are whole currency units.
type ExportRow struct {
	TaxpayerID string
	FederalTax int64
	StateTax   int64
}

// ListExportRows returns the final liabilities for all COMPLETED taxpayers,
// ordered by ingestion sequence so output order matches input order.
func (r *TaxComputationRepository) ListExportRows(ctx context.Context) ([]ExportRow, error) {
	query := `
		SELECT t.taxpayer_id, c.total_federal_tax, c.total_state_tax
		FROM taxpayers t
		JOIN tax_computations c ON t.taxpayer_id = c.taxpayer_id
		WHERE t.processing_status = 'COMPLETED'
		ORDER BY t.seq ASC
	`
	rows, err := r.getQuerier().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query export rows: %w", err)
	}
	defer rows.Close()

	exports := []ExportRow{}
	for rows.Next() {
		var row ExportRow
		var fedStr, stateStr string
		if err := rows.Scan(&row.TaxpayerID, &fedStr, &stateStr); err != nil {
			return nil, fmt.Errorf("failed to scan export row: %w", err)
		}
		fed, err := ParseDecimal(fedStr)
		if err != nil {
			return nil, err
		}
		state, err := ParseDecimal(stateStr)
		if err != nil {
			return nil, err
		}
		row.FederalTax = fed.IntPart()
		row.StateTax = state.IntPart()
		exports = append(exports, row)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating export rows: %w", err)
	}
	return exports, nil
}

// GetComputation retrieves the tax computation for a taxpayer.
// Returns ErrComputationNotFound if the taxpayer has not completed processing.
func (r *TaxComputationRepository) GetComputation(ctx context.Context, taxpayerID string) (*model.TaxComputation, error) {
	query := `
		SELECT taxpayer_id, federal_gross_income, federal_taxable_income, federal_deduction_type,
		       federal_surcharge, total_federal_tax, state_surcharge, total_state_tax, computed_at
		FROM tax_computations
		WHERE taxpayer_id = ?
	`

	var c model.TaxComputation
	var grossStr, taxableStr, fedSurStr, fedTotalStr, stateSurStr, stateTotalStr string
	var computedAtStr sql.NullString

	err := r.getQuerier().QueryRowContext(ctx, query, taxpayerID).Scan(
		&c.TaxpayerID,
		&grossStr,
		&taxableStr,
		&c.FederalDeductionType,
		&fedSurStr,
		&fedTotalStr,
		&stateSurStr,
		&stateTotalStr,
		&computedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrComputationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tax computation: %w", err)
	}

	if c.FederalGrossIncome, err = ParseDecimal(grossStr); err != nil {
		return nil, err
	}
	if c.FederalTaxableIncome, err = ParseDecimal(taxableStr); err != nil {
		return nil, err
	}
	if c.FederalSurcharge, err = ParseDecimal(fedSurStr); err != nil {
		return nil, err
	}
	if c.TotalFederalTax, err = ParseDecimal(fedTotalStr); err != nil {
		return nil, err
	}
	if c.StateSurcharge, err = ParseDecimal(stateSurStr); err != nil {
		return nil, err
	}
	if c.TotalStateTax, err = ParseDecimal(stateTotalStr); err != nil {
		return nil, err
	}
	if computedAtStr.Valid {
		if c.ComputedAt, err = parseSQLiteTimestamp(computedAtStr.String); err != nil {
			return nil, err
		}
	}

	return &c, nil
}
