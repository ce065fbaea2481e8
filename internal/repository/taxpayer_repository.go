package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/avalontax/tax-engine/internal/apperrors"
	"github.com/avalontax/tax-engine/internal/model"
)

// TaxpayerRepository provides data access methods for the taxpayers table.
type TaxpayerRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewTaxpayerRepository creates a new TaxpayerRepository with the provided database connection.
func NewTaxpayerRepository(db *sql.DB) *TaxpayerRepository {
	return &TaxpayerRepository{db: db}
}

// WithTx returns a new TaxpayerRepository scoped to the provided transaction.
func (r *TaxpayerRepository) WithTx(tx *sql.Tx) *TaxpayerRepository {
	return &TaxpayerRepository{db: r.db, tx: tx}
}

func (r *TaxpayerRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const taxpayerColumns = `taxpayer_id, state, w2_income, num_children, ewma_income,
	processing_status, error_stage, error_message, seq, created_at`

// InsertTaxpayer inserts a new taxpayer with PENDING status. The seq value
// preserves ingestion order for the export stage.
func (r *TaxpayerRepository) InsertTaxpayer(ctx context.Context, t *model.Taxpayer) error {
	query := `
		INSERT INTO taxpayers (taxpayer_id, state, w2_income, num_children, processing_status, seq)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.getQuerier().ExecContext(ctx, query,
		t.TaxpayerID,
		t.State,
		t.W2Income.String(),
		t.NumChildren,
		model.StatusPending,
		t.Seq,
	)
	if err != nil {
		return fmt.Errorf("failed to insert taxpayer: %w", err)
	}
	return nil
}

// NextSeq returns the next ingestion sequence number.
func (r *TaxpayerRepository) NextSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := r.getQuerier().QueryRowContext(ctx, `SELECT MAX(seq) FROM taxpayers`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to query taxpayer sequence: %w", err)
	}
	return seq.Int64 + 1, nil
}

// GetTaxpayer retrieves a single taxpayer by ID.
// Returns ErrTaxpayerNotFound if no record with the given ID exists.
func (r *TaxpayerRepository) GetTaxpayer(ctx context.Context, taxpayerID string) (*model.Taxpayer, error) {
	if taxpayerID == "" {
		return nil, apperrors.ErrEmptyID
	}

	query := `SELECT ` + taxpayerColumns + ` FROM taxpayers WHERE taxpayer_id = ?`
	t, err := scanTaxpayer(r.getQuerier().QueryRowContext(ctx, query, taxpayerID))
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrTaxpayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query taxpayer: %w", err)
	}
	return t, nil
}

// ListTaxpayers retrieves all taxpayers in ingestion order.
func (r *TaxpayerRepository) ListTaxpayers(ctx context.Context) ([]model.Taxpayer, error) {
	query := `SELECT ` + taxpayerColumns + ` FROM taxpayers ORDER BY seq ASC`
	return r.listTaxpayers(ctx, query)
}

// ListTaxpayersByStatus retrieves all taxpayers with the given processing
// status, in ingestion order.
func (r *TaxpayerRepository) ListTaxpayersByStatus(ctx context.Context, status string) ([]model.Taxpayer, error) {
	query := `SELECT ` + taxpayerColumns + ` FROM taxpayers WHERE processing_status = ? ORDER BY seq ASC`
	return r.listTaxpayers(ctx, query, status)
}

func (r *TaxpayerRepository) listTaxpayers(ctx context.Context, query string, args ...any) ([]model.Taxpayer, error) {
	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query taxpayers: %w", err)
	}
	defer rows.Close()

	taxpayers := []model.Taxpayer{}
	for rows.Next() {
		t, err := scanTaxpayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan taxpayer row: %w", err)
		}
		taxpayers = append(taxpayers, *t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating taxpayers: %w", err)
	}
	return taxpayers, nil
}

// SetEwmaIncome stores the computed EWMA income for a taxpayer.
func (r *TaxpayerRepository) SetEwmaIncome(ctx context.Context, taxpayerID string, ewma decimal.Decimal) error {
	query := `UPDATE taxpayers SET ewma_income = ? WHERE taxpayer_id = ?`
	if _, err := r.getQuerier().ExecContext(ctx, query, ewma.String(), taxpayerID); err != nil {
		return fmt.Errorf("failed to set ewma income: %w", err)
	}
	return nil
}

// MarkCompleted transitions a taxpayer to COMPLETED and clears any prior
// error details. Must run in the same transaction as the derived writes so
// status and results flip together.
func (r *TaxpayerRepository) MarkCompleted(ctx context.Context, taxpayerID string) error {
	query := `
		UPDATE taxpayers
		SET processing_status = ?, error_stage = NULL, error_message = NULL
		WHERE taxpayer_id = ?
	`
	if _, err := r.getQuerier().ExecContext(ctx, query, model.StatusCompleted, taxpayerID); err != nil {
		return fmt.Errorf("failed to mark taxpayer completed: %w", err)
	}
	return nil
}

// MarkError transitions a taxpayer to ERROR, recording which stage failed and why.
func (r *TaxpayerRepository) MarkError(ctx context.Context, taxpayerID, stage, message string) error {
	query := `
		UPDATE taxpayers
		SET processing_status = ?, error_stage = ?, error_message = ?
		WHERE taxpayer_id = ?
	`
	if _, err := r.getQuerier().ExecContext(ctx, query, model.StatusError, stage, message, taxpayerID); err != nil {
		return fmt.Errorf("failed to mark taxpayer errored: %w", err)
	}
	return nil
}

// MarkPending resets a taxpayer to PENDING ahead of reprocessing.
func (r *TaxpayerRepository) MarkPending(ctx context.Context, taxpayerID string) error {
	query := `
		UPDATE taxpayers
		SET processing_status = ?, error_stage = NULL, error_message = NULL
		WHERE taxpayer_id = ?
	`
	if _, err := r.getQuerier().ExecContext(ctx, query, model.StatusPending, taxpayerID); err != nil {
		return fmt.Errorf("failed to mark taxpayer pending: %w", err)
	}
	return nil
}

// DeleteTaxpayer removes a taxpayer; the schema cascades to all child rows.
func (r *TaxpayerRepository) DeleteTaxpayer(ctx context.Context, taxpayerID string) error {
	result, err := r.getQuerier().ExecContext(ctx, `DELETE FROM taxpayers WHERE taxpayer_id = ?`, taxpayerID)
	if err != nil {
		return fmt.Errorf("failed to delete taxpayer: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrTaxpayerNotFound
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTaxpayer(row scanner) (*model.Taxpayer, error) {
	var t model.Taxpayer
	var w2Str string
	var ewmaStr, errorStage, errorMessage, createdAtStr sql.NullString

	err := row.Scan(
		&t.TaxpayerID,
		&t.State,
		&w2Str,
		&t.NumChildren,
		&ewmaStr,
		&t.ProcessingStatus,
		&errorStage,
		&errorMessage,
		&t.Seq,
		&createdAtStr,
	)
	if err != nil {
		return nil, err
	}

	if t.W2Income, err = ParseDecimal(w2Str); err != nil {
		return nil, err
	}
	if t.EwmaIncome, err = ParseNullDecimal(ewmaStr); err != nil {
		return nil, err
	}
	t.ErrorStage = errorStage.String
	t.ErrorMessage = errorMessage.String
	if createdAtStr.Valid {
		if t.CreatedAt, err = ParseTime(createdAtStr.String); err != nil {
			// created_at comes from SQLite's CURRENT_TIMESTAMP
			t.CreatedAt, err = parseSQLiteTimestamp(createdAtStr.String)
			if err != nil {
				return nil, err
			}
		}
	}
	return &t, nil
}
