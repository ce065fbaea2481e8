package apperrors

import (
	"errors"
	"fmt"
)

// Data errors represent inconsistencies in a taxpayer's input records.
// These errors mark the taxpayer as ERROR and are not retried.
var (
	// ErrInsufficientLots indicates that a sell transaction exceeds the total
	// remaining quantity across open buy lots for its asset.
	ErrInsufficientLots = errors.New("insufficient open lots for sale")

	// ErrIncompleteHistory indicates that fewer than five distinct year
	// offsets are present in a taxpayer's income history.
	ErrIncompleteHistory = errors.New("incomplete income history")

	// ErrInvalidRecord indicates that a record violates a field invariant
	// (negative amount or price, non-positive quantity, malformed date).
	ErrInvalidRecord = errors.New("invalid record")
)

// Domain entity errors represent missing entities in the store.
var (
	// ErrTaxpayerNotFound indicates that a taxpayer with the given ID does not exist.
	ErrTaxpayerNotFound = errors.New("taxpayer not found")

	// ErrComputationNotFound indicates that no tax computation exists for the taxpayer.
	ErrComputationNotFound = errors.New("tax computation not found")
)

// Store errors represent failures of the backing store itself. These are
// transient and eligible for retry by the orchestration layer; the core
// itself does not retry.
var (
	// ErrStoreUnavailable indicates that the backing store could not be
	// reached or a statement failed for reasons unrelated to the data.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Business logic errors represent validation failures on caller input.
var (
	// ErrInvalidState indicates an unsupported state value on a taxpayer record.
	ErrInvalidState = errors.New("unsupported state")

	// ErrEmptyID indicates that a required ID parameter is empty or missing.
	ErrEmptyID = errors.New("ID cannot be empty")

	// ErrDuplicateEntry indicates that an entity with the same unique constraint already exists.
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// Pipeline stage names recorded on a taxpayer when processing fails.
const (
	StageCapitalGains = "capital_gains"
	StageIncomeEwma   = "income_ewma"
	StageDeduction    = "deduction"
	StageTax          = "tax"
	StagePersist      = "persist"
)

// StageError identifies which pipeline stage failed for which taxpayer.
// It wraps the underlying cause so callers can classify it with errors.Is.
type StageError struct {
	TaxpayerID string
	Stage      string
	Err        error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("taxpayer %s: stage %s: %v", e.TaxpayerID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with taxpayer and stage context.
func NewStageError(taxpayerID, stage string, err error) *StageError {
	return &StageError{TaxpayerID: taxpayerID, Stage: stage, Err: err}
}
