package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/avalontax/tax-engine/internal/apperrors"
	"github.com/avalontax/tax-engine/internal/calculation"
	"github.com/avalontax/tax-engine/internal/config"
	"github.com/avalontax/tax-engine/internal/model"
	"github.com/avalontax/tax-engine/internal/repository"
)

// ProcessorService runs the per-taxpayer computation pipeline: FIFO
// realized gains, income EWMA, deduction selection and the tax computers,
// then persists the results. Taxpayers are independent of each other, so
// batches run through a bounded worker pool.
type ProcessorService struct {
	db              *sql.DB
	taxpayerRepo    *repository.TaxpayerRepository
	transactionRepo *repository.AssetTransactionRepository
	incomeRepo      *repository.IncomeHistoryRepository
	donationRepo    *repository.DonationRepository
	gainRepo        *repository.RealizedGainRepository
	computationRepo *repository.TaxComputationRepository
	rules           config.Rules
	workers         int
}

// NewProcessorService creates a new ProcessorService with the provided repository dependencies.
func NewProcessorService(
	db *sql.DB,
	taxpayerRepo *repository.TaxpayerRepository,
	transactionRepo *repository.AssetTransactionRepository,
	incomeRepo *repository.IncomeHistoryRepository,
	donationRepo *repository.DonationRepository,
	gainRepo *repository.RealizedGainRepository,
	computationRepo *repository.TaxComputationRepository,
	rules config.Rules,
	workers int,
) *ProcessorService {
	if workers < 1 {
		workers = 1
	}
	return &ProcessorService{
		db:              db,
		taxpayerRepo:    taxpayerRepo,
		transactionRepo: transactionRepo,
		incomeRepo:      incomeRepo,
		donationRepo:    donationRepo,
		gainRepo:        gainRepo,
		computationRepo: computationRepo,
		rules:           rules,
		workers:         workers,
	}
}

// BatchResult summarizes one batch run.
type BatchResult struct {
	Completed int
	Failed    int
}

// ProcessPending runs the pipeline for every PENDING taxpayer.
func (s *ProcessorService) ProcessPending(ctx context.Context) (BatchResult, error) {
	pending, err := s.taxpayerRepo.ListTaxpayersByStatus(ctx, model.StatusPending)
	if err != nil {
		return BatchResult{}, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}

	ids := make([]string, len(pending))
	for i, t := range pending {
		ids[i] = t.TaxpayerID
	}
	return s.ProcessBatch(ctx, ids)
}

// ProcessBatch runs the pipeline for the given taxpayers concurrently,
// bounded by the configured worker count. One taxpayer's failure never
// affects another's run; data errors are recorded on the taxpayer row and
// counted, not propagated. Cancelling the context stops dispatching new
// taxpayers.
func (s *ProcessorService) ProcessBatch(ctx context.Context, taxpayerIDs []string) (BatchResult, error) {
	var g errgroup.Group
	g.SetLimit(s.workers)

	results := make(chan error, len(taxpayerIDs))
	for _, id := range taxpayerIDs {
		if ctx.Err() != nil {
			break
		}
		id := id
		g.Go(func() error {
			err := s.ProcessTaxpayer(ctx, id)
			if err != nil {
				log.Printf("taxpayer %s failed: %v", id, err)
			}
			results <- err
			return nil
		})
	}

	// Workers only report through the channel.
	_ = g.Wait()
	close(results)

	var result BatchResult
	for err := range results {
		if err != nil {
			result.Failed++
		} else {
			result.Completed++
		}
	}
	return result, ctx.Err()
}

// ProcessTaxpayer runs the full pipeline for one taxpayer. Completed and
// errored taxpayers may be reprocessed: every derived row is replaced, so
// no partial state carries over between passes. Derived writes and the
// COMPLETED status flip commit as one transaction.
func (s *ProcessorService) ProcessTaxpayer(ctx context.Context, taxpayerID string) error {
	taxpayer, err := s.taxpayerRepo.GetTaxpayer(ctx, taxpayerID)
	if err != nil {
		return err
	}

	// Stage 1: FIFO capital gains.
	transactions, err := s.transactionRepo.GetTransactions(ctx, taxpayerID)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	match, err := calculation.MatchRealizedGains(transactions)
	if err != nil {
		return s.failTaxpayer(ctx, taxpayerID, apperrors.StageCapitalGains, err)
	}

	// Stage 2: income EWMA.
	history, err := s.incomeRepo.GetEntries(ctx, taxpayerID)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	ewma, err := calculation.AverageIncome(history, s.rules.EwmaAlpha)
	if err != nil {
		return s.failTaxpayer(ctx, taxpayerID, apperrors.StageIncomeEwma, err)
	}

	// Stage 3: deduction selection.
	donations, err := s.donationRepo.GetDonations(ctx, taxpayerID)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	itemized, err := calculation.ItemizedDeduction(donations)
	if err != nil {
		return s.failTaxpayer(ctx, taxpayerID, apperrors.StageDeduction, err)
	}
	standard := calculation.StandardDeduction(s.rules.StandardDeduction, taxpayer.NumChildren)
	deduction := calculation.SelectDeduction(standard, itemized)

	// Stage 4: federal and state tax.
	if taxpayer.W2Income.IsNegative() {
		return s.failTaxpayer(ctx, taxpayerID, apperrors.StageTax,
			fmt.Errorf("w2 income must not be negative: %w", apperrors.ErrInvalidRecord))
	}
	taxResult := calculation.ComputeTax(calculation.TaxInput{
		State:      taxpayer.State,
		W2Income:   taxpayer.W2Income,
		NetGain:    match.NetGain,
		EwmaIncome: ewma,
		Deduction:  deduction,
	}, s.rules)

	// Persist everything, including the status flip, atomically.
	if err := s.commitResults(ctx, taxpayer, match, ewma, taxResult); err != nil {
		return s.failTaxpayer(ctx, taxpayerID, apperrors.StagePersist, err)
	}

	log.Printf("taxpayer %s: federal=%s state=%s (%s deduction)",
		taxpayerID, taxResult.TotalFederalTax, taxResult.TotalStateTax, deduction.Type)
	return nil
}

// commitResults replaces all derived rows for the taxpayer and marks it
// COMPLETED in one transaction, so a crash or cancellation mid-write leaves
// the previous state intact.
func (s *ProcessorService) commitResults(
	ctx context.Context,
	taxpayer *model.Taxpayer,
	match *calculation.MatchResult,
	ewma decimal.Decimal,
	taxResult calculation.TaxResult,
) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	taxpayerID := taxpayer.TaxpayerID

	if err := s.gainRepo.WithTx(tx).DeleteForTaxpayer(ctx, taxpayerID); err != nil {
		return err
	}
	if err := s.transactionRepo.WithTx(tx).ResetRemainingQuantities(ctx, taxpayerID); err != nil {
		return err
	}

	gains := make([]model.RealizedGain, 0, len(match.Matches))
	for _, m := range match.Matches {
		gains = append(gains, model.RealizedGain{
			ID:                uuid.New().String(),
			TaxpayerID:        taxpayerID,
			SellTransactionID: m.SellTransactionID,
			BuyTransactionID:  m.BuyTransactionID,
			MatchedQuantity:   m.Quantity,
			GainAmount:        m.Gain,
		})
	}
	if err := s.gainRepo.WithTx(tx).InsertGains(ctx, gains); err != nil {
		return err
	}

	transactionRepo := s.transactionRepo.WithTx(tx)
	for buyID, remaining := range match.RemainingByBuy {
		if err := transactionRepo.UpdateRemainingQuantity(ctx, buyID, remaining); err != nil {
			return err
		}
	}

	taxpayerRepo := s.taxpayerRepo.WithTx(tx)
	if err := taxpayerRepo.SetEwmaIncome(ctx, taxpayerID, ewma); err != nil {
		return err
	}

	computation := &model.TaxComputation{
		TaxpayerID:           taxpayerID,
		FederalGrossIncome:   taxResult.FederalGrossIncome,
		FederalTaxableIncome: taxResult.FederalTaxableIncome,
		FederalDeductionType: taxResult.FederalDeductionType,
		FederalSurcharge:     taxResult.FederalSurcharge,
		TotalFederalTax:      taxResult.TotalFederalTax,
		StateSurcharge:       taxResult.StateSurcharge,
		TotalStateTax:        taxResult.TotalStateTax,
	}
	if err := s.computationRepo.WithTx(tx).UpsertComputation(ctx, computation); err != nil {
		return err
	}

	if err := taxpayerRepo.MarkCompleted(ctx, taxpayerID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	return nil
}

// failTaxpayer records a stage failure: derived rows from any earlier pass
// are removed so an ERROR taxpayer carries no results, and the status plus
// (stage, cause) are written. The original stage error is returned wrapped.
func (s *ProcessorService) failTaxpayer(ctx context.Context, taxpayerID, stage string, cause error) error {
	stageErr := apperrors.NewStageError(taxpayerID, stage, cause)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Join(stageErr, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err))
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := s.gainRepo.WithTx(tx).DeleteForTaxpayer(ctx, taxpayerID); err != nil {
		return errors.Join(stageErr, err)
	}
	if err := s.computationRepo.WithTx(tx).DeleteForTaxpayer(ctx, taxpayerID); err != nil {
		return errors.Join(stageErr, err)
	}
	if err := s.transactionRepo.WithTx(tx).ResetRemainingQuantities(ctx, taxpayerID); err != nil {
		return errors.Join(stageErr, err)
	}
	if err := s.taxpayerRepo.WithTx(tx).MarkError(ctx, taxpayerID, stage, cause.Error()); err != nil {
		return errors.Join(stageErr, err)
	}
	if err := tx.Commit(); err != nil {
		return errors.Join(stageErr, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err))
	}

	return stageErr
}
