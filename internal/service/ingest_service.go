package service

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/shopspring/decimal"

	"github.com/avalontax/tax-engine/internal/apperrors"
	"github.com/avalontax/tax-engine/internal/model"
	"github.com/avalontax/tax-engine/internal/repository"
	"github.com/avalontax/tax-engine/internal/validation"
)

// IngestService hydrates the store from NDJSON household records. Each
// input line is one taxpayer with five years of income history, optional
// donations and optional asset purchases/sales. The whole file commits as
// one transaction; invalid records roll it back, while lines that are not
// JSON at all are skipped with a logged error.
type IngestService struct {
	db              *sql.DB
	taxpayerRepo    *repository.TaxpayerRepository
	transactionRepo *repository.AssetTransactionRepository
	incomeRepo      *repository.IncomeHistoryRepository
	donationRepo    *repository.DonationRepository
}

// NewIngestService creates a new IngestService with the provided repository dependencies.
func NewIngestService(
	db *sql.DB,
	taxpayerRepo *repository.TaxpayerRepository,
	transactionRepo *repository.AssetTransactionRepository,
	incomeRepo *repository.IncomeHistoryRepository,
	donationRepo *repository.DonationRepository,
) *IngestService {
	return &IngestService{
		db:              db,
		taxpayerRepo:    taxpayerRepo,
		transactionRepo: transactionRepo,
		incomeRepo:      incomeRepo,
		donationRepo:    donationRepo,
	}
}

// householdRecord is the NDJSON input shape. Monetary fields come in as
// json.Number so they reach decimal without a float round trip.
type householdRecord struct {
	TaxpayerID           string        `json:"taxpayer_id"`
	State                string        `json:"state"`
	W2Income             json.Number   `json:"w2_income"`
	NumChildren          int           `json:"num_children"`
	PriorFiveYearsIncome []json.Number `json:"prior_five_years_income"`
	CharitableDonations  []json.Number `json:"charitable_donations"`
	Purchases            []assetEvent  `json:"purchases"`
	Sales                []assetEvent  `json:"sales"`
}

type assetEvent struct {
	AssetID   string      `json:"asset_id"`
	Date      string      `json:"date"`
	Quantity  json.Number `json:"quantity"`
	UnitPrice json.Number `json:"unit_price"`
}

// IngestStats summarizes one ingestion run.
type IngestStats struct {
	Taxpayers int
	Skipped   int
}

// IngestFile reads NDJSON records from r and inserts them inside a single
// transaction.
func (s *IngestService) IngestFile(ctx context.Context, r io.Reader) (IngestStats, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return IngestStats{}, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	taxpayerRepo := s.taxpayerRepo.WithTx(tx)
	seq, err := taxpayerRepo.NextSeq(ctx)
	if err != nil {
		return IngestStats{}, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}

	var stats IngestStats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record householdRecord
		if err := json.Unmarshal(line, &record); err != nil {
			log.Printf("skipping invalid JSON line: %v", err)
			stats.Skipped++
			continue
		}

		if err := s.insertRecord(ctx, tx, &record, seq); err != nil {
			return IngestStats{}, fmt.Errorf("record %q: %w", record.TaxpayerID, err)
		}
		seq++
		stats.Taxpayers++
	}
	if err := scanner.Err(); err != nil {
		return IngestStats{}, fmt.Errorf("failed to read input: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return IngestStats{}, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	return stats, nil
}

func (s *IngestService) insertRecord(ctx context.Context, tx *sql.Tx, record *householdRecord, seq int64) error {
	if err := validation.ValidateTaxpayerID(record.TaxpayerID); err != nil {
		return err
	}
	if err := validation.ValidateState(record.State); err != nil {
		return err
	}
	if record.NumChildren < 0 {
		return fmt.Errorf("num_children must not be negative: %w", apperrors.ErrInvalidRecord)
	}

	w2, err := parseAmount("w2_income", record.W2Income)
	if err != nil {
		return err
	}

	taxpayer := &model.Taxpayer{
		TaxpayerID:  record.TaxpayerID,
		State:       record.State,
		W2Income:    w2,
		NumChildren: record.NumChildren,
		Seq:         seq,
	}
	if err := s.taxpayerRepo.WithTx(tx).InsertTaxpayer(ctx, taxpayer); err != nil {
		return err
	}

	// History arrives oldest first: index 0 is year T-5.
	entries := make([]model.IncomeHistoryEntry, 0, len(record.PriorFiveYearsIncome))
	for i, raw := range record.PriorFiveYearsIncome {
		amount, err := parseAmount("prior_five_years_income", raw)
		if err != nil {
			return err
		}
		entries = append(entries, model.IncomeHistoryEntry{
			TaxpayerID: record.TaxpayerID,
			YearOffset: i - 5,
			Amount:     amount,
		})
	}
	if err := s.incomeRepo.WithTx(tx).InsertEntries(ctx, entries); err != nil {
		return err
	}

	donations := make([]model.CharitableDonation, 0, len(record.CharitableDonations))
	for _, raw := range record.CharitableDonations {
		amount, err := parseAmount("charitable_donation", raw)
		if err != nil {
			return err
		}
		donations = append(donations, model.CharitableDonation{
			TaxpayerID: record.TaxpayerID,
			Amount:     amount,
		})
	}
	if err := s.donationRepo.WithTx(tx).InsertDonations(ctx, donations); err != nil {
		return err
	}

	transactionRepo := s.transactionRepo.WithTx(tx)
	for _, p := range record.Purchases {
		if err := s.insertAssetEvent(ctx, transactionRepo, record.TaxpayerID, model.TransactionBuy, p); err != nil {
			return err
		}
	}
	for _, sale := range record.Sales {
		if err := s.insertAssetEvent(ctx, transactionRepo, record.TaxpayerID, model.TransactionSell, sale); err != nil {
			return err
		}
	}

	return nil
}

func (s *IngestService) insertAssetEvent(
	ctx context.Context,
	repo *repository.AssetTransactionRepository,
	taxpayerID, transactionType string,
	event assetEvent,
) error {
	date, err := validation.ParseDate(event.Date)
	if err != nil {
		return err
	}
	quantity, err := parseAmount("quantity", event.Quantity)
	if err != nil {
		return err
	}
	if err := validation.ValidateQuantity(quantity); err != nil {
		return err
	}
	price, err := parseAmount("unit_price", event.UnitPrice)
	if err != nil {
		return err
	}

	return repo.InsertTransaction(ctx, &model.AssetTransaction{
		TaxpayerID:      taxpayerID,
		AssetID:         event.AssetID,
		TransactionDate: date,
		TransactionType: transactionType,
		Quantity:        quantity,
		UnitPrice:       price,
	})
}

func parseAmount(field string, raw json.Number) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: malformed amount %q: %w", field, raw, apperrors.ErrInvalidRecord)
	}
	if err := validation.ValidateAmount(field, d); err != nil {
		return decimal.Decimal{}, err
	}
	return d, nil
}
