package testutil

import (
	"database/sql"
	"testing"

	"github.com/avalontax/tax-engine/internal/config"
	"github.com/avalontax/tax-engine/internal/repository"
	"github.com/avalontax/tax-engine/internal/service"
)

func NewTestProcessorService(t *testing.T, db *sql.DB) *service.ProcessorService {
	t.Helper()

	return service.NewProcessorService(
		db,
		repository.NewTaxpayerRepository(db),
		repository.NewAssetTransactionRepository(db),
		repository.NewIncomeHistoryRepository(db),
		repository.NewDonationRepository(db),
		repository.NewRealizedGainRepository(db),
		repository.NewTaxComputationRepository(db),
		config.DefaultRules(),
		4,
	)
}

func NewTestIngestService(t *testing.T, db *sql.DB) *service.IngestService {
	t.Helper()

	return service.NewIngestService(
		db,
		repository.NewTaxpayerRepository(db),
		repository.NewAssetTransactionRepository(db),
		repository.NewIncomeHistoryRepository(db),
		repository.NewDonationRepository(db),
	)
}

func NewTestExportService(t *testing.T, db *sql.DB) *service.ExportService {
	t.Helper()

	return service.NewExportService(repository.NewTaxComputationRepository(db))
}

func NewTestTaxpayerService(t *testing.T, db *sql.DB) *service.TaxpayerService {
	t.Helper()

	return service.NewTaxpayerService(
		repository.NewTaxpayerRepository(db),
		repository.NewTaxComputationRepository(db),
		repository.NewRealizedGainRepository(db),
	)
}

func NewTestSystemService(t *testing.T, db *sql.DB) *service.SystemService {
	t.Helper()

	return service.NewSystemService(db)
}
