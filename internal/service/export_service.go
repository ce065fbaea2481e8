package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/avalontax/tax-engine/internal/repository"
)

// ExportService writes the final liabilities as NDJSON, one object per
// completed taxpayer, in ingestion order.
type ExportService struct {
	computationRepo *repository.TaxComputationRepository
}

// NewExportService creates a new ExportService with the provided repository dependencies.
func NewExportService(computationRepo *repository.TaxComputationRepository) *ExportService {
	return &ExportService{computationRepo: computationRepo}
}

type exportLine struct {
	TaxpayerID string `json:"taxpayer_id"`
	FederalTax int64  `json:"federal_tax"`
	StateTax   int64  `json:"state_tax"`
}

// WriteResults streams all completed taxpayers' liabilities to w.
// Returns the number of lines written.
func (s *ExportService) WriteResults(ctx context.Context, w io.Writer) (int, error) {
	rows, err := s.computationRepo.ListExportRows(ctx)
	if err != nil {
		return 0, err
	}

	enc := json.NewEncoder(w)
	for _, row := range rows {
		line := exportLine{
			TaxpayerID: row.TaxpayerID,
			FederalTax: row.FederalTax,
			StateTax:   row.StateTax,
		}
		if err := enc.Encode(line); err != nil {
			return 0, fmt.Errorf("failed to write output line: %w", err)
		}
	}
	return len(rows), nil
}
