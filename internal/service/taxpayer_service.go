package service

import (
	"context"

	"github.com/avalontax/tax-engine/internal/model"
	"github.com/avalontax/tax-engine/internal/repository"
)

// TaxpayerService exposes read access to taxpayers and their derived data
// for the audit API.
type TaxpayerService struct {
	taxpayerRepo    *repository.TaxpayerRepository
	computationRepo *repository.TaxComputationRepository
	gainRepo        *repository.RealizedGainRepository
}

// NewTaxpayerService creates a new TaxpayerService with the provided repository dependencies.
func NewTaxpayerService(
	taxpayerRepo *repository.TaxpayerRepository,
	computationRepo *repository.TaxComputationRepository,
	gainRepo *repository.RealizedGainRepository,
) *TaxpayerService {
	return &TaxpayerService{
		taxpayerRepo:    taxpayerRepo,
		computationRepo: computationRepo,
		gainRepo:        gainRepo,
	}
}

// ListTaxpayers returns all taxpayers in ingestion order.
func (s *TaxpayerService) ListTaxpayers(ctx context.Context) ([]model.Taxpayer, error) {
	return s.taxpayerRepo.ListTaxpayers(ctx)
}

// GetTaxpayer returns a single taxpayer by ID.
func (s *TaxpayerService) GetTaxpayer(ctx context.Context, taxpayerID string) (*model.Taxpayer, error) {
	return s.taxpayerRepo.GetTaxpayer(ctx, taxpayerID)
}

// GetComputation returns the taxpayer's tax computation, if processing completed.
func (s *TaxpayerService) GetComputation(ctx context.Context, taxpayerID string) (*model.TaxComputation, error) {
	if _, err := s.taxpayerRepo.GetTaxpayer(ctx, taxpayerID); err != nil {
		return nil, err
	}
	return s.computationRepo.GetComputation(ctx, taxpayerID)
}

// GetRealizedGains returns the taxpayer's realized gain audit trail.
func (s *TaxpayerService) GetRealizedGains(ctx context.Context, taxpayerID string) ([]model.RealizedGain, error) {
	if _, err := s.taxpayerRepo.GetTaxpayer(ctx, taxpayerID); err != nil {
		return nil, err
	}
	return s.gainRepo.GetGains(ctx, taxpayerID)
}
