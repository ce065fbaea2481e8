package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/avalontax/tax-engine/internal/apperrors"
	"github.com/avalontax/tax-engine/internal/model"
	"github.com/avalontax/tax-engine/internal/service"
)

// TaxpayerHandler handles taxpayer-related HTTP requests: listing, detail,
// the computation result, the realized gain audit trail, and reprocessing.
type TaxpayerHandler struct {
	taxpayerService  *service.TaxpayerService
	processorService *service.ProcessorService
}

// NewTaxpayerHandler creates a new TaxpayerHandler
func NewTaxpayerHandler(taxpayerService *service.TaxpayerService, processorService *service.ProcessorService) *TaxpayerHandler {
	return &TaxpayerHandler{
		taxpayerService:  taxpayerService,
		processorService: processorService,
	}
}

// TaxpayerResponse represents a taxpayer in API responses.
type TaxpayerResponse struct {
	TaxpayerID       string `json:"taxpayerId"`
	State            string `json:"state"`
	W2Income         string `json:"w2Income"`
	NumChildren      int    `json:"numChildren"`
	EwmaIncome       string `json:"ewmaIncome,omitempty"`
	ProcessingStatus string `json:"processingStatus"`
	ErrorStage       string `json:"errorStage,omitempty"`
	ErrorMessage     string `json:"errorMessage,omitempty"`
}

func toTaxpayerResponse(t *model.Taxpayer) TaxpayerResponse {
	resp := TaxpayerResponse{
		TaxpayerID:       t.TaxpayerID,
		State:            t.State,
		W2Income:         t.W2Income.StringFixed(2),
		NumChildren:      t.NumChildren,
		ProcessingStatus: t.ProcessingStatus,
		ErrorStage:       t.ErrorStage,
		ErrorMessage:     t.ErrorMessage,
	}
	if t.EwmaIncome != nil {
		resp.EwmaIncome = t.EwmaIncome.StringFixed(2)
	}
	return resp
}

// Taxpayers handles GET requests for the full taxpayer list.
//
// Endpoint: GET /api/taxpayers
func (h *TaxpayerHandler) Taxpayers(w http.ResponseWriter, r *http.Request) {
	taxpayers, err := h.taxpayerService.ListTaxpayers(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to retrieve taxpayers", err.Error())
		return
	}

	responses := make([]TaxpayerResponse, 0, len(taxpayers))
	for i := range taxpayers {
		responses = append(responses, toTaxpayerResponse(&taxpayers[i]))
	}
	respondJSON(w, http.StatusOK, responses)
}

// Taxpayer handles GET requests for a single taxpayer.
//
// Endpoint: GET /api/taxpayers/{taxpayerId}
func (h *TaxpayerHandler) Taxpayer(w http.ResponseWriter, r *http.Request) {
	taxpayerID := chi.URLParam(r, "taxpayerId")

	taxpayer, err := h.taxpayerService.GetTaxpayer(r.Context(), taxpayerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrTaxpayerNotFound) {
			respondError(w, http.StatusNotFound, "taxpayer not found", "")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to retrieve taxpayer", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, toTaxpayerResponse(taxpayer))
}

// ComputationResponse represents a finished tax computation.
type ComputationResponse struct {
	TaxpayerID           string `json:"taxpayerId"`
	FederalGrossIncome   string `json:"federalGrossIncome"`
	FederalTaxableIncome string `json:"federalTaxableIncome"`
	FederalDeductionType string `json:"federalDeductionType"`
	FederalSurcharge     string `json:"federalSurcharge"`
	TotalFederalTax      int64  `json:"totalFederalTax"`
	StateSurcharge       string `json:"stateSurcharge"`
	TotalStateTax        int64  `json:"totalStateTax"`
}

// Computation handles GET requests for a taxpayer's final tax figures.
//
// Endpoint: GET /api/taxpayers/{taxpayerId}/computation
func (h *TaxpayerHandler) Computation(w http.ResponseWriter, r *http.Request) {
	taxpayerID := chi.URLParam(r, "taxpayerId")

	computation, err := h.taxpayerService.GetComputation(r.Context(), taxpayerID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrTaxpayerNotFound):
			respondError(w, http.StatusNotFound, "taxpayer not found", "")
		case errors.Is(err, apperrors.ErrComputationNotFound):
			respondError(w, http.StatusNotFound, "tax computation not found", "taxpayer has not completed processing")
		default:
			respondError(w, http.StatusInternalServerError, "failed to retrieve computation", err.Error())
		}
		return
	}

	respondJSON(w, http.StatusOK, ComputationResponse{
		TaxpayerID:           computation.TaxpayerID,
		FederalGrossIncome:   computation.FederalGrossIncome.StringFixed(2),
		FederalTaxableIncome: computation.FederalTaxableIncome.StringFixed(2),
		FederalDeductionType: computation.FederalDeductionType,
		FederalSurcharge:     computation.FederalSurcharge.StringFixed(2),
		TotalFederalTax:      computation.TotalFederalTax.IntPart(),
		StateSurcharge:       computation.StateSurcharge.StringFixed(2),
		TotalStateTax:        computation.TotalStateTax.IntPart(),
	})
}

// RealizedGainResponse represents one FIFO match in the audit trail.
type RealizedGainResponse struct {
	ID                string `json:"id"`
	SellTransactionID int64  `json:"sellTransactionId"`
	BuyTransactionID  int64  `json:"buyTransactionId"`
	MatchedQuantity   string `json:"matchedQuantity"`
	GainAmount        string `json:"gainAmount"`
}

// RealizedGains handles GET requests for a taxpayer's realized gain matches.
//
// Endpoint: GET /api/taxpayers/{taxpayerId}/gains
func (h *TaxpayerHandler) RealizedGains(w http.ResponseWriter, r *http.Request) {
	taxpayerID := chi.URLParam(r, "taxpayerId")

	gains, err := h.taxpayerService.GetRealizedGains(r.Context(), taxpayerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrTaxpayerNotFound) {
			respondError(w, http.StatusNotFound, "taxpayer not found", "")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to retrieve realized gains", err.Error())
		return
	}

	responses := make([]RealizedGainResponse, 0, len(gains))
	netGain := decimal.Zero
	for _, g := range gains {
		responses = append(responses, RealizedGainResponse{
			ID:                g.ID,
			SellTransactionID: g.SellTransactionID,
			BuyTransactionID:  g.BuyTransactionID,
			MatchedQuantity:   g.MatchedQuantity.String(),
			GainAmount:        g.GainAmount.StringFixed(2),
		})
		netGain = netGain.Add(g.GainAmount)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"taxpayerId": taxpayerID,
		"netGain":    netGain.StringFixed(2),
		"matches":    responses,
	})
}

// Reprocess handles POST requests to rerun the pipeline for a taxpayer.
// All derived rows are recomputed and replaced.
//
// Endpoint: POST /api/taxpayers/{taxpayerId}/reprocess
func (h *TaxpayerHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	taxpayerID := chi.URLParam(r, "taxpayerId")

	if err := h.processorService.ProcessTaxpayer(r.Context(), taxpayerID); err != nil {
		if errors.Is(err, apperrors.ErrTaxpayerNotFound) {
			respondError(w, http.StatusNotFound, "taxpayer not found", "")
			return
		}
		// Data errors are recorded on the taxpayer row; report them as a
		// completed request with an ERROR outcome.
		var stageErr *apperrors.StageError
		if errors.As(err, &stageErr) {
			respondJSON(w, http.StatusOK, map[string]string{
				"taxpayerId": taxpayerID,
				"status":     model.StatusError,
				"stage":      stageErr.Stage,
				"error":      stageErr.Err.Error(),
			})
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to reprocess taxpayer", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"taxpayerId": taxpayerID,
		"status":     model.StatusCompleted,
	})
}
