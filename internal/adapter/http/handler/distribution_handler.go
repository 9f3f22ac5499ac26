package handler

import (
	"context"
	"net/http"

	"github.com/iho/marketledger/internal/adapter/http/dto"
	"github.com/iho/marketledger/internal/usecase"
)

// DistributionService defines the behavior needed by DistributionHandler.
type DistributionService interface {
	DistributePurchaseEarnings(ctx context.Context, input usecase.DistributeInput) (*usecase.DistributionReceipt, error)
	RecordRefund(ctx context.Context, input usecase.RefundInput) (*usecase.RefundReceipt, error)
}

// DistributionHandler receives purchase and refund notifications from the
// sales system.
type DistributionHandler struct {
	distributionUC DistributionService
}

// NewDistributionHandler creates a new DistributionHandler.
func NewDistributionHandler(distributionUC DistributionService) *DistributionHandler {
	return &DistributionHandler{distributionUC: distributionUC}
}

// Distribute splits a purchase between seller and platform. A replayed
// purchase answers 200 with the original receipt.
func (h *DistributionHandler) Distribute(w http.ResponseWriter, r *http.Request) {
	var req dto.DistributeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	receipt, err := h.distributionUC.DistributePurchaseEarnings(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, r, "failed to distribute earnings", err)
		return
	}

	status := http.StatusCreated
	if receipt.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, dto.DistributionFromUseCase(receipt))
}

// Refund reverses the split of a refunded purchase.
func (h *DistributionHandler) Refund(w http.ResponseWriter, r *http.Request) {
	var req dto.RefundRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	receipt, err := h.distributionUC.RecordRefund(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, r, "failed to record refund", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.RefundFromUseCase(receipt))
}
