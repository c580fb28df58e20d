package handler

import (
	"context"
	"strings"

	"payee-ledger/internal/adapter/http/dto"
	"payee-ledger/internal/adapter/http/middleware"
	"payee-ledger/internal/core/domain"
	"payee-ledger/internal/core/ports"
	"payee-ledger/pkg/apperror"
	"payee-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferHandler handles transfer engine endpoints.
type TransferHandler struct {
	transferSvc ports.TransferService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transferSvc ports.TransferService) *TransferHandler {
	return &TransferHandler{transferSvc: transferSvc}
}

// Transfer handles POST /api/v1/transfers.
func (h *TransferHandler) Transfer(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	toOwner, err := uuid.Parse(req.ToOwner)
	if err != nil {
		response.Error(c, apperror.Validation("invalid recipient id"))
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.Error(c, apperror.Validation("invalid amount"))
		return
	}

	result, err := h.transferSvc.Transfer(c.Request.Context(), ports.TransferRequest{
		FromOwner:      ownerID,
		ToOwner:        toOwner,
		Amount:         amount,
		Currency:       strings.ToUpper(req.Currency),
		ToCurrency:     strings.ToUpper(req.ToCurrency),
		IdempotencyKey: req.IdempotencyKey,
		Description:    req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromTransaction(result))
}

// Cancel handles POST /api/v1/transfers/:id/cancel.
func (h *TransferHandler) Cancel(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	transactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid transaction id"))
		return
	}

	if err := h.transferSvc.Cancel(c.Request.Context(), transactionID, ownerID); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"cancelled": true})
}

// Deposit handles POST /api/v1/deposits.
func (h *TransferHandler) Deposit(c *gin.Context) {
	h.externalLeg(c, h.transferSvc.Deposit)
}

// Withdraw handles POST /api/v1/withdrawals.
func (h *TransferHandler) Withdraw(c *gin.Context) {
	h.externalLeg(c, h.transferSvc.Withdraw)
}

func (h *TransferHandler) externalLeg(c *gin.Context, op func(ctx context.Context, req ports.ExternalLegRequest) (*domain.Transaction, error)) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.ExternalLegRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.Error(c, apperror.Validation("invalid amount"))
		return
	}

	result, err := op(c.Request.Context(), ports.ExternalLegRequest{
		Owner:          ownerID,
		Amount:         amount,
		Currency:       strings.ToUpper(req.Currency),
		IdempotencyKey: req.IdempotencyKey,
		Description:    req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromTransaction(result))
}
