package handler

import (
	"strconv"
	"strings"

	"payee-ledger/internal/adapter/http/dto"
	"payee-ledger/internal/adapter/http/middleware"
	"payee-ledger/internal/core/domain"
	"payee-ledger/internal/core/ports"
	"payee-ledger/pkg/apperror"
	"payee-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles wallet registry endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// Resolve handles POST /api/v1/wallets. Returns the owner's wallet for the
// requested currency and kind, creating it when absent.
func (h *WalletHandler) Resolve(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	currency := strings.ToUpper(req.Currency)
	kind := domain.KindForCurrency(currency)
	if req.Kind != "" {
		kind = domain.WalletKind(req.Kind)
	}

	wallet, err := h.walletSvc.Resolve(c.Request.Context(), ownerID, currency, kind)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromWallet(wallet))
}

// List handles GET /api/v1/wallets.
func (h *WalletHandler) List(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	wallets, err := h.walletSvc.ListWallets(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.WalletResponse, 0, len(wallets))
	for i := range wallets {
		out = append(out, dto.FromWallet(&wallets[i]))
	}
	response.OK(c, out)
}

// GetBalance handles GET /api/v1/wallets/:id/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	walletID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid wallet id"))
		return
	}

	balance, err := h.walletSvc.GetBalance(c.Request.Context(), walletID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		WalletID: walletID.String(),
		Balance:  balance.String(),
	})
}

// GetHistory handles GET /api/v1/wallets/:id/transactions.
func (h *WalletHandler) GetHistory(c *gin.Context) {
	walletID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid wallet id"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.walletSvc.GetHistory(c.Request.Context(), walletID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.HistoryResponse{
		Items:  dto.FromTransactions(items),
		Limit:  limit,
		Offset: offset,
	})
}

// Deactivate handles POST /api/v1/wallets/:id/deactivate.
func (h *WalletHandler) Deactivate(c *gin.Context) {
	walletID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid wallet id"))
		return
	}

	if err := h.walletSvc.Deactivate(c.Request.Context(), walletID); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"deactivated": true})
}
