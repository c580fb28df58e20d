package handler

import (
	"strings"
	"time"

	"payee-ledger/internal/adapter/http/dto"
	"payee-ledger/internal/adapter/http/middleware"
	"payee-ledger/internal/core/domain"
	"payee-ledger/internal/core/ports"
	"payee-ledger/pkg/apperror"
	"payee-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// IntentHandler handles payment intent endpoints. An intent is a signed,
// time-bounded payment request the payee hands to a payer out of band.
type IntentHandler struct {
	codec       ports.IntentCodec
	transferSvc ports.TransferService
	window      time.Duration
}

// NewIntentHandler creates a new IntentHandler. The window mirrors the
// codec's validity window and is only used to report expiry to clients.
func NewIntentHandler(codec ports.IntentCodec, transferSvc ports.TransferService, window time.Duration) *IntentHandler {
	return &IntentHandler{codec: codec, transferSvc: transferSvc, window: window}
}

// Create handles POST /api/v1/intents. The authenticated owner is the payee.
func (h *IntentHandler) Create(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateIntentRequest
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

	issuedAt := time.Now()
	token, err := h.codec.Encode(&domain.PaymentIntent{
		Payee:       ownerID,
		Amount:      amount,
		Currency:    strings.ToUpper(req.Currency),
		Description: req.Description,
		IssuedAt:    issuedAt,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.IntentTokenResponse{
		Token:     token,
		ExpiresAt: issuedAt.Add(h.window).Unix(),
	})
}

// Decode handles POST /api/v1/intents/decode. Inspection only: a valid
// token is returned decoded, nothing is reserved or consumed.
func (h *IntentHandler) Decode(c *gin.Context) {
	var req dto.PayIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	intent, err := h.codec.Decode(req.Token)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.DecodedIntentResponse{
		Payee:       intent.Payee.String(),
		Amount:      intent.Amount.String(),
		Currency:    intent.Currency,
		Description: intent.Description,
		IssuedAt:    intent.IssuedAt.Unix(),
	})
}

// Pay handles POST /api/v1/intents/pay. The authenticated owner is the payer.
func (h *IntentHandler) Pay(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.PayIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	intent, err := h.codec.Decode(req.Token)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.transferSvc.PayIntent(c.Request.Context(), ownerID, intent)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromTransaction(result))
}
