package handler

import (
	"fractional-bonds/internal/adapter/http/dto"
	"fractional-bonds/internal/core/ports"
	"fractional-bonds/pkg/apperror"
	"fractional-bonds/pkg/response"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey makes a buy safe to retry.
const HeaderIdempotencyKey = "Idempotency-Key"

// TransactionHandler handles purchases and the transaction log.
type TransactionHandler struct {
	purchaseSvc ports.PurchaseService
	walletSvc   ports.WalletService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(purchaseSvc ports.PurchaseService, walletSvc ports.WalletService) *TransactionHandler {
	return &TransactionHandler{purchaseSvc: purchaseSvc, walletSvc: walletSvc}
}

// Buy handles POST /api/v1/transactions/buy.
func (h *TransactionHandler) Buy(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	key := c.GetHeader(HeaderIdempotencyKey)
	if key != "" && !dto.ValidIdempotencyKey(key) {
		response.Error(c, apperror.Validation("invalid Idempotency-Key header"))
		return
	}

	var req dto.BuyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	rec, err := h.purchaseSvc.Buy(c.Request.Context(), ports.BuyRequest{
		UserID:         userID,
		InstrumentID:   req.BondID,
		Amount:         req.Amount,
		IdempotencyKey: key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToPurchaseResponse(rec))
}

// List handles GET /api/v1/transactions.
func (h *TransactionHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	items, err := h.walletSvc.ListTransactions(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToPurchaseList(items))
}
