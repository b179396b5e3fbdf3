package handler

import (
	"strings"

	"fractional-bonds/internal/adapter/http/dto"
	"fractional-bonds/internal/adapter/http/middleware"
	"fractional-bonds/internal/core/ports"
	"fractional-bonds/pkg/apperror"
	"fractional-bonds/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletHandler handles wallet endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// GetWallet handles GET /api/v1/wallet.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	w, err := h.walletSvc.GetWallet(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToWalletResponse(w, c.GetString(middleware.CtxEmail)))
}

// TopUp handles POST /api/v1/wallet/topup. The amount comes from the JSON
// body, or from ?amount= when the body is empty.
func (h *WalletHandler) TopUp(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.TopUpRequest
	if q, hasQuery := c.GetQuery("amount"); hasQuery && c.Request.ContentLength == 0 {
		amount, err := decimal.NewFromString(strings.TrimSpace(q))
		if err != nil {
			response.Error(c, apperror.Validation("amount must be a decimal number"))
			return
		}
		req.Amount = amount
	} else if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	w, err := h.walletSvc.TopUp(c.Request.Context(), userID, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.TopUpResponse{
		Message:    "Top-up successful",
		NewBalance: w.Balance.InexactFloat64(),
	})
}

// currentUser reads the user resolved by JWTAuth, writing a 401 when absent.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized())
		return uuid.Nil, false
	}
	return userID, true
}
