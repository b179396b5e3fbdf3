package handler

import (
	"fractional-bonds/internal/adapter/http/dto"
	"fractional-bonds/internal/core/ports"
	"fractional-bonds/pkg/response"

	"github.com/gin-gonic/gin"
)

// PortfolioHandler serves the aggregated portfolio view.
type PortfolioHandler struct {
	portfolioSvc ports.PortfolioService
}

func NewPortfolioHandler(portfolioSvc ports.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{portfolioSvc: portfolioSvc}
}

// Get handles GET /api/v1/portfolio.
func (h *PortfolioHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	p, err := h.portfolioSvc.ComputePortfolio(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToPortfolioResponse(p))
}
