package handler

import (
	"fractional-bonds/internal/adapter/http/dto"
	"fractional-bonds/internal/core/ports"
	"fractional-bonds/pkg/response"

	"github.com/gin-gonic/gin"
)

// BondHandler serves the bond catalog.
type BondHandler struct {
	catalogSvc ports.CatalogService
}

func NewBondHandler(catalogSvc ports.CatalogService) *BondHandler {
	return &BondHandler{catalogSvc: catalogSvc}
}

// List handles GET /api/v1/bonds.
func (h *BondHandler) List(c *gin.Context) {
	items, err := h.catalogSvc.ListInstruments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToInstrumentList(items))
}

// Get handles GET /api/v1/bonds/:id.
func (h *BondHandler) Get(c *gin.Context) {
	inst, err := h.catalogSvc.GetInstrument(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToInstrumentResponse(inst))
}
