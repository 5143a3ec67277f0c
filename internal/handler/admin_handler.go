package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront/internal/middleware"
	"storefront/internal/service/ledger"
	"storefront/internal/service/storefront"
	"storefront/pkg/utils"
)

// AdminHandler stock, waitlist and sales endpoints; mounted behind RequireAdmin
type AdminHandler struct {
	storefront    storefront.StorefrontService
	ledger        ledger.LedgerService
	defaultMonths int
}

// NewAdminHandler creates an admin handler
func NewAdminHandler(svc storefront.StorefrontService, ledger ledger.LedgerService, defaultMonths int) *AdminHandler {
	return &AdminHandler{
		storefront:    svc,
		ledger:        ledger,
		defaultMonths: defaultMonths,
	}
}

// SetStockRequest new stock flag
type SetStockRequest struct {
	InStock *bool `json:"in_stock" binding:"required"`
}

// SetStock PUT /api/v1/admin/products/:name/stock
func (h *AdminHandler) SetStock(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)

	var req SetStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorFrom(c, utils.BindError(err))
		return
	}

	change, err := h.storefront.AdminSetStock(c.Request.Context(), caller, c.Param("name"), *req.InStock)
	if err != nil {
		_ = c.Error(err)
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, change)
}

// SalesSummary GET /api/v1/admin/sales/summary?months=N
func (h *AdminHandler) SalesSummary(c *gin.Context) {
	months := h.defaultMonths
	if raw := c.Query("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			utils.Error(c, utils.CodeInvalidParam, "months must be a number")
			return
		}
		months = n
	}

	sum, err := h.ledger.SummarizeMonths(c.Request.Context(), months)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, sum)
}

// Waitlist GET /api/v1/admin/products/:name/waitlist
func (h *AdminHandler) Waitlist(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)

	members, err := h.storefront.Waitlist(c.Request.Context(), caller, c.Param("name"))
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	if members == nil {
		members = []string{}
	}
	utils.SuccessResponse(c, gin.H{"product": c.Param("name"), "waiting": members})
}

// UserSales GET /api/v1/admin/users/:user_id/sales?limit=N, newest first
func (h *AdminHandler) UserSales(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			utils.Error(c, utils.CodeInvalidParam, "limit must be a number")
			return
		}
		limit = n
	}

	records, err := h.ledger.History(c.Request.Context(), c.Param("user_id"), limit)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, records)
}
