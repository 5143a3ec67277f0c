package handler

import (
	"github.com/gin-gonic/gin"

	"storefront/internal/middleware"
	"storefront/internal/service/order"
	"storefront/pkg/utils"
)

// OrderHandler read access to pending orders and dialogues
type OrderHandler struct {
	orders order.OrderService
}

// NewOrderHandler creates an order handler
func NewOrderHandler(orders order.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// GetPending GET /api/v1/orders/pending?user_id=
// Members see their own order; admins may look up anyone's.
func (h *OrderHandler) GetPending(c *gin.Context) {
	caller, ok := middleware.GetCaller(c)
	if !ok {
		utils.ErrorFrom(c, utils.ErrUnauthorized)
		return
	}

	userID := c.DefaultQuery("user_id", caller.UserID)
	if userID != caller.UserID && !caller.Admin {
		utils.ErrorFrom(c, utils.ErrUnauthorized)
		return
	}

	pending, err := h.orders.Pending(c.Request.Context(), userID)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, pending)
}

// GetDialogue GET /api/v1/dialogue
func (h *OrderHandler) GetDialogue(c *gin.Context) {
	caller, ok := middleware.GetCaller(c)
	if !ok {
		utils.ErrorFrom(c, utils.ErrUnauthorized)
		return
	}

	d, err := h.orders.ActiveDialogue(c.Request.Context(), caller.UserID)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{
		"dialogue": d,
		"prompt":   d.Prompt(),
	})
}
