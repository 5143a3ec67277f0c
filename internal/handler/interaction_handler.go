package handler

import (
	"github.com/gin-gonic/gin"

	"storefront/internal/middleware"
	"storefront/internal/service/storefront"
	"storefront/pkg/utils"
)

// InteractionHandler inbound button presses and chat replies
type InteractionHandler struct {
	storefront storefront.StorefrontService
}

// NewInteractionHandler creates an interaction handler
func NewInteractionHandler(svc storefront.StorefrontService) *InteractionHandler {
	return &InteractionHandler{storefront: svc}
}

// InteractRequest a pressed button
type InteractRequest struct {
	ActionID string `json:"action_id" binding:"required"`
}

// DialogueReplyRequest free-text answer to a delivery prompt
type DialogueReplyRequest struct {
	Text string `json:"text" binding:"required"`
}

// Interact POST /api/v1/interactions
func (h *InteractionHandler) Interact(c *gin.Context) {
	caller, ok := middleware.GetCaller(c)
	if !ok {
		utils.ErrorFrom(c, utils.ErrUnauthorized)
		return
	}

	var req InteractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorFrom(c, utils.BindError(err))
		return
	}

	reply, err := h.storefront.Interact(c.Request.Context(), caller, req.ActionID)
	if err != nil {
		_ = c.Error(err)
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, reply)
}

// DialogueReply POST /api/v1/dialogue/reply
func (h *InteractionHandler) DialogueReply(c *gin.Context) {
	caller, ok := middleware.GetCaller(c)
	if !ok {
		utils.ErrorFrom(c, utils.ErrUnauthorized)
		return
	}

	var req DialogueReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorFrom(c, utils.BindError(err))
		return
	}

	res, err := h.storefront.DialogueReply(c.Request.Context(), caller, req.Text)
	if err != nil {
		_ = c.Error(err)
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, res)
}

// GetCart GET /api/v1/cart
func (h *InteractionHandler) GetCart(c *gin.Context) {
	caller, ok := middleware.GetCaller(c)
	if !ok {
		utils.ErrorFrom(c, utils.ErrUnauthorized)
		return
	}

	cart := h.storefront.Cart(c.Request.Context(), caller)
	if cart.IsEmpty() {
		utils.SuccessResponse(c, gin.H{"items": []interface{}{}})
		return
	}
	utils.SuccessResponse(c, gin.H{"items": cart.Items})
}
