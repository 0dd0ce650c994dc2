package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"marketplace/internal/model"
	"marketplace/internal/service/inventory"
	"marketplace/pkg/utils"
)

// InventoryHandler manual stock corrections and audit history
type InventoryHandler struct {
	ledger inventory.Ledger
}

// NewInventoryHandler creates an inventory handler
func NewInventoryHandler(ledger inventory.Ledger) *InventoryHandler {
	return &InventoryHandler{ledger: ledger}
}

// AdjustRequest manual adjustment body
type AdjustRequest struct {
	Type      model.InventoryTransactionType `json:"type" binding:"required"`
	Quantity  int                            `json:"quantity" binding:"required"`
	Reason    string                         `json:"reason"`
	Reference string                         `json:"reference"`
	ActorID   string                         `json:"actor_id" binding:"required"`
}

// Adjust applies a manual stock correction
func (h *InventoryHandler) Adjust(c *gin.Context) {
	listingID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	row, err := h.ledger.Adjust(c.Request.Context(), listingID, inventory.AdjustRequest{
		Type:      req.Type,
		Quantity:  req.Quantity,
		Reason:    req.Reason,
		Reference: req.Reference,
		ActorID:   req.ActorID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	utils.CreatedResponse(c, row)
}

// History lists the audit rows of a listing, newest first
func (h *InventoryHandler) History(c *gin.Context) {
	listingID, ok := paramID(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	rows, err := h.ledger.History(c.Request.Context(), listingID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, rows)
}

// OrderHistory lists the audit rows written for an order
func (h *InventoryHandler) OrderHistory(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	rows, err := h.ledger.OrderHistory(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, rows)
}
