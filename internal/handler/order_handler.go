package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"marketplace/internal/model"
	"marketplace/internal/service/order"
	"marketplace/pkg/utils"
)

// OrderHandler order handler
type OrderHandler struct {
	orderService order.Service
}

// NewOrderHandler creates an order handler
func NewOrderHandler(orderService order.Service) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// CreateOrderRequest checkout body
type CreateOrderRequest struct {
	BuyerID  uint64              `json:"buyer_id" binding:"required"`
	Items    []order.ItemRequest `json:"items" binding:"required,min=1,dive"`
	Address  model.Address       `json:"shipping_address"`
	Discount decimal.Decimal     `json:"discount"`
	ActorID  string              `json:"actor_id"`
}

// UpdateStateRequest state change body
type UpdateStateRequest struct {
	State   model.OrderState `json:"state" binding:"required"`
	ActorID string           `json:"actor_id" binding:"required"`
}

// CancelRequest cancellation body
type CancelRequest struct {
	Reason  string `json:"reason"`
	ActorID string `json:"actor_id" binding:"required"`
}

// PayRequest payment confirmation body
type PayRequest struct {
	PaymentReference string `json:"payment_reference" binding:"required"`
	ActorID          string `json:"actor_id" binding:"required"`
}

// Create checks out a cart
func (h *OrderHandler) Create(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	o, err := h.orderService.Create(c.Request.Context(), order.CreateOrderRequest{
		BuyerID:  req.BuyerID,
		Items:    req.Items,
		Address:  req.Address,
		Discount: req.Discount,
		ActorID:  req.ActorID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	utils.CreatedResponse(c, o)
}

// Get gets an order by id
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	o, err := h.orderService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, o)
}

// GetByNumber gets an order by its public number
func (h *OrderHandler) GetByNumber(c *gin.Context) {
	o, err := h.orderService.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, o)
}

// ListByBuyer lists a buyer's orders
func (h *OrderHandler) ListByBuyer(c *gin.Context) {
	buyerID, ok := paramID(c, "id")
	if !ok {
		return
	}
	page, pageSize := pagination(c)

	orders, total, err := h.orderService.ListByBuyer(c.Request.Context(), buyerID, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessPageResponse(c, orders, total, page, pageSize)
}

// UpdateState moves an order to a new state
func (h *OrderHandler) UpdateState(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req UpdateStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !req.State.Valid() {
		utils.Error(c, utils.CodeInvalidParam, "Unknown state "+string(req.State))
		return
	}

	o, err := h.orderService.UpdateState(c.Request.Context(), id, req.State, req.ActorID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, o)
}

// Cancel cancels an unpaid order
func (h *OrderHandler) Cancel(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	o, err := h.orderService.Cancel(c.Request.Context(), id, req.Reason, req.ActorID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, o)
}

// Pay records a payment
func (h *OrderHandler) Pay(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req PayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	o, err := h.orderService.MarkPaid(c.Request.Context(), id, req.PaymentReference, req.ActorID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, o)
}
