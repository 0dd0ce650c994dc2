package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"marketplace/internal/model"
	"marketplace/pkg/utils"
)

// EventReplayer resets outbox events so the processor handles them again
type EventReplayer interface {
	ReplayAggregate(ctx context.Context, aggregateType, aggregateID string) (int64, error)
	ReplayFailed(ctx context.Context) (int64, error)
}

// EventHandler outbox operations
type EventHandler struct {
	replayer EventReplayer
}

// NewEventHandler creates an event handler
func NewEventHandler(replayer EventReplayer) *EventHandler {
	return &EventHandler{replayer: replayer}
}

// ReplayRequest replay body. Without an aggregate id every failed event is
// replayed.
type ReplayRequest struct {
	AggregateType string `json:"aggregate_type"`
	AggregateID   string `json:"aggregate_id"`
}

// Replay schedules events for another processing pass
func (h *EventHandler) Replay(c *gin.Context) {
	var req ReplayRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	var (
		n   int64
		err error
	)
	if req.AggregateID == "" {
		n, err = h.replayer.ReplayFailed(c.Request.Context())
	} else {
		if req.AggregateType == "" {
			req.AggregateType = model.AggregateOrder
		}
		n, err = h.replayer.ReplayAggregate(c.Request.Context(), req.AggregateType, req.AggregateID)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"replayed": n})
}
