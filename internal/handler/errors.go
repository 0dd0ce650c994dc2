package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"marketplace/internal/service/inventory"
	"marketplace/internal/service/order"
	"marketplace/internal/service/wallet"
	"marketplace/pkg/utils"
)

var errorCodes = []struct {
	err  error
	code utils.ResponseCode
}{
	{order.ErrOrderNotFound, utils.CodeNotFound},
	{order.ErrListingNotFound, utils.CodeNotFound},
	{inventory.ErrListingNotFound, utils.CodeNotFound},
	{inventory.ErrReservationNotFound, utils.CodeNotFound},
	{order.ErrInvalidTransition, utils.CodeInvalidTransition},
	{order.ErrCannotCancel, utils.CodeInvalidTransition},
	{inventory.ErrInsufficientStock, utils.CodeStockNotEnough},
	{wallet.ErrInsufficientBalance, utils.CodeBalanceNotEnough},
	{order.ErrMultipleSellers, utils.CodeMultiSellerCart},
	{order.ErrListingInactive, utils.CodeListingUnavailable},
	{order.ErrDuplicatePayment, utils.CodeConflict},
	{inventory.ErrReservationFinalized, utils.CodeConflict},
	{inventory.ErrReservationMismatch, utils.CodeConflict},
	{order.ErrEmptyOrder, utils.CodeInvalidParam},
	{order.ErrInvalidQuantity, utils.CodeInvalidParam},
	{order.ErrInvalidDiscount, utils.CodeInvalidParam},
	{order.ErrInvalidPaymentReference, utils.CodeInvalidParam},
	{inventory.ErrInvalidQuantity, utils.CodeInvalidParam},
	{inventory.ErrInvalidAdjustment, utils.CodeInvalidParam},
	{wallet.ErrInvalidAmount, utils.CodeInvalidParam},
}

// toAppError classifies a service error for the response
func toAppError(err error) *utils.AppError {
	if appErr, ok := utils.AsAppError(err); ok {
		return appErr
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return utils.NewError(ec.code, err.Error())
		}
	}
	return utils.WrapError(err, utils.CodeInternalError, utils.ErrInternalError.Message)
}

// respondError writes err and records it on the gin context for the logger
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	utils.ErrorFrom(c, toAppError(err))
}

// paramID parses a positive uint64 path parameter
func paramID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.Error(c, utils.CodeInvalidParam, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// pagination reads page and page_size query parameters
func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 20
	}
	return page, pageSize
}

// badRequest rejects a body that failed binding
func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	utils.Error(c, utils.CodeInvalidParam, err.Error())
}
