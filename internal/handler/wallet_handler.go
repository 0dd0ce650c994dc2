package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"marketplace/internal/model"
	"marketplace/internal/service/wallet"
	"marketplace/pkg/utils"
)

// WalletHandler seller and platform balances and payouts
type WalletHandler struct {
	walletService wallet.Service
}

// NewWalletHandler creates a wallet handler
func NewWalletHandler(walletService wallet.Service) *WalletHandler {
	return &WalletHandler{walletService: walletService}
}

// PayoutRequest payout body
type PayoutRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *WalletHandler) summary(c *gin.Context, account model.Account) {
	s, err := h.walletService.GetSummary(c.Request.Context(), account)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, s)
}

// SellerSummary balance of one seller per status
func (h *WalletHandler) SellerSummary(c *gin.Context) {
	sellerID, ok := paramID(c, "id")
	if !ok {
		return
	}
	h.summary(c, model.SellerAccount(sellerID))
}

// PlatformSummary balance of the platform fee ledger
func (h *WalletHandler) PlatformSummary(c *gin.Context) {
	h.summary(c, model.PlatformAccount())
}

// SellerLedger pages through a seller's entries
func (h *WalletHandler) SellerLedger(c *gin.Context) {
	sellerID, ok := paramID(c, "id")
	if !ok {
		return
	}
	page, pageSize := pagination(c)

	entries, total, err := h.walletService.GetLedger(c.Request.Context(), model.SellerAccount(sellerID), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessPageResponse(c, entries, total, page, pageSize)
}

// RequestPayout pays out part of a seller's available balance
func (h *WalletHandler) RequestPayout(c *gin.Context) {
	sellerID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req PayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.walletService.RequestPayout(c.Request.Context(), sellerID, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.CreatedResponse(c, res)
}

// ApprovePayout pays out a seller's whole available balance
func (h *WalletHandler) ApprovePayout(c *gin.Context) {
	sellerID, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.walletService.ApprovePayout(c.Request.Context(), sellerID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, res)
}
