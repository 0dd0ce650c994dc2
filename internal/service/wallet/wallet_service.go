package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"marketplace/internal/model"
	"marketplace/internal/monitor"
	"marketplace/internal/notify"
	"marketplace/internal/repository"
	"marketplace/pkg/log"
)

var (
	// ErrInvalidAmount amounts must be positive
	ErrInvalidAmount = errors.New("wallet: amount must be positive")
	// ErrInsufficientBalance payout exceeds the available balance
	ErrInsufficientBalance = errors.New("wallet: insufficient available balance")
)

// Settlement the money side of a paid order
type Settlement struct {
	OrderID  uint64
	SellerID uint64
	Subtotal decimal.Decimal
	Total    decimal.Decimal
}

// SettlementResult entries written for a settlement
type SettlementResult struct {
	SellerCredit *model.WalletLedgerEntry
	PlatformFee  *model.WalletLedgerEntry
	Commission   decimal.Decimal
}

// PayoutResult outcome of a payout request
type PayoutResult struct {
	SellerID uint64                     `json:"seller_id"`
	Amount   decimal.Decimal            `json:"amount"`
	Entries  []*model.WalletLedgerEntry `json:"entries"`
}

// ApprovalResult outcome of a bulk payout approval
type ApprovalResult struct {
	SellerID uint64          `json:"seller_id"`
	Entries  int64           `json:"entries"`
	Amount   decimal.Decimal `json:"amount"`
}

// Service seller and platform wallet ledger
type Service interface {
	// CreditLocked records a seller's earnings, held until the hold window passes
	CreditLocked(ctx context.Context, sellerID, orderID uint64, amount decimal.Decimal, reason string) (*model.WalletLedgerEntry, error)

	// CreditPlatformFee records the platform's commission on an order
	CreditPlatformFee(ctx context.Context, orderID uint64, amount decimal.Decimal) (*model.WalletLedgerEntry, error)

	// SettleOrder splits a paid order between seller and platform
	SettleOrder(ctx context.Context, s Settlement) (*SettlementResult, error)

	// GetSummary balance per status
	GetSummary(ctx context.Context, account model.Account) (*model.WalletSummary, error)

	// GetLedger pages through the entries of an account
	GetLedger(ctx context.Context, account model.Account, page, pageSize int) ([]*model.WalletLedgerEntry, int64, error)

	// RequestPayout pays out part of the available balance, oldest entries first
	RequestPayout(ctx context.Context, sellerID uint64, amount decimal.Decimal) (*PayoutResult, error)

	// ApprovePayout marks the whole available balance as paid out
	ApprovePayout(ctx context.Context, sellerID uint64) (*ApprovalResult, error)
}

type service struct {
	uow            repository.UnitOfWork
	repo           repository.WalletRepository
	notifier       notify.Notifier
	metrics        *monitor.Metrics
	commissionRate decimal.Decimal
	now            func() time.Time
}

// NewService creates a wallet service
func NewService(
	uow repository.UnitOfWork,
	repo repository.WalletRepository,
	notifier notify.Notifier,
	metrics *monitor.Metrics,
	commissionRate decimal.Decimal,
) Service {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &service{
		uow:            uow,
		repo:           repo,
		notifier:       notifier,
		metrics:        metrics,
		commissionRate: commissionRate,
		now:            time.Now,
	}
}

// IdempotencyKey key of the credit written for an order and reason
func IdempotencyKey(orderID uint64, reason string) string {
	return fmt.Sprintf("order:%d:%s", orderID, reason)
}

// Commission platform share of an order subtotal, rounded to cents
func Commission(subtotal, rate decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(rate).Round(2)
}

// credit writes an entry once per idempotency key
func (s *service) credit(ctx context.Context, entry *model.WalletLedgerEntry) (*model.WalletLedgerEntry, error) {
	if !entry.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	key := *entry.IdempotencyKey

	var out *model.WalletLedgerEntry
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindByIdempotencyKey(ctx, key)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		entry.CreatedAt = s.now()
		if err := s.repo.Create(ctx, entry); err != nil {
			return err
		}
		out = entry
		s.metrics.WalletCredit(entry.Reason)
		return nil
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return s.repo.FindByIdempotencyKey(ctx, key)
	}
	if err != nil {
		return nil, fmt.Errorf("wallet credit %s: %w", key, err)
	}
	return out, nil
}

func (s *service) CreditLocked(ctx context.Context, sellerID, orderID uint64, amount decimal.Decimal, reason string) (*model.WalletLedgerEntry, error) {
	key := IdempotencyKey(orderID, reason)
	return s.credit(ctx, &model.WalletLedgerEntry{
		AccountKind:    model.AccountSeller,
		SellerID:       &sellerID,
		OrderID:        &orderID,
		Amount:         amount,
		Type:           model.EntryCredit,
		Status:         model.EntryLocked,
		Reason:         reason,
		IdempotencyKey: &key,
	})
}

func (s *service) CreditPlatformFee(ctx context.Context, orderID uint64, amount decimal.Decimal) (*model.WalletLedgerEntry, error) {
	key := IdempotencyKey(orderID, model.ReasonPlatformFee)
	return s.credit(ctx, &model.WalletLedgerEntry{
		AccountKind:    model.AccountPlatform,
		OrderID:        &orderID,
		Amount:         amount,
		Type:           model.EntryCredit,
		Status:         model.EntryAvailable,
		Reason:         model.ReasonPlatformFee,
		IdempotencyKey: &key,
	})
}

func (s *service) SettleOrder(ctx context.Context, st Settlement) (*SettlementResult, error) {
	commission := Commission(st.Subtotal, s.commissionRate)
	if commission.GreaterThan(st.Total) {
		commission = st.Total
	}
	result := &SettlementResult{Commission: commission}

	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		sellerShare := st.Total.Sub(commission)
		if sellerShare.IsPositive() {
			entry, err := s.CreditLocked(ctx, st.SellerID, st.OrderID, sellerShare, model.ReasonOrderSale)
			if err != nil {
				return err
			}
			result.SellerCredit = entry
		}
		if commission.IsPositive() {
			entry, err := s.CreditPlatformFee(ctx, st.OrderID, commission)
			if err != nil {
				return err
			}
			result.PlatformFee = entry
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"order_id":   st.OrderID,
		"seller_id":  st.SellerID,
		"total":      st.Total.StringFixed(2),
		"commission": commission.StringFixed(2),
	}).Info("Order settled")
	return result, nil
}

func (s *service) GetSummary(ctx context.Context, account model.Account) (*model.WalletSummary, error) {
	sums, err := s.repo.SumByStatus(ctx, account)
	if err != nil {
		return nil, err
	}
	return &model.WalletSummary{
		Account:   account.String(),
		Locked:    sums[model.EntryLocked],
		Available: sums[model.EntryAvailable],
		PaidOut:   sums[model.EntryPaidOut],
	}, nil
}

func (s *service) GetLedger(ctx context.Context, account model.Account, page, pageSize int) ([]*model.WalletLedgerEntry, int64, error) {
	return s.repo.List(ctx, account, page, pageSize)
}

func (s *service) RequestPayout(ctx context.Context, sellerID uint64, amount decimal.Decimal) (*PayoutResult, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	account := model.SellerAccount(sellerID)
	result := &PayoutResult{SellerID: sellerID, Amount: amount}

	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		rows, err := s.repo.ListAvailableForUpdate(ctx, account)
		if err != nil {
			return err
		}
		available := decimal.Zero
		for _, row := range rows {
			available = available.Add(row.Amount)
		}
		if amount.GreaterThan(available) {
			return fmt.Errorf("%w: requested %s, available %s",
				ErrInsufficientBalance, amount.StringFixed(2), available.StringFixed(2))
		}

		now := s.now()
		remaining := amount
		for _, row := range rows {
			if !remaining.IsPositive() {
				break
			}
			if row.Amount.LessThanOrEqual(remaining) {
				if _, err := s.repo.UpdateStatus(ctx, row.ID, model.EntryAvailable, model.EntryPaidOut, now); err != nil {
					return err
				}
				row.Status = model.EntryPaidOut
				row.StatusChangedAt = &now
				remaining = remaining.Sub(row.Amount)
				result.Entries = append(result.Entries, row)
				continue
			}

			// split: the origin keeps the unconsumed part, the child carries the payout
			kept := row.Amount.Sub(remaining)
			if err := s.repo.UpdateAmount(ctx, row.ID, kept); err != nil {
				return err
			}
			parentID := row.ID
			child := &model.WalletLedgerEntry{
				AccountKind:     row.AccountKind,
				SellerID:        row.SellerID,
				OrderID:         row.OrderID,
				Amount:          remaining,
				Type:            model.EntryCredit,
				Status:          model.EntryPaidOut,
				Reason:          row.Reason,
				ParentEntryID:   &parentID,
				StatusChangedAt: &now,
				CreatedAt:       now,
			}
			if err := s.repo.Create(ctx, child); err != nil {
				return err
			}
			result.Entries = append(result.Entries, child)
			remaining = decimal.Zero
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Payout("request")
	log.WithFields(logrus.Fields{
		"seller_id": sellerID,
		"amount":    amount.StringFixed(2),
		"entries":   len(result.Entries),
	}).Info("Payout requested")
	s.notify(ctx, sellerID, "Payout requested", fmt.Sprintf("A payout of %s is on its way", amount.StringFixed(2)))
	return result, nil
}

func (s *service) ApprovePayout(ctx context.Context, sellerID uint64) (*ApprovalResult, error) {
	account := model.SellerAccount(sellerID)
	result := &ApprovalResult{SellerID: sellerID}

	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		// lock the rows first so the amount reported matches what is marked
		if _, err := s.repo.ListAvailableForUpdate(ctx, account); err != nil {
			return err
		}
		sums, err := s.repo.SumByStatus(ctx, account)
		if err != nil {
			return err
		}
		n, err := s.repo.MarkAllAvailablePaidOut(ctx, account, s.now())
		if err != nil {
			return err
		}
		result.Entries = n
		result.Amount = sums[model.EntryAvailable]
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Payout("approve")
	log.WithFields(logrus.Fields{
		"seller_id": sellerID,
		"entries":   result.Entries,
		"amount":    result.Amount.StringFixed(2),
	}).Info("Payout approved")
	if result.Entries > 0 {
		s.notify(ctx, sellerID, "Payout approved", fmt.Sprintf("%s has been paid out", result.Amount.StringFixed(2)))
	}
	return result, nil
}

// notify is fire-and-forget; delivery failures never undo ledger changes
func (s *service) notify(ctx context.Context, sellerID uint64, title, message string) {
	err := s.notifier.Notify(ctx, notify.Notification{
		UserID:  sellerID,
		Kind:    notify.KindPayout,
		Title:   title,
		Message: message,
	})
	if err != nil {
		log.WithError(err).WithField("seller_id", sellerID).Warn("Failed to notify seller")
	}
}
