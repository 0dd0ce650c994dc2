package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"marketplace/internal/model"
	"marketplace/internal/monitor"
	"marketplace/internal/notify"
	"marketplace/internal/repository"
	"marketplace/pkg/log"
)

// DefaultHoldWindow how long seller earnings stay locked
const DefaultHoldWindow = 7 * 24 * time.Hour

// CronService moves seller earnings out of the hold window
type CronService struct {
	uow        repository.UnitOfWork
	repo       repository.WalletRepository
	notifier   notify.Notifier
	metrics    *monitor.Metrics
	holdWindow time.Duration
	batchSize  int
	now        func() time.Time
}

// NewCronService creates the locked-funds release job
func NewCronService(
	uow repository.UnitOfWork,
	repo repository.WalletRepository,
	notifier notify.Notifier,
	metrics *monitor.Metrics,
	holdWindow time.Duration,
	batchSize int,
) *CronService {
	if holdWindow <= 0 {
		holdWindow = DefaultHoldWindow
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &CronService{
		uow:        uow,
		repo:       repo,
		notifier:   notifier,
		metrics:    metrics,
		holdWindow: holdWindow,
		batchSize:  batchSize,
		now:        time.Now,
	}
}

// ReleaseLockedFunds makes LOCKED entries older than the hold window
// AVAILABLE, one transaction per entry, and notifies the owning seller after
// each commit. Returns how many entries were released.
func (c *CronService) ReleaseLockedFunds(ctx context.Context) (int, error) {
	cutoff := c.now().Add(-c.holdWindow)
	entries, err := c.repo.ListLockedBefore(ctx, cutoff, c.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list locked entries: %w", err)
	}

	released := 0
	var errs []error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		var moved bool
		err := c.uow.RunInTx(ctx, func(ctx context.Context) error {
			var err error
			moved, err = c.repo.UpdateStatus(ctx, entry.ID, model.EntryLocked, model.EntryAvailable, c.now())
			return err
		})
		if err != nil {
			log.WithError(err).WithField("entry_id", entry.ID).Error("Failed to release locked funds")
			errs = append(errs, err)
			continue
		}
		if !moved {
			continue
		}
		released++

		if entry.AccountKind == model.AccountSeller && entry.SellerID != nil {
			c.notifySeller(ctx, *entry.SellerID, entry)
		}
	}

	c.metrics.FundsReleased(released)
	if released > 0 {
		log.WithFields(logrus.Fields{
			"released": released,
			"cutoff":   cutoff,
		}).Info("Locked funds released")
	}
	return released, errors.Join(errs...)
}

func (c *CronService) notifySeller(ctx context.Context, sellerID uint64, entry *model.WalletLedgerEntry) {
	msg := fmt.Sprintf("%s is now available for payout", entry.Amount.StringFixed(2))
	if entry.OrderID != nil {
		msg = fmt.Sprintf("%s from order %d is now available for payout", entry.Amount.StringFixed(2), *entry.OrderID)
	}
	err := c.notifier.Notify(ctx, notify.Notification{
		UserID:  sellerID,
		Kind:    notify.KindFundsAvailable,
		Title:   "Funds available",
		Message: msg,
	})
	if err != nil {
		log.WithError(err).WithField("seller_id", sellerID).Warn("Failed to notify seller")
	}
}
