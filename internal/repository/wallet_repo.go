package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marketplace/internal/model"
)

// StatusSums signed balance per status bucket
type StatusSums map[model.EntryStatus]decimal.Decimal

// WalletRepository wallet ledger access
type WalletRepository interface {
	// Create appends an entry. Returns ErrDuplicate when the idempotency key is taken.
	Create(ctx context.Context, entry *model.WalletLedgerEntry) error

	// FindByIdempotencyKey gets the entry written under key
	FindByIdempotencyKey(ctx context.Context, key string) (*model.WalletLedgerEntry, error)

	// SumByStatus returns Σ CREDIT − Σ DEBIT per status for one account
	SumByStatus(ctx context.Context, account model.Account) (StatusSums, error)

	// List pages through an account's entries, newest first
	List(ctx context.Context, account model.Account, page, pageSize int) ([]*model.WalletLedgerEntry, int64, error)

	// ListAvailableForUpdate locks the account's AVAILABLE credits, oldest first
	ListAvailableForUpdate(ctx context.Context, account model.Account) ([]*model.WalletLedgerEntry, error)

	// UpdateStatus moves one entry from one status to another. Reports false
	// when the entry was no longer in the from status.
	UpdateStatus(ctx context.Context, id uint64, from, to model.EntryStatus, at time.Time) (bool, error)

	// UpdateAmount rewrites the amount of an entry being split
	UpdateAmount(ctx context.Context, id uint64, amount decimal.Decimal) error

	// ListLockedBefore lists LOCKED entries created before cutoff, oldest first
	ListLockedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.WalletLedgerEntry, error)

	// MarkAllAvailablePaidOut moves every AVAILABLE entry of the account to PAID_OUT
	MarkAllAvailablePaidOut(ctx context.Context, account model.Account, at time.Time) (int64, error)
}

type walletRepository struct {
	db *gorm.DB
}

// NewWalletRepository creates a wallet repository
func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

// scopeAccount restricts a query to one ledger owner
func scopeAccount(account model.Account) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if account.IsPlatform() {
			return db.Where("account_kind = ?", model.AccountPlatform)
		}
		return db.Where("account_kind = ? AND seller_id = ?", model.AccountSeller, account.SellerID)
	}
}

func (r *walletRepository) Create(ctx context.Context, entry *model.WalletLedgerEntry) error {
	return translate(conn(ctx, r.db).Create(entry).Error)
}

func (r *walletRepository) FindByIdempotencyKey(ctx context.Context, key string) (*model.WalletLedgerEntry, error) {
	var entry model.WalletLedgerEntry
	if err := conn(ctx, r.db).Where("idempotency_key = ?", key).First(&entry).Error; err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}

type statusSumRow struct {
	Status model.EntryStatus
	Type   model.EntryType
	Total  decimal.Decimal
}

func (r *walletRepository) SumByStatus(ctx context.Context, account model.Account) (StatusSums, error) {
	var rows []statusSumRow
	err := conn(ctx, r.db).
		Model(&model.WalletLedgerEntry{}).
		Scopes(scopeAccount(account)).
		Select("status, type, COALESCE(SUM(amount), 0) AS total").
		Group("status, type").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}

	sums := StatusSums{
		model.EntryLocked:    decimal.Zero,
		model.EntryAvailable: decimal.Zero,
		model.EntryPaidOut:   decimal.Zero,
	}
	for _, row := range rows {
		if row.Type == model.EntryDebit {
			sums[row.Status] = sums[row.Status].Sub(row.Total)
		} else {
			sums[row.Status] = sums[row.Status].Add(row.Total)
		}
	}
	return sums, nil
}

func (r *walletRepository) List(ctx context.Context, account model.Account, page, pageSize int) ([]*model.WalletLedgerEntry, int64, error) {
	var entries []*model.WalletLedgerEntry
	var total int64
	offset, limit := pageBounds(page, pageSize)

	query := func() *gorm.DB {
		return conn(ctx, r.db).Model(&model.WalletLedgerEntry{}).Scopes(scopeAccount(account))
	}
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}
	err := query().Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return entries, total, nil
}

func (r *walletRepository) ListAvailableForUpdate(ctx context.Context, account model.Account) ([]*model.WalletLedgerEntry, error) {
	var entries []*model.WalletLedgerEntry
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(scopeAccount(account)).
		Where("status = ? AND type = ?", model.EntryAvailable, model.EntryCredit).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	return entries, translate(err)
}

func (r *walletRepository) UpdateStatus(ctx context.Context, id uint64, from, to model.EntryStatus, at time.Time) (bool, error) {
	result := conn(ctx, r.db).
		Model(&model.WalletLedgerEntry{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":            to,
			"status_changed_at": at,
		})
	if result.Error != nil {
		return false, translate(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *walletRepository) UpdateAmount(ctx context.Context, id uint64, amount decimal.Decimal) error {
	result := conn(ctx, r.db).
		Model(&model.WalletLedgerEntry{}).
		Where("id = ?", id).
		Update("amount", amount)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *walletRepository) ListLockedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.WalletLedgerEntry, error) {
	var entries []*model.WalletLedgerEntry
	err := conn(ctx, r.db).
		Where("status = ? AND created_at < ?", model.EntryLocked, cutoff).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, translate(err)
}

func (r *walletRepository) MarkAllAvailablePaidOut(ctx context.Context, account model.Account, at time.Time) (int64, error) {
	result := conn(ctx, r.db).
		Model(&model.WalletLedgerEntry{}).
		Scopes(scopeAccount(account)).
		Where("status = ?", model.EntryAvailable).
		Updates(map[string]interface{}{
			"status":            model.EntryPaidOut,
			"status_changed_at": at,
		})
	return result.RowsAffected, translate(result.Error)
}
