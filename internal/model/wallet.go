package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AccountKind owner class of a ledger entry
type AccountKind string

const (
	AccountSeller   AccountKind = "SELLER"
	AccountPlatform AccountKind = "PLATFORM"
)

// Account identifies a ledger owner: either one seller or the platform.
// Construct with SellerAccount or PlatformAccount.
type Account struct {
	Kind     AccountKind
	SellerID uint64
}

// SellerAccount the ledger of one seller
func SellerAccount(sellerID uint64) Account {
	return Account{Kind: AccountSeller, SellerID: sellerID}
}

// PlatformAccount the platform's fee ledger
func PlatformAccount() Account {
	return Account{Kind: AccountPlatform}
}

// IsPlatform reports whether a is the platform ledger
func (a Account) IsPlatform() bool {
	return a.Kind == AccountPlatform
}

func (a Account) String() string {
	if a.IsPlatform() {
		return "platform"
	}
	return fmt.Sprintf("seller:%d", a.SellerID)
}

// Owns reports whether e belongs to a
func (a Account) Owns(e *WalletLedgerEntry) bool {
	if e.AccountKind != a.Kind {
		return false
	}
	if a.IsPlatform() {
		return true
	}
	return e.SellerID != nil && *e.SellerID == a.SellerID
}

// EntryType direction of a ledger entry
type EntryType string

const (
	EntryCredit EntryType = "CREDIT"
	EntryDebit  EntryType = "DEBIT"
)

// EntryStatus settlement bucket of a ledger entry
type EntryStatus string

const (
	EntryLocked    EntryStatus = "LOCKED"
	EntryAvailable EntryStatus = "AVAILABLE"
	EntryPaidOut   EntryStatus = "PAID_OUT"
)

// Ledger reasons
const (
	ReasonOrderSale   = "order_sale"
	ReasonPlatformFee = "platform_fee"
	ReasonPayout      = "payout"
)

// WalletLedgerEntry immutable money record. Only Status changes, except a payout
// may shrink Amount and move the difference into a child row (ParentEntryID),
// keeping the sum constant.
type WalletLedgerEntry struct {
	ID              uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountKind     AccountKind     `gorm:"type:varchar(16);not null;index:idx_wallet_account_status,priority:1" json:"account_kind"`
	SellerID        *uint64         `gorm:"type:bigint unsigned;index:idx_wallet_account_status,priority:2" json:"seller_id,omitempty"`
	OrderID         *uint64         `gorm:"type:bigint unsigned;index" json:"order_id,omitempty"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Type            EntryType       `gorm:"type:varchar(8);not null" json:"type"`
	Status          EntryStatus     `gorm:"type:varchar(16);not null;index:idx_wallet_account_status,priority:3;index:idx_wallet_status_created,priority:1" json:"status"`
	Reason          string          `gorm:"type:varchar(64);not null" json:"reason"`
	IdempotencyKey  *string         `gorm:"type:varchar(128);uniqueIndex" json:"-"`
	ParentEntryID   *uint64         `gorm:"type:bigint unsigned;index" json:"parent_entry_id,omitempty"`
	StatusChangedAt *time.Time      `gorm:"type:datetime(3)" json:"status_changed_at,omitempty"`
	CreatedAt       time.Time       `gorm:"type:datetime(3);not null;index:idx_wallet_status_created,priority:2" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"type:datetime(3);not null" json:"updated_at"`
}

// TableName set name
func (WalletLedgerEntry) TableName() string {
	return "wallet_ledger_entries"
}

// Account returns the owner of the entry
func (e *WalletLedgerEntry) Account() Account {
	if e.AccountKind == AccountPlatform || e.SellerID == nil {
		return PlatformAccount()
	}
	return SellerAccount(*e.SellerID)
}

// Signed returns the amount with debits negated
func (e *WalletLedgerEntry) Signed() decimal.Decimal {
	if e.Type == EntryDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// WalletSummary balance per bucket
type WalletSummary struct {
	Account   string          `json:"account"`
	Locked    decimal.Decimal `json:"locked"`
	Available decimal.Decimal `json:"available"`
	PaidOut   decimal.Decimal `json:"paid_out"`
}
