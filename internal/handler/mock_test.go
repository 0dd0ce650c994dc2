package handler

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"marketplace/internal/model"
	"marketplace/internal/service/inventory"
	"marketplace/internal/service/order"
	"marketplace/internal/service/wallet"
)

// MockOrderService mock order service
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) Create(ctx context.Context, req order.CreateOrderRequest) (*model.Order, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) UpdateState(ctx context.Context, orderID uint64, next model.OrderState, actorID string) (*model.Order, error) {
	args := m.Called(ctx, orderID, next, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) Cancel(ctx context.Context, orderID uint64, reason, actorID string) (*model.Order, error) {
	args := m.Called(ctx, orderID, reason, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) MarkPaid(ctx context.Context, orderID uint64, paymentRef, actorID string) (*model.Order, error) {
	args := m.Called(ctx, orderID, paymentRef, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) Get(ctx context.Context, orderID uint64) (*model.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) GetByNumber(ctx context.Context, number string) (*model.Order, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) ListByBuyer(ctx context.Context, buyerID uint64, page, pageSize int) ([]*model.Order, int64, error) {
	args := m.Called(ctx, buyerID, page, pageSize)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*model.Order), args.Get(1).(int64), args.Error(2)
}

// MockLedger mock inventory ledger
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) txResult(args mock.Arguments) (*model.InventoryTransaction, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.InventoryTransaction), args.Error(1)
}

func (m *MockLedger) Reserve(ctx context.Context, line inventory.OrderLine) (*model.InventoryTransaction, error) {
	return m.txResult(m.Called(ctx, line))
}

func (m *MockLedger) Release(ctx context.Context, line inventory.OrderLine) (*model.InventoryTransaction, error) {
	return m.txResult(m.Called(ctx, line))
}

func (m *MockLedger) Deduct(ctx context.Context, line inventory.OrderLine) (*model.InventoryTransaction, error) {
	return m.txResult(m.Called(ctx, line))
}

func (m *MockLedger) Adjust(ctx context.Context, listingID uint64, req inventory.AdjustRequest) (*model.InventoryTransaction, error) {
	return m.txResult(m.Called(ctx, listingID, req))
}

func (m *MockLedger) History(ctx context.Context, listingID uint64, limit int) ([]*model.InventoryTransaction, error) {
	args := m.Called(ctx, listingID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.InventoryTransaction), args.Error(1)
}

func (m *MockLedger) OrderHistory(ctx context.Context, orderID uint64) ([]*model.InventoryTransaction, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.InventoryTransaction), args.Error(1)
}

// MockWallet mock wallet service
type MockWallet struct {
	mock.Mock
}

func (m *MockWallet) CreditLocked(ctx context.Context, sellerID, orderID uint64, amount decimal.Decimal, reason string) (*model.WalletLedgerEntry, error) {
	args := m.Called(ctx, sellerID, orderID, amount, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WalletLedgerEntry), args.Error(1)
}

func (m *MockWallet) CreditPlatformFee(ctx context.Context, orderID uint64, amount decimal.Decimal) (*model.WalletLedgerEntry, error) {
	args := m.Called(ctx, orderID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WalletLedgerEntry), args.Error(1)
}

func (m *MockWallet) SettleOrder(ctx context.Context, s wallet.Settlement) (*wallet.SettlementResult, error) {
	args := m.Called(ctx, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.SettlementResult), args.Error(1)
}

func (m *MockWallet) GetSummary(ctx context.Context, account model.Account) (*model.WalletSummary, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WalletSummary), args.Error(1)
}

func (m *MockWallet) GetLedger(ctx context.Context, account model.Account, page, pageSize int) ([]*model.WalletLedgerEntry, int64, error) {
	args := m.Called(ctx, account, page, pageSize)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*model.WalletLedgerEntry), args.Get(1).(int64), args.Error(2)
}

func (m *MockWallet) RequestPayout(ctx context.Context, sellerID uint64, amount decimal.Decimal) (*wallet.PayoutResult, error) {
	args := m.Called(ctx, sellerID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.PayoutResult), args.Error(1)
}

func (m *MockWallet) ApprovePayout(ctx context.Context, sellerID uint64) (*wallet.ApprovalResult, error) {
	args := m.Called(ctx, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.ApprovalResult), args.Error(1)
}

// MockReplayer mock event replayer
type MockReplayer struct {
	mock.Mock
}

func (m *MockReplayer) ReplayAggregate(ctx context.Context, aggregateType, aggregateID string) (int64, error) {
	args := m.Called(ctx, aggregateType, aggregateID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockReplayer) ReplayFailed(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

var (
	_ order.Service    = (*MockOrderService)(nil)
	_ inventory.Ledger = (*MockLedger)(nil)
	_ wallet.Service   = (*MockWallet)(nil)
	_ EventReplayer    = (*MockReplayer)(nil)
)
