package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound no row matched
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicate a unique key rejected the write
	ErrDuplicate = errors.New("repository: duplicate key")
)

// UnitOfWork runs fn atomically. If ctx already carries a transaction fn joins
// it, otherwise a new transaction is opened and committed when fn returns nil.
// Repositories called with the ctx handed to fn participate in the transaction.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// ContextWithTx attaches a transaction handle to ctx
func ContextWithTx(ctx context.Context, handle interface{}) context.Context {
	return context.WithValue(ctx, txKey{}, handle)
}

// TxHandle returns the transaction handle carried by ctx
func TxHandle(ctx context.Context) (interface{}, bool) {
	h := ctx.Value(txKey{})
	return h, h != nil
}

// InTx reports whether ctx carries a transaction
func InTx(ctx context.Context) bool {
	_, ok := TxHandle(ctx)
	return ok
}

type gormUnitOfWork struct {
	db *gorm.DB
}

// NewUnitOfWork creates a gorm backed unit of work
func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &gormUnitOfWork{db: db}
}

func (u *gormUnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TxHandle(ctx); ok {
		return fn(ctx)
	}
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ContextWithTx(ctx, tx))
	})
}

// conn returns the transaction carried by ctx or the base connection
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if h, ok := TxHandle(ctx); ok {
		if tx, ok := h.(*gorm.DB); ok {
			return tx
		}
	}
	return db.WithContext(ctx)
}

// translate maps gorm errors onto repository errors. Duplicate keys are
// recognised when the dialector runs with TranslateError enabled.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

// pageBounds normalises page and size into offset and limit
func pageBounds(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 20
	}
	return (page - 1) * size, size
}
