package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"marketplace/internal/config"
	"marketplace/internal/repository"
	"marketplace/internal/repository/memory"
	"marketplace/pkg/log"
)

// Open connects to MySQL. Duplicate-key errors are translated to
// gorm.ErrDuplicatedKey so repositories can detect replays.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	return open(mysql.Open(cfg.GetDSN()), cfg)
}

func open(dialector gorm.Dialector, cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.New(
			log.GetLogger(),
			logger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  gormLogLevel(cfg.LogLevel),
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"host":     cfg.Host,
		"database": cfg.DBName,
	}).Info("Database connected successfully")
	return db, nil
}

// gormLogLevel maps the configured level onto gorm's logger
func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// Store the repositories and unit of work of one backend
type Store struct {
	UnitOfWork            repository.UnitOfWork
	Listings              repository.ListingRepository
	Orders                repository.OrderRepository
	InventoryTransactions repository.InventoryTransactionRepository
	Events                repository.EventRepository
	Wallet                repository.WalletRepository

	db *gorm.DB
}

// NewStore builds the store for cfg.Driver: "mysql" opens a connection and
// optionally migrates it, "memory" keeps everything in process
func NewStore(cfg config.DatabaseConfig) (*Store, error) {
	switch cfg.Driver {
	case "memory":
		mem := memory.NewStore()
		log.Warn("Using in-memory store, data is lost on restart")
		return &Store{
			UnitOfWork:            mem,
			Listings:              mem.Listings(),
			Orders:                mem.Orders(),
			InventoryTransactions: mem.InventoryTransactions(),
			Events:                mem.Events(),
			Wallet:                mem.Wallet(),
		}, nil
	case "mysql", "":
		db, err := Open(cfg)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := AutoMigrate(db); err != nil {
				return nil, err
			}
		}
		return NewGormStore(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
}

// NewGormStore wires the gorm repositories on db
func NewGormStore(db *gorm.DB) *Store {
	return &Store{
		UnitOfWork:            repository.NewUnitOfWork(db),
		Listings:              repository.NewListingRepository(db),
		Orders:                repository.NewOrderRepository(db),
		InventoryTransactions: repository.NewInventoryTransactionRepository(db),
		Events:                repository.NewEventRepository(db),
		Wallet:                repository.NewWalletRepository(db),
		db:                    db,
	}
}

// Health pings the database. The memory store is always healthy.
func (s *Store) Health(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
