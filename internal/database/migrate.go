package database

import (
	"fmt"

	"gorm.io/gorm"

	"marketplace/internal/model"
	"marketplace/pkg/log"
)

// Models every persisted model, in dependency order
func Models() []interface{} {
	return []interface{}{
		&model.Listing{},
		&model.Order{},
		&model.OrderItem{},
		&model.InventoryTransaction{},
		&model.Event{},
		&model.WalletLedgerEntry{},
	}
}

// AutoMigrate auto migrate database table schema
func AutoMigrate(db *gorm.DB) error {
	log.Info("Starting database migration...")

	for _, m := range Models() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", m, err)
		}
		log.Infof("Migrated model: %T", m)
	}

	log.Info("Database migration completed successfully")
	return CheckTables(db)
}

// CheckTables verifies every model table exists
func CheckTables(db *gorm.DB) error {
	var missing []string
	for _, m := range Models() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			return fmt.Errorf("failed to parse %T: %w", m, err)
		}
		table := stmt.Schema.Table

		var count int64
		err := db.Raw("SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?", table).Scan(&count).Error
		if err != nil {
			return fmt.Errorf("failed to check table %s: %w", table, err)
		}
		if count == 0 {
			missing = append(missing, table)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing tables: %v", missing)
	}
	log.Info("Table check completed")
	return nil
}
