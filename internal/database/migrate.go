package database

import (
	"fmt"

	"gorm.io/gorm"

	"storefront/internal/model"
	"storefront/pkg/log"
)

// AutoMigrate creates or updates the products and sale_records tables
func AutoMigrate(db *gorm.DB) error {
	models := []interface{}{
		&model.Product{},
		&model.SaleRecord{},
	}

	for _, m := range models {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", m, err)
		}
		log.Infof("Migrated model: %T", m)
	}
	return nil
}
