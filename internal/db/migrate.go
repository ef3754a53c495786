package db

import (
	"gorm.io/gorm"

	"github.com/jibbs1703/Retail-Chat-Agent/internal/types"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Catalog
		&types.Product{},
		&types.ProductImage{},

		// Vector index ledger
		&types.EmbeddingRecord{},
	)
}
