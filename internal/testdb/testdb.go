// Package testdb opens throwaway SQLite databases for package tests.
package testdb

import (
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mytheresa/storefront-engine/models"
)

// Open creates an in-memory SQLite database with every table migrated.
// The pool is pinned to one connection so all goroutines see the same database.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// Product inserts an active product with the given on-hand stock.
func Product(t *testing.T, db *gorm.DB, code string, stock int) *models.Product {
	t.Helper()

	p := &models.Product{
		Code:        code,
		Name:        "Product " + code,
		RetailPrice: decimal.NewFromInt(20),
		Stock:       stock,
		IsActive:    true,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("failed to create product: %v", err)
	}
	return p
}

// Variation inserts an active variation of product with the given on-hand stock.
func Variation(t *testing.T, db *gorm.DB, product *models.Product, color, size string, stock int) *models.ProductVariation {
	t.Helper()

	v := &models.ProductVariation{
		ProductID: product.ID,
		Color:     color,
		Size:      size,
		Stock:     stock,
		IsActive:  true,
	}
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("failed to create variation: %v", err)
	}
	return v
}
