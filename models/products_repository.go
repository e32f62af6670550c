package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProductsRepository struct {
	db *gorm.DB
}

// ErrProductNotFound is returned when a product is not found.
var ErrProductNotFound = errors.New("product not found")

type ProductFilters struct {
	StoreID       *uuid.UUID
	PriceLessThan *float64
	ActiveOnly    bool
}

func NewProductsRepository(db *gorm.DB) *ProductsRepository {
	return &ProductsRepository{
		db: db,
	}
}

func (r *ProductsRepository) GetFilteredProducts(ctx context.Context, offset, limit int, filters ProductFilters) ([]Product, int64, error) {
	var products []Product
	var total int64

	query := r.db.WithContext(ctx).Model(&Product{})

	if filters.StoreID != nil {
		query = query.Where("products.store_id = ?", *filters.StoreID)
	}
	if filters.PriceLessThan != nil {
		query = query.Where("products.retail_price < ?", *filters.PriceLessThan)
	}
	if filters.ActiveOnly {
		query = query.Where("products.is_active = ?", true)
	}

	// Count total after filtering
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("products.code ASC").Offset(offset).Limit(limit).Find(&products).Error; err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

func (r *ProductsRepository) GetByCode(ctx context.Context, code string) (*Product, error) {
	return r.first(ctx, "code = ?", code)
}

func (r *ProductsRepository) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *ProductsRepository) first(ctx context.Context, query string, arg any) (*Product, error) {
	var product Product
	if err := r.db.WithContext(ctx).
		Preload("Variations").
		Preload("PriceTiers").
		Where(query, arg).
		First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err // Other DB error
	}
	return &product, nil
}

// Create saves a product with its variations and tiers after checking the tier invariants.
func (r *ProductsRepository) Create(ctx context.Context, product *Product) error {
	if err := ValidateTiers(product.PriceTiers); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// ReplaceTiers swaps the whole tier set of a product in one transaction.
func (r *ProductsRepository) ReplaceTiers(ctx context.Context, productID uuid.UUID, tiers []PriceTier) error {
	if err := ValidateTiers(tiers); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Product{}).Where("id = ?", productID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to look up product: %w", err)
		}
		if count == 0 {
			return ErrProductNotFound
		}
		if err := tx.Where("product_id = ?", productID).Delete(&PriceTier{}).Error; err != nil {
			return fmt.Errorf("failed to delete tiers: %w", err)
		}
		if len(tiers) == 0 {
			return nil
		}
		for i := range tiers {
			tiers[i].ProductID = productID
		}
		if err := tx.Create(&tiers).Error; err != nil {
			return fmt.Errorf("failed to create tiers: %w", err)
		}
		return nil
	})
}
