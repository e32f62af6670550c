package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrStoreNotFound is returned when a store is not found.
var ErrStoreNotFound = errors.New("store not found")

type StoresRepository struct {
	db *gorm.DB
}

func NewStoresRepository(db *gorm.DB) *StoresRepository {
	return &StoresRepository{db: db}
}

func (r *StoresRepository) GetAllStores(ctx context.Context) ([]Store, error) {
	var stores []Store
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&stores).Error; err != nil {
		return nil, err
	}
	return stores, nil
}

func (r *StoresRepository) CreateStore(ctx context.Context, store *Store) error {
	if store.TierBasis == "" {
		store.TierBasis = TierBasisPerLine
	}
	if err := r.db.WithContext(ctx).Create(store).Error; err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	return nil
}

func (r *StoresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Store, error) {
	var store Store
	if err := r.db.WithContext(ctx).First(&store, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStoreNotFound
		}
		return nil, err
	}
	return &store, nil
}
