package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultReservationTTL is how long a stock reservation holds when a store sets nothing else.
const DefaultReservationTTL = 24 * time.Hour

// Store is a tenant of the storefront.
// Its settings feed the pricing and reservation rules of every order placed in it.
type Store struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Code                string    `gorm:"uniqueIndex;not null"`
	Name                string    `gorm:"not null"`
	TierBasis           TierBasis `gorm:"type:varchar(20);not null;default:per_line"`
	ReserveOnCreate     bool      `gorm:"not null"`
	ReservationTTLHours int       `gorm:"not null;default:24"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (s *Store) TableName() string {
	return "stores"
}

func (s *Store) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s Store) ReservationTTL() time.Duration {
	if s.ReservationTTLHours <= 0 {
		return DefaultReservationTTL
	}
	return time.Duration(s.ReservationTTLHours) * time.Hour
}
