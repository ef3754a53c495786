package types

import (
	"time"

	"github.com/google/uuid"
)

// ProductImage belongs to exactly one Product and is cascade-deleted with it.
// The primary flag is advisory; Position gives the display order.
type ProductImage struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	Product   *Product  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProductID;references:ID" json:"-"`

	ImageURL   string `gorm:"column:image_url;not null" json:"image_url"`
	StorageKey string `gorm:"column:storage_key" json:"storage_key,omitempty"`
	IsPrimary  bool   `gorm:"column:is_primary;default:false" json:"is_primary"`
	Position   int    `gorm:"column:position;default:0" json:"position"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ProductImage) TableName() string { return "product_images" }
