package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Product is the relational source of truth for one catalog item. Created
// and updated by ingestion; the retrieval core only reads it.
type Product struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ExternalID  *string   `gorm:"column:external_id;uniqueIndex" json:"external_id,omitempty"`
	Title       string    `gorm:"column:title;not null" json:"title"`
	Price       float64   `gorm:"column:price" json:"price"`
	Currency    string    `gorm:"column:currency;default:'USD'" json:"currency"`
	Description string    `gorm:"column:description" json:"description"`
	Category    string    `gorm:"column:category;index" json:"category"`

	SizeOptions  datatypes.JSON `gorm:"column:size_options;type:jsonb" json:"size_options"`
	Financing    datatypes.JSON `gorm:"column:financing;type:jsonb" json:"financing"`
	PromoTagline string         `gorm:"column:promo_tagline" json:"promo_tagline"`

	ProductURL string    `gorm:"column:product_url;uniqueIndex;not null" json:"product_url"`
	ScrapedAt  time.Time `gorm:"column:scraped_at;index" json:"scraped_at"`

	Images     []ProductImage    `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProductID;references:ID" json:"images,omitempty"`
	Embeddings []EmbeddingRecord `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProductID;references:ID" json:"-"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Product) TableName() string { return "products" }
