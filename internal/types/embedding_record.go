package types

import (
	"time"

	"github.com/google/uuid"
)

// Embedding types tracked by the ledger. Each maps to one vector index
// collection.
const (
	EmbeddingTypeText    = "text"
	EmbeddingTypeImage   = "image"
	EmbeddingTypeCaption = "caption"
)

// EmbeddingRecord is the ledger row binding one embedding to one vector index
// location. It is the only authoritative map from a (collection, point_id)
// pair back to catalog identity. At most one current embedding exists per
// (product, image, embedding_type); re-embedding replaces the row and the
// vector point together, never duplicates.
type EmbeddingRecord struct {
	ID        uuid.UUID     `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProductID uuid.UUID     `gorm:"type:uuid;not null;index;uniqueIndex:idx_embedding_owner_type;index:idx_embedding_product_owner,unique,where:image_id IS NULL" json:"product_id"`
	Product   *Product      `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProductID;references:ID" json:"-"`
	ImageID   *uuid.UUID    `gorm:"type:uuid;uniqueIndex:idx_embedding_owner_type" json:"image_id,omitempty"`
	Image     *ProductImage `gorm:"constraint:OnDelete:CASCADE;foreignKey:ImageID;references:ID" json:"-"`

	// Postgres treats NULLs as distinct, so idx_embedding_owner_type alone
	// cannot enforce uniqueness of product-level rows (image_id IS NULL);
	// idx_embedding_product_owner is the partial index that does.
	EmbeddingType string `gorm:"column:embedding_type;not null;uniqueIndex:idx_embedding_owner_type;index:idx_embedding_product_owner,unique,where:image_id IS NULL" json:"embedding_type"`
	ModelName     string `gorm:"column:model_name;not null" json:"model_name"`

	Collection string `gorm:"column:collection;not null;index:idx_embedding_point" json:"collection"`
	PointID    string `gorm:"column:point_id;not null;index:idx_embedding_point" json:"point_id"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (EmbeddingRecord) TableName() string { return "embedding_records" }
