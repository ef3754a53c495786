package repos

import (
  "context"
  "errors"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/jibbs1703/Retail-Chat-Agent/internal/logger"
  "github.com/jibbs1703/Retail-Chat-Agent/internal/types"
)

var ErrProductNotFound = errors.New("product not found")

type ProductRepo interface {
  Upsert(ctx context.Context, tx *gorm.DB, product *types.Product) (*types.Product, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Product, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Product, error)
  GetByProductURL(ctx context.Context, tx *gorm.DB, url string) (*types.Product, error)
  ListByCategory(ctx context.Context, tx *gorm.DB, category string, limit int) ([]*types.Product, error)
  DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type productRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewProductRepo(db *gorm.DB, baseLog *logger.Logger) ProductRepo {
  repoLog := baseLog.With("repo", "ProductRepo")
  return &productRepo{db: db, log: repoLog}
}

// Upsert inserts or, on product_url conflict, refreshes the catalog fields
// and the updated timestamp. Ingestion owns product lifecycle; search only
// ever reads.
func (r *productRepo) Upsert(ctx context.Context, tx *gorm.DB, product *types.Product) (*types.Product, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if product == nil {
    return nil, errors.New("product required")
  }
  product.UpdatedAt = time.Now().UTC()

  if err := transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns: []clause.Column{{Name: "product_url"}},
      DoUpdates: clause.AssignmentColumns([]string{
        "external_id", "title", "price", "currency", "description", "category",
        "size_options", "financing", "promo_tagline", "scraped_at", "updated_at",
      }),
    }).
    Create(product).Error; err != nil {
    return nil, err
  }

  // The conflict path does not backfill the generated ID.
  if product.ID == uuid.Nil {
    existing, err := r.GetByProductURL(ctx, transaction, product.ProductURL)
    if err != nil {
      return nil, err
    }
    product.ID = existing.ID
  }
  return product, nil
}

func (r *productRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Product, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var result types.Product
  if err := transaction.WithContext(ctx).
    Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
    Where("id = ?", id).
    First(&result).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, ErrProductNotFound
    }
    return nil, err
  }
  return &result, nil
}

func (r *productRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Product, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.Product
  if len(ids) == 0 {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
    Where("id IN ?", ids).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *productRepo) GetByProductURL(ctx context.Context, tx *gorm.DB, url string) (*types.Product, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var result types.Product
  if err := transaction.WithContext(ctx).
    Where("product_url = ?", url).
    First(&result).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, ErrProductNotFound
    }
    return nil, err
  }
  return &result, nil
}

func (r *productRepo) ListByCategory(ctx context.Context, tx *gorm.DB, category string, limit int) ([]*types.Product, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if limit <= 0 {
    limit = 50
  }
  var results []*types.Product
  if err := transaction.WithContext(ctx).
    Where("category = ?", category).
    Order("scraped_at DESC").
    Limit(limit).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *productRepo) DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if err := transaction.WithContext(ctx).
    Where("id = ?", id).
    Delete(&types.Product{}).Error; err != nil {
    return err
  }
  return nil
}
