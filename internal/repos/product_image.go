package repos

import (
  "context"
  "errors"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/jibbs1703/Retail-Chat-Agent/internal/logger"
  "github.com/jibbs1703/Retail-Chat-Agent/internal/types"
)

var ErrProductImageNotFound = errors.New("product image not found")

type ProductImageRepo interface {
  ReplaceForProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID, images []*types.ProductImage) ([]*types.ProductImage, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ProductImage, error)
  GetByProductID(ctx context.Context, tx *gorm.DB, productID uuid.UUID) ([]*types.ProductImage, error)
  DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
  DeleteByProductID(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error
}

type productImageRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewProductImageRepo(db *gorm.DB, baseLog *logger.Logger) ProductImageRepo {
  repoLog := baseLog.With("repo", "ProductImageRepo")
  return &productImageRepo{db: db, log: repoLog}
}

// ReplaceForProduct upserts the image set keyed by (product_id, image_url):
// existing URLs keep their row (and so their embedding records), new URLs are
// inserted, vanished URLs are removed.
func (r *productImageRepo) ReplaceForProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID, images []*types.ProductImage) ([]*types.ProductImage, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  existing, err := r.GetByProductID(ctx, transaction, productID)
  if err != nil {
    return nil, err
  }
  existingByURL := make(map[string]*types.ProductImage, len(existing))
  for _, img := range existing {
    existingByURL[img.ImageURL] = img
  }

  keptURLs := make(map[string]struct{}, len(images))
  out := make([]*types.ProductImage, 0, len(images))
  for _, img := range images {
    if img == nil || img.ImageURL == "" {
      continue
    }
    img.ProductID = productID
    keptURLs[img.ImageURL] = struct{}{}
    if prior, ok := existingByURL[img.ImageURL]; ok {
      img.ID = prior.ID
    }
    if err := transaction.WithContext(ctx).
      Clauses(clause.OnConflict{
        Columns:   []clause.Column{{Name: "id"}},
        DoUpdates: clause.AssignmentColumns([]string{"storage_key", "is_primary", "position", "updated_at"}),
      }).
      Create(img).Error; err != nil {
      return nil, err
    }
    out = append(out, img)
  }

  for url, prior := range existingByURL {
    if _, ok := keptURLs[url]; ok {
      continue
    }
    if err := transaction.WithContext(ctx).
      Where("id = ?", prior.ID).
      Delete(&types.ProductImage{}).Error; err != nil {
      return nil, err
    }
  }
  return out, nil
}

func (r *productImageRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ProductImage, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var result types.ProductImage
  if err := transaction.WithContext(ctx).
    Where("id = ?", id).
    First(&result).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, ErrProductImageNotFound
    }
    return nil, err
  }
  return &result, nil
}

func (r *productImageRepo) GetByProductID(ctx context.Context, tx *gorm.DB, productID uuid.UUID) ([]*types.ProductImage, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.ProductImage
  if err := transaction.WithContext(ctx).
    Where("product_id = ?", productID).
    Order("position ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *productImageRepo) DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if err := transaction.WithContext(ctx).
    Where("id = ?", id).
    Delete(&types.ProductImage{}).Error; err != nil {
    return err
  }
  return nil
}

func (r *productImageRepo) DeleteByProductID(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if err := transaction.WithContext(ctx).
    Where("product_id = ?", productID).
    Delete(&types.ProductImage{}).Error; err != nil {
    return err
  }
  return nil
}
