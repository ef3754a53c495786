package repos

import (
  "context"
  "errors"
  "github.com/google/uuid"
  "github.com/jackc/pgx/v5/pgconn"
  "gorm.io/gorm"
  "github.com/jibbs1703/Retail-Chat-Agent/internal/logger"
  "github.com/jibbs1703/Retail-Chat-Agent/internal/types"
)

var (
  ErrEmbeddingRecordNotFound = errors.New("embedding record not found")
  // ErrDuplicateEmbedding means a concurrent writer already holds the
  // (product, image, embedding_type) slot. Callers serialize on the owner
  // key, so hitting this indicates a bug upstream.
  ErrDuplicateEmbedding = errors.New("embedding record already exists for (product, image, type)")
)

const uniqueViolationCode = "23505"

type EmbeddingRecordRepo interface {
  Create(ctx context.Context, tx *gorm.DB, record *types.EmbeddingRecord) (*types.EmbeddingRecord, error)
  Update(ctx context.Context, tx *gorm.DB, record *types.EmbeddingRecord) (*types.EmbeddingRecord, error)
  GetByOwner(ctx context.Context, tx *gorm.DB, productID uuid.UUID, imageID *uuid.UUID, embeddingType string) (*types.EmbeddingRecord, error)
  GetByPoint(ctx context.Context, tx *gorm.DB, collection, pointID string) (*types.EmbeddingRecord, error)
  GetByProductID(ctx context.Context, tx *gorm.DB, productID uuid.UUID) ([]*types.EmbeddingRecord, error)
  ListByImageID(ctx context.Context, tx *gorm.DB, imageID uuid.UUID) ([]*types.EmbeddingRecord, error)
  ListByModelNot(ctx context.Context, tx *gorm.DB, modelName string, limit int) ([]*types.EmbeddingRecord, error)
  DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
  DeleteByProductID(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error
}

type embeddingRecordRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewEmbeddingRecordRepo(db *gorm.DB, baseLog *logger.Logger) EmbeddingRecordRepo {
  repoLog := baseLog.With("repo", "EmbeddingRecordRepo")
  return &embeddingRecordRepo{db: db, log: repoLog}
}

func (r *embeddingRecordRepo) Create(ctx context.Context, tx *gorm.DB, record *types.EmbeddingRecord) (*types.EmbeddingRecord, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if record == nil {
    return nil, errors.New("embedding record required")
  }

  if err := transaction.WithContext(ctx).Create(record).Error; err != nil {
    var pgErr *pgconn.PgError
    if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
      return nil, ErrDuplicateEmbedding
    }
    return nil, err
  }
  return record, nil
}

func (r *embeddingRecordRepo) Update(ctx context.Context, tx *gorm.DB, record *types.EmbeddingRecord) (*types.EmbeddingRecord, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if record == nil || record.ID == uuid.Nil {
    return nil, errors.New("embedding record with ID required")
  }

  if err := transaction.WithContext(ctx).Save(record).Error; err != nil {
    return nil, err
  }
  return record, nil
}

func (r *embeddingRecordRepo) GetByOwner(ctx context.Context, tx *gorm.DB, productID uuid.UUID, imageID *uuid.UUID, embeddingType string) (*types.EmbeddingRecord, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  query := transaction.WithContext(ctx).
    Where("product_id = ? AND embedding_type = ?", productID, embeddingType)
  if imageID == nil {
    query = query.Where("image_id IS NULL")
  } else {
    query = query.Where("image_id = ?", *imageID)
  }

  var result types.EmbeddingRecord
  if err := query.First(&result).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, ErrEmbeddingRecordNotFound
    }
    return nil, err
  }
  return &result, nil
}

func (r *embeddingRecordRepo) GetByPoint(ctx context.Context, tx *gorm.DB, collection, pointID string) (*types.EmbeddingRecord, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var result types.EmbeddingRecord
  if err := transaction.WithContext(ctx).
    Where("collection = ? AND point_id = ?", collection, pointID).
    First(&result).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, ErrEmbeddingRecordNotFound
    }
    return nil, err
  }
  return &result, nil
}

func (r *embeddingRecordRepo) GetByProductID(ctx context.Context, tx *gorm.DB, productID uuid.UUID) ([]*types.EmbeddingRecord, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.EmbeddingRecord
  if err := transaction.WithContext(ctx).
    Where("product_id = ?", productID).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *embeddingRecordRepo) ListByImageID(ctx context.Context, tx *gorm.DB, imageID uuid.UUID) ([]*types.EmbeddingRecord, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.EmbeddingRecord
  if err := transaction.WithContext(ctx).
    Where("image_id = ?", imageID).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *embeddingRecordRepo) ListByModelNot(ctx context.Context, tx *gorm.DB, modelName string, limit int) ([]*types.EmbeddingRecord, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if limit <= 0 {
    limit = 500
  }
  var results []*types.EmbeddingRecord
  if err := transaction.WithContext(ctx).
    Where("model_name <> ?", modelName).
    Order("created_at ASC").
    Limit(limit).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *embeddingRecordRepo) DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if err := transaction.WithContext(ctx).
    Where("id = ?", id).
    Delete(&types.EmbeddingRecord{}).Error; err != nil {
    return err
  }
  return nil
}

func (r *embeddingRecordRepo) DeleteByProductID(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if err := transaction.WithContext(ctx).
    Where("product_id = ?", productID).
    Delete(&types.EmbeddingRecord{}).Error; err != nil {
    return err
  }
  return nil
}
