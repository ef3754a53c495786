package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jibbs1703/Retail-Chat-Agent/internal/logger"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/platform/vectorstore"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/repos"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/types"
)

// LedgerService keeps the vector index and the embedding_records table
// mutually consistent. The ledger row is the only authoritative map from a
// (collection, point_id) pair back to catalog identity, so every point write
// goes through RecordEmbedding and every hit goes through Resolve.
type LedgerService interface {
	// RecordEmbedding writes vector to the collection registered for
	// embeddingType and records the new location in the ledger, replacing any
	// previous embedding for the same (product, image, type) owner. The old
	// vector point is removed; re-recording never duplicates.
	RecordEmbedding(ctx context.Context, productID uuid.UUID, imageID *uuid.UUID, embeddingType string, vector []float32, modelName string) (*types.EmbeddingRecord, error)
	// Resolve maps a vector index hit back to its product and, for image
	// embeddings, the owning image. A hit with no ledger row is drift between
	// the two stores and comes back as *DataIntegrityError.
	Resolve(ctx context.Context, collection, pointID string) (*types.Product, *types.ProductImage, error)
	// DeleteProduct removes the product's vector points first, then the
	// relational rows (images and ledger rows cascade).
	DeleteProduct(ctx context.Context, productID uuid.UUID) error
	// DeleteImage removes one image's vector points first, then the image
	// row (its ledger rows cascade). Callers use it when a re-ingest drops
	// an image so its points never outlive the ledger rows.
	DeleteImage(ctx context.Context, imageID uuid.UUID) error
}

type ledgerService struct {
	log         *logger.Logger
	db          *gorm.DB
	products    repos.ProductRepo
	images      repos.ProductImageRepo
	records     repos.EmbeddingRecordRepo
	vectors     vectorstore.VectorStore
	collections map[string]string

	mu     sync.Mutex
	owners map[string]*sync.Mutex
}

func NewLedgerService(
	log *logger.Logger,
	db *gorm.DB,
	products repos.ProductRepo,
	images repos.ProductImageRepo,
	records repos.EmbeddingRecordRepo,
	vectors vectorstore.VectorStore,
	collections map[string]string,
) (LedgerService, error) {
	if db == nil || products == nil || images == nil || records == nil || vectors == nil {
		return nil, fmt.Errorf("ledger service dependencies required")
	}
	if len(collections) == 0 {
		return nil, fmt.Errorf("collection map required")
	}
	return &ledgerService{
		log:         log.With("service", "LedgerService"),
		db:          db,
		products:    products,
		images:      images,
		records:     records,
		vectors:     vectors,
		collections: collections,
		owners:      map[string]*sync.Mutex{},
	}, nil
}

// ownerLock serializes writers of the same (product, image, type) slot.
// Writers of different slots proceed in parallel.
func (s *ledgerService) ownerLock(productID uuid.UUID, imageID *uuid.UUID, embeddingType string) *sync.Mutex {
	key := productID.String() + "|" + embeddingType
	if imageID != nil {
		key += "|" + imageID.String()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.owners[key]
	if !ok {
		lock = &sync.Mutex{}
		s.owners[key] = lock
	}
	return lock
}

func (s *ledgerService) RecordEmbedding(ctx context.Context, productID uuid.UUID, imageID *uuid.UUID, embeddingType string, vector []float32, modelName string) (*types.EmbeddingRecord, error) {
	collection, ok := s.collections[embeddingType]
	if !ok {
		return nil, fmt.Errorf("no collection registered for embedding type %q", embeddingType)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("empty vector for embedding type %q", embeddingType)
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name required")
	}

	lock := s.ownerLock(productID, imageID, embeddingType)
	lock.Lock()
	defer lock.Unlock()

	var result *types.EmbeddingRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.records.GetByOwner(ctx, tx, productID, imageID, embeddingType)
		if err != nil && !errors.Is(err, repos.ErrEmbeddingRecordNotFound) {
			return err
		}

		newPointID := uuid.NewString()

		// Index writes come before the ledger write so the DB row only ever
		// changes once the point is durably in the index. If the upsert fails
		// the transaction rolls back and the stale row keeps pointing at the
		// already-deleted old point, which no query can return.
		if existing != nil {
			if err := s.vectors.Delete(ctx, existing.Collection, []string{existing.PointID}); err != nil {
				return fmt.Errorf("delete stale vector point: %w", err)
			}
		}
		if err := s.vectors.Upsert(ctx, collection, []vectorstore.Point{{
			ID:     newPointID,
			Values: vector,
		}}); err != nil {
			return fmt.Errorf("upsert vector point: %w", err)
		}

		if existing != nil {
			existing.Collection = collection
			existing.PointID = newPointID
			existing.ModelName = modelName
			result, err = s.records.Update(ctx, tx, existing)
			return err
		}
		result, err = s.records.Create(ctx, tx, &types.EmbeddingRecord{
			ProductID:     productID,
			ImageID:       imageID,
			EmbeddingType: embeddingType,
			ModelName:     modelName,
			Collection:    collection,
			PointID:       newPointID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *ledgerService) Resolve(ctx context.Context, collection, pointID string) (*types.Product, *types.ProductImage, error) {
	record, err := s.records.GetByPoint(ctx, nil, collection, pointID)
	if err != nil {
		if errors.Is(err, repos.ErrEmbeddingRecordNotFound) {
			return nil, nil, &DataIntegrityError{Collection: collection, PointID: pointID}
		}
		return nil, nil, err
	}

	product, err := s.products.GetByID(ctx, nil, record.ProductID)
	if err != nil {
		if errors.Is(err, repos.ErrProductNotFound) {
			return nil, nil, &DataIntegrityError{Collection: collection, PointID: pointID}
		}
		return nil, nil, err
	}

	var img *types.ProductImage
	if record.ImageID != nil {
		img, err = s.images.GetByID(ctx, nil, *record.ImageID)
		if err != nil {
			if errors.Is(err, repos.ErrProductImageNotFound) {
				return nil, nil, &DataIntegrityError{Collection: collection, PointID: pointID}
			}
			return nil, nil, err
		}
	}
	return product, img, nil
}

func (s *ledgerService) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	records, err := s.records.GetByProductID(ctx, nil, productID)
	if err != nil {
		return err
	}

	byCollection := map[string][]string{}
	for _, record := range records {
		byCollection[record.Collection] = append(byCollection[record.Collection], record.PointID)
	}
	for collection, ids := range byCollection {
		if err := s.vectors.Delete(ctx, collection, ids); err != nil {
			return fmt.Errorf("delete vector points in %s: %w", collection, err)
		}
	}

	if err := s.products.DeleteByID(ctx, nil, productID); err != nil {
		return err
	}
	s.log.Info("deleted product and embeddings", "product_id", productID, "points", len(records))
	return nil
}

func (s *ledgerService) DeleteImage(ctx context.Context, imageID uuid.UUID) error {
	records, err := s.records.ListByImageID(ctx, nil, imageID)
	if err != nil {
		return err
	}

	byCollection := map[string][]string{}
	for _, record := range records {
		byCollection[record.Collection] = append(byCollection[record.Collection], record.PointID)
	}
	for collection, ids := range byCollection {
		if err := s.vectors.Delete(ctx, collection, ids); err != nil {
			return fmt.Errorf("delete vector points in %s: %w", collection, err)
		}
	}

	if err := s.images.DeleteByID(ctx, nil, imageID); err != nil {
		return err
	}
	s.log.Info("deleted image and embeddings", "image_id", imageID, "points", len(records))
	return nil
}
