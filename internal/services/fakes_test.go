package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/jibbs1703/Retail-Chat-Agent/internal/logger"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/platform/vectorstore"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/types"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

// fakeInference implements inference.Client with injectable behavior.
type fakeInference struct {
	embedTextFn  func(ctx context.Context, texts []string) ([][]float32, error)
	embedImageFn func(ctx context.Context, imageBytes []byte) ([]float32, error)
	captionFn    func(ctx context.Context, imageBytes []byte) (string, error)
	scoreFn      func(ctx context.Context, query string, documents []string) ([]float64, error)
}

func (f *fakeInference) EmbedText(ctx context.Context, texts []string) ([][]float32, error) {
	if f.embedTextFn == nil {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{1, 0, 0}
		}
		return out, nil
	}
	return f.embedTextFn(ctx, texts)
}

func (f *fakeInference) EmbedImage(ctx context.Context, imageBytes []byte) ([]float32, error) {
	if f.embedImageFn == nil {
		return []float32{0, 1, 0}, nil
	}
	return f.embedImageFn(ctx, imageBytes)
}

func (f *fakeInference) Caption(ctx context.Context, imageBytes []byte) (string, error) {
	if f.captionFn == nil {
		return "a product photo", nil
	}
	return f.captionFn(ctx, imageBytes)
}

func (f *fakeInference) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	if f.scoreFn == nil {
		return make([]float64, len(documents)), nil
	}
	return f.scoreFn(ctx, query, documents)
}

func (f *fakeInference) EmbedModel() string { return "fake-embed-model" }

// fakeEncoder implements EncoderService with injectable behavior.
type fakeEncoder struct {
	encodeTextFn  func(ctx context.Context, text string) ([]float32, error)
	encodeImageFn func(ctx context.Context, imageBytes []byte) ([]float32, error)
	captionFn     func(ctx context.Context, imageBytes []byte) (string, error)
}

func (f *fakeEncoder) EncodeText(ctx context.Context, text string) ([]float32, error) {
	if f.encodeTextFn == nil {
		return []float32{1, 0, 0}, nil
	}
	return f.encodeTextFn(ctx, text)
}

func (f *fakeEncoder) EncodeImage(ctx context.Context, imageBytes []byte) ([]float32, error) {
	if f.encodeImageFn == nil {
		return []float32{0, 1, 0}, nil
	}
	return f.encodeImageFn(ctx, imageBytes)
}

func (f *fakeEncoder) Caption(ctx context.Context, imageBytes []byte) (string, error) {
	if f.captionFn == nil {
		return "a product photo", nil
	}
	return f.captionFn(ctx, imageBytes)
}

func (f *fakeEncoder) ModelName() string { return "fake-embed-model" }

// recordedEmbedding captures one RecordEmbedding call on the fake ledger.
type recordedEmbedding struct {
	ProductID     uuid.UUID
	ImageID       *uuid.UUID
	EmbeddingType string
	Vector        []float32
	ModelName     string
}

// fakeLedger resolves points from a static map and records writes.
type fakeLedger struct {
	points        map[string]ledgerEntry // "collection|pointID"
	recorded      []recordedEmbedding
	deletedImages []uuid.UUID
}

type ledgerEntry struct {
	product *types.Product
	image   *types.ProductImage
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{points: map[string]ledgerEntry{}}
}

func (f *fakeLedger) addPoint(collection, pointID string, product *types.Product, image *types.ProductImage) {
	f.points[collection+"|"+pointID] = ledgerEntry{product: product, image: image}
}

func (f *fakeLedger) RecordEmbedding(ctx context.Context, productID uuid.UUID, imageID *uuid.UUID, embeddingType string, vector []float32, modelName string) (*types.EmbeddingRecord, error) {
	f.recorded = append(f.recorded, recordedEmbedding{
		ProductID:     productID,
		ImageID:       imageID,
		EmbeddingType: embeddingType,
		Vector:        vector,
		ModelName:     modelName,
	})
	return &types.EmbeddingRecord{
		ID:            uuid.New(),
		ProductID:     productID,
		ImageID:       imageID,
		EmbeddingType: embeddingType,
		ModelName:     modelName,
		PointID:       uuid.NewString(),
	}, nil
}

func (f *fakeLedger) Resolve(ctx context.Context, collection, pointID string) (*types.Product, *types.ProductImage, error) {
	entry, ok := f.points[collection+"|"+pointID]
	if !ok {
		return nil, nil, &DataIntegrityError{Collection: collection, PointID: pointID}
	}
	return entry.product, entry.image, nil
}

func (f *fakeLedger) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	return nil
}

func (f *fakeLedger) DeleteImage(ctx context.Context, imageID uuid.UUID) error {
	f.deletedImages = append(f.deletedImages, imageID)
	return nil
}

// failingVectorStore fails Query for the named collections and delegates the
// rest to the wrapped store.
type failingVectorStore struct {
	vectorstore.VectorStore
	failCollections map[string]bool
}

func (f *failingVectorStore) Query(ctx context.Context, collection string, query []float32, topK int) ([]vectorstore.Match, error) {
	if f.failCollections[collection] {
		return nil, fmt.Errorf("injected query failure for %s", collection)
	}
	return f.VectorStore.Query(ctx, collection, query, topK)
}

func newProduct(title string) *types.Product {
	return &types.Product{
		ID:         uuid.New(),
		Title:      title,
		ProductURL: "https://shop.example.com/" + title,
	}
}
