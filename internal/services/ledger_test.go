package services

import (
	"context"
	"errors"
	"testing"

	"github.com/jibbs1703/Retail-Chat-Agent/internal/platform/vectorstore"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/repos"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/repos/testutil"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/types"
)

type ledgerFixture struct {
	ledger   LedgerService
	products repos.ProductRepo
	images   repos.ProductImageRepo
	records  repos.EmbeddingRecordRepo
	store    vectorstore.VectorStore
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := newTestLogger(t)

	products := repos.NewProductRepo(tx, log)
	images := repos.NewProductImageRepo(tx, log)
	records := repos.NewEmbeddingRecordRepo(tx, log)
	store := vectorstore.NewMemoryStore()

	ledger, err := NewLedgerService(log, tx, products, images, records, store, defaultTuning().Collections)
	if err != nil {
		t.Fatalf("NewLedgerService: %v", err)
	}
	return &ledgerFixture{
		ledger:   ledger,
		products: products,
		images:   images,
		records:  records,
		store:    store,
	}
}

func (f *ledgerFixture) pointIDs(t *testing.T, collection string, probe []float32) []string {
	t.Helper()
	matches, err := f.store.Query(context.Background(), collection, probe, 100)
	if err != nil {
		t.Fatalf("store query: %v", err)
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	return ids
}

func TestLedgerRecordEmbeddingReplacesNotDuplicates(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	product, err := f.products.Upsert(ctx, nil, &types.Product{
		Title:      "Corner Sofa",
		Category:   "sofas",
		ProductURL: "https://shop.example.com/sofas/corner-sofa",
	})
	if err != nil {
		t.Fatalf("Upsert product: %v", err)
	}

	first, err := f.ledger.RecordEmbedding(ctx, product.ID, nil, types.EmbeddingTypeText, []float32{1, 0, 0}, "model-a")
	if err != nil {
		t.Fatalf("RecordEmbedding (first): %v", err)
	}

	second, err := f.ledger.RecordEmbedding(ctx, product.ID, nil, types.EmbeddingTypeText, []float32{0, 1, 0}, "model-b")
	if err != nil {
		t.Fatalf("RecordEmbedding (second): %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("ledger row duplicated: %s vs %s", first.ID, second.ID)
	}
	if second.PointID == first.PointID {
		t.Fatalf("expected fresh point ID on re-record")
	}
	if second.ModelName != "model-b" {
		t.Fatalf("model name: want=model-b got=%s", second.ModelName)
	}

	all, err := f.records.GetByProductID(ctx, nil, product.ID)
	if err != nil {
		t.Fatalf("GetByProductID: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("ledger rows: want=1 got=%d", len(all))
	}

	ids := f.pointIDs(t, "product_text", []float32{0, 1, 0})
	if len(ids) != 1 || ids[0] != second.PointID {
		t.Fatalf("index points: want=[%s] got=%v", second.PointID, ids)
	}
}

func TestLedgerResolve(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	product, err := f.products.Upsert(ctx, nil, &types.Product{
		Title:      "Bar Stool",
		Category:   "chairs",
		ProductURL: "https://shop.example.com/chairs/bar-stool",
	})
	if err != nil {
		t.Fatalf("Upsert product: %v", err)
	}
	imgs, err := f.images.ReplaceForProduct(ctx, nil, product.ID, []*types.ProductImage{
		{ImageURL: "https://cdn.example.com/stool.jpg", Position: 0},
	})
	if err != nil {
		t.Fatalf("ReplaceForProduct: %v", err)
	}

	record, err := f.ledger.RecordEmbedding(ctx, product.ID, &imgs[0].ID, types.EmbeddingTypeImage, []float32{0, 0, 1}, "model-a")
	if err != nil {
		t.Fatalf("RecordEmbedding: %v", err)
	}

	gotProduct, gotImage, err := f.ledger.Resolve(ctx, record.Collection, record.PointID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if gotProduct.ID != product.ID {
		t.Fatalf("resolved product: want=%s got=%s", product.ID, gotProduct.ID)
	}
	if gotImage == nil || gotImage.ID != imgs[0].ID {
		t.Fatalf("resolved image: want=%s got=%+v", imgs[0].ID, gotImage)
	}
}

func TestLedgerResolveDriftIsDataIntegrityError(t *testing.T) {
	f := newLedgerFixture(t)

	_, _, err := f.ledger.Resolve(context.Background(), "product_text", "no-such-point")
	var integrity *DataIntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected DataIntegrityError, got %v", err)
	}
	if integrity.Collection != "product_text" || integrity.PointID != "no-such-point" {
		t.Fatalf("unexpected error payload: %+v", integrity)
	}
}

func TestLedgerDeleteProductRemovesPointsAndRows(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	product, err := f.products.Upsert(ctx, nil, &types.Product{
		Title:      "Bookshelf",
		Category:   "storage",
		ProductURL: "https://shop.example.com/storage/bookshelf",
	})
	if err != nil {
		t.Fatalf("Upsert product: %v", err)
	}

	record, err := f.ledger.RecordEmbedding(ctx, product.ID, nil, types.EmbeddingTypeText, []float32{1, 0, 0}, "model-a")
	if err != nil {
		t.Fatalf("RecordEmbedding: %v", err)
	}

	if err := f.ledger.DeleteProduct(ctx, product.ID); err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}

	if ids := f.pointIDs(t, record.Collection, []float32{1, 0, 0}); len(ids) != 0 {
		t.Fatalf("expected index emptied, got %v", ids)
	}
	if _, err := f.products.GetByID(ctx, nil, product.ID); !errors.Is(err, repos.ErrProductNotFound) {
		t.Fatalf("expected product gone, got %v", err)
	}
	rows, err := f.records.GetByProductID(ctx, nil, product.ID)
	if err != nil {
		t.Fatalf("GetByProductID: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected ledger rows cascaded, got %d", len(rows))
	}
}

func TestLedgerDeleteImageRemovesPointsAndRow(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	product, err := f.products.Upsert(ctx, nil, &types.Product{
		Title:      "Console Table",
		Category:   "tables",
		ProductURL: "https://shop.example.com/tables/console-table",
	})
	if err != nil {
		t.Fatalf("Upsert product: %v", err)
	}
	imgs, err := f.images.ReplaceForProduct(ctx, nil, product.ID, []*types.ProductImage{
		{ImageURL: "https://cdn.example.com/console.jpg", Position: 0},
	})
	if err != nil {
		t.Fatalf("ReplaceForProduct: %v", err)
	}

	if _, err := f.ledger.RecordEmbedding(ctx, product.ID, nil, types.EmbeddingTypeText, []float32{1, 0, 0}, "model-a"); err != nil {
		t.Fatalf("RecordEmbedding (text): %v", err)
	}
	imageRec, err := f.ledger.RecordEmbedding(ctx, product.ID, &imgs[0].ID, types.EmbeddingTypeImage, []float32{0, 1, 0}, "model-a")
	if err != nil {
		t.Fatalf("RecordEmbedding (image): %v", err)
	}
	captionRec, err := f.ledger.RecordEmbedding(ctx, product.ID, &imgs[0].ID, types.EmbeddingTypeCaption, []float32{0, 0, 1}, "model-a")
	if err != nil {
		t.Fatalf("RecordEmbedding (caption): %v", err)
	}

	if err := f.ledger.DeleteImage(ctx, imgs[0].ID); err != nil {
		t.Fatalf("DeleteImage: %v", err)
	}

	if ids := f.pointIDs(t, imageRec.Collection, []float32{0, 1, 0}); len(ids) != 0 {
		t.Fatalf("expected image points removed, got %v", ids)
	}
	if ids := f.pointIDs(t, captionRec.Collection, []float32{0, 0, 1}); len(ids) != 0 {
		t.Fatalf("expected caption points removed, got %v", ids)
	}
	if _, err := f.images.GetByID(ctx, nil, imgs[0].ID); !errors.Is(err, repos.ErrProductImageNotFound) {
		t.Fatalf("expected image row gone, got %v", err)
	}

	// The product's own text embedding is untouched.
	rows, err := f.records.GetByProductID(ctx, nil, product.ID)
	if err != nil {
		t.Fatalf("GetByProductID: %v", err)
	}
	if len(rows) != 1 || rows[0].EmbeddingType != types.EmbeddingTypeText {
		t.Fatalf("surviving rows: want one text row, got %+v", rows)
	}
}
