package services

import (
	"context"
	"errors"
	"testing"

	"github.com/jibbs1703/Retail-Chat-Agent/internal/cache"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/platform/vectorstore"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/types"
)

type searchFixture struct {
	store     vectorstore.VectorStore
	ledger    *fakeLedger
	encoder   *fakeEncoder
	scoreFn   func(ctx context.Context, query string, documents []string) ([]float64, error)
	cache     cache.Cache
	tuning    SearchTuning
	lastQuery *string
}

func newSearchService(t *testing.T, f *searchFixture) SearchService {
	t.Helper()
	if f.store == nil {
		f.store = vectorstore.NewMemoryStore()
	}
	if f.ledger == nil {
		f.ledger = newFakeLedger()
	}
	if f.encoder == nil {
		f.encoder = &fakeEncoder{}
	}
	if f.tuning.FusionStrategy == "" {
		f.tuning = defaultTuning()
	}
	client := &fakeInference{
		scoreFn: func(ctx context.Context, query string, documents []string) ([]float64, error) {
			if f.lastQuery != nil {
				*f.lastQuery = query
			}
			if f.scoreFn != nil {
				return f.scoreFn(ctx, query, documents)
			}
			return make([]float64, len(documents)), nil
		},
	}
	reranker := NewRerankService(newTestLogger(t), client, f.tuning.RerankTopN)

	svc, err := NewSearchService(newTestLogger(t), f.encoder, f.ledger, f.store, reranker, f.cache, f.tuning)
	if err != nil {
		t.Fatalf("NewSearchService: %v", err)
	}
	return svc
}

// seedPoint registers one product point in the store and the fake ledger.
func seedPoint(t *testing.T, f *searchFixture, collection, pointID string, vector []float32, product *types.Product) {
	t.Helper()
	if f.store == nil {
		f.store = vectorstore.NewMemoryStore()
	}
	if f.ledger == nil {
		f.ledger = newFakeLedger()
	}
	if err := f.store.Upsert(context.Background(), collection, []vectorstore.Point{{ID: pointID, Values: vector}}); err != nil {
		t.Fatalf("seed upsert: %v", err)
	}
	f.ledger.addPoint(collection, pointID, product, nil)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	svc := newSearchService(t, &searchFixture{})
	if _, err := svc.Search(context.Background(), SearchQuery{Text: "   "}); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestSearchRanksRedShoeAboveBlueShoe(t *testing.T) {
	redShoe := newProduct("red shoe")
	blueShoe := newProduct("blue shoe")

	f := &searchFixture{
		encoder: &fakeEncoder{
			encodeTextFn: func(ctx context.Context, text string) ([]float32, error) {
				return []float32{0.95, 0.05, 0}, nil
			},
		},
	}
	seedPoint(t, f, "product_text", "pt-red", []float32{1, 0, 0}, redShoe)
	seedPoint(t, f, "product_text", "pt-blue", []float32{0, 1, 0}, blueShoe)
	svc := newSearchService(t, f)

	results, err := svc.Search(context.Background(), SearchQuery{Text: "red shoe"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results length: want=2 got=%d", len(results))
	}
	if results[0].Product.ID != redShoe.ID {
		t.Fatalf("top result: want=%s got=%s", redShoe.Title, results[0].Product.Title)
	}
	if results[0].Score <= results[1].Score {
		t.Fatalf("scores not descending: %f then %f", results[0].Score, results[1].Score)
	}
}

func TestSearchPartialBranchFailureDegrades(t *testing.T) {
	product := newProduct("oak table")
	f := &searchFixture{}
	seedPoint(t, f, "product_text", "pt-1", []float32{1, 0, 0}, product)
	f.store = &failingVectorStore{
		VectorStore:     f.store,
		failCollections: map[string]bool{"product_caption": true},
	}
	svc := newSearchService(t, f)

	results, err := svc.Search(context.Background(), SearchQuery{Text: "oak table"})
	if err != nil {
		t.Fatalf("Search with one failed branch: %v", err)
	}
	if len(results) != 1 || results[0].Product.ID != product.ID {
		t.Fatalf("expected degraded result set with 1 product, got %+v", results)
	}
}

func TestSearchAllBranchesFailed(t *testing.T) {
	f := &searchFixture{
		store: &failingVectorStore{
			VectorStore: vectorstore.NewMemoryStore(),
			failCollections: map[string]bool{
				"product_text":    true,
				"product_image":   true,
				"product_caption": true,
			},
		},
	}
	svc := newSearchService(t, f)

	if _, err := svc.Search(context.Background(), SearchQuery{Text: "anything"}); !errors.Is(err, ErrRetrievalUnavailable) {
		t.Fatalf("expected ErrRetrievalUnavailable, got %v", err)
	}
}

func TestSearchImageOnlyUsesCaptionFallback(t *testing.T) {
	product := newProduct("red leather shoe")
	var rerankQuery string

	f := &searchFixture{
		encoder: &fakeEncoder{
			encodeImageFn: func(ctx context.Context, imageBytes []byte) ([]float32, error) {
				return []float32{0, 0, 1}, nil
			},
			captionFn: func(ctx context.Context, imageBytes []byte) (string, error) {
				return "red leather shoe", nil
			},
			encodeTextFn: func(ctx context.Context, text string) ([]float32, error) {
				if text != "red leather shoe" {
					t.Fatalf("caption text: want=%q got=%q", "red leather shoe", text)
				}
				return []float32{1, 0, 0}, nil
			},
		},
		lastQuery: &rerankQuery,
	}
	// Only reachable through the caption-derived text vector.
	seedPoint(t, f, "product_text", "pt-1", []float32{1, 0, 0}, product)
	seedPoint(t, f, "product_text", "pt-2", []float32{0.9, 0.1, 0}, newProduct("crimson boot"))
	svc := newSearchService(t, f)

	results, err := svc.Search(context.Background(), SearchQuery{ImageBytes: []byte("raw image bytes")})
	if err != nil {
		t.Fatalf("Search (image only): %v", err)
	}
	if len(results) == 0 || results[0].Product.ID != product.ID {
		t.Fatalf("expected caption-matched product first, got %+v", results)
	}
	if rerankQuery != "red leather shoe" {
		t.Fatalf("rerank query: want caption, got %q", rerankQuery)
	}
}

func TestSearchSkipsPointsWithoutLedgerRows(t *testing.T) {
	known := newProduct("known product")
	f := &searchFixture{}
	seedPoint(t, f, "product_text", "pt-known", []float32{1, 0, 0}, known)
	// Present in the index, absent from the ledger.
	if err := f.store.Upsert(context.Background(), "product_text", []vectorstore.Point{{ID: "pt-orphan", Values: []float32{0.99, 0.01, 0}}}); err != nil {
		t.Fatalf("seed orphan: %v", err)
	}
	svc := newSearchService(t, f)

	results, err := svc.Search(context.Background(), SearchQuery{Text: "query"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Product.ID != known.ID {
		t.Fatalf("expected orphan point skipped, got %+v", results)
	}
}

func TestSearchCacheHitSkipsRetrievalButStillReranks(t *testing.T) {
	product := newProduct("cached product")
	other := newProduct("other product")
	shared := cache.NewMemoryCache()

	first := &searchFixture{cache: shared}
	seedPoint(t, first, "product_text", "pt-1", []float32{1, 0, 0}, product)
	seedPoint(t, first, "product_text", "pt-2", []float32{0.5, 0.5, 0}, other)
	svc := newSearchService(t, first)
	if _, err := svc.Search(context.Background(), SearchQuery{Text: "cached product"}); err != nil {
		t.Fatalf("Search (populate cache): %v", err)
	}

	// Same query against a service whose every retrieval branch fails: the
	// cached fused set must carry it, and the reranker must still run.
	var rerankQuery string
	second := &searchFixture{
		cache: shared,
		store: &failingVectorStore{
			VectorStore: vectorstore.NewMemoryStore(),
			failCollections: map[string]bool{
				"product_text":    true,
				"product_image":   true,
				"product_caption": true,
			},
		},
		lastQuery: &rerankQuery,
	}
	svc = newSearchService(t, second)

	results, err := svc.Search(context.Background(), SearchQuery{Text: "Cached  Product"})
	if err != nil {
		t.Fatalf("Search (cache hit): %v", err)
	}
	if len(results) != 2 || results[0].Product.ID != product.ID {
		t.Fatalf("expected cached products, got %+v", results)
	}
	if rerankQuery == "" {
		t.Fatalf("expected reranker to run on cache hit")
	}
}

func TestSearchHonorsTopK(t *testing.T) {
	f := &searchFixture{}
	for i := 0; i < 5; i++ {
		product := newProduct("product")
		seedPoint(t, f, "product_text", product.ID.String(), []float32{1, float32(i) * 0.01, 0}, product)
	}
	svc := newSearchService(t, f)

	results, err := svc.Search(context.Background(), SearchQuery{Text: "query", TopK: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results length: want=2 got=%d", len(results))
	}
}

func TestSearchClampsOversizedTopKToStageTopK(t *testing.T) {
	tuning := defaultTuning()
	tuning.StageTopK = 5
	tuning.FinalTopK = 1

	f := &searchFixture{tuning: tuning}
	for i := 0; i < 3; i++ {
		product := newProduct("product")
		seedPoint(t, f, "product_text", product.ID.String(), []float32{1, float32(i) * 0.01, 0}, product)
	}
	svc := newSearchService(t, f)

	// Asking for more than the stage fetch must clamp to the stage fetch,
	// not drop down to the final default.
	results, err := svc.Search(context.Background(), SearchQuery{Text: "query", TopK: 100})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results length: want=3 got=%d", len(results))
	}
}

func TestSearchEncodeFailureIsFusionInput(t *testing.T) {
	f := &searchFixture{
		encoder: &fakeEncoder{
			encodeTextFn: func(ctx context.Context, text string) ([]float32, error) {
				return nil, ErrModelUnavailable
			},
		},
	}
	svc := newSearchService(t, f)

	_, err := svc.Search(context.Background(), SearchQuery{Text: "query"})
	if !errors.Is(err, ErrFusionInput) {
		t.Fatalf("expected ErrFusionInput, got %v", err)
	}
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable preserved in chain, got %v", err)
	}
}

// ctxAwareStore fails with the context error once the context is done.
type ctxAwareStore struct {
	vectorstore.VectorStore
}

func (s *ctxAwareStore) Query(ctx context.Context, collection string, query []float32, topK int) ([]vectorstore.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.VectorStore.Query(ctx, collection, query, topK)
}

func TestSearchPropagatesCancellation(t *testing.T) {
	f := &searchFixture{
		store: &ctxAwareStore{VectorStore: vectorstore.NewMemoryStore()},
	}
	svc := newSearchService(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Search(ctx, SearchQuery{Text: "query"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
