package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jibbs1703/Retail-Chat-Agent/internal/cache"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/logger"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/platform/vectorstore"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/types"
)

// SearchQuery is one retrieval request. At least one of Text and ImageBytes
// must be set. TopK of zero means the configured final top-k.
type SearchQuery struct {
	Text       string
	ImageBytes []byte
	TopK       int
}

type SearchResult struct {
	Product *types.Product      `json:"product"`
	Image   *types.ProductImage `json:"image,omitempty"`
	Score   float64             `json:"score"`
}

// SearchService runs the two-stage pipeline: encode the query per modality,
// fan out to the vector collections, fuse the per-collection rankings, then
// rerank the head with the cross-encoder.
type SearchService interface {
	Search(ctx context.Context, query SearchQuery) ([]SearchResult, error)
}

type searchService struct {
	log      *logger.Logger
	encoder  EncoderService
	ledger   LedgerService
	vectors  vectorstore.VectorStore
	reranker RerankService
	cache    cache.Cache
	tuning   SearchTuning
}

func NewSearchService(
	log *logger.Logger,
	encoder EncoderService,
	ledger LedgerService,
	vectors vectorstore.VectorStore,
	reranker RerankService,
	c cache.Cache,
	tuning SearchTuning,
) (SearchService, error) {
	if encoder == nil || ledger == nil || vectors == nil || reranker == nil {
		return nil, fmt.Errorf("search service dependencies required")
	}
	if err := validateTuning(tuning); err != nil {
		return nil, err
	}
	return &searchService{
		log:      log.With("service", "SearchService"),
		encoder:  encoder,
		ledger:   ledger,
		vectors:  vectors,
		reranker: reranker,
		cache:    c,
		tuning:   tuning,
	}, nil
}

func (s *searchService) Search(ctx context.Context, query SearchQuery) ([]SearchResult, error) {
	text := strings.TrimSpace(query.Text)
	if text == "" && len(query.ImageBytes) == 0 {
		return nil, ErrInvalidQuery
	}

	// rerankQuery is the text the cross-encoder sees. For image-only queries
	// the generated caption stands in for it.
	rerankQuery := text

	// Build the per-collection query vectors. The text vector (caption-derived
	// for image-only queries) probes both the text and the caption collections;
	// the image vector probes the image collection.
	queryVectors := map[string][]float32{}

	var textVector []float32
	if text != "" {
		vec, err := s.encoder.EncodeText(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("%w: encode query text: %w", ErrFusionInput, err)
		}
		textVector = vec
	}

	if len(query.ImageBytes) > 0 {
		imageVector, err := s.encoder.EncodeImage(ctx, query.ImageBytes)
		if err != nil {
			return nil, fmt.Errorf("%w: encode query image: %w", ErrFusionInput, err)
		}
		queryVectors[types.EmbeddingTypeImage] = imageVector

		if textVector == nil {
			caption, err := s.encoder.Caption(ctx, query.ImageBytes)
			if err != nil || strings.TrimSpace(caption) == "" {
				// The image vector alone can still serve the query.
				s.log.Warn("caption fallback unavailable for image-only query", "error", err)
			} else {
				rerankQuery = caption
				vec, err := s.encoder.EncodeText(ctx, caption)
				if err != nil {
					s.log.Warn("caption embedding failed", "error", err)
				} else {
					textVector = vec
				}
			}
		}
	}
	if textVector != nil {
		queryVectors[types.EmbeddingTypeText] = textVector
		queryVectors[types.EmbeddingTypeCaption] = textVector
	}
	if len(queryVectors) == 0 {
		return nil, fmt.Errorf("%w: no modality produced a query vector", ErrFusionInput)
	}

	cacheKey := s.queryCacheKey(text, query.ImageBytes)
	fused, hit := s.cachedFused(ctx, cacheKey)
	if !hit {
		lists, err := s.retrieve(ctx, queryVectors)
		if err != nil {
			return nil, err
		}
		fused, err = s.fuse(lists)
		if err != nil {
			return nil, err
		}
		s.storeFused(ctx, cacheKey, fused)
	}

	ranked := s.reranker.Rerank(ctx, rerankQuery, fused)

	topK := query.TopK
	if topK <= 0 {
		topK = s.tuning.FinalTopK
	} else if topK > s.tuning.StageTopK {
		// Retrieval fetched StageTopK per collection; beyond that there is
		// nothing more to serve.
		topK = s.tuning.StageTopK
	}
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	results := make([]SearchResult, len(ranked))
	for i, candidate := range ranked {
		results[i] = SearchResult{
			Product: candidate.Product,
			Image:   candidate.Image,
			Score:   candidate.Score,
		}
	}
	return results, nil
}

// retrieve fans out one vector query per collection. Branch failures degrade
// the result set; only when every branch fails is the search itself failed.
func (s *searchService) retrieve(ctx context.Context, queryVectors map[string][]float32) (map[string][]retrievedCandidate, error) {
	var mu sync.Mutex
	lists := map[string][]retrievedCandidate{}
	failures := 0

	group, groupCtx := errgroup.WithContext(ctx)
	for modality, vector := range queryVectors {
		modality, vector := modality, vector
		collection := s.tuning.Collections[modality]
		group.Go(func() error {
			matches, err := s.vectors.Query(groupCtx, collection, vector, s.tuning.StageTopK)
			if err != nil {
				if groupCtx.Err() != nil {
					return groupCtx.Err()
				}
				s.log.Warn("vector query failed, degrading", "collection", collection, "error", err)
				mu.Lock()
				failures++
				mu.Unlock()
				return nil
			}

			candidates := s.resolveMatches(groupCtx, collection, matches)
			mu.Lock()
			lists[modality] = candidates
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	if failures == len(queryVectors) {
		return nil, ErrRetrievalUnavailable
	}
	return lists, nil
}

// resolveMatches maps raw index hits to catalog entities through the ledger.
// A hit the ledger cannot account for is drift: it is logged loudly and
// skipped, never served.
func (s *searchService) resolveMatches(ctx context.Context, collection string, matches []vectorstore.Match) []retrievedCandidate {
	candidates := make([]retrievedCandidate, 0, len(matches))
	for _, match := range matches {
		product, img, err := s.ledger.Resolve(ctx, collection, match.ID)
		if err != nil {
			var integrity *DataIntegrityError
			if errors.As(err, &integrity) {
				s.log.Error("vector hit has no ledger row, skipping", "collection", integrity.Collection, "point_id", integrity.PointID)
				continue
			}
			s.log.Warn("resolve failed, skipping hit", "collection", collection, "point_id", match.ID, "error", err)
			continue
		}
		candidates = append(candidates, retrievedCandidate{
			Product: product,
			Image:   img,
			Score:   match.Score,
		})
	}
	return candidates
}

func (s *searchService) fuse(lists map[string][]retrievedCandidate) ([]FusedCandidate, error) {
	if len(lists) == 0 {
		return nil, fmt.Errorf("%w: no candidate lists", ErrFusionInput)
	}
	switch s.tuning.FusionStrategy {
	case FusionStrategyWeightedSum:
		return weightedSumFusion(lists, s.tuning.Weights), nil
	case FusionStrategyRRF:
		return rrfFusion(lists, s.tuning.RRFK), nil
	default:
		return nil, fmt.Errorf("%w: unknown fusion strategy %q", ErrFusionInput, s.tuning.FusionStrategy)
	}
}

func (s *searchService) queryCacheKey(text string, imageBytes []byte) string {
	material := cache.NormalizeQueryText(text)
	if len(imageBytes) > 0 {
		material += "|image:" + cache.Fingerprint(imageBytes)
	}
	return cache.QueryKey(material)
}

// cachedFused returns the fused candidate set for a repeated query. Reranking
// still runs on hits, only retrieval and fusion are skipped.
func (s *searchService) cachedFused(ctx context.Context, key string) ([]FusedCandidate, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var fused []FusedCandidate
	if err := json.Unmarshal(raw, &fused); err != nil {
		s.log.Warn("discarding undecodable cached result set", "key", key, "error", err)
		return nil, false
	}
	return fused, true
}

func (s *searchService) storeFused(ctx context.Context, key string, fused []FusedCandidate) {
	if s.cache == nil || len(fused) == 0 {
		return
	}
	raw, err := json.Marshal(fused)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.tuning.QueryCacheTTL); err != nil {
		s.log.Warn("result cache write failed", "error", err)
	}
}
