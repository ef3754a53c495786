package services

import (
	"context"
	"sort"
	"strings"

	"github.com/jibbs1703/Retail-Chat-Agent/internal/logger"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/platform/inference"
)

// RerankService reorders the head of a fused candidate list with the
// cross-encoder. Reranking is an accuracy refinement, never a gate: any
// failure degrades to the fused order.
type RerankService interface {
	Rerank(ctx context.Context, query string, candidates []FusedCandidate) []FusedCandidate
}

type rerankService struct {
	log    *logger.Logger
	client inference.Client
	topN   int
}

func NewRerankService(log *logger.Logger, client inference.Client, topN int) RerankService {
	if topN <= 0 {
		topN = 50
	}
	return &rerankService{
		log:    log.With("service", "RerankService"),
		client: client,
		topN:   topN,
	}
}

func (s *rerankService) Rerank(ctx context.Context, query string, candidates []FusedCandidate) []FusedCandidate {
	if strings.TrimSpace(query) == "" || len(candidates) <= 1 {
		return candidates
	}

	head := candidates
	if len(head) > s.topN {
		head = head[:s.topN]
	}
	tail := candidates[len(head):]

	documents := make([]string, len(head))
	for i, candidate := range head {
		documents[i] = candidateDocument(candidate)
	}

	scores, err := s.client.Score(ctx, query, documents)
	if err != nil || len(scores) != len(head) {
		s.log.Warn("cross-encoder scoring failed, keeping fused order", "candidates", len(head), "error", err)
		return candidates
	}

	reranked := make([]FusedCandidate, len(head))
	copy(reranked, head)
	order := make([]int, len(head))
	for i := range order {
		order[i] = i
	}
	// Stable so equal cross-encoder scores keep the fused order.
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})
	for i, idx := range order {
		reranked[i] = head[idx]
		reranked[i].Score = scores[idx]
	}

	return append(reranked, tail...)
}

// candidateDocument builds the cross-encoder input for one product.
func candidateDocument(candidate FusedCandidate) string {
	parts := make([]string, 0, 3)
	if candidate.Product.Title != "" {
		parts = append(parts, candidate.Product.Title)
	}
	if candidate.Product.Description != "" {
		parts = append(parts, candidate.Product.Description)
	}
	if candidate.Product.PromoTagline != "" {
		parts = append(parts, candidate.Product.PromoTagline)
	}
	return strings.Join(parts, ". ")
}
