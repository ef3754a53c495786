package services

import (
	"sort"

	"github.com/jibbs1703/Retail-Chat-Agent/internal/types"
)

// retrievedCandidate is one resolved vector hit from a single modality
// branch, ordered by that branch's similarity score.
type retrievedCandidate struct {
	Product *types.Product
	Image   *types.ProductImage
	Score   float64
}

// FusedCandidate is a product with its combined cross-modality score. The
// kept Image is the strongest image contribution across branches, if any.
type FusedCandidate struct {
	Product *types.Product      `json:"product"`
	Image   *types.ProductImage `json:"image,omitempty"`
	Score   float64             `json:"score"`
}

type fusedAccumulator struct {
	product    *types.Product
	image      *types.ProductImage
	imageScore float64
	score      float64
}

// weightedSumFusion merges per-modality result lists into one ranking. Each
// list's scores are min-max normalized before weighting so one modality's
// score scale cannot drown out the others. A degenerate list (single score
// value) normalizes to 1.0.
func weightedSumFusion(lists map[string][]retrievedCandidate, weights map[string]float64) []FusedCandidate {
	acc := map[string]*fusedAccumulator{}
	for modality, list := range lists {
		weight := weights[modality]
		normalized := minMaxNormalize(list)
		for i, candidate := range list {
			mergeCandidate(acc, candidate, weight*normalized[i], normalized[i])
		}
	}
	return sortFused(acc)
}

// rrfFusion merges per-modality lists with reciprocal rank fusion: each
// candidate contributes 1/(k + rank) per list it appears in, rank 1-based.
// Raw similarity scores are ignored, only positions matter.
func rrfFusion(lists map[string][]retrievedCandidate, k float64) []FusedCandidate {
	acc := map[string]*fusedAccumulator{}
	for _, list := range lists {
		for i, candidate := range list {
			contribution := 1.0 / (k + float64(i+1))
			mergeCandidate(acc, candidate, contribution, contribution)
		}
	}
	return sortFused(acc)
}

func mergeCandidate(acc map[string]*fusedAccumulator, candidate retrievedCandidate, contribution, imageRank float64) {
	if candidate.Product == nil {
		return
	}
	key := candidate.Product.ID.String()
	entry, ok := acc[key]
	if !ok {
		entry = &fusedAccumulator{product: candidate.Product}
		acc[key] = entry
	}
	entry.score += contribution
	if candidate.Image != nil && (entry.image == nil || imageRank > entry.imageScore) {
		entry.image = candidate.Image
		entry.imageScore = imageRank
	}
}

func minMaxNormalize(list []retrievedCandidate) []float64 {
	out := make([]float64, len(list))
	if len(list) == 0 {
		return out
	}
	min, max := list[0].Score, list[0].Score
	for _, c := range list[1:] {
		if c.Score < min {
			min = c.Score
		}
		if c.Score > max {
			max = c.Score
		}
	}
	for i, c := range list {
		if max == min {
			out[i] = 1.0
			continue
		}
		out[i] = (c.Score - min) / (max - min)
	}
	return out
}

func sortFused(acc map[string]*fusedAccumulator) []FusedCandidate {
	out := make([]FusedCandidate, 0, len(acc))
	for _, entry := range acc {
		out = append(out, FusedCandidate{
			Product: entry.product,
			Image:   entry.image,
			Score:   entry.score,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Product.ID.String() < out[j].Product.ID.String()
	})
	return out
}
