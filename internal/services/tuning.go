package services

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jibbs1703/Retail-Chat-Agent/internal/logger"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/types"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/utils"
)

const (
	FusionStrategyWeightedSum = "weighted_sum"
	FusionStrategyRRF         = "rrf"
)

// SearchTuning holds every knob of the retrieval pipeline. Defaults are
// layered under env vars, which are layered under the optional YAML file
// named by SEARCH_TUNING_FILE. The YAML wins.
type SearchTuning struct {
	// Collections maps embedding type (text, image, caption) to the vector
	// index collection holding that modality's points.
	Collections map[string]string
	VectorDim   int

	StageTopK  int
	FinalTopK  int
	RerankTopN int

	FusionStrategy string
	Weights        map[string]float64
	RRFK           float64

	QueryCacheTTL time.Duration
}

type tuningFile struct {
	Collections map[string]string `yaml:"collections"`
	VectorDim   int               `yaml:"vector_dim"`
	Stages      struct {
		RetrieveTopK int `yaml:"retrieve_top_k"`
		FinalTopK    int `yaml:"final_top_k"`
		RerankTopN   int `yaml:"rerank_top_n"`
	} `yaml:"stages"`
	Fusion struct {
		Strategy string             `yaml:"strategy"`
		Weights  map[string]float64 `yaml:"weights"`
		RRFK     float64            `yaml:"rrf_k"`
	} `yaml:"fusion"`
}

func defaultTuning() SearchTuning {
	return SearchTuning{
		Collections: map[string]string{
			types.EmbeddingTypeText:    "product_text",
			types.EmbeddingTypeImage:   "product_image",
			types.EmbeddingTypeCaption: "product_caption",
		},
		VectorDim:      768,
		StageTopK:      40,
		FinalTopK:      10,
		RerankTopN:     50,
		FusionStrategy: FusionStrategyWeightedSum,
		Weights: map[string]float64{
			types.EmbeddingTypeText:    0.6,
			types.EmbeddingTypeImage:   0.3,
			types.EmbeddingTypeCaption: 0.1,
		},
		RRFK:          60,
		QueryCacheTTL: 120 * time.Second,
	}
}

// LoadTuning resolves the pipeline configuration from defaults, env vars and
// the optional YAML tuning file, in that order of precedence.
func LoadTuning(log *logger.Logger) (SearchTuning, error) {
	t := defaultTuning()

	t.VectorDim = utils.GetEnvAsInt("QDRANT_VECTOR_DIM", t.VectorDim, log)
	t.StageTopK = utils.GetEnvAsInt("SEARCH_STAGE_TOP_K", t.StageTopK, log)
	t.FinalTopK = utils.GetEnvAsInt("SEARCH_FINAL_TOP_K", t.FinalTopK, log)
	t.RerankTopN = utils.GetEnvAsInt("RERANK_TOP_N", t.RerankTopN, log)
	t.FusionStrategy = utils.GetEnv("SEARCH_FUSION_STRATEGY", t.FusionStrategy, log)
	t.Weights[types.EmbeddingTypeText] = utils.GetEnvAsFloat("SEARCH_WEIGHT_TEXT", t.Weights[types.EmbeddingTypeText], log)
	t.Weights[types.EmbeddingTypeImage] = utils.GetEnvAsFloat("SEARCH_WEIGHT_IMAGE", t.Weights[types.EmbeddingTypeImage], log)
	t.Weights[types.EmbeddingTypeCaption] = utils.GetEnvAsFloat("SEARCH_WEIGHT_CAPTION", t.Weights[types.EmbeddingTypeCaption], log)
	if seconds := utils.GetEnvAsInt("CACHE_QUERY_TTL", int(t.QueryCacheTTL/time.Second), log); seconds > 0 {
		t.QueryCacheTTL = time.Duration(seconds) * time.Second
	}

	if path := strings.TrimSpace(os.Getenv("SEARCH_TUNING_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return SearchTuning{}, fmt.Errorf("read tuning file %s: %w", path, err)
		}
		var f tuningFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return SearchTuning{}, fmt.Errorf("parse tuning file %s: %w", path, err)
		}
		applyTuningFile(&t, f)
		log.Info("loaded search tuning file", "path", path)
	}

	if err := validateTuning(t); err != nil {
		return SearchTuning{}, err
	}
	return t, nil
}

func applyTuningFile(t *SearchTuning, f tuningFile) {
	for modality, collection := range f.Collections {
		if collection != "" {
			t.Collections[modality] = collection
		}
	}
	if f.VectorDim > 0 {
		t.VectorDim = f.VectorDim
	}
	if f.Stages.RetrieveTopK > 0 {
		t.StageTopK = f.Stages.RetrieveTopK
	}
	if f.Stages.FinalTopK > 0 {
		t.FinalTopK = f.Stages.FinalTopK
	}
	if f.Stages.RerankTopN > 0 {
		t.RerankTopN = f.Stages.RerankTopN
	}
	if f.Fusion.Strategy != "" {
		t.FusionStrategy = f.Fusion.Strategy
	}
	for modality, weight := range f.Fusion.Weights {
		t.Weights[modality] = weight
	}
	if f.Fusion.RRFK > 0 {
		t.RRFK = f.Fusion.RRFK
	}
}

func validateTuning(t SearchTuning) error {
	switch t.FusionStrategy {
	case FusionStrategyWeightedSum, FusionStrategyRRF:
	default:
		return fmt.Errorf("unknown fusion strategy %q", t.FusionStrategy)
	}
	if t.StageTopK <= 0 || t.FinalTopK <= 0 || t.RerankTopN <= 0 {
		return fmt.Errorf("top-k stages must be positive (stage=%d final=%d rerank=%d)", t.StageTopK, t.FinalTopK, t.RerankTopN)
	}
	if t.VectorDim <= 0 {
		return fmt.Errorf("vector dim must be positive, got %d", t.VectorDim)
	}
	for modality, weight := range t.Weights {
		if weight < 0 {
			return fmt.Errorf("negative fusion weight for %s: %f", modality, weight)
		}
	}
	return nil
}
