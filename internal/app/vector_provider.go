package app

import (
	"fmt"
	"strings"

	"github.com/jibbs1703/Retail-Chat-Agent/internal/logger"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/platform/qdrant"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/platform/vectorstore"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/utils"
)

type VectorProvider string

const (
	VectorProviderQdrant VectorProvider = "qdrant"
	VectorProviderMemory VectorProvider = "memory"
)

// resolveVectorStore picks the vector index backend from VECTOR_PROVIDER.
// The memory provider serves local development and tests; qdrant is the
// default and the only durable option.
func resolveVectorStore(log *logger.Logger) (vectorstore.VectorStore, error) {
	provider := VectorProvider(strings.ToLower(utils.GetEnv("VECTOR_PROVIDER", string(VectorProviderQdrant), log)))
	switch provider {
	case VectorProviderQdrant:
		cfg, err := qdrant.ResolveConfigFromEnv()
		if err != nil {
			return nil, fmt.Errorf("resolve qdrant config: %w", err)
		}
		return qdrant.NewVectorStore(log, cfg)
	case VectorProviderMemory:
		log.Warn("using in-memory vector store, index contents are volatile")
		return vectorstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown vector provider %q", provider)
	}
}
