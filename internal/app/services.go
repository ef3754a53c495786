package app

import (
	"gorm.io/gorm"

	"github.com/jibbs1703/Retail-Chat-Agent/internal/cache"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/logger"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/platform/inference"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/platform/vectorstore"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/services"
)

type Services struct {
	Tuning  services.SearchTuning
	Encoder services.EncoderService
	Ledger  services.LedgerService
	Rerank  services.RerankService
	Search  services.SearchService
	Ingest  services.IngestService
	Session services.SessionService
}

func wireServices(
	db *gorm.DB,
	log *logger.Logger,
	reposet Repos,
	vectors vectorstore.VectorStore,
	cacheLayer cache.Cache,
) (Services, error) {
	log.Info("Wiring services...")

	tuning, err := services.LoadTuning(log)
	if err != nil {
		return Services{}, err
	}

	inferenceClient, err := inference.NewClient(log)
	if err != nil {
		return Services{}, err
	}

	encoder, err := services.NewEncoderService(log, inferenceClient, cacheLayer)
	if err != nil {
		return Services{}, err
	}

	ledger, err := services.NewLedgerService(log, db, reposet.Product, reposet.ProductImage, reposet.EmbeddingRecord, vectors, tuning.Collections)
	if err != nil {
		return Services{}, err
	}

	rerank := services.NewRerankService(log, inferenceClient, tuning.RerankTopN)

	search, err := services.NewSearchService(log, encoder, ledger, vectors, rerank, cacheLayer, tuning)
	if err != nil {
		return Services{}, err
	}

	ingest, err := services.NewIngestService(log, reposet.Product, reposet.ProductImage, encoder, ledger, nil)
	if err != nil {
		return Services{}, err
	}

	session, err := services.NewSessionService(log, cacheLayer)
	if err != nil {
		return Services{}, err
	}

	return Services{
		Tuning:  tuning,
		Encoder: encoder,
		Ledger:  ledger,
		Rerank:  rerank,
		Search:  search,
		Ingest:  ingest,
		Session: session,
	}, nil
}
