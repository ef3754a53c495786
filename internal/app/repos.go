package app

import (
	"gorm.io/gorm"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/logger"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/repos"
)

type Repos struct {
	Product         repos.ProductRepo
	ProductImage    repos.ProductImageRepo
	EmbeddingRecord repos.EmbeddingRecordRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Product:         repos.NewProductRepo(db, log),
		ProductImage:    repos.NewProductImageRepo(db, log),
		EmbeddingRecord: repos.NewEmbeddingRecordRepo(db, log),
	}
}
