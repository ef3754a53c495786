package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/jibbs1703/Retail-Chat-Agent/internal/db"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/logger"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/observability"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/types"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services

	otelShutdown func(context.Context) error
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	vectors, err := resolveVectorStore(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init vector store: %w", err)
	}

	cacheLayer, err := resolveCache(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init cache: %w", err)
	}

	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(theDB, log, reposet, vectors, cacheLayer)
	if err != nil {
		log.Sync()
		return nil, err
	}

	// Collections must exist before the first query or upsert.
	ensureCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, embeddingType := range []string{types.EmbeddingTypeText, types.EmbeddingTypeImage, types.EmbeddingTypeCaption} {
		collection := serviceset.Tuning.Collections[embeddingType]
		if err := vectors.EnsureCollection(ensureCtx, collection, serviceset.Tuning.VectorDim); err != nil {
			log.Sync()
			return nil, fmt.Errorf("ensure collection %s: %w", collection, err)
		}
	}

	handlerset := wireHandlers(log, serviceset, reposet)
	router := wireRouter(cfg, handlerset)

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		otelShutdown: otelShutdown,
	}, nil
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelShutdown(ctx); err != nil && a.Log != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		a.otelShutdown = nil
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
