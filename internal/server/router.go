package server

import (
  "strings"
  "github.com/gin-gonic/gin"
  "github.com/gin-contrib/cors"
  "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
  "github.com/jibbs1703/Retail-Chat-Agent/internal/handlers"
  "github.com/jibbs1703/Retail-Chat-Agent/internal/utils"
)

type RouterConfig struct {
  ServiceName    string
  SearchHandler  *handlers.SearchHandler
  ProductHandler *handlers.ProductHandler
  SessionHandler *handlers.SessionHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  serviceName := cfg.ServiceName
  if serviceName == "" {
    serviceName = "retail-search"
  }
  router.Use(otelgin.Middleware(serviceName))

  // Cors
  allowOrigins := strings.Split(utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000", nil), ",")
  router.Use(cors.New(cors.Config{
    AllowOrigins:     allowOrigins,
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

  router.GET("/healthcheck", handlers.HealthCheck)

  api := router.Group("/api/v1")
  {
    api.POST("/search", cfg.SearchHandler.Search)

    api.POST("/products", cfg.ProductHandler.Ingest)
    api.GET("/products/:id", cfg.ProductHandler.Get)
    api.DELETE("/products/:id", cfg.ProductHandler.Delete)

    api.GET("/session/:id/context", cfg.SessionHandler.GetContext)
    api.PUT("/session/:id/context", cfg.SessionHandler.SetContext)
  }

  return router
}
