package app

import (
	"github.com/gin-gonic/gin"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/server"
)

func wireRouter(cfg Config, handlers Handlers) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		ServiceName:    cfg.ServiceName,
		SearchHandler:  handlers.Search,
		ProductHandler: handlers.Product,
		SessionHandler: handlers.Session,
	})
}
