package app

import (
	"github.com/jibbs1703/Retail-Chat-Agent/internal/handlers"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/logger"
)

type Handlers struct {
	Search  *handlers.SearchHandler
	Product *handlers.ProductHandler
	Session *handlers.SessionHandler
}

func wireHandlers(log *logger.Logger, services Services, reposet Repos) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Search:  handlers.NewSearchHandler(log, services.Search),
		Product: handlers.NewProductHandler(log, services.Ingest, reposet.Product),
		Session: handlers.NewSessionHandler(log, services.Session),
	}
}
