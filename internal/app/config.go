package app

import (
	"github.com/jibbs1703/Retail-Chat-Agent/internal/logger"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/utils"
)

type Config struct {
	Environment string
	ServiceName string
	Version     string
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Environment: utils.GetEnv("APP_ENV", "development", log),
		ServiceName: utils.GetEnv("SERVICE_NAME", "retail-search", log),
		Version:     utils.GetEnv("SERVICE_VERSION", "dev", log),
	}
}
