package app

import (
	"fmt"
	"strings"

	"github.com/jibbs1703/Retail-Chat-Agent/internal/cache"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/logger"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/utils"
)

type CacheProvider string

const (
	CacheProviderRedis  CacheProvider = "redis"
	CacheProviderMemory CacheProvider = "memory"
)

func resolveCache(log *logger.Logger) (cache.Cache, error) {
	provider := CacheProvider(strings.ToLower(utils.GetEnv("CACHE_PROVIDER", string(CacheProviderRedis), log)))
	switch provider {
	case CacheProviderRedis:
		return cache.NewRedisCache(log)
	case CacheProviderMemory:
		log.Warn("using in-memory cache, entries are process local")
		return cache.NewMemoryCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache provider %q", provider)
	}
}
