package cache

import (
	"github.com/finbase/subcore/internal/config"
	"github.com/finbase/subcore/internal/logger"
)

// Initialize initializes the cache system
func Initialize(cfg *config.Configuration, log *logger.Logger) *InMemoryCache {
	log.Info("Initializing cache system")

	InitializeInMemoryCache(cfg)

	log.Info("Cache system initialized")

	return GetInMemoryCache()
}
