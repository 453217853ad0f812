package service

import (
	"github.com/finbase/subcore/internal/config"
	"github.com/finbase/subcore/internal/domain/history"
	"github.com/finbase/subcore/internal/domain/subscription"
	"github.com/finbase/subcore/internal/domain/usage"
	"github.com/finbase/subcore/internal/engine"
	"github.com/finbase/subcore/internal/logger"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	Engine *engine.Engine

	// Repositories
	SubRepo     subscription.Repository
	UsageRepo   usage.Repository
	HistoryRepo history.Repository
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	engine *engine.Engine,
	subRepo subscription.Repository,
	usageRepo usage.Repository,
	historyRepo history.Repository,
) ServiceParams {
	return ServiceParams{
		Logger:      logger,
		Config:      config,
		Engine:      engine,
		SubRepo:     subRepo,
		UsageRepo:   usageRepo,
		HistoryRepo: historyRepo,
	}
}
