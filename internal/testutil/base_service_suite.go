package testutil

import (
	"context"
	"time"

	"github.com/finbase/subcore/internal/cache"
	"github.com/finbase/subcore/internal/config"
	"github.com/finbase/subcore/internal/domain/history"
	"github.com/finbase/subcore/internal/domain/subscription"
	"github.com/finbase/subcore/internal/domain/usage"
	"github.com/finbase/subcore/internal/engine"
	"github.com/finbase/subcore/internal/logger"
	"github.com/finbase/subcore/internal/types"
	"github.com/finbase/subcore/internal/validator"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	SubscriptionRepo subscription.Repository
	UsageRepo        usage.Repository
	HistoryRepo      history.Repository
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx    context.Context
	stores Stores
	engine *engine.Engine
	logger *logger.Logger
	config *config.Configuration
	now    time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	// Initialize validator
	validator.NewValidator()

	// Initialize logger with test config
	cfg := config.GetDefaultConfig()
	var err error
	s.config = cfg
	s.logger, err = logger.NewLogger(cfg)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}

	// Initialize cache
	cache.Initialize(cfg, s.logger)
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.setupContext()
	s.setupStores()
	s.now = time.Now().UTC()
	s.setupEngine()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = context.Background()
	s.ctx = types.SetTenantID(s.ctx, types.DefaultTenantID)
	s.ctx = types.SetUserID(s.ctx, types.DefaultUserID)
	s.ctx = types.SetRequestID(s.ctx, types.GenerateUUID())
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		SubscriptionRepo: NewInMemorySubscriptionStore(),
		UsageRepo:        NewInMemoryUsageStore(),
		HistoryRepo:      NewInMemoryHistoryStore(),
	}
}

// setupEngine builds a rules engine pinned to the suite clock so tests
// observe deterministic timestamps.
func (s *BaseServiceTestSuite) setupEngine() {
	catalog, err := s.config.Catalog.ToCatalog()
	if err != nil {
		s.T().Fatalf("failed to build tier catalog: %v", err)
	}

	promotionPercent, err := s.config.Billing.GetPromotionPercent()
	if err != nil {
		s.T().Fatalf("failed to parse promotion percent: %v", err)
	}

	s.engine = engine.New(catalog,
		engine.WithClock(func() time.Time { return s.now }),
		engine.WithPromotionPercent(promotionPercent),
	)
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.SubscriptionRepo.(*InMemorySubscriptionStore).Clear()
	s.stores.UsageRepo.(*InMemoryUsageStore).Clear()
	s.stores.HistoryRepo.(*InMemoryHistoryStore).Clear()
}

func (s *BaseServiceTestSuite) ClearStores() {
	s.clearStores()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetEngine returns the test rules engine
func (s *BaseServiceTestSuite) GetEngine() *engine.Engine {
	return s.engine
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now.UTC()
}

// SetNow advances the suite clock; the engine reads the same clock.
func (s *BaseServiceTestSuite) SetNow(now time.Time) {
	s.now = now.UTC()
}

// GetUUID returns a new UUID string
func (s *BaseServiceTestSuite) GetUUID() string {
	return types.GenerateUUID()
}
