package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/finbase/subcore/internal/config"
	"github.com/finbase/subcore/internal/engine"
	"github.com/finbase/subcore/internal/logger"
	"github.com/finbase/subcore/internal/service"
	"github.com/finbase/subcore/internal/types"
	"github.com/finbase/subcore/internal/validator"
	"github.com/k0kubun/pp"
)

func main() {
	// Parse command line flags
	useDefaults := flag.Bool("defaults", false, "Use the built-in reference catalog instead of config.yaml")
	dump := flag.Bool("dump", false, "Pretty-print the resolved configuration and exit")
	tierFlag := flag.String("tier", "", "Restrict output to a single tier (e.g. PRO)")
	flag.Parse()

	validator.NewValidator()

	// Load configuration. A broken config file is this tool's whole reason to
	// exist, so it exits non-zero rather than papering over one.
	var cfg *config.Configuration
	if *useDefaults {
		cfg = config.GetDefaultConfig()
	} else {
		var err error
		cfg, err = config.NewConfig()
		if err != nil {
			log.Fatalf("Invalid configuration: %v", err)
		}
	}

	// Initialize logger
	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	if *dump {
		pp.Println(cfg)
		return
	}

	catalog, err := cfg.Catalog.ToCatalog()
	if err != nil {
		logger.Fatalw("Catalog validation failed", "error", err)
	}

	promotionPercent, err := cfg.Billing.GetPromotionPercent()
	if err != nil {
		logger.Fatalw("Invalid promotion percent", "error", err)
	}

	eng := engine.New(catalog, engine.WithPromotionPercent(promotionPercent))
	billing := service.NewBillingService(service.ServiceParams{
		Logger: logger,
		Config: cfg,
		Engine: eng,
	})

	tiers := types.SubscriptionTierValues
	if *tierFlag != "" {
		id := types.SubscriptionTier(strings.ToUpper(*tierFlag))
		if err := id.Validate(); err != nil {
			logger.Fatalw("Unknown tier", "tier", *tierFlag, "error", err)
		}
		tiers = []types.SubscriptionTier{id}
	}

	for _, id := range tiers {
		preview, err := billing.PreviewAmounts(id)
		if err != nil {
			logger.Fatalw("Failed to price tier", "tier", id, "error", err)
		}
		printPreview(preview)

		entry, err := catalog.Tier(id)
		if err != nil {
			logger.Fatalw("Failed to load tier", "tier", id, "error", err)
		}
		printLimits(entry.Features, func(key types.FeatureKey) (int64, error) {
			return entry.LimitFor(key)
		})
		fmt.Println()
	}

	fmt.Println("Catalog is valid")
}

func printPreview(preview *service.BillingPreview) {
	symbol := types.GetCurrencySymbol(preview.Currency)
	fmt.Printf("%s (%s, %s)\n", preview.DisplayName, preview.Tier, strings.ToUpper(preview.Currency))
	fmt.Printf("  %-10s %12s %12s %14s %14s\n", "cycle", "list", "promotional", "savings/month", "savings/cycle")
	for _, c := range preview.Cycles {
		fmt.Printf("  %-10s %12s %12s %14s %14s\n",
			c.Cycle,
			symbol+c.ListPrice.StringFixed(2),
			symbol+c.PromotionalPrice.StringFixed(2),
			symbol+c.MonthlySavings.StringFixed(2),
			symbol+c.TotalSavings.StringFixed(2),
		)
	}
}

func printLimits(features []types.FeatureKey, limitFor func(types.FeatureKey) (int64, error)) {
	if len(features) == 0 {
		return
	}
	fmt.Printf("  %-24s %10s\n", "feature", "limit")
	for _, key := range features {
		limit, err := limitFor(key)
		if err != nil {
			fmt.Printf("  %-24s %10s\n", key, "n/a")
			continue
		}
		if limit < 0 {
			fmt.Printf("  %-24s %10s\n", key, "unlimited")
			continue
		}
		fmt.Printf("  %-24s %10d\n", key, limit)
	}
}
