package config

import (
	"os"
	"strings"
)

// BackorderStockCheck makes stock pre-checks also report purchase-decision (backorder) lines
// whose requested quantity exceeds the store's on-hand quantity. The lines are still not deducted.
//
// Set via env:
// - BACKORDER_STOCK_CHECK=true
func BackorderStockCheck() bool {
	return boolFromEnv("BACKORDER_STOCK_CHECK")
}

// SeedStockLevelsOnVariantCreate controls whether a new variant gets a zero stock row in every
// active store. Defaults to true; set SEED_STOCK_LEVELS=false to create rows lazily on first receipt.
func SeedStockLevelsOnVariantCreate() bool {
	v := strings.TrimSpace(os.Getenv("SEED_STOCK_LEVELS"))
	if v == "" {
		return true
	}
	return boolFromEnv("SEED_STOCK_LEVELS")
}

func boolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
