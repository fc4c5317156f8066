package config

import "testing"

func TestBackorderStockCheck(t *testing.T) {
	for _, v := range []string{"", "0", "false", "no"} {
		t.Setenv("BACKORDER_STOCK_CHECK", v)
		if BackorderStockCheck() {
			t.Fatalf("BACKORDER_STOCK_CHECK=%q enabled the check", v)
		}
	}
	for _, v := range []string{"1", "true", "TRUE", " yes "} {
		t.Setenv("BACKORDER_STOCK_CHECK", v)
		if !BackorderStockCheck() {
			t.Fatalf("BACKORDER_STOCK_CHECK=%q did not enable the check", v)
		}
	}
}

func TestSeedStockLevelsOnVariantCreate(t *testing.T) {
	t.Setenv("SEED_STOCK_LEVELS", "")
	if !SeedStockLevelsOnVariantCreate() {
		t.Fatalf("seeding should default to on")
	}
	t.Setenv("SEED_STOCK_LEVELS", "false")
	if SeedStockLevelsOnVariantCreate() {
		t.Fatalf("SEED_STOCK_LEVELS=false ignored")
	}
}
