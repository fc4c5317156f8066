package models_test

import (
	"errors"
	"testing"

	"github.com/mmdatafocus/retail_backend/models"
)

func TestProductVariantIntegration(t *testing.T) {
	ctx := setupIntegration(t)
	home := mustCreateStore(t, ctx, "MAIN")
	kiosk := mustCreateStore(t, ctx, "KIOSK")
	pen := mustCreateVariant(t, ctx, "PEN-01")

	t.Run("new variant gets a zero row per store", func(t *testing.T) {
		levels, err := models.GetVariantStockLevels(ctx, pen.ID)
		if err != nil {
			t.Fatalf("GetVariantStockLevels: %v", err)
		}
		if len(levels) != 2 || levels[0].StoreId != home.ID || levels[0].Quantity != 0 {
			t.Fatalf("levels = %+v", levels)
		}
	})

	t.Run("stock cache is invalidated after a mutation", func(t *testing.T) {
		if _, err := models.GetVariantStockLevels(ctx, pen.ID); err != nil {
			t.Fatalf("warm cache: %v", err)
		}
		mustAddStock(t, ctx, home.ID, pen.ID, 6)
		// direct ledger writes leave the cache to the caller; transfers invalidate it themselves
		if _, err := models.CreateTransfer(ctx, &models.NewTransfer{FromStoreId: home.ID, ToStoreId: kiosk.ID, VariantId: pen.ID, Quantity: 1}); err != nil {
			t.Fatalf("CreateTransfer: %v", err)
		}
		levels, err := models.GetVariantStockLevels(ctx, pen.ID)
		if err != nil {
			t.Fatalf("GetVariantStockLevels: %v", err)
		}
		if levels[0].Quantity != 5 {
			t.Fatalf("cached quantity = %d, want 5", levels[0].Quantity)
		}
	})

	t.Run("crossing the threshold writes a low stock event", func(t *testing.T) {
		level, err := models.SetLowStockThreshold(ctx, home.ID, pen.ID, 3)
		if err != nil {
			t.Fatalf("SetLowStockThreshold: %v", err)
		}
		if level.LowStockThreshold != 3 {
			t.Fatalf("threshold = %d", level.LowStockThreshold)
		}
		if _, err := models.SetLowStockThreshold(ctx, home.ID, pen.ID, -1); !errors.Is(err, models.ErrInvariantViolation) {
			t.Fatalf("negative threshold: err = %v", err)
		}
		if _, err := models.CreateTransfer(ctx, &models.NewTransfer{FromStoreId: home.ID, ToStoreId: kiosk.ID, VariantId: pen.ID, Quantity: 2}); err != nil {
			t.Fatalf("CreateTransfer: %v", err)
		}
		events, err := models.ListInventoryEvents(ctx, models.InventoryReferenceStock, level.ID)
		if err != nil {
			t.Fatalf("ListInventoryEvents: %v", err)
		}
		if len(events) != 1 || events[0].EventType != models.InventoryEventLowStock || events[0].StoreId != home.ID {
			t.Fatalf("low stock events = %+v", events)
		}
	})

	t.Run("update leaves the cost accumulator alone", func(t *testing.T) {
		updated, err := models.UpdateProductVariant(ctx, pen.ID, &models.NewProductVariant{Name: "Gel Pen", Sku: "PEN-01", SalesPrice: 1200})
		if err != nil {
			t.Fatalf("UpdateProductVariant: %v", err)
		}
		if updated.Name != "Gel Pen" || updated.SalesPrice != 1200 || updated.TotalCostAmount != 0 {
			t.Fatalf("updated = %+v", updated)
		}
	})

	t.Run("referenced variant cannot be deleted", func(t *testing.T) {
		if _, err := models.DeleteProductVariant(ctx, pen.ID); !errors.Is(err, models.ErrInvariantViolation) {
			t.Fatalf("delete referenced variant: err = %v", err)
		}
		unused := mustCreateVariant(t, ctx, "UNUSED-01")
		if _, err := models.DeleteProductVariant(ctx, unused.ID); err != nil {
			t.Fatalf("DeleteProductVariant: %v", err)
		}
		if _, err := models.GetProductVariant(ctx, unused.ID); !errors.Is(err, models.ErrNotFound) {
			t.Fatalf("deleted variant still readable: %v", err)
		}
		if got := stockQty(t, ctx, home.ID, unused.ID); got != 0 {
			t.Fatalf("stock row survived delete: %d", got)
		}
	})

	t.Run("stores", func(t *testing.T) {
		got, err := models.GetStore(ctx, kiosk.ID)
		if err != nil || got.Code != "KIOSK" {
			t.Fatalf("GetStore = %+v, %v", got, err)
		}
		if _, err := models.GetStore(ctx, 424242); !errors.Is(err, models.ErrNotFound) {
			t.Fatalf("unknown store: err = %v", err)
		}
		tr, err := models.CreateTransfer(ctx, &models.NewTransfer{FromStoreId: kiosk.ID, ToStoreId: home.ID, VariantId: pen.ID, Quantity: 1})
		if err != nil {
			t.Fatalf("CreateTransfer: %v", err)
		}
		loaded, err := models.GetTransfer(ctx, tr.ID)
		if err != nil || loaded.Status != models.TransferStatusPending || loaded.IsOrderBound() {
			t.Fatalf("GetTransfer = %+v, %v", loaded, err)
		}
	})
}
