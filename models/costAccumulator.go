package models

import (
	"context"
	"math"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CostAccumulator holds a variant's running purchase totals in minor units.
// Totals are kept exact; the average is derived and rounded once, so receipt order
// does not change the result.
type CostAccumulator struct {
	TotalQuantity int64 `json:"total_quantity"`
	TotalCost     int64 `json:"total_cost"`
}

func (c CostAccumulator) AverageCost() int64 {
	if c.TotalQuantity == 0 {
		return 0
	}
	return divRoundHalfUp(c.TotalCost, c.TotalQuantity)
}

// Receive returns the accumulator after qty units arrive at unitCost with allocatedShipping
// spread over them. qty * landed unit cost equals qty*unitCost + allocatedShipping exactly.
func (c CostAccumulator) Receive(qty int64, unitCost int64, allocatedShipping int64) (CostAccumulator, error) {
	if qty <= 0 {
		return c, invariantErr(0, "received quantity must be > 0")
	}
	if unitCost < 0 || allocatedShipping < 0 {
		return c, invariantErr(0, "unit cost and shipping must be >= 0")
	}
	if unitCost > 0 && qty > math.MaxInt64/unitCost {
		return c, invariantErr(0, "receipt cost overflows")
	}
	lineCost := qty * unitCost
	if lineCost > math.MaxInt64-allocatedShipping || c.TotalCost > math.MaxInt64-lineCost-allocatedShipping {
		return c, invariantErr(0, "receipt cost overflows")
	}
	if c.TotalQuantity > math.MaxInt64-qty {
		return c, invariantErr(0, "receipt quantity overflows")
	}
	return CostAccumulator{
		TotalQuantity: c.TotalQuantity + qty,
		TotalCost:     c.TotalCost + lineCost + allocatedShipping,
	}, nil
}

// LandedUnitCost is unit cost plus the per-unit share of allocated shipping, for display.
func LandedUnitCost(unitCost int64, allocatedShipping int64, qty int64) decimal.Decimal {
	landed := MinorToDecimal(unitCost)
	if qty > 0 {
		landed = landed.Add(MinorToDecimal(allocatedShipping).Div(decimal.NewFromInt(qty)))
	}
	return landed
}

// lockVariants locks variant rows FOR UPDATE in ascending id order.
func lockVariants(tx *gorm.DB, variantIds []int) (map[int]*ProductVariant, error) {
	ids := utils.UniqueSlice(variantIds)
	var variants []ProductVariant
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).Order("id").Find(&variants).Error; err != nil {
		return nil, utils.TranslateDBError(err)
	}
	locked := make(map[int]*ProductVariant, len(variants))
	for i := range variants {
		locked[variants[i].ID] = &variants[i]
	}
	for _, id := range ids {
		if _, ok := locked[id]; !ok {
			return nil, &NotFoundError{Entity: "variant", Id: id}
		}
	}
	return locked, nil
}

func saveCostAccumulator(tx *gorm.DB, variant *ProductVariant, acc CostAccumulator) error {
	average := acc.AverageCost()
	if err := tx.Model(&ProductVariant{}).Where("id = ?", variant.ID).Updates(map[string]interface{}{
		"total_purchased_qty": acc.TotalQuantity,
		"total_cost_amount":   acc.TotalCost,
		"average_cost":        average,
	}).Error; err != nil {
		return utils.TranslateDBError(err)
	}
	variant.TotalPurchasedQty = acc.TotalQuantity
	variant.TotalCostAmount = acc.TotalCost
	variant.AverageCost = average
	return nil
}

// applyReceiptCost folds one received item into a variant already locked by tx.
func applyReceiptCost(tx *gorm.DB, variant *ProductVariant, qty int64, unitCost int64, allocatedShipping int64) error {
	acc, err := variant.CostAccumulator().Receive(qty, unitCost, allocatedShipping)
	if err != nil {
		return err
	}
	return saveCostAccumulator(tx, variant, acc)
}

// costFromReceipts sums what the accumulators of variantIds should hold according to
// completed purchase items.
func costFromReceipts(tx *gorm.DB, variantIds []int) (map[int]CostAccumulator, error) {
	type row struct {
		VariantId     int
		TotalQuantity int64
		TotalCost     int64
	}
	var rows []row
	err := tx.Table("purchase_items").
		Select("purchase_items.variant_id AS variant_id, "+
			"COALESCE(SUM(purchase_items.quantity), 0) AS total_quantity, "+
			"COALESCE(SUM(purchase_items.quantity * purchase_items.unit_cost + purchase_items.allocated_shipping_cost), 0) AS total_cost").
		Joins("JOIN purchases ON purchases.id = purchase_items.purchase_id").
		Where("purchases.status = ? AND purchase_items.variant_id IN ?", PurchaseStatusCompleted, variantIds).
		Group("purchase_items.variant_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[int]CostAccumulator, len(variantIds))
	for _, id := range variantIds {
		out[id] = CostAccumulator{}
	}
	for _, r := range rows {
		out[r.VariantId] = CostAccumulator{TotalQuantity: r.TotalQuantity, TotalCost: r.TotalCost}
	}
	return out, nil
}

// CostDrift pairs a variant's stored accumulator with the one derived from its receipts.
type CostDrift struct {
	VariantId  int             `json:"variant_id"`
	Stored     CostAccumulator `json:"stored"`
	Recomputed CostAccumulator `json:"recomputed"`
}

func (d CostDrift) HasDrift() bool {
	return d.Stored != d.Recomputed
}

// CostDriftPage is one page of a drift scan. LastId is the cursor for the next page.
type CostDriftPage struct {
	Drifts  []CostDrift
	LastId  int
	Checked int
}

// FindCostDrift compares stored accumulators with completed receipts for a page of variants
// (id > afterId, ascending). It reads without locking.
func FindCostDrift(ctx context.Context, afterId int, limit int) (*CostDriftPage, error) {
	db := config.GetDB()
	var variants []ProductVariant
	if err := db.WithContext(ctx).Where("id > ?", afterId).Order("id").Limit(limit).Find(&variants).Error; err != nil {
		return nil, err
	}
	page := &CostDriftPage{LastId: afterId, Checked: len(variants)}
	if len(variants) == 0 {
		return page, nil
	}
	ids := make([]int, 0, len(variants))
	for _, v := range variants {
		ids = append(ids, v.ID)
	}
	expected, err := costFromReceipts(db.WithContext(ctx), ids)
	if err != nil {
		return nil, err
	}
	for _, v := range variants {
		d := CostDrift{VariantId: v.ID, Stored: v.CostAccumulator(), Recomputed: expected[v.ID]}
		if d.HasDrift() {
			page.Drifts = append(page.Drifts, d)
		}
	}
	page.LastId = variants[len(variants)-1].ID
	return page, nil
}

// RecomputeCostAccumulator rebuilds a variant's totals from its completed purchase items
// under the variant row lock and returns the drift that was corrected.
func RecomputeCostAccumulator(ctx context.Context, variantId int) (*CostDrift, error) {
	db := config.GetDB()
	var drift CostDrift
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockVariants(tx, []int{variantId})
		if err != nil {
			return err
		}
		variant := locked[variantId]
		expected, err := costFromReceipts(tx, []int{variantId})
		if err != nil {
			return err
		}
		drift = CostDrift{VariantId: variantId, Stored: variant.CostAccumulator(), Recomputed: expected[variantId]}
		if !drift.HasDrift() && variant.AverageCost == drift.Recomputed.AverageCost() {
			return nil
		}
		return saveCostAccumulator(tx, variant, drift.Recomputed)
	})
	if err != nil {
		return nil, utils.TranslateDBError(err)
	}
	if drift.HasDrift() {
		config.GetLogger().WithField("variant_id", variantId).
			WithField("stored", drift.Stored).WithField("recomputed", drift.Recomputed).
			Warn("cost accumulator recomputed")
	}
	return &drift, nil
}
