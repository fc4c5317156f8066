package models

import (
	"context"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// StockDeduction is one ledger decrement applied for an order line.
type StockDeduction struct {
	LineNo    int `json:"line_no"`
	StoreId   int `json:"store_id"`
	VariantId int `json:"variant_id"`
	Quantity  int `json:"quantity"`
	Remaining int `json:"remaining"`
}

// StockResolution is everything one order's stock resolution applied.
type StockResolution struct {
	Deductions     []StockDeduction `json:"deductions"`
	Transfers      []Transfer       `json:"transfers"`
	BackorderLines []OrderLine      `json:"backorder_lines"`
}

func (r *StockResolution) variantIds() []int {
	if r == nil {
		return nil
	}
	var ids []int
	for _, d := range r.Deductions {
		ids = append(ids, d.VariantId)
	}
	return utils.UniqueSlice(ids)
}

// ResolveOrderStock applies decisions to the persisted lines of order inside tx.
//
// Decisions are validated before any row is touched. Ledger rows are locked FOR UPDATE in
// (store, variant) order, then lines are applied in line order. The first line that cannot
// be covered fails the call with a *StockError; the caller's rollback discards everything.
func ResolveOrderStock(tx *gorm.DB, order *Order, lines []OrderLine, decisions []StockDecision) (*StockResolution, error) {
	ctx := tx.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	_, span := tracer.Start(ctx, "ResolveOrderStock")
	var err error
	defer func() { endSpan(span, err) }()

	reqs := make([]lineRequest, 0, len(lines))
	lineByNo := make(map[int]*OrderLine, len(lines))
	for i := range lines {
		reqs = append(reqs, lines[i].request())
		lineByNo[lines[i].LineNo] = &lines[i]
	}
	var plans []linePlan
	plans, err = planStockResolution(order.StoreId, reqs, decisions)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("order.id", order.ID), attribute.Int("order.lines", len(plans)))

	if err = ensureStoresExist(tx, planStoreIds(order.StoreId, plans)); err != nil {
		return nil, err
	}
	if err = ensureVariantsExist(tx, planVariantIds(plans)); err != nil {
		return nil, err
	}

	var locked map[stockKey]*StockLevel
	locked, err = lockStockLevels(tx, planStockKeys(plans), false)
	if err != nil {
		return nil, err
	}

	resolution := &StockResolution{}
	for _, plan := range plans {
		for _, d := range plan.Deductions {
			level := locked[stockKey{StoreId: d.StoreId, VariantId: plan.VariantId}]
			if err = deductLockedStock(tx, level, d.Quantity, plan.LineNo); err != nil {
				return nil, err
			}
			resolution.Deductions = append(resolution.Deductions, StockDeduction{
				LineNo:    plan.LineNo,
				StoreId:   d.StoreId,
				VariantId: plan.VariantId,
				Quantity:  d.Quantity,
				Remaining: level.Quantity,
			})
		}

		line := lineByNo[plan.LineNo]
		for _, t := range plan.Transfers {
			transfer := Transfer{
				FromStoreId: t.FromStoreId,
				ToStoreId:   t.ToStoreId,
				VariantId:   plan.VariantId,
				Quantity:    t.Quantity,
				OrderId:     &order.ID,
				OrderLineId: &line.ID,
			}
			if err = newTransferInTx(tx, &transfer); err != nil {
				return nil, err
			}
			resolution.Transfers = append(resolution.Transfers, transfer)
		}

		if plan.IsBackorder() {
			if err = markBackorder(tx, order, line, plan.BackorderQty); err != nil {
				return nil, err
			}
			resolution.BackorderLines = append(resolution.BackorderLines, *line)
		}
	}

	touched := make([]*StockLevel, 0, len(locked))
	for _, key := range planStockKeys(plans) {
		touched = append(touched, locked[key])
	}
	if err = writeLowStockEvents(tx, touched); err != nil {
		return nil, err
	}
	return resolution, nil
}

// markBackorder flags a line created in this transaction as waiting for a purchase.
func markBackorder(tx *gorm.DB, order *Order, line *OrderLine, qty int) error {
	if err := tx.Model(&OrderLine{}).Where("id = ?", line.ID).Updates(map[string]interface{}{
		"is_backorder":       true,
		"backorder_quantity": qty,
	}).Error; err != nil {
		return err
	}
	line.IsBackorder = true
	line.BackorderQuantity = qty
	payload := backorderPayload{LineNo: line.LineNo, Quantity: qty}
	return writeInventoryEvent(tx, InventoryEventOrderBackordered, InventoryReferenceOrder, order.ID, order.StoreId, line.VariantId, payload)
}

// BatchCheckStock reports the lines that current stock cannot cover, without locking or
// mutating anything. Lines are checked in order against what earlier lines would consume.
// Backorder (purchase) lines are skipped unless BACKORDER_STOCK_CHECK is on. Each short line
// is returned once, with its short stores nested in Stores.
func BatchCheckStock(ctx context.Context, storeId int, lines []NewOrderLine, decisions []StockDecision) ([]StockShortage, error) {
	return batchCheckStock(ctx, storeId, lines, decisions, config.BackorderStockCheck())
}

func batchCheckStock(ctx context.Context, storeId int, lines []NewOrderLine, decisions []StockDecision, checkBackorders bool) ([]StockShortage, error) {
	for _, l := range lines {
		if err := validateInput(&l); err != nil {
			return nil, err
		}
	}
	numbered, err := numberOrderLines(lines)
	if err != nil {
		return nil, err
	}
	plans, err := planStockResolution(storeId, newOrderLineRequests(numbered), decisions)
	if err != nil {
		return nil, err
	}

	keys := planStockKeys(plans)
	if checkBackorders {
		for _, p := range plans {
			if p.IsBackorder() {
				keys = append(keys, stockKey{StoreId: storeId, VariantId: p.VariantId})
			}
		}
	}
	available, err := readStockQuantities(ctx, keys)
	if err != nil {
		return nil, err
	}
	return findShortages(storeId, plans, available, checkBackorders), nil
}

// readStockQuantities reads quantities without locks; absent rows read as 0.
func readStockQuantities(ctx context.Context, keys []stockKey) (map[stockKey]int, error) {
	available := make(map[stockKey]int, len(keys))
	keys = sortStockKeys(keys)
	if len(keys) == 0 {
		return available, nil
	}
	byVariant := make(map[int][]int)
	for _, k := range keys {
		available[k] = 0
		byVariant[k.VariantId] = append(byVariant[k.VariantId], k.StoreId)
	}
	db := config.GetDB()
	for variantId, storeIds := range byVariant {
		var levels []StockLevel
		if err := db.WithContext(ctx).Where("variant_id = ? AND store_id IN ?", variantId, storeIds).
			Find(&levels).Error; err != nil {
			return nil, err
		}
		for _, level := range levels {
			available[stockKey{StoreId: level.StoreId, VariantId: level.VariantId}] = level.Quantity
		}
	}
	return available, nil
}
