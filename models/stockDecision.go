package models

import (
	"sort"
)

// TransferSpec names an origin store and how many units it gives up for a line.
type TransferSpec struct {
	FromStoreId int `json:"from_store_id" validate:"required,gt=0"`
	Quantity    int `json:"quantity" validate:"gt=0"`
}

// StockDecision is the caller's explicit instruction for satisfying one order line.
// Lines without a decision are treated as sufficient.
type StockDecision struct {
	LineNo        int            `json:"line_no" validate:"gt=0"`
	Action        StockAction    `json:"action"`
	TransferSpecs []TransferSpec `json:"transfer_specs" validate:"dive"`
	PurchaseQty   int            `json:"purchase_qty" validate:"gte=0"`
}

// lineRequest is what the engine needs from an order line.
type lineRequest struct {
	LineNo    int
	VariantId int
	Quantity  int
}

type plannedDeduction struct {
	StoreId  int
	Quantity int
}

type plannedTransfer struct {
	FromStoreId int
	ToStoreId   int
	Quantity    int
}

// linePlan is the resolved effect of one line: deductions per origin store, the transfers
// to create for remote origins and the quantity left as backorder.
type linePlan struct {
	LineNo       int
	VariantId    int
	Requested    int
	Action       StockAction
	Deductions   []plannedDeduction
	Transfers    []plannedTransfer
	BackorderQty int
}

func (p linePlan) IsBackorder() bool {
	return p.BackorderQty > 0
}

func sumTransferSpecs(specs []TransferSpec) int {
	total := 0
	for _, s := range specs {
		total += s.Quantity
	}
	return total
}

// validateDecision checks a decision against its line before anything is touched.
func validateDecision(line lineRequest, d StockDecision) error {
	if line.Quantity <= 0 {
		return invariantErr(line.LineNo, "requested quantity must be > 0")
	}
	if !d.Action.IsValid() {
		return &InvariantError{LineNo: line.LineNo, Message: "unknown stock action", Fields: map[string]string{"action": string(d.Action)}}
	}
	if d.PurchaseQty < 0 {
		return invariantErr(line.LineNo, "purchase quantity must be >= 0")
	}
	for _, s := range d.TransferSpecs {
		if s.FromStoreId <= 0 {
			return invariantErr(line.LineNo, "transfer origin store is required")
		}
		if s.Quantity <= 0 {
			return invariantErr(line.LineNo, "transfer quantity must be > 0")
		}
	}

	transferQty := sumTransferSpecs(d.TransferSpecs)
	switch d.Action.Normalize() {
	case StockActionSufficient:
		if len(d.TransferSpecs) > 0 || d.PurchaseQty > 0 {
			return invariantErr(line.LineNo, "sufficient decision takes no transfers or purchase")
		}
	case StockActionTransfer:
		if len(d.TransferSpecs) == 0 {
			return invariantErr(line.LineNo, "transfer decision needs at least one transfer")
		}
		if d.PurchaseQty > 0 {
			return invariantErr(line.LineNo, "transfer decision takes no purchase quantity")
		}
		if transferQty != line.Quantity {
			return invariantErr(line.LineNo, "transfer quantities %d do not match requested %d", transferQty, line.Quantity)
		}
	case StockActionPurchase:
		if len(d.TransferSpecs) > 0 {
			return invariantErr(line.LineNo, "purchase decision takes no transfers")
		}
		if d.PurchaseQty != 0 && d.PurchaseQty != line.Quantity {
			return invariantErr(line.LineNo, "purchase quantity %d does not match requested %d", d.PurchaseQty, line.Quantity)
		}
	case StockActionMixed:
		if len(d.TransferSpecs) == 0 || d.PurchaseQty == 0 {
			return invariantErr(line.LineNo, "mixed decision needs both transfers and a purchase quantity")
		}
		if transferQty+d.PurchaseQty != line.Quantity {
			return invariantErr(line.LineNo, "transfer %d + purchase %d does not match requested %d", transferQty, d.PurchaseQty, line.Quantity)
		}
	}
	return nil
}

// indexDecisions keys decisions by line number, rejecting duplicates and unknown lines.
func indexDecisions(lines []lineRequest, decisions []StockDecision) (map[int]StockDecision, error) {
	known := make(map[int]bool, len(lines))
	for _, l := range lines {
		if known[l.LineNo] {
			return nil, invariantErr(l.LineNo, "duplicate line number")
		}
		known[l.LineNo] = true
	}
	byLine := make(map[int]StockDecision, len(decisions))
	for _, d := range decisions {
		if !known[d.LineNo] {
			return nil, invariantErr(d.LineNo, "decision for unknown line")
		}
		if _, dup := byLine[d.LineNo]; dup {
			return nil, invariantErr(d.LineNo, "duplicate decision")
		}
		byLine[d.LineNo] = d
	}
	return byLine, nil
}

// planStockResolution turns lines plus decisions into per-line plans, validating everything
// up front. It touches no storage.
func planStockResolution(orderStoreId int, lines []lineRequest, decisions []StockDecision) ([]linePlan, error) {
	byLine, err := indexDecisions(lines, decisions)
	if err != nil {
		return nil, err
	}
	plans := make([]linePlan, 0, len(lines))
	for _, line := range lines {
		decision := byLine[line.LineNo]
		if err := validateDecision(line, decision); err != nil {
			return nil, err
		}
		plan := linePlan{
			LineNo:    line.LineNo,
			VariantId: line.VariantId,
			Requested: line.Quantity,
			Action:    decision.Action.Normalize(),
		}
		switch plan.Action {
		case StockActionSufficient:
			plan.Deductions = []plannedDeduction{{StoreId: orderStoreId, Quantity: line.Quantity}}
		case StockActionTransfer, StockActionMixed:
			plan.Deductions, plan.Transfers = planTransfers(orderStoreId, decision.TransferSpecs)
			if plan.Action == StockActionMixed {
				plan.BackorderQty = decision.PurchaseQty
			}
		case StockActionPurchase:
			plan.BackorderQty = line.Quantity
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// planTransfers yields one transfer per spec entry with a remote origin. Deductions are
// merged per origin store so each ledger row is locked and deducted once; a spec naming
// the ordering store is a local deduction with no transfer.
func planTransfers(orderStoreId int, specs []TransferSpec) ([]plannedDeduction, []plannedTransfer) {
	perStore := make(map[int]int)
	var order []int
	var transfers []plannedTransfer
	for _, s := range specs {
		if _, seen := perStore[s.FromStoreId]; !seen {
			order = append(order, s.FromStoreId)
		}
		perStore[s.FromStoreId] += s.Quantity
		if s.FromStoreId != orderStoreId {
			transfers = append(transfers, plannedTransfer{FromStoreId: s.FromStoreId, ToStoreId: orderStoreId, Quantity: s.Quantity})
		}
	}
	deductions := make([]plannedDeduction, 0, len(order))
	for _, storeId := range order {
		deductions = append(deductions, plannedDeduction{StoreId: storeId, Quantity: perStore[storeId]})
	}
	return deductions, transfers
}

// planStockKeys lists every ledger row the plans deduct from.
func planStockKeys(plans []linePlan) []stockKey {
	var keys []stockKey
	for _, p := range plans {
		for _, d := range p.Deductions {
			keys = append(keys, stockKey{StoreId: d.StoreId, VariantId: p.VariantId})
		}
	}
	return sortStockKeys(keys)
}

// planStoreIds lists every store a plan refers to, ordering store first.
func planStoreIds(orderStoreId int, plans []linePlan) []int {
	ids := []int{orderStoreId}
	for _, p := range plans {
		for _, d := range p.Deductions {
			ids = append(ids, d.StoreId)
		}
	}
	return ids
}

func planVariantIds(plans []linePlan) []int {
	ids := make([]int, 0, len(plans))
	for _, p := range plans {
		ids = append(ids, p.VariantId)
	}
	return ids
}

// StockShortage is one line that stock cannot cover. Stores lists every short origin of
// the line; a line appears at most once.
type StockShortage struct {
	LineNo    int             `json:"line_no"`
	VariantId int             `json:"variant_id"`
	Requested int             `json:"requested"`
	Stores    []StoreShortage `json:"stores"`
}

// StoreShortage is the gap on one store's ledger row. Backorder marks the ordering store's
// row checked for a purchase line.
type StoreShortage struct {
	StoreId   int  `json:"store_id"`
	Requested int  `json:"requested"`
	Available int  `json:"available"`
	Backorder bool `json:"backorder"`
}

// findShortages walks plans in line order against available quantities. A line that fits
// consumes its quantities so later lines on the same row see what is left; a short line
// consumes nothing. Backorder lines are skipped unless checkBackorders is set, and even
// then they only report, never consume.
func findShortages(orderStoreId int, plans []linePlan, available map[stockKey]int, checkBackorders bool) []StockShortage {
	remaining := make(map[stockKey]int, len(available))
	for k, v := range available {
		remaining[k] = v
	}

	var shortages []StockShortage
	for _, p := range plans {
		var short []StoreShortage
		for _, d := range p.Deductions {
			key := stockKey{StoreId: d.StoreId, VariantId: p.VariantId}
			if remaining[key] < d.Quantity {
				short = append(short, StoreShortage{StoreId: d.StoreId, Requested: d.Quantity, Available: remaining[key]})
			}
		}
		if len(short) == 0 {
			for _, d := range p.Deductions {
				remaining[stockKey{StoreId: d.StoreId, VariantId: p.VariantId}] -= d.Quantity
			}
		}

		if checkBackorders && p.BackorderQty > 0 {
			key := stockKey{StoreId: orderStoreId, VariantId: p.VariantId}
			if remaining[key] < p.BackorderQty {
				short = append(short, StoreShortage{
					StoreId: orderStoreId, Requested: p.BackorderQty, Available: remaining[key], Backorder: true,
				})
			}
		}
		if len(short) > 0 {
			shortages = append(shortages, StockShortage{LineNo: p.LineNo, VariantId: p.VariantId, Requested: p.Requested, Stores: short})
		}
	}
	sort.SliceStable(shortages, func(i, j int) bool { return shortages[i].LineNo < shortages[j].LineNo })
	return shortages
}
