package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Order struct {
	ID           int         `gorm:"primary_key" json:"id"`
	OrderNumber  string      `gorm:"size:20;uniqueIndex;not null" json:"order_number"`
	StoreId      int         `gorm:"not null;index" json:"store_id"`
	OrderDate    time.Time   `gorm:"not null" json:"order_date"`
	CustomerName string      `gorm:"size:255" json:"customer_name"`
	TotalAmount  int64       `gorm:"not null;default:0" json:"total_amount"`
	CreatedBy    int         `json:"created_by"`
	Lines        []OrderLine `gorm:"foreignKey:OrderId" json:"lines"`
	CreatedAt    time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

type OrderLine struct {
	ID                int         `gorm:"primary_key" json:"id"`
	OrderId           int         `gorm:"not null;uniqueIndex:uniq_order_line,priority:1" json:"order_id"`
	LineNo            int         `gorm:"not null;uniqueIndex:uniq_order_line,priority:2" json:"line_no"`
	VariantId         int         `gorm:"not null;index" json:"variant_id"`
	Quantity          int         `gorm:"not null;check:chk_order_lines_quantity,quantity > 0" json:"quantity"`
	UnitPrice         int64       `gorm:"not null;default:0" json:"unit_price"`
	LineAmount        int64       `gorm:"not null;default:0" json:"line_amount"`
	StockAction       StockAction `gorm:"size:20;not null;default:'sufficient'" json:"stock_action"`
	IsBackorder       bool        `gorm:"not null;default:false;index" json:"is_backorder"`
	BackorderQuantity int         `gorm:"not null;default:0" json:"backorder_quantity"`
	CreatedAt         time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOrderLine struct {
	// LineNo identifies the line in decisions and errors; 0 on every line means 1..n.
	LineNo    int   `json:"line_no" validate:"gte=0"`
	VariantId int   `json:"variant_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"gt=0"`
	UnitPrice int64 `json:"unit_price" validate:"gte=0"`
}

type NewOrder struct {
	StoreId      int             `json:"store_id" validate:"required,gt=0"`
	OrderDate    time.Time       `json:"order_date"`
	CustomerName string          `json:"customer_name" validate:"max=255"`
	Lines        []NewOrderLine  `json:"lines" validate:"required,min=1,dive"`
	Decisions    []StockDecision `json:"decisions" validate:"dive"`
	// RequestKey makes retries safe: a repeated key returns the order created the first time.
	RequestKey string `json:"request_key" validate:"max=255"`
}

func (l OrderLine) request() lineRequest {
	return lineRequest{LineNo: l.LineNo, VariantId: l.VariantId, Quantity: l.Quantity}
}

func (l NewOrderLine) request() lineRequest {
	return lineRequest{LineNo: l.LineNo, VariantId: l.VariantId, Quantity: l.Quantity}
}

// numberOrderLines fills line numbers 1..n when none are given; otherwise all must be set.
func numberOrderLines(lines []NewOrderLine) ([]NewOrderLine, error) {
	out := make([]NewOrderLine, len(lines))
	copy(out, lines)
	given := 0
	for _, l := range out {
		if l.LineNo > 0 {
			given++
		}
	}
	switch given {
	case 0:
		for i := range out {
			out[i].LineNo = i + 1
		}
	case len(out):
	default:
		return nil, invariantErr(0, "line numbers must be set on every line or on none")
	}
	return out, nil
}

func newOrderLineRequests(lines []NewOrderLine) []lineRequest {
	reqs := make([]lineRequest, 0, len(lines))
	for _, l := range lines {
		reqs = append(reqs, l.request())
	}
	return reqs
}

// CreateOrder draws the order number, stores the order and resolves stock for every line in
// one transaction. Nothing is committed if any line fails.
func CreateOrder(ctx context.Context, input *NewOrder) (order *Order, resolution *StockResolution, err error) {
	ctx, span := tracer.Start(ctx, "CreateOrder")
	defer func() { endSpan(span, err) }()

	if err := validateInput(input); err != nil {
		return nil, nil, err
	}
	lines, err := numberOrderLines(input.Lines)
	if err != nil {
		return nil, nil, err
	}
	// reject bad decisions before a number is drawn
	if _, err := planStockResolution(input.StoreId, newOrderLineRequests(lines), input.Decisions); err != nil {
		return nil, nil, err
	}

	orderDate := input.OrderDate
	if orderDate.IsZero() {
		orderDate = time.Now()
	}
	ctx, _ = utils.EnsureCorrelationId(ctx)
	createdBy, _ := utils.GetUserIdFromContext(ctx)

	decisionByLine := make(map[int]StockAction, len(input.Decisions))
	for _, d := range input.Decisions {
		decisionByLine[d.LineNo] = d.Action.Normalize()
	}
	order = &Order{
		StoreId:      input.StoreId,
		OrderDate:    orderDate,
		CustomerName: input.CustomerName,
		CreatedBy:    createdBy,
	}
	for _, l := range lines {
		action, ok := decisionByLine[l.LineNo]
		if !ok {
			action = StockActionSufficient
		}
		amount := int64(l.Quantity) * l.UnitPrice
		order.TotalAmount += amount
		order.Lines = append(order.Lines, OrderLine{
			LineNo:      l.LineNo,
			VariantId:   l.VariantId,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			LineAmount:  amount,
			StockAction: action,
		})
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, nil, utils.TranslateDBError(tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	if err := ensureStoresExist(tx, []int{input.StoreId}); err != nil {
		return nil, nil, err
	}
	if input.RequestKey != "" {
		existingId, err := claimIdempotencyKey(tx, IdempotencyScopeOrder, input.RequestKey)
		if err != nil {
			return nil, nil, err
		}
		if existingId > 0 {
			_ = tx.Rollback().Error
			return replayOrder(ctx, existingId)
		}
	}
	order.OrderNumber, _, err = nextDocumentNumberInTx(tx, SequenceDomainOrder, orderDate)
	if err != nil {
		return nil, nil, utils.TranslateDBError(err)
	}
	span.SetAttributes(attribute.String("order.number", order.OrderNumber), attribute.Int("order.store_id", order.StoreId))

	if err := tx.Create(order).Error; err != nil {
		return nil, nil, utils.TranslateDBError(err)
	}
	if input.RequestKey != "" {
		if err := bindIdempotencyKey(tx, IdempotencyScopeOrder, input.RequestKey, order.ID); err != nil {
			return nil, nil, utils.TranslateDBError(err)
		}
	}
	resolution, err = ResolveOrderStock(tx, order, order.Lines, input.Decisions)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, nil, utils.TranslateDBError(err)
	}

	invalidateStockCache(ctx, resolution.variantIds()...)
	return order, resolution, nil
}

// replayOrder rebuilds the result of an order created by an earlier request. Deductions are
// not stored per line, so only transfers and backorder lines are reported.
func replayOrder(ctx context.Context, id int) (*Order, *StockResolution, error) {
	order, err := GetOrder(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	transfers, err := ListOrderTransfers(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	resolution := &StockResolution{Transfers: transfers}
	for _, line := range order.Lines {
		if line.IsBackorder {
			resolution.BackorderLines = append(resolution.BackorderLines, line)
		}
	}
	return order, resolution, nil
}

func GetOrder(ctx context.Context, id int) (*Order, error) {
	db := config.GetDB()
	var order Order
	if err := db.WithContext(ctx).Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("line_no")
	}).First(&order, id).Error; err != nil {
		return nil, dbErr(err, "order", id)
	}
	return &order, nil
}

// BackorderLine is an order line waiting for a purchase, with its order context.
type BackorderLine struct {
	OrderId           int       `json:"order_id"`
	OrderNumber       string    `json:"order_number"`
	StoreId           int       `json:"store_id"`
	OrderLineId       int       `json:"order_line_id"`
	LineNo            int       `json:"line_no"`
	VariantId         int       `json:"variant_id"`
	BackorderQuantity int       `json:"backorder_quantity"`
	OrderDate         time.Time `json:"order_date"`
}

// ListBackorderLines lists backordered lines of a store's orders, oldest order first.
// storeId 0 lists every store.
func ListBackorderLines(ctx context.Context, storeId int) ([]BackorderLine, error) {
	db := config.GetDB()
	query := db.WithContext(ctx).Table("order_lines").
		Select("orders.id AS order_id, orders.order_number, orders.store_id, order_lines.id AS order_line_id, " +
			"order_lines.line_no, order_lines.variant_id, order_lines.backorder_quantity, orders.order_date").
		Joins("JOIN orders ON orders.id = order_lines.order_id").
		Where("order_lines.is_backorder = ?", true)
	if storeId > 0 {
		query = query.Where("orders.store_id = ?", storeId)
	}
	var lines []BackorderLine
	if err := query.Order("orders.order_date, orders.id, order_lines.line_no").Scan(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// backorderOrderLine adds qty to a line's backorder quantity under a row lock.
func backorderOrderLine(tx *gorm.DB, orderLineId int, qty int) error {
	var line OrderLine
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&line, orderLineId).Error; err != nil {
		return dbErr(err, "order line", orderLineId)
	}
	if err := tx.Model(&OrderLine{}).Where("id = ?", orderLineId).Updates(map[string]interface{}{
		"is_backorder":       true,
		"backorder_quantity": gorm.Expr("backorder_quantity + ?", qty),
	}).Error; err != nil {
		return err
	}
	payload := backorderPayload{LineNo: line.LineNo, Quantity: qty}
	var order Order
	if err := tx.Select("id", "store_id").First(&order, line.OrderId).Error; err != nil {
		return dbErr(err, "order", line.OrderId)
	}
	return writeInventoryEvent(tx, InventoryEventOrderBackordered, InventoryReferenceOrder, line.OrderId, order.StoreId, line.VariantId, payload)
}

type backorderPayload struct {
	LineNo   int `json:"line_no"`
	Quantity int `json:"quantity"`
}
