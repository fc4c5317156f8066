package models

// SequenceDomain partitions document counters.
type SequenceDomain string

const (
	SequenceDomainOrder    SequenceDomain = "order"
	SequenceDomainPurchase SequenceDomain = "purchase"
)

func (d SequenceDomain) IsValid() bool {
	switch d {
	case SequenceDomainOrder, SequenceDomainPurchase:
		return true
	}
	return false
}

// StockAction is the caller-supplied decision for satisfying an order line.
type StockAction string

const (
	StockActionSufficient StockAction = "sufficient"
	StockActionTransfer   StockAction = "transfer"
	StockActionPurchase   StockAction = "purchase"
	StockActionMixed      StockAction = "mixed"
)

func (a StockAction) IsValid() bool {
	switch a {
	case "", StockActionSufficient, StockActionTransfer, StockActionPurchase, StockActionMixed:
		return true
	}
	return false
}

// Normalize maps the unspecified action to sufficient.
func (a StockAction) Normalize() StockAction {
	if a == "" {
		return StockActionSufficient
	}
	return a
}

type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusInTransit TransferStatus = "in_transit"
	TransferStatusCompleted TransferStatus = "completed"
	TransferStatusCancelled TransferStatus = "cancelled"
)

func (s TransferStatus) IsValid() bool {
	switch s {
	case TransferStatusPending, TransferStatusInTransit, TransferStatusCompleted, TransferStatusCancelled:
		return true
	}
	return false
}

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusConfirmed PurchaseStatus = "confirmed"
	PurchaseStatusReceived  PurchaseStatus = "received"
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusCancelled PurchaseStatus = "cancelled"
)

func (s PurchaseStatus) IsValid() bool {
	switch s {
	case PurchaseStatusPending, PurchaseStatusConfirmed, PurchaseStatusReceived, PurchaseStatusCompleted, PurchaseStatusCancelled:
		return true
	}
	return false
}

// IsEditable reports whether items and shipping cost may still change.
func (s PurchaseStatus) IsEditable() bool {
	return s == PurchaseStatusPending || s == PurchaseStatusConfirmed
}

// InventoryEventType names the outbox events written alongside ledger mutations.
type InventoryEventType string

const (
	InventoryEventTransferCreated   InventoryEventType = "TRANSFER_CREATED"
	InventoryEventTransferStatus    InventoryEventType = "TRANSFER_STATUS"
	InventoryEventPurchaseCompleted InventoryEventType = "PURCHASE_COMPLETED"
	InventoryEventLowStock          InventoryEventType = "LOW_STOCK"
	InventoryEventOrderBackordered  InventoryEventType = "ORDER_BACKORDERED"
)

// InventoryReferenceType names the document an inventory event belongs to.
type InventoryReferenceType string

const (
	InventoryReferenceOrder    InventoryReferenceType = "ORDER"
	InventoryReferenceTransfer InventoryReferenceType = "TRANSFER"
	InventoryReferencePurchase InventoryReferenceType = "PURCHASE"
	InventoryReferenceStock    InventoryReferenceType = "STOCK"
)
