package models

var purchaseTransitions = map[PurchaseStatus][]PurchaseStatus{
	PurchaseStatusPending:   {PurchaseStatusConfirmed, PurchaseStatusCancelled},
	PurchaseStatusConfirmed: {PurchaseStatusReceived, PurchaseStatusCancelled},
	PurchaseStatusReceived:  {PurchaseStatusCompleted, PurchaseStatusCancelled},
}

// CanTransitionPurchase reports whether from -> to is a legal purchase transition.
// completed and cancelled are terminal.
func CanTransitionPurchase(from, to PurchaseStatus) bool {
	for _, next := range purchaseTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkPurchaseTransition(id int, from, to PurchaseStatus) error {
	if !to.IsValid() || !CanTransitionPurchase(from, to) {
		return &StatusTransitionError{Entity: "purchase", Id: id, From: string(from), To: string(to)}
	}
	return nil
}
