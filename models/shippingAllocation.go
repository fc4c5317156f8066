package models

// AllocateShippingCost splits shipping across items in proportion to quantity.
//
// Each share is round-half-up(shipping * qty / totalQty). The rounding difference is then
// settled so the shares add up to shipping exactly: a positive leftover goes to the last
// item; an overshoot is taken back starting from the last item, never below 0.
func AllocateShippingCost(shipping int64, quantities []int64) ([]int64, error) {
	if shipping < 0 {
		return nil, invariantErr(0, "shipping cost must be >= 0")
	}
	shares := make([]int64, len(quantities))
	if len(quantities) == 0 {
		if shipping > 0 {
			return nil, invariantErr(0, "shipping cost needs at least one item")
		}
		return shares, nil
	}

	var totalQty int64
	for i, q := range quantities {
		if q <= 0 {
			return nil, invariantErr(i+1, "item quantity must be > 0")
		}
		totalQty += q
	}

	var allocated int64
	for i, q := range quantities {
		shares[i] = mulDivRoundHalfUp(shipping, q, totalQty)
		allocated += shares[i]
	}

	diff := shipping - allocated
	last := len(shares) - 1
	if diff > 0 {
		shares[last] += diff
	}
	for i := last; diff < 0 && i >= 0; i-- {
		take := min(shares[i], -diff)
		shares[i] -= take
		diff += take
	}
	return shares, nil
}
