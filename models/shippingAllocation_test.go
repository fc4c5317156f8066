package models

import (
	"errors"
	"testing"
	"testing/quick"
)

func sum64(xs []int64) int64 {
	var total int64
	for _, x := range xs {
		total += x
	}
	return total
}

func TestAllocateShippingCost_Scenario(t *testing.T) {
	shares, err := AllocateShippingCost(10000, []int64{10, 5})
	if err != nil {
		t.Fatalf("AllocateShippingCost: %v", err)
	}
	if shares[0] != 6667 || shares[1] != 3333 {
		t.Fatalf("shares = %v, want [6667 3333]", shares)
	}
}

func TestAllocateShippingCost_Remainders(t *testing.T) {
	cases := []struct {
		name     string
		shipping int64
		qtys     []int64
		want     []int64
	}{
		// 33.33 each rounds down; the missing cent goes to the last item
		{"leftover to last", 100, []int64{1, 1, 1}, []int64{33, 33, 34}},
		// 0.5 each rounds up; the extra cent is taken back from the last item
		{"overshoot from last", 1, []int64{1, 1}, []int64{1, 0}},
		// 2 * 1.5 -> 2 + 2 = 4 > 3, take one back from the last
		{"overshoot pair", 3, []int64{1, 1}, []int64{2, 1}},
		{"single item", 999, []int64{7}, []int64{999}},
		{"zero shipping", 0, []int64{3, 4}, []int64{0, 0}},
	}
	for _, tc := range cases {
		got, err := AllocateShippingCost(tc.shipping, tc.qtys)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		for i := range tc.want {
			if got[i] != tc.want[i] {
				t.Fatalf("%s: shares = %v, want %v", tc.name, got, tc.want)
			}
		}
	}
}

func TestAllocateShippingCost_Rejects(t *testing.T) {
	if _, err := AllocateShippingCost(-1, []int64{1}); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("negative shipping: err = %v", err)
	}
	if _, err := AllocateShippingCost(10, []int64{1, 0}); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("zero quantity: err = %v", err)
	}
	if _, err := AllocateShippingCost(10, nil); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("shipping without items: err = %v", err)
	}
	shares, err := AllocateShippingCost(0, nil)
	if err != nil || len(shares) != 0 {
		t.Fatalf("no items, no shipping: shares=%v err=%v", shares, err)
	}
}

// Allocations always add up to the shipping cost exactly and are never negative.
func TestAllocateShippingCost_SumProperty(t *testing.T) {
	property := func(shipping uint32, raw []uint16) bool {
		if len(raw) == 0 {
			return true
		}
		qtys := make([]int64, len(raw))
		for i, q := range raw {
			qtys[i] = int64(q%1000) + 1
		}
		shares, err := AllocateShippingCost(int64(shipping), qtys)
		if err != nil {
			return false
		}
		if len(shares) != len(qtys) || sum64(shares) != int64(shipping) {
			return false
		}
		for _, s := range shares {
			if s < 0 {
				return false
			}
		}
		return true
	}
	if err := quick.Check(property, &quick.Config{MaxCount: 2000}); err != nil {
		t.Fatalf("allocation sum property: %v", err)
	}
}
