package models

import (
	"errors"
	"math"
	"testing"
)

func TestCostAccumulator_OrderIndependent(t *testing.T) {
	receiveA := func(c CostAccumulator) CostAccumulator {
		next, err := c.Receive(10, 5000, 6667)
		if err != nil {
			t.Fatalf("receive A: %v", err)
		}
		return next
	}
	receiveB := func(c CostAccumulator) CostAccumulator {
		next, err := c.Receive(5, 10000, 3333)
		if err != nil {
			t.Fatalf("receive B: %v", err)
		}
		return next
	}

	ab := receiveB(receiveA(CostAccumulator{}))
	ba := receiveA(receiveB(CostAccumulator{}))
	if ab != ba {
		t.Fatalf("accumulators differ by receipt order: %+v vs %+v", ab, ba)
	}
	if ab.TotalQuantity != 15 || ab.TotalCost != 110000 {
		t.Fatalf("totals = %+v, want qty 15 cost 110000", ab)
	}
	if got := ab.AverageCost(); got != 7333 {
		t.Fatalf("average = %d, want 7333", got)
	}
}

func TestCostAccumulator_AverageRoundsHalfUp(t *testing.T) {
	cases := []struct {
		acc  CostAccumulator
		want int64
	}{
		{CostAccumulator{}, 0},
		{CostAccumulator{TotalQuantity: 2, TotalCost: 5}, 3},
		{CostAccumulator{TotalQuantity: 3, TotalCost: 10}, 3},
		{CostAccumulator{TotalQuantity: 3, TotalCost: 11}, 4},
		{CostAccumulator{TotalQuantity: 4, TotalCost: 10}, 3},
	}
	for _, tc := range cases {
		if got := tc.acc.AverageCost(); got != tc.want {
			t.Fatalf("AverageCost(%+v) = %d, want %d", tc.acc, got, tc.want)
		}
	}
}

func TestCostAccumulator_ReceiveRejects(t *testing.T) {
	start := CostAccumulator{TotalQuantity: 1, TotalCost: 100}
	bad := []struct {
		name          string
		qty, unit, sh int64
	}{
		{"zero quantity", 0, 100, 0},
		{"negative unit cost", 1, -1, 0},
		{"negative shipping", 1, 1, -1},
		{"line cost overflow", math.MaxInt64/2 + 1, 2, 0},
		{"total overflow", 1, math.MaxInt64 - 50, 0},
	}
	for _, tc := range bad {
		got, err := start.Receive(tc.qty, tc.unit, tc.sh)
		if !errors.Is(err, ErrInvariantViolation) {
			t.Fatalf("%s: err = %v, want invariant violation", tc.name, err)
		}
		if got != start {
			t.Fatalf("%s: accumulator changed to %+v", tc.name, got)
		}
	}
}

func TestLandedUnitCost(t *testing.T) {
	got := LandedUnitCost(5000, 6667, 10)
	// 50.00 + 66.67/10
	if got.StringFixed(3) != "56.667" {
		t.Fatalf("landed = %s", got.StringFixed(3))
	}
	if LandedUnitCost(5000, 100, 0).StringFixed(2) != "50.00" {
		t.Fatalf("zero quantity should yield the unit cost")
	}
}

func TestMoneyConversions(t *testing.T) {
	if MinorToDecimal(123456).String() != "1234.56" {
		t.Fatalf("MinorToDecimal = %s", MinorToDecimal(123456).String())
	}
	if got := DecimalToMinor(MinorToDecimal(-705)); got != -705 {
		t.Fatalf("DecimalToMinor round trip = %d", got)
	}
	if got := mulDivRoundHalfUp(math.MaxInt64, 3, 3); got != math.MaxInt64 {
		t.Fatalf("mulDivRoundHalfUp overflowed: %d", got)
	}
}

func TestCostDrift(t *testing.T) {
	same := CostDrift{VariantId: 1, Stored: CostAccumulator{TotalQuantity: 2, TotalCost: 10}, Recomputed: CostAccumulator{TotalQuantity: 2, TotalCost: 10}}
	if same.HasDrift() {
		t.Fatalf("identical accumulators reported as drift")
	}
	off := same
	off.Recomputed.TotalCost = 11
	if !off.HasDrift() {
		t.Fatalf("differing accumulators not reported")
	}
}
