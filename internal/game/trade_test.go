package game

import (
	"errors"
	"strings"
	"testing"
)

func TestPlanBuy(t *testing.T) {
	plan, err := planBuy("CGENER", 2.5, 100, 100, 10)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.Cost != 25 {
		t.Fatalf("cost = %v, want 25", plan.Cost)
	}
	if plan.Balance != 75 {
		t.Fatalf("balance = %v, want 75", plan.Balance)
	}
	if plan.Available != 90 {
		t.Fatalf("available = %v, want 90", plan.Available)
	}
}

func TestPlanBuyRejections(t *testing.T) {
	cases := []struct {
		name      string
		price     float64
		balance   float64
		available int64
		quantity  int64
		want      error
	}{
		{"zero quantity", 2.5, 100, 100, 0, ErrInvalidQuantity},
		{"negative quantity", 2.5, 100, 100, -3, ErrInvalidQuantity},
		{"unlisted", 0, 100, 100, 10, ErrStockUnlisted},
		{"over availability", 2.5, 1e9, 100, 101, ErrInsufficientAvail},
		{"over balance", 2.5, 24.9, 100, 10, ErrInsufficientFunds},
	}
	for _, tc := range cases {
		plan, err := planBuy("CGENER", tc.price, tc.balance, tc.available, tc.quantity)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
		if plan != (buyPlan{}) {
			t.Fatalf("%s: rejected buy produced plan %+v", tc.name, plan)
		}
	}
}

func TestPlanBuyReportsMaxAffordable(t *testing.T) {
	_, err := planBuy("CGENER", 2.5, 24.9, 100, 10)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	// floor(24.9 / 2.5) = 9
	if !strings.Contains(err.Error(), "at most 9") {
		t.Fatalf("err %q does not name the affordable quantity", err)
	}
}

func TestPlanSell(t *testing.T) {
	plan, err := planSell("CGENER", 2.5, 100, 90, 10, 4)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.Proceeds != 10 {
		t.Fatalf("proceeds = %v, want 10", plan.Proceeds)
	}
	if plan.Balance != 110 {
		t.Fatalf("balance = %v, want 110", plan.Balance)
	}
	if plan.Available != 94 {
		t.Fatalf("available = %v, want 94", plan.Available)
	}
	if plan.Remaining != 6 {
		t.Fatalf("remaining = %v, want 6", plan.Remaining)
	}
}

func TestPlanSellReturnsSharesAtZeroPrice(t *testing.T) {
	// A stock decayed to nothing still takes its shares back.
	plan, err := planSell("CGENER", 0, 100, 90, 10, 10)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.Proceeds != 0 || plan.Balance != 100 {
		t.Fatalf("proceeds = %v balance = %v, want 0 and 100", plan.Proceeds, plan.Balance)
	}
	if plan.Available != 100 {
		t.Fatalf("available = %v, want 100", plan.Available)
	}
}

func TestPlanSellRejections(t *testing.T) {
	cases := []struct {
		name     string
		held     int64
		quantity int64
		want     error
	}{
		{"zero quantity", 10, 0, ErrInvalidQuantity},
		{"more than held", 10, 11, ErrInsufficientShares},
		{"none held", 0, 1, ErrInsufficientShares},
	}
	for _, tc := range cases {
		plan, err := planSell("CGENER", 2.5, 100, 90, tc.held, tc.quantity)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
		if plan != (sellPlan{}) {
			t.Fatalf("%s: rejected sell produced plan %+v", tc.name, plan)
		}
	}
}

func TestRemainingHolding(t *testing.T) {
	cases := []struct {
		held, quantity, remaining int64
		gone                      bool
	}{
		{5, 5, 0, true},
		{5, 3, 2, false},
		{1, 1, 0, true},
	}
	for _, tc := range cases {
		remaining, gone := remainingHolding(tc.held, tc.quantity)
		if remaining != tc.remaining || gone != tc.gone {
			t.Fatalf("remainingHolding(%d, %d) = %d, %v; want %d, %v",
				tc.held, tc.quantity, remaining, gone, tc.remaining, tc.gone)
		}
	}
}
