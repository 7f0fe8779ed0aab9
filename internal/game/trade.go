package game

import (
	"fmt"
	"math"
)

// buyPlan is the post-trade state a buy writes back once committed.
type buyPlan struct {
	Cost      float64
	Balance   float64
	Available int64
}

// planBuy checks every buy precondition against a locked snapshot and
// computes the state to write. Rejections leave no plan.
func planBuy(ticker string, price, balance float64, available, quantity int64) (buyPlan, error) {
	if quantity <= 0 {
		return buyPlan{}, ErrInvalidQuantity
	}
	if price <= 0 {
		return buyPlan{}, ErrStockUnlisted
	}
	if quantity > available {
		return buyPlan{}, fmt.Errorf("%w: only %d of %s for sale", ErrInsufficientAvail, available, ticker)
	}
	cost := price * float64(quantity)
	if balance < cost {
		maxAffordable := int64(math.Floor(balance / price))
		return buyPlan{}, fmt.Errorf("%w: %d shares cost %.2f, you can afford at most %d", ErrInsufficientFunds, quantity, cost, maxAffordable)
	}
	return buyPlan{
		Cost:      cost,
		Balance:   balance - cost,
		Available: available - quantity,
	}, nil
}

// sellPlan is the post-trade state a sell writes back once committed.
type sellPlan struct {
	Proceeds  float64
	Balance   float64
	Available int64
	Remaining int64
}

// planSell checks the sell preconditions and computes the state to write.
// Sold shares return to the available pool unconditionally, even when the
// price has decayed to nothing.
func planSell(ticker string, price, balance float64, available, held, quantity int64) (sellPlan, error) {
	if quantity <= 0 {
		return sellPlan{}, ErrInvalidQuantity
	}
	if held < quantity {
		return sellPlan{}, fmt.Errorf("%w: you hold %d of %s", ErrInsufficientShares, held, ticker)
	}
	proceeds := price * float64(quantity)
	return sellPlan{
		Proceeds:  proceeds,
		Balance:   balance + proceeds,
		Available: available + quantity,
		Remaining: held - quantity,
	}, nil
}

// remainingHolding reports the holding quantity after removing shares and
// whether the row should be deleted instead of updated. A zero-quantity row
// is never stored.
func remainingHolding(held, quantity int64) (remaining int64, deleteRow bool) {
	remaining = held - quantity
	return remaining, remaining == 0
}
