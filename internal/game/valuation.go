package game

import (
	"math"
	mathrand "math/rand"
	"sync"
	"time"
)

// Valuation computes seed prices and per-cycle price movement. All randomness
// flows through the injected source so tests can pin a seed and assert exact
// ranges.
type Valuation struct {
	mu   sync.Mutex
	rand *mathrand.Rand
}

func NewValuation(rng *mathrand.Rand) *Valuation {
	if rng == nil {
		rng = mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	}
	return &Valuation{rand: rng}
}

// SeedPrice derives the initial listing price from activity over the seed
// window. Dead names list at 0 and are filtered out of trading; modestly
// active ones get the flat seed; busier ones replay the window as if growth
// had been happening hourly all along.
func (v *Valuation) SeedPrice(activityCount int) float64 {
	if activityCount < 5 {
		return 0
	}
	price := 4.20
	if activityCount <= SeedWindowHours {
		return price
	}
	// Halves round to even, so 300 messages seed as 2/hour, not 3.
	perHour := int(math.RoundToEven(float64(activityCount) / SeedWindowHours))
	for i := 0; i < SeedWindowHours; i++ {
		price = v.Decay(price)
		price = RaisePrice(price, perHour)
	}
	return price
}

// RaisePrice applies one marginal-rate step per message. The rate ladder is
// re-read after every step, so a burst that crosses a threshold pays the
// cheaper rate only for the messages after the crossing.
func RaisePrice(price float64, totalMessages int) float64 {
	for i := 0; i < totalMessages; i++ {
		switch {
		case price < 100:
			price += 1.00
		case price < 200:
			price += 0.80
		case price < 300:
			price += 0.50
		case price < 400:
			price += 0.20
		case price < 500:
			price += 0.10
		default:
			price += 0.05
		}
	}
	return price
}

// Decay applies the per-cycle multiplicative loss, uniform in 1.5%-2.5%.
func (v *Valuation) Decay(price float64) float64 {
	return price * (1 + v.uniform(-0.025, -0.015))
}

// NextAvailable drifts availability toward TargetAvailable. The fill fraction
// is drawn from N(0.05, 0.025) clamped at zero, plus a small uniform jitter
// so the value keeps creeping instead of stalling at the ceiling.
func (v *Valuation) NextAvailable(available int64) int64 {
	gap := float64(TargetAvailable - available)
	r := math.Max(0, v.gauss(0.05, 0.025))
	return int64(math.RoundToEven(float64(available) + gap*r + v.uniform(0, 25)))
}

func (v *Valuation) uniform(lo, hi float64) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return lo + v.rand.Float64()*(hi-lo)
}

func (v *Valuation) gauss(mean, stddev float64) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return mean + v.rand.NormFloat64()*stddev
}
