package selection

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// DefaultAgeWeight makes ten rounds of waiting worth doubling a stake.
var DefaultAgeWeight = decimal.RequireFromString("0.1")

// Hybrid scores each validator as stake * (1 + ageWeight * coinAge) and
// selects the highest score. Ties go to the earliest registered validator.
// Scores are computed with exact decimal arithmetic so the choice is fully
// determined by the registry state.
type Hybrid struct {
	ageWeight decimal.Decimal
}

func NewHybrid(ageWeight decimal.Decimal) (*Hybrid, error) {
	if !ageWeight.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWeight, ageWeight)
	}
	return &Hybrid{ageWeight: ageWeight}, nil
}

func (h *Hybrid) Name() string {
	return HybridName
}

func (h *Hybrid) AgeWeight() decimal.Decimal {
	return h.ageWeight
}

// Score is the hybrid weight of a single validator.
func (h *Hybrid) Score(stake decimal.Decimal, coinAge uint64) decimal.Decimal {
	age := decimal.NewFromBigInt(new(big.Int).SetUint64(coinAge), 0)
	return stake.Mul(decimal.NewFromInt(1).Add(h.ageWeight.Mul(age)))
}

func (h *Hybrid) Select(r Registry) (string, bool) {
	entries := r.Entries()
	if len(entries) == 0 {
		return "", false
	}

	best := 0
	bestScore := h.Score(entries[0].Stake.Decimal(), entries[0].CoinAge)
	for i := 1; i < len(entries); i++ {
		score := h.Score(entries[i].Stake.Decimal(), entries[i].CoinAge)
		if score.GreaterThan(bestScore) {
			best, bestScore = i, score
		}
	}
	return entries[best].Address, true
}
