package selection

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/thrylos-labs/posseal/amount"
	"github.com/thrylos-labs/posseal/types"
)

const (
	StakeWeightedRandomName = "random"
	CoinAgeMaximizingName   = "age"
	HybridName              = "hybrid"
)

var (
	ErrUnknownStrategy = errors.New("unknown selection strategy")
	ErrInvalidWeight   = errors.New("hybrid age weight must be positive")
)

// Registry is the read-only view of the validator set a strategy needs.
type Registry interface {
	Entries() []types.ValidatorEntry
	TotalStake() amount.Amount
}

// Strategy picks the validator that seals the next block. Select returns
// false when no validator is eligible and never returns an address that is
// not in r.Entries().
type Strategy interface {
	Name() string
	Select(r Registry) (string, bool)
}

type options struct {
	source    Source
	ageWeight decimal.Decimal
}

type Option func(*options)

// WithSource sets the random source used by the weighted random strategy.
func WithSource(src Source) Option {
	return func(o *options) {
		o.source = src
	}
}

// WithAgeWeight sets how strongly coin age boosts stake in the hybrid score.
func WithAgeWeight(w decimal.Decimal) Option {
	return func(o *options) {
		o.ageWeight = w
	}
}

// New builds a strategy by name.
func New(name string, opts ...Option) (Strategy, error) {
	o := options{
		ageWeight: DefaultAgeWeight,
	}
	for _, opt := range opts {
		opt(&o)
	}

	switch strings.ToLower(name) {
	case StakeWeightedRandomName:
		if o.source == nil {
			o.source = CryptoSource{}
		}
		return NewStakeWeightedRandom(o.source), nil
	case CoinAgeMaximizingName:
		return CoinAgeMaximizing{}, nil
	case HybridName:
		return NewHybrid(o.ageWeight)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// Names lists the strategies New understands.
func Names() []string {
	return []string{StakeWeightedRandomName, HybridName, CoinAgeMaximizingName}
}
