package amount

import (
	"errors"
	"math"
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"
)

var (
	ErrOverflow  = errors.New("amount overflow")
	ErrUnderflow = errors.New("amount underflow")
)

// Amount is a balance or stake expressed in the chain's smallest unit.
type Amount uint64

func FromString(str string) (Amount, error) {
	v, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return 0, err
	}
	return Amount(v), nil
}

// Add returns a+b, failing instead of wrapping around.
func (a Amount) Add(b Amount) (Amount, error) {
	if b > math.MaxUint64-a {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Sub returns a-b, failing when b is larger than a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if b > a {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

func (a Amount) Uint64() uint64 {
	return uint64(a)
}

func (a Amount) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(a)), 0)
}

func (a Amount) String() string {
	return strconv.FormatUint(uint64(a), 10)
}

// Sum adds up amounts, returning ErrOverflow if the total does not fit.
func Sum(amounts ...Amount) (Amount, error) {
	var total Amount
	for _, v := range amounts {
		next, err := total.Add(v)
		if err != nil {
			return 0, err
		}
		total = next
	}
	return total, nil
}
