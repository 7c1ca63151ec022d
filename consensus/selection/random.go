package selection

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand/v2"
)

// Source draws uniform integers in [0, n). n is always positive.
type Source interface {
	Uint64N(n uint64) uint64
}

// NewSeededSource returns a reproducible source. It is not safe for
// concurrent use.
func NewSeededSource(seed uint64) Source {
	return mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// CryptoSource draws from crypto/rand and is safe for concurrent use.
type CryptoSource struct{}

func (CryptoSource) Uint64N(n uint64) uint64 {
	v, err := rand.Int(rand.Reader, new(big.Int).SetUint64(n))
	if err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		panic("selection: secure random source failed: " + err.Error())
	}
	return v.Uint64()
}

// StakeWeightedRandom selects a validator with probability proportional to
// its share of the total stake.
type StakeWeightedRandom struct {
	src Source
}

func NewStakeWeightedRandom(src Source) *StakeWeightedRandom {
	return &StakeWeightedRandom{src: src}
}

func (s *StakeWeightedRandom) Name() string {
	return StakeWeightedRandomName
}

func (s *StakeWeightedRandom) Select(r Registry) (string, bool) {
	entries := r.Entries()
	total := r.TotalStake().Uint64()
	if len(entries) == 0 || total == 0 {
		return "", false
	}

	pick := s.src.Uint64N(total)
	for _, e := range entries {
		stake := e.Stake.Uint64()
		if pick < stake {
			return e.Address, true
		}
		pick -= stake
	}
	// only reached if entries and total disagree
	return "", false
}
