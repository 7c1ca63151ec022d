package selection

// CoinAgeMaximizing selects the validator with the greatest coin age. Ties
// go to the earliest registered validator.
type CoinAgeMaximizing struct{}

func (CoinAgeMaximizing) Name() string {
	return CoinAgeMaximizingName
}

func (CoinAgeMaximizing) Select(r Registry) (string, bool) {
	entries := r.Entries()
	if len(entries) == 0 {
		return "", false
	}

	best := 0
	for i := 1; i < len(entries); i++ {
		if entries[i].CoinAge > entries[best].CoinAge {
			best = i
		}
	}
	return entries[best].Address, true
}
