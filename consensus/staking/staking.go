package staking

import (
	"errors"
	"fmt"
	"sync"

	"github.com/thrylos-labs/posseal/amount"
	"github.com/thrylos-labs/posseal/types"
)

var (
	ErrInsufficientBalance = errors.New("stake exceeds available balance")
	ErrDuplicateValidator  = errors.New("address is already a validator")
	ErrUnknownValidator    = errors.New("unknown validator")
	ErrZeroStake           = errors.New("stake must be positive")
)

// Registry holds the validator set in registration order. Selection
// tie-breaks depend on that order, so entries are never reordered.
type Registry struct {
	mu      sync.RWMutex
	entries []types.ValidatorEntry
	index   map[string]int
}

func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]int),
	}
}

// RegisterValidator stakes part of node's balance. On success it returns the
// new entry and the node with its balance reduced by stake; on failure the
// registry is left untouched.
func (r *Registry) RegisterValidator(node types.Node, stake amount.Amount) (types.ValidatorEntry, types.Node, error) {
	if stake == 0 {
		return types.ValidatorEntry{}, node, ErrZeroStake
	}
	remaining, err := node.Balance.Sub(stake)
	if err != nil {
		return types.ValidatorEntry{}, node, fmt.Errorf("%w: stake %s, balance %s", ErrInsufficientBalance, stake, node.Balance)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[node.Address]; exists {
		return types.ValidatorEntry{}, node, fmt.Errorf("%w: %s", ErrDuplicateValidator, node.Address)
	}
	if _, err := r.totalStakeLocked().Add(stake); err != nil {
		return types.ValidatorEntry{}, node, fmt.Errorf("total stake: %w", err)
	}

	entry := types.ValidatorEntry{Address: node.Address, Stake: stake}
	r.index[node.Address] = len(r.entries)
	r.entries = append(r.entries, entry)

	node.Balance = remaining
	return entry, node, nil
}

// Restore replaces the registry contents with a persisted snapshot.
func (r *Registry) Restore(entries []types.ValidatorEntry) error {
	index := make(map[string]int, len(entries))
	stakes := make([]amount.Amount, len(entries))
	for i, e := range entries {
		if e.Stake == 0 {
			return fmt.Errorf("%w: %s", ErrZeroStake, e.Address)
		}
		if _, exists := index[e.Address]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateValidator, e.Address)
		}
		index[e.Address] = i
		stakes[i] = e.Stake
	}
	if _, err := amount.Sum(stakes...); err != nil {
		return fmt.Errorf("total stake: %w", err)
	}

	snapshot := make([]types.ValidatorEntry, len(entries))
	copy(snapshot, entries)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = snapshot
	r.index = index
	return nil
}

// Entries returns a copy of the validator set in insertion order.
func (r *Registry) Entries() []types.ValidatorEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.ValidatorEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) Get(address string) (types.ValidatorEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[address]
	if !ok {
		return types.ValidatorEntry{}, false
	}
	return r.entries[i], true
}

// TotalStake returns the sum of all stakes, 0 for an empty registry.
func (r *Registry) TotalStake() amount.Amount {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.totalStakeLocked()
}

// totalStakeLocked cannot overflow: registration rejects stakes that would.
func (r *Registry) totalStakeLocked() amount.Amount {
	var total amount.Amount
	for _, e := range r.entries {
		total += e.Stake
	}
	return total
}

func (r *Registry) IncrementAge(address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[address]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownValidator, address)
	}
	r.entries[i].CoinAge++
	return nil
}

func (r *Registry) ResetAge(address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[address]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownValidator, address)
	}
	r.entries[i].CoinAge = 0
	return nil
}

// AccrueAge applies the post-selection update in one step: every validator
// ages by one round, and with resetWinner the winner starts over at zero.
// Nothing is modified if winner is not registered.
func (r *Registry) AccrueAge(winner string, resetWinner bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.index[winner]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownValidator, winner)
	}
	for i := range r.entries {
		r.entries[i].CoinAge++
	}
	if resetWinner {
		r.entries[w].CoinAge = 0
	}
	return nil
}
