package staking

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thrylos-labs/posseal/amount"
	"github.com/thrylos-labs/posseal/types"
)

func TestRegisterValidator(t *testing.T) {
	r := NewRegistry()

	t.Run("Stake is moved out of the balance", func(t *testing.T) {
		entry, node, err := r.RegisterValidator(types.Node{Address: "n1", Balance: 1000}, 200)
		require.NoError(t, err)

		assert.Equal(t, types.ValidatorEntry{Address: "n1", Stake: 200, CoinAge: 0}, entry)
		assert.Equal(t, amount.Amount(800), node.Balance)
		assert.Equal(t, 1, r.Len())
	})

	t.Run("Stake equal to balance is allowed", func(t *testing.T) {
		_, node, err := r.RegisterValidator(types.Node{Address: "n2", Balance: 100}, 100)
		require.NoError(t, err)
		assert.Equal(t, amount.Amount(0), node.Balance)
	})

	t.Run("Insufficient balance leaves registry unchanged", func(t *testing.T) {
		before := r.Entries()
		in := types.Node{Address: "n3", Balance: 50}

		_, node, err := r.RegisterValidator(in, 51)
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.Equal(t, in, node)
		assert.Equal(t, before, r.Entries())
		_, found := r.Get("n3")
		assert.False(t, found)
	})

	t.Run("Duplicate address is rejected", func(t *testing.T) {
		_, _, err := r.RegisterValidator(types.Node{Address: "n1", Balance: 1000}, 10)
		assert.ErrorIs(t, err, ErrDuplicateValidator)
		assert.Equal(t, 2, r.Len())
	})

	t.Run("Zero stake is rejected", func(t *testing.T) {
		_, _, err := r.RegisterValidator(types.Node{Address: "n4", Balance: 10}, 0)
		assert.ErrorIs(t, err, ErrZeroStake)
	})

	t.Run("Total stake overflow is rejected", func(t *testing.T) {
		_, _, err := r.RegisterValidator(types.Node{Address: "whale", Balance: math.MaxUint64}, math.MaxUint64)
		assert.ErrorIs(t, err, amount.ErrOverflow)
		assert.Equal(t, 2, r.Len())
	})
}

func TestEntriesPreserveOrderAndAreCopies(t *testing.T) {
	r := NewRegistry()
	for _, addr := range []string{"c", "a", "b"} {
		_, _, err := r.RegisterValidator(types.Node{Address: addr, Balance: 10}, 1)
		require.NoError(t, err)
	}

	entries := r.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "c", entries[0].Address)
	assert.Equal(t, "a", entries[1].Address)
	assert.Equal(t, "b", entries[2].Address)

	entries[0].CoinAge = 42
	got, _ := r.Get("c")
	assert.Equal(t, uint64(0), got.CoinAge)
}

func TestTotalStake(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, amount.Amount(0), r.TotalStake())

	_, _, err := r.RegisterValidator(types.Node{Address: "a", Balance: 300}, 300)
	require.NoError(t, err)
	_, _, err = r.RegisterValidator(types.Node{Address: "b", Balance: 1000}, 700)
	require.NoError(t, err)

	assert.Equal(t, amount.Amount(1000), r.TotalStake())
}

func TestAgeUpdates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Restore([]types.ValidatorEntry{
		{Address: "x", Stake: 1, CoinAge: 5},
		{Address: "y", Stake: 1, CoinAge: 2},
	}))

	require.NoError(t, r.IncrementAge("x"))
	x, _ := r.Get("x")
	assert.Equal(t, uint64(6), x.CoinAge)

	require.NoError(t, r.ResetAge("x"))
	x, _ = r.Get("x")
	assert.Equal(t, uint64(0), x.CoinAge)

	assert.ErrorIs(t, r.IncrementAge("z"), ErrUnknownValidator)
	assert.ErrorIs(t, r.ResetAge("z"), ErrUnknownValidator)
}

func TestAccrueAge(t *testing.T) {
	seed := []types.ValidatorEntry{
		{Address: "x", Stake: 1, CoinAge: 5},
		{Address: "y", Stake: 1, CoinAge: 2},
	}

	t.Run("Increment all", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Restore(seed))
		require.NoError(t, r.AccrueAge("x", false))

		entries := r.Entries()
		assert.Equal(t, uint64(6), entries[0].CoinAge)
		assert.Equal(t, uint64(3), entries[1].CoinAge)
	})

	t.Run("Reset winner", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Restore(seed))
		require.NoError(t, r.AccrueAge("x", true))

		entries := r.Entries()
		assert.Equal(t, uint64(0), entries[0].CoinAge)
		assert.Equal(t, uint64(3), entries[1].CoinAge)
	})

	t.Run("Unknown winner mutates nothing", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Restore(seed))
		assert.ErrorIs(t, r.AccrueAge("z", false), ErrUnknownValidator)
		assert.Equal(t, seed, r.Entries())
	})
}

func TestRestore(t *testing.T) {
	r := NewRegistry()

	err := r.Restore([]types.ValidatorEntry{{Address: "a", Stake: 1}, {Address: "a", Stake: 2}})
	assert.ErrorIs(t, err, ErrDuplicateValidator)

	err = r.Restore([]types.ValidatorEntry{{Address: "a", Stake: 0}})
	assert.ErrorIs(t, err, ErrZeroStake)

	err = r.Restore([]types.ValidatorEntry{{Address: "a", Stake: math.MaxUint64}, {Address: "b", Stake: 1}})
	assert.ErrorIs(t, err, amount.ErrOverflow)
	assert.Zero(t, r.Len())

	require.NoError(t, r.Restore([]types.ValidatorEntry{{Address: "a", Stake: 3, CoinAge: 9}}))
	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, uint64(9), got.CoinAge)

	_, _, err = r.RegisterValidator(types.Node{Address: "a", Balance: 10}, 1)
	assert.ErrorIs(t, err, ErrDuplicateValidator)
}
