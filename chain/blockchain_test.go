package chain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thrylos-labs/posseal/amount"
	"github.com/thrylos-labs/posseal/crypto/hash"
	"github.com/thrylos-labs/posseal/types"
)

type memStore struct {
	blocks         []*types.Block
	pending        []types.Transaction
	failing        bool
	pendingFailing bool
}

func (m *memStore) SaveBlock(height uint64, b *types.Block) error {
	if m.failing {
		return errors.New("disk full")
	}
	if int(height) != len(m.blocks) {
		return errors.New("out of order")
	}
	m.blocks = append(m.blocks, b.Clone())
	return nil
}

func (m *memStore) LoadChain() ([]*types.Block, error) {
	return m.blocks, nil
}

func (m *memStore) SavePending(txs []types.Transaction) error {
	if m.pendingFailing {
		return errors.New("disk full")
	}
	m.pending = append([]types.Transaction(nil), txs...)
	return nil
}

func (m *memStore) LoadPending() ([]types.Transaction, error) {
	return m.pending, nil
}

func fixedClock() func() time.Time {
	t := time.UnixMilli(1700000000000)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestChain(t *testing.T, mutate ...func(*BlockchainConfig)) *Blockchain {
	t.Helper()
	cfg := BlockchainConfig{
		GenesisTime: 1700000000000,
		GenesisAllocations: map[string]amount.Amount{
			"acc1": 1000,
			"acc2": 1000,
		},
		IsValidator: func(addr string) bool { return addr == "N1" || addr == "N2" },
		Now:         fixedClock(),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	bc, err := NewBlockchain(cfg)
	require.NoError(t, err)
	return bc
}

// seal stands in for the sealer: stamp validator and content hash.
func seal(t *testing.T, draft *types.Block, validator string) *types.Block {
	t.Helper()
	h, err := types.ContentHash(draft)
	require.NoError(t, err)
	b := draft.Clone()
	b.Validator = validator
	b.Hash = h
	return b
}

func TestGenesis(t *testing.T) {
	a := newTestChain(t)
	b := newTestChain(t)

	assert.Equal(t, 1, a.Height())
	assert.Equal(t, a.Latest().Hash, b.Latest().Hash, "genesis must be deterministic")
	assert.Equal(t, amount.Amount(1000), a.GetBalanceOfAddress("acc1"))
	assert.Equal(t, amount.Amount(0), a.GetBalanceOfAddress("nobody"))
	require.NoError(t, a.ValidationCheck())
}

func TestCreateTransaction(t *testing.T) {
	bc := newTestChain(t)

	tx, err := bc.CreateTransaction(types.Transaction{From: "acc1", To: "acc2", Amount: 600})
	require.NoError(t, err)
	assert.NotEmpty(t, tx.ID)
	assert.NotZero(t, tx.Timestamp)

	t.Run("Pending spends count against the balance", func(t *testing.T) {
		_, err := bc.CreateTransaction(types.Transaction{From: "acc1", To: "acc2", Amount: 401})
		assert.ErrorIs(t, err, ErrInsufficientFunds)
	})

	t.Run("Malformed transactions", func(t *testing.T) {
		_, err := bc.CreateTransaction(types.Transaction{From: "", To: "acc2", Amount: 1})
		assert.ErrorIs(t, err, ErrInvalidTransaction)
		_, err = bc.CreateTransaction(types.Transaction{From: "acc1", To: "", Amount: 1})
		assert.ErrorIs(t, err, ErrInvalidTransaction)
		_, err = bc.CreateTransaction(types.Transaction{From: "acc1", To: "acc2"})
		assert.ErrorIs(t, err, ErrInvalidTransaction)
	})

	t.Run("Duplicate ID", func(t *testing.T) {
		_, err := bc.CreateTransaction(types.Transaction{ID: tx.ID, From: "acc2", To: "acc1", Amount: 1})
		assert.ErrorIs(t, err, ErrInvalidTransaction)
	})

	assert.Len(t, bc.PendingTransactions(), 1)
}

func TestPersistSealedBlock(t *testing.T) {
	store := &memStore{}
	bc := newTestChain(t, func(c *BlockchainConfig) {
		c.Store = store
		c.BlockReward = 5
	})

	_, err := bc.CreateTransaction(types.Transaction{From: "acc1", To: "acc2", Amount: 100})
	require.NoError(t, err)
	_, err = bc.CreateTransaction(types.Transaction{From: "acc2", To: "acc1", Amount: 50})
	require.NoError(t, err)

	draft := bc.DraftBlock()
	assert.Equal(t, bc.Latest().Hash, draft.PreviousHash)
	assert.Len(t, draft.Transactions, 2)

	t.Run("Unsealed draft is rejected", func(t *testing.T) {
		assert.ErrorIs(t, bc.PersistSealedBlock(draft), ErrNotSealed)
	})

	t.Run("Unknown validator is rejected", func(t *testing.T) {
		assert.ErrorIs(t, bc.PersistSealedBlock(seal(t, draft, "mallory")), ErrUnknownValidator)
	})

	t.Run("Tampered content is rejected", func(t *testing.T) {
		b := seal(t, draft, "N1")
		b.Transactions[0].Amount = 1
		assert.ErrorIs(t, bc.PersistSealedBlock(b), ErrHashMismatch)
	})

	require.NoError(t, bc.PersistSealedBlock(seal(t, draft, "N1")))
	assert.Equal(t, 2, bc.Height())
	assert.Len(t, store.blocks, 2)
	assert.Equal(t, amount.Amount(950), bc.GetBalanceOfAddress("acc1"))
	assert.Equal(t, amount.Amount(1050), bc.GetBalanceOfAddress("acc2"))

	pending := bc.PendingTransactions()
	require.Len(t, pending, 1, "only the reward stays pending")
	assert.True(t, pending[0].IsReward())
	assert.Equal(t, "N1", pending[0].To)

	t.Run("Stale parent is rejected", func(t *testing.T) {
		assert.ErrorIs(t, bc.PersistSealedBlock(seal(t, draft, "N2")), ErrBrokenLink)
	})

	require.NoError(t, bc.PersistSealedBlock(seal(t, bc.DraftBlock(), "N2")))
	assert.Equal(t, amount.Amount(5), bc.GetBalanceOfAddress("N1"))
	require.NoError(t, bc.ValidationCheck())
}

func TestPersistFailureLeavesChainUnchanged(t *testing.T) {
	store := &memStore{}
	bc := newTestChain(t, func(c *BlockchainConfig) { c.Store = store })
	store.failing = true

	err := bc.PersistSealedBlock(seal(t, bc.DraftBlock(), "N1"))
	assert.Error(t, err)
	assert.Equal(t, 1, bc.Height())
}

func TestValidationCheckDetectsTampering(t *testing.T) {
	bc := newTestChain(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, bc.PersistSealedBlock(seal(t, bc.DraftBlock(), "N1")))
	}
	require.NoError(t, bc.ValidationCheck())

	t.Run("Rewritten timestamp", func(t *testing.T) {
		orig := bc.blocks[2].Timestamp
		bc.blocks[2].Timestamp++
		assert.ErrorIs(t, bc.ValidationCheck(), ErrHashMismatch)
		bc.blocks[2].Timestamp = orig
	})

	t.Run("Broken link", func(t *testing.T) {
		orig := bc.blocks[3].PreviousHash
		bc.blocks[3].PreviousHash = hash.NewHash([]byte("elsewhere"))
		assert.ErrorIs(t, bc.ValidationCheck(), ErrBrokenLink)
		bc.blocks[3].PreviousHash = orig
	})

	t.Run("Validator no longer known", func(t *testing.T) {
		bc.cfg.IsValidator = func(string) bool { return false }
		assert.ErrorIs(t, bc.ValidationCheck(), ErrUnknownValidator)
	})
}

func TestReloadFromStore(t *testing.T) {
	store := &memStore{}
	bc := newTestChain(t, func(c *BlockchainConfig) { c.Store = store })
	require.NoError(t, bc.PersistSealedBlock(seal(t, bc.DraftBlock(), "N2")))

	reloaded := newTestChain(t, func(c *BlockchainConfig) { c.Store = store })
	assert.Equal(t, 2, reloaded.Height())
	assert.Equal(t, bc.Latest().Hash, reloaded.Latest().Hash)

	store.blocks[1].Timestamp++
	_, err := NewBlockchain(BlockchainConfig{Store: store})
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestPendingPoolSurvivesReload(t *testing.T) {
	store := &memStore{}
	bc := newTestChain(t, func(c *BlockchainConfig) { c.Store = store })

	included, err := bc.CreateTransaction(types.Transaction{From: "acc1", To: "acc2", Amount: 100})
	require.NoError(t, err)
	require.NoError(t, bc.PersistSealedBlock(seal(t, bc.DraftBlock(), "N1")))
	assert.Empty(t, store.pending)

	waiting, err := bc.CreateTransaction(types.Transaction{From: "acc2", To: "acc1", Amount: 700})
	require.NoError(t, err)
	require.Len(t, store.pending, 1)

	t.Run("Pending transactions come back", func(t *testing.T) {
		reloaded := newTestChain(t, func(c *BlockchainConfig) { c.Store = store })
		pending := reloaded.PendingTransactions()
		require.Len(t, pending, 1)
		assert.Equal(t, waiting.ID, pending[0].ID)

		_, err := reloaded.CreateTransaction(types.Transaction{From: "acc2", To: "acc1", Amount: 500})
		assert.ErrorIs(t, err, ErrInsufficientFunds, "the reloaded spend still counts")
	})

	t.Run("Included transactions are skipped", func(t *testing.T) {
		store.pending = append(store.pending, included)
		reloaded := newTestChain(t, func(c *BlockchainConfig) { c.Store = store })
		assert.False(t, reloaded.txPool.Contains(included.ID))
		assert.True(t, reloaded.txPool.Contains(waiting.ID))
	})
}

func TestCreateTransactionRollsBackWhenPoolNotSaved(t *testing.T) {
	store := &memStore{}
	bc := newTestChain(t, func(c *BlockchainConfig) { c.Store = store })
	store.pendingFailing = true

	_, err := bc.CreateTransaction(types.Transaction{From: "acc1", To: "acc2", Amount: 100})
	assert.Error(t, err)
	assert.Empty(t, bc.PendingTransactions())
}

func TestRemovePending(t *testing.T) {
	store := &memStore{}
	bc := newTestChain(t, func(c *BlockchainConfig) { c.Store = store })

	tx, err := bc.CreateTransaction(types.Transaction{From: "acc1", To: "acc2", Amount: 100})
	require.NoError(t, err)
	require.NoError(t, bc.RemovePending(tx.ID))
	assert.Empty(t, bc.PendingTransactions())
	assert.Empty(t, store.pending)
	assert.NoError(t, bc.RemovePending("unknown"))
}

func TestTxPool(t *testing.T) {
	p := NewTxPool()
	a := types.Transaction{ID: "a"}
	b := types.Transaction{ID: "b"}
	c := types.Transaction{ID: "c"}
	for _, tx := range []types.Transaction{a, b, c} {
		require.NoError(t, p.AddTransaction(tx))
	}
	assert.ErrorIs(t, p.AddTransaction(a), ErrInvalidTransaction)

	p.Remove([]types.Transaction{b, {ID: "zzz"}})
	assert.Equal(t, []types.Transaction{a, c}, p.Pending())
	assert.True(t, p.Contains("a"))
	assert.False(t, p.Contains("b"))
	assert.Equal(t, 2, p.Size())
}
