package chain

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thrylos-labs/posseal/amount"
	"github.com/thrylos-labs/posseal/types"
	"go.uber.org/zap"
)

var (
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrBrokenLink         = errors.New("previous hash does not match")
	ErrHashMismatch       = errors.New("block hash does not match its content")
	ErrUnknownValidator   = errors.New("block sealed by unknown validator")
	ErrNotSealed          = errors.New("block is not sealed")
)

// BlockStore persists the chain and its pending pool. Implemented by
// store.BlockStore.
type BlockStore interface {
	SaveBlock(height uint64, b *types.Block) error
	LoadChain() ([]*types.Block, error)
	SavePending(txs []types.Transaction) error
	LoadPending() ([]types.Transaction, error)
}

type BlockchainConfig struct {
	// GenesisTime is the genesis timestamp in Unix milliseconds.
	GenesisTime int64
	// GenesisAllocations seeds account balances in the genesis block.
	GenesisAllocations map[string]amount.Amount
	// BlockReward, when non-zero, is paid to each block's validator as a
	// pending network transaction included in a later block.
	BlockReward amount.Amount
	// IsValidator is consulted by PersistSealedBlock and ValidationCheck.
	// Nil accepts any validator.
	IsValidator func(address string) bool
	Store       BlockStore
	Logger      *zap.Logger
	Now         func() time.Time
}

// Blockchain is the append-only ledger the sealer works for. It hands out
// draft blocks and accepts sealed ones.
type Blockchain struct {
	mu     sync.RWMutex
	blocks []*types.Block
	txPool *TxPool
	cfg    BlockchainConfig
	logger *zap.Logger
}

// NewBlockchain loads the chain from cfg.Store or, when the store is empty
// or absent, starts a new one from a genesis block.
func NewBlockchain(cfg BlockchainConfig) (*Blockchain, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	bc := &Blockchain{
		txPool: NewTxPool(),
		cfg:    cfg,
		logger: cfg.Logger,
	}

	if cfg.Store != nil {
		blocks, err := cfg.Store.LoadChain()
		if err != nil {
			return nil, fmt.Errorf("failed to load chain: %w", err)
		}
		if len(blocks) > 0 {
			bc.blocks = blocks
			if err := bc.ValidationCheck(); err != nil {
				return nil, fmt.Errorf("stored chain is invalid: %w", err)
			}
			if err := bc.restorePending(); err != nil {
				return nil, err
			}
			bc.logger.Info("chain loaded from store",
				zap.Int("height", len(blocks)),
				zap.Int("pending", bc.txPool.Size()))
			return bc, nil
		}
	}

	genesis, err := NewGenesisBlock(cfg.GenesisTime, cfg.GenesisAllocations)
	if err != nil {
		return nil, err
	}
	if cfg.Store != nil {
		if err := cfg.Store.SaveBlock(0, genesis); err != nil {
			return nil, fmt.Errorf("failed to persist genesis block: %w", err)
		}
	}
	bc.blocks = []*types.Block{genesis}
	bc.logger.Info("genesis block created", zap.String("hash", genesis.Hash.String()))
	return bc, nil
}

// CreateTransaction validates tx against confirmed balances minus pending
// spends and adds it to the pool. An empty ID is filled in.
func (bc *Blockchain) CreateTransaction(tx types.Transaction) (types.Transaction, error) {
	if tx.From == types.NetworkSender {
		return tx, fmt.Errorf("%w: sender address is required", ErrInvalidTransaction)
	}
	if tx.To == "" {
		return tx, fmt.Errorf("%w: recipient address is required", ErrInvalidTransaction)
	}
	if tx.Amount == 0 {
		return tx, fmt.Errorf("%w: amount must be positive", ErrInvalidTransaction)
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Timestamp == 0 {
		tx.Timestamp = bc.cfg.Now().UnixMilli()
	}

	bc.mu.Lock()
	defer bc.mu.Unlock()

	spendable := bc.balanceLocked(tx.From, true)
	if spendable < tx.Amount {
		return tx, fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, tx.From, spendable, tx.Amount)
	}
	if err := bc.txPool.AddTransaction(tx); err != nil {
		return tx, err
	}
	if err := bc.savePendingLocked(); err != nil {
		bc.txPool.Remove([]types.Transaction{tx})
		return tx, err
	}
	return tx, nil
}

// RemovePending drops a pending transaction that is no longer wanted.
func (bc *Blockchain) RemovePending(id string) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if !bc.txPool.Contains(id) {
		return nil
	}
	bc.txPool.Remove([]types.Transaction{{ID: id}})
	return bc.savePendingLocked()
}

func (bc *Blockchain) savePendingLocked() error {
	if bc.cfg.Store == nil {
		return nil
	}
	if err := bc.cfg.Store.SavePending(bc.txPool.Pending()); err != nil {
		return fmt.Errorf("failed to persist pending transactions: %w", err)
	}
	return nil
}

// restorePending reloads the saved pool, skipping transactions that a
// stored block already includes.
func (bc *Blockchain) restorePending() error {
	pending, err := bc.cfg.Store.LoadPending()
	if err != nil {
		return fmt.Errorf("failed to load pending transactions: %w", err)
	}
	included := make(map[string]struct{})
	for _, b := range bc.blocks {
		for _, tx := range b.Transactions {
			included[tx.ID] = struct{}{}
		}
	}
	for _, tx := range pending {
		if _, ok := included[tx.ID]; ok {
			continue
		}
		if err := bc.txPool.AddTransaction(tx); err != nil {
			return err
		}
	}
	return nil
}

// DraftBlock returns an unsealed block on top of the current tip carrying
// all pending transactions.
func (bc *Blockchain) DraftBlock() *types.Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	return &types.Block{
		PreviousHash: bc.blocks[len(bc.blocks)-1].Hash,
		Timestamp:    bc.cfg.Now().UnixMilli(),
		Transactions: bc.txPool.Pending(),
	}
}

// PersistSealedBlock appends a sealed block after checking its hash, its
// link to the tip and its validator. Included transactions leave the pool.
func (bc *Blockchain) PersistSealedBlock(b *types.Block) error {
	if !b.IsSealed() {
		return ErrNotSealed
	}
	if bc.cfg.IsValidator != nil && !bc.cfg.IsValidator(b.Validator) {
		return fmt.Errorf("%w: %s", ErrUnknownValidator, b.Validator)
	}

	bc.mu.Lock()
	defer bc.mu.Unlock()

	tip := bc.blocks[len(bc.blocks)-1]
	if err := Verify(b, tip); err != nil {
		return err
	}

	block := b.Clone()
	height := uint64(len(bc.blocks))
	if bc.cfg.Store != nil {
		if err := bc.cfg.Store.SaveBlock(height, block); err != nil {
			return fmt.Errorf("failed to persist block %d: %w", height, err)
		}
	}
	bc.blocks = append(bc.blocks, block)
	bc.txPool.Remove(block.Transactions)

	if bc.cfg.BlockReward > 0 {
		reward := types.Transaction{
			ID:        uuid.NewString(),
			From:      types.NetworkSender,
			To:        block.Validator,
			Amount:    bc.cfg.BlockReward,
			Timestamp: block.Timestamp,
		}
		if err := bc.txPool.AddTransaction(reward); err != nil {
			return err
		}
	}
	// The block is already stored; a stale pool is repaired on the next
	// load, which skips included transactions.
	if err := bc.savePendingLocked(); err != nil {
		bc.logger.Warn("pending pool not saved", zap.Error(err))
	}

	bc.logger.Debug("block persisted",
		zap.Uint64("height", height),
		zap.String("hash", block.Hash.String()),
		zap.String("validator", block.Validator))
	return nil
}

// ValidationCheck walks the whole chain verifying hashes, links and
// validators.
func (bc *Blockchain) ValidationCheck() error {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	var prev *types.Block
	for i, b := range bc.blocks {
		if err := Verify(b, prev); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
		if i > 0 && bc.cfg.IsValidator != nil && !bc.cfg.IsValidator(b.Validator) {
			return fmt.Errorf("block %d: %w: %s", i, ErrUnknownValidator, b.Validator)
		}
		prev = b
	}
	return nil
}

// GetBalanceOfAddress sums confirmed transactions for address.
func (bc *Blockchain) GetBalanceOfAddress(address string) amount.Amount {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.balanceLocked(address, false)
}

// balanceLocked computes incoming minus outgoing value, optionally
// counting pending spends. It floors at zero.
func (bc *Blockchain) balanceLocked(address string, includePending bool) amount.Amount {
	var in, out uint64
	for _, b := range bc.blocks {
		for _, tx := range b.Transactions {
			if tx.To == address {
				in += tx.Amount.Uint64()
			}
			if tx.From == address && !tx.IsReward() {
				out += tx.Amount.Uint64()
			}
		}
	}
	if includePending {
		for _, tx := range bc.txPool.Pending() {
			if tx.From == address && !tx.IsReward() {
				out += tx.Amount.Uint64()
			}
		}
	}
	if out > in {
		return 0
	}
	return amount.Amount(in - out)
}

func (bc *Blockchain) PendingTransactions() []types.Transaction {
	return bc.txPool.Pending()
}

// Blocks returns copies of all blocks, genesis first.
func (bc *Blockchain) Blocks() []*types.Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	out := make([]*types.Block, len(bc.blocks))
	for i, b := range bc.blocks {
		out[i] = b.Clone()
	}
	return out
}

// Latest returns a copy of the tip.
func (bc *Blockchain) Latest() *types.Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.blocks[len(bc.blocks)-1].Clone()
}

func (bc *Blockchain) Height() int {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return len(bc.blocks)
}
