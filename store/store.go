package store

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/thrylos-labs/posseal/crypto/hash"
	"github.com/thrylos-labs/posseal/types"
)

const (
	defaultCacheSize     = 256
	defaultExpectedItems = 100000
	defaultFalsePositive = 0.01
)

// BlockStore persists sealed blocks and validator snapshots in Badger.
// Blocks are keyed by hash with a separate height index so the chain can
// be replayed in order.
type BlockStore struct {
	db    *Database
	cache *BlockCache
}

func NewBlockStore(db *Database) (*BlockStore, error) {
	cache, err := NewBlockCache(defaultCacheSize, defaultExpectedItems, defaultFalsePositive)
	if err != nil {
		return nil, fmt.Errorf("failed to create block cache: %v", err)
	}
	s := &BlockStore{db: db, cache: cache}
	if err := s.warmFilter(); err != nil {
		return nil, err
	}
	return s, nil
}

func blockKey(h hash.Hash) []byte {
	return []byte(BlockPrefix + h.String())
}

func heightKey(height uint64) []byte {
	key := make([]byte, len(HeightPrefix)+8)
	copy(key, HeightPrefix)
	binary.BigEndian.PutUint64(key[len(HeightPrefix):], height)
	return key
}

// SaveBlock writes the block, its height index entry and the new tip in a
// single transaction.
func (s *BlockStore) SaveBlock(height uint64, b *types.Block) error {
	data, err := b.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal block: %v", err)
	}

	err = s.db.GetDB().Update(func(txn *badger.Txn) error {
		if err := txn.Set(blockKey(b.Hash), data); err != nil {
			return err
		}
		if err := txn.Set(heightKey(height), b.Hash.Bytes()); err != nil {
			return err
		}
		return txn.Set([]byte(TipKey), heightKey(height)[len(HeightPrefix):])
	})
	if err != nil {
		return fmt.Errorf("failed to save block %s: %w", b.Hash, err)
	}
	s.cache.Add(b.Hash.String(), b)
	return nil
}

// GetBlock looks a block up by hash.
func (s *BlockStore) GetBlock(h hash.Hash) (*types.Block, error) {
	key := h.String()
	if !s.cache.MayContain(key) {
		return nil, ErrNotFound
	}
	if b, ok := s.cache.Get(key); ok {
		return b, nil
	}

	data, err := s.db.Get(blockKey(h))
	if err != nil {
		return nil, err
	}
	b := &types.Block{}
	if err := b.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal block %s: %v", key, err)
	}
	s.cache.Add(key, b)
	return b, nil
}

// GetBlockByHeight resolves the height index and loads the block.
func (s *BlockStore) GetBlockByHeight(height uint64) (*types.Block, error) {
	raw, err := s.db.Get(heightKey(height))
	if err != nil {
		return nil, err
	}
	h, err := hash.FromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("corrupt height index %d: %v", height, err)
	}
	return s.GetBlock(h)
}

// Height is the number of stored blocks.
func (s *BlockStore) Height() (uint64, error) {
	raw, err := s.db.Get([]byte(TipKey))
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(raw) + 1, nil
}

// LoadChain returns every stored block in height order.
func (s *BlockStore) LoadChain() ([]*types.Block, error) {
	height, err := s.Height()
	if err != nil {
		return nil, err
	}
	blocks := make([]*types.Block, 0, height)
	for i := uint64(0); i < height; i++ {
		b, err := s.GetBlockByHeight(i)
		if err != nil {
			return nil, fmt.Errorf("failed to load block at height %d: %w", i, err)
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// SaveValidators stores a snapshot of the registry.
func (s *BlockStore) SaveValidators(entries []types.ValidatorEntry) error {
	set := types.ValidatorSet{Entries: entries}
	data, err := set.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal validator set: %v", err)
	}
	return s.db.Set([]byte(ValidatorSetKey), data)
}

// LoadValidators returns the last saved snapshot, or nil if none exists.
func (s *BlockStore) LoadValidators() ([]types.ValidatorEntry, error) {
	data, err := s.db.Get([]byte(ValidatorSetKey))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var set types.ValidatorSet
	if err := set.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal validator set: %v", err)
	}
	return set.Entries, nil
}

// SavePending stores the pending pool. An empty pool removes the key.
func (s *BlockStore) SavePending(txs []types.Transaction) error {
	if len(txs) == 0 {
		return s.db.Delete([]byte(PendingKey))
	}
	set := types.TransactionSet{Transactions: txs}
	data, err := set.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal pending transactions: %v", err)
	}
	return s.db.Set([]byte(PendingKey), data)
}

// LoadPending returns the last saved pending pool, or nil if none exists.
func (s *BlockStore) LoadPending() ([]types.Transaction, error) {
	data, err := s.db.Get([]byte(PendingKey))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var set types.TransactionSet
	if err := set.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending transactions: %v", err)
	}
	return set.Transactions, nil
}

// warmFilter registers every stored block hash with the Bloom filter so
// misses can be answered without a disk read.
func (s *BlockStore) warmFilter() error {
	return s.db.GetDB().View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(BlockPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			s.cache.Note(string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
}

// Close drops the cache and closes the database. It is safe to call more
// than once.
func (s *BlockStore) Close() error {
	s.cache.Purge()
	return s.db.Close()
}
