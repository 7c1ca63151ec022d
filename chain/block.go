package chain

import (
	"fmt"
	"sort"

	"github.com/thrylos-labs/posseal/amount"
	"github.com/thrylos-labs/posseal/crypto/hash"
	"github.com/thrylos-labs/posseal/types"
)

// NewGenesisBlock creates the first block. Allocations are paid out as
// network transactions, ordered by address so the genesis hash only
// depends on the inputs.
func NewGenesisBlock(timestamp int64, allocations map[string]amount.Amount) (*types.Block, error) {
	addrs := make([]string, 0, len(allocations))
	for addr := range allocations {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	txs := make([]types.Transaction, 0, len(addrs))
	for _, addr := range addrs {
		txs = append(txs, types.Transaction{
			ID:        "genesis-" + addr,
			From:      types.NetworkSender,
			To:        addr,
			Amount:    allocations[addr],
			Timestamp: timestamp,
		})
	}

	block := &types.Block{
		PreviousHash: hash.NullHash(),
		Timestamp:    timestamp,
		Transactions: txs,
	}
	h, err := types.ContentHash(block)
	if err != nil {
		return nil, fmt.Errorf("failed to hash genesis block: %w", err)
	}
	block.Hash = h
	return block, nil
}

// Verify checks that b carries its own content hash and links to prev.
// A nil prev means b is the genesis block.
func Verify(b, prev *types.Block) error {
	if prev == nil {
		if !b.PreviousHash.IsNull() {
			return fmt.Errorf("%w: genesis block has a previous hash", ErrBrokenLink)
		}
	} else if !b.PreviousHash.Equal(prev.Hash) {
		return fmt.Errorf("%w: previous hash %s, expected %s", ErrBrokenLink, b.PreviousHash, prev.Hash)
	}

	computed, err := types.ContentHash(b)
	if err != nil {
		return err
	}
	if !computed.Equal(b.Hash) {
		return fmt.Errorf("%w: stored %s, computed %s", ErrHashMismatch, b.Hash, computed)
	}
	return nil
}
