package types

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/thrylos-labs/posseal/crypto/hash"
)

// Block is either a draft handed out by the ledger (Validator and Hash unset)
// or a sealed block. Sealed blocks must not be modified.
type Block struct {
	PreviousHash hash.Hash     `cbor:"1,keyasint" json:"previousHash"`
	Timestamp    int64         `cbor:"2,keyasint" json:"timestamp"`
	Transactions []Transaction `cbor:"3,keyasint" json:"transactions"`
	Validator    string        `cbor:"4,keyasint,omitempty" json:"validator,omitempty"`
	Hash         hash.Hash     `cbor:"5,keyasint" json:"hash"`
}

// contentFields is the hashed view of a block. Field order is part of the
// chain format: changing it invalidates every stored block.
type contentFields struct {
	_            struct{} `cbor:",toarray"`
	PreviousHash hash.Hash
	Timestamp    int64
	Transactions []Transaction
	Validator    string
}

var contentEncMode cbor.EncMode

func init() {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("types: building deterministic cbor mode: %v", err))
	}
	contentEncMode = em
}

// ContentBytes serializes the hashed fields of b with the validator left
// unset, matching the state of the block when the sealer hashes it.
func ContentBytes(b *Block) ([]byte, error) {
	txs := b.Transactions
	if txs == nil {
		txs = []Transaction{}
	}
	return contentEncMode.Marshal(contentFields{
		PreviousHash: b.PreviousHash,
		Timestamp:    b.Timestamp,
		Transactions: txs,
	})
}

// ContentHash is the block hash used by both the sealer and the ledger's
// validation pass.
func ContentHash(b *Block) (hash.Hash, error) {
	data, err := ContentBytes(b)
	if err != nil {
		return hash.Hash{}, fmt.Errorf("failed to serialize block content: %w", err)
	}
	return hash.NewHash(data), nil
}

// IsSealed reports whether the sealer has stamped the block.
func (b *Block) IsSealed() bool {
	return b.Validator != "" && !b.Hash.IsNull()
}

// Clone returns a deep copy of the block.
func (b *Block) Clone() *Block {
	c := *b
	if b.Transactions != nil {
		c.Transactions = make([]Transaction, len(b.Transactions))
		copy(c.Transactions, b.Transactions)
	}
	return &c
}

func (b *Block) Marshal() ([]byte, error) {
	return cbor.Marshal(b)
}

func (b *Block) Unmarshal(data []byte) error {
	return cbor.Unmarshal(data, b)
}
