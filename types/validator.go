package types

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/thrylos-labs/posseal/amount"
)

// Node is an account that may stake part of its balance.
type Node struct {
	Address string        `cbor:"1,keyasint" json:"address"`
	Balance amount.Amount `cbor:"2,keyasint" json:"balance"`
}

// ValidatorEntry is a node that has staked and is eligible to seal blocks.
type ValidatorEntry struct {
	Address string        `cbor:"1,keyasint" json:"address"`
	Stake   amount.Amount `cbor:"2,keyasint" json:"stake"`
	CoinAge uint64        `cbor:"3,keyasint" json:"coinAge"`
}

func (v *ValidatorEntry) Marshal() ([]byte, error) {
	return cbor.Marshal(v)
}

func (v *ValidatorEntry) Unmarshal(data []byte) error {
	return cbor.Unmarshal(data, v)
}

// ValidatorSet is the persisted form of a registry snapshot.
type ValidatorSet struct {
	Entries []ValidatorEntry `cbor:"1,keyasint" json:"entries"`
}

func (s *ValidatorSet) Marshal() ([]byte, error) {
	return cbor.Marshal(s)
}

func (s *ValidatorSet) Unmarshal(data []byte) error {
	return cbor.Unmarshal(data, s)
}
