package types

import (
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/thrylos-labs/posseal/amount"
)

// NetworkSender is the From value of transactions minted by the ledger itself.
const NetworkSender = ""

// Transaction moves Amount from one address to another.
type Transaction struct {
	ID        string        `cbor:"1,keyasint" json:"id"`
	From      string        `cbor:"2,keyasint" json:"from"`
	To        string        `cbor:"3,keyasint" json:"to"`
	Amount    amount.Amount `cbor:"4,keyasint" json:"amount"`
	Timestamp int64         `cbor:"5,keyasint" json:"timestamp"`
}

// NewTransaction stamps a fresh ID and the current time.
func NewTransaction(from, to string, value amount.Amount) Transaction {
	return Transaction{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Amount:    value,
		Timestamp: time.Now().UnixMilli(),
	}
}

func (tx *Transaction) IsReward() bool {
	return tx.From == NetworkSender
}

// Marshal serializes the transaction into CBOR format
func (tx *Transaction) Marshal() ([]byte, error) {
	return cbor.Marshal(tx)
}

// Unmarshal deserializes the transaction from CBOR format
func (tx *Transaction) Unmarshal(data []byte) error {
	return cbor.Unmarshal(data, tx)
}

// TransactionSet is the persisted form of the pending pool.
type TransactionSet struct {
	Transactions []Transaction `cbor:"1,keyasint" json:"transactions"`
}

func (s *TransactionSet) Marshal() ([]byte, error) {
	return cbor.Marshal(s)
}

func (s *TransactionSet) Unmarshal(data []byte) error {
	return cbor.Unmarshal(data, s)
}
