package chain

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/thrylos-labs/posseal/types"
)

// TxPool holds pending transactions in arrival order until a block
// includes them.
type TxPool struct {
	mu           sync.RWMutex
	transactions map[string]*list.Element
	order        *list.List
}

func NewTxPool() *TxPool {
	return &TxPool{
		transactions: make(map[string]*list.Element),
		order:        list.New(),
	}
}

// AddTransaction appends tx to the pool; IDs must be unique.
func (p *TxPool) AddTransaction(tx types.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.transactions[tx.ID]; exists {
		return fmt.Errorf("%w: transaction %s already exists in the pool", ErrInvalidTransaction, tx.ID)
	}
	p.transactions[tx.ID] = p.order.PushBack(tx)
	return nil
}

// Pending returns the pooled transactions in arrival order.
func (p *TxPool) Pending() []types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]types.Transaction, 0, p.order.Len())
	for e := p.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(types.Transaction))
	}
	return out
}

// Remove drops the given transactions, ignoring IDs not in the pool.
func (p *TxPool) Remove(txs []types.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, tx := range txs {
		if e, ok := p.transactions[tx.ID]; ok {
			p.order.Remove(e)
			delete(p.transactions, tx.ID)
		}
	}
}

func (p *TxPool) Contains(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.transactions[id]
	return ok
}

func (p *TxPool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.order.Len()
}
