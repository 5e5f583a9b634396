package core

// Mempool is a bounded, thread-safe FIFO pool of candidate transactions
// (§4.4). It is reshaped from the teacher's core/ledger.go map-based
// TxPool (AddToPool/ListPool), which neither bounds size nor preserves
// insertion order, into an explicit FIFO with capacity — the shape the
// dusk-blockchain mempool example
// (_examples/other_examples/..._mempool.go.go) also settles on for a
// verified-transaction queue.

import "sync"

// Mempool holds up to capacity transactions in FIFO order. Duplicate
// ids are accepted; this layer makes no dedup guarantee.
type Mempool struct {
	mu       sync.Mutex
	capacity int
	items    []Transaction
}

// NewMempool returns a Mempool bounded at capacity transactions.
func NewMempool(capacity int) *Mempool {
	return &Mempool{capacity: capacity}
}

// Add enqueues tx at the tail. It returns false without enqueuing if the
// pool is already at capacity.
func (m *Mempool) Add(tx Transaction) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) >= m.capacity {
		return false
	}
	m.items = append(m.items, tx)
	if globalMetrics != nil {
		globalMetrics.MempoolSize.Set(float64(len(m.items)))
	}
	return true
}

// GetAll returns a snapshot of the pool in insertion order.
func (m *Mempool) GetAll() []Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transaction, len(m.items))
	copy(out, m.items)
	return out
}

// Remove deletes the first entry matching txID, if any.
func (m *Mempool) Remove(txID TxId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, tx := range m.items {
		if tx.ID == txID {
			m.items = append(m.items[:i], m.items[i+1:]...)
			if globalMetrics != nil {
				globalMetrics.MempoolSize.Set(float64(len(m.items)))
			}
			return
		}
	}
}

// Clear empties the pool.
func (m *Mempool) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = nil
	if globalMetrics != nil {
		globalMetrics.MempoolSize.Set(0)
	}
}

// Len reports the current pool size.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
