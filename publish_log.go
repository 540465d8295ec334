package orderbook

import "sync"

// PublishLog receives every BookLog an OrderBook produces, in sequence order.
//
// The book recycles each BookLog once Publish returns. An implementation
// that keeps a log or hands it to another goroutine must copy it first.
type PublishLog interface {
	Publish(...*BookLog)
}

// MemoryPublishLog keeps copies of every log in memory. Tests and replicas
// read the stream back through Logs, Trades and Get.
type MemoryPublishLog struct {
	mu   sync.RWMutex
	logs []*BookLog
}

// NewMemoryPublishLog creates a new MemoryPublishLog.
func NewMemoryPublishLog() *MemoryPublishLog {
	return &MemoryPublishLog{
		logs: make([]*BookLog, 0),
	}
}

// Publish appends copies of logs to the in-memory slice.
func (m *MemoryPublishLog) Publish(logs ...*BookLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, log := range logs {
		cpy := new(BookLog)
		*cpy = *log
		m.logs = append(m.logs, cpy)
	}
}

// Count returns the number of logs stored.
func (m *MemoryPublishLog) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.logs)
}

// Get returns the log at the specified index.
func (m *MemoryPublishLog) Get(index int) *BookLog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.logs[index]
}

// Logs returns a copy of all logs stored.
func (m *MemoryPublishLog) Logs() []*BookLog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	logs := make([]*BookLog, len(m.logs))
	copy(logs, m.logs)
	return logs
}

// Trades rebuilds the trades carried by the match logs, in execution order.
func (m *MemoryPublishLog) Trades() []Trade {
	m.mu.RLock()
	defer m.mu.RUnlock()

	trades := make([]Trade, 0)
	for _, log := range m.logs {
		if log.Type != LogTypeMatch {
			continue
		}
		trades = append(trades, Trade{
			ID:        log.TradeID,
			Price:     log.Price,
			Quantity:  log.Quantity,
			BidPrice:  log.BidPrice,
			CreatedAt: log.CreatedAt,
		})
	}
	return trades
}

// Reset drops every stored log.
func (m *MemoryPublishLog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = m.logs[:0]
}

// DiscardPublishLog drops every log. Benchmarks use it to measure the book alone.
type DiscardPublishLog struct {
}

// NewDiscardPublishLog creates a new DiscardPublishLog.
func NewDiscardPublishLog() *DiscardPublishLog {
	return &DiscardPublishLog{}
}

// Publish does nothing.
func (p *DiscardPublishLog) Publish(...*BookLog) {}
