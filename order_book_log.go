package orderbook

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type LogType string

const (
	LogTypeOpen   LogType = "open"   // quantity added at a level
	LogTypeMatch  LogType = "match"  // best bid traded against best ask
	LogTypeRemove LogType = "remove" // level removed explicitly
)

// BookLog represents an event in the order book.
// SequenceID is a strictly increasing ID for every event, used for ordering,
// deduplication, and rebuild synchronization in downstream systems.
type BookLog struct {
	SequenceID uint64          `json:"seq_id"`
	TradeID    uint64          `json:"trade_id,omitempty"` // Sequential trade ID, only set for Match events
	Type       LogType         `json:"type"`
	Side       Side            `json:"side,omitempty"` // Not set for Match events, which touch both sides
	Price      decimal.Decimal `json:"price"`          // Level price; the ask price for Match events
	Quantity   int64           `json:"quantity"`
	BidPrice   decimal.Decimal `json:"bid_price,omitempty"` // Only set for Match events
	Amount     decimal.Decimal `json:"amount,omitempty"`    // Price * Quantity, only set for Match events
	CreatedAt  time.Time       `json:"created_at"`
}

var bookLogPool = sync.Pool{
	New: func() any {
		return new(BookLog)
	},
}

func acquireBookLog() *BookLog {
	return bookLogPool.Get().(*BookLog)
}

func releaseBookLog(log *BookLog) {
	// For decimal.Decimal, the zero value (nil internal pointer) represents 0, which is valid.
	*log = BookLog{}
	bookLogPool.Put(log)
}

func newOpenLog(seqID uint64, side Side, price decimal.Decimal, quantity int64, now time.Time) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = LogTypeOpen
	log.Side = side
	log.Price = price
	log.Quantity = quantity
	log.CreatedAt = now
	return log
}

func newMatchLog(seqID uint64, trade *Trade) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.TradeID = trade.ID
	log.Type = LogTypeMatch
	log.Price = trade.Price
	log.Quantity = trade.Quantity
	log.BidPrice = trade.BidPrice
	log.Amount = trade.Price.Mul(decimal.NewFromInt(trade.Quantity))
	log.CreatedAt = trade.CreatedAt
	return log
}

func newRemoveLog(seqID uint64, side Side, price decimal.Decimal, quantity int64, now time.Time) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = LogTypeRemove
	log.Side = side
	log.Price = price
	log.Quantity = quantity
	log.CreatedAt = now
	return log
}
