package orderbook

import (
	"fmt"
	"math"
	"time"

	"github.com/arhamgarg/LimitOrderBook/structure"
	"github.com/shopspring/decimal"
)

// OrderBook holds the resting liquidity of one instrument as two price
// indexes. It is single-writer: callers must serialize every method,
// reads included. Engine provides that serialization.
type OrderBook struct {
	seqID      uint64 // Increasing ID for every BookLog produced
	tradeID    uint64 // Sequential trade ID counter, only incremented by Match
	bids       *structure.PriceIndex
	asks       *structure.PriceIndex
	bidTotal   int64 // Resting quantity per side, never above math.MaxInt64
	askTotal   int64
	publishLog PublishLog
}

// NewOrderBook creates an empty order book. A nil publishLog discards logs.
func NewOrderBook(cfg Config, publishLog PublishLog) *OrderBook {
	cfg = cfg.withDefaults()
	if publishLog == nil {
		publishLog = NewDiscardPublishLog()
	}
	return &OrderBook{
		bids:       structure.NewPriceIndex(cfg.InitialLevels),
		asks:       structure.NewPriceIndex(cfg.InitialLevels),
		publishLog: publishLog,
	}
}

func validateOrder(price decimal.Decimal, quantity int64, side Side) error {
	if side != Buy && side != Sell {
		return fmt.Errorf("%w: got %s", ErrInvalidSide, side)
	}
	if price.Sign() <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidPrice, price.String())
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}
	return nil
}

func (book *OrderBook) index(side Side) *structure.PriceIndex {
	if side == Buy {
		return book.bids
	}
	return book.asks
}

func (book *OrderBook) total(side Side) *int64 {
	if side == Buy {
		return &book.bidTotal
	}
	return &book.askTotal
}

// addOverflows reports whether adding quantity to total would exceed math.MaxInt64.
func addOverflows(total, quantity int64) bool {
	return total > math.MaxInt64-quantity
}

func (book *OrderBook) nextSeqID() uint64 {
	book.seqID++
	return book.seqID
}

func (book *OrderBook) publish(logs ...*BookLog) {
	if len(logs) == 0 {
		return
	}
	book.publishLog.Publish(logs...)
	for _, log := range logs {
		releaseBookLog(log)
	}
}

// AddOrder adds quantity at price on the given side. Quantity at an
// existing price is merged into that level. No matching happens here.
// The resting quantity of a side is capped at math.MaxInt64.
func (book *OrderBook) AddOrder(price decimal.Decimal, quantity int64, side Side) error {
	if err := validateOrder(price, quantity, side); err != nil {
		return err
	}

	total := book.total(side)
	if addOverflows(*total, quantity) {
		return fmt.Errorf("%w: %s side would exceed %d resting", ErrInvalidQuantity, side, int64(math.MaxInt64))
	}

	book.index(side).Insert(price, quantity)
	*total += quantity
	book.publish(newOpenLog(book.nextSeqID(), side, price, quantity, time.Now().UTC()))
	return nil
}

// RemoveLevel drops the whole level at price. It reports false if there was none.
func (book *OrderBook) RemoveLevel(side Side, price decimal.Decimal) bool {
	if side != Buy && side != Sell {
		return false
	}
	tree := book.index(side)
	id := tree.Search(price)
	if id == structure.Nil {
		return false
	}

	quantity := tree.Quantity(id)
	levelPrice := tree.Price(id)
	tree.Delete(levelPrice)
	*book.total(side) -= quantity
	book.publish(newRemoveLog(book.nextSeqID(), side, levelPrice, quantity, time.Now().UTC()))
	return true
}

// BestBid returns the highest bid price. ok is false when there are no bids.
func (book *OrderBook) BestBid() (price decimal.Decimal, ok bool) {
	id := book.bids.Maximum()
	if id == structure.Nil {
		return decimal.Zero, false
	}
	return book.bids.Price(id), true
}

// BestAsk returns the lowest ask price. ok is false when there are no asks.
func (book *OrderBook) BestAsk() (price decimal.Decimal, ok bool) {
	id := book.asks.Minimum()
	if id == structure.Nil {
		return decimal.Zero, false
	}
	return book.asks.Price(id), true
}

// Quote returns the top of both sides.
func (book *OrderBook) Quote() *Quote {
	q := &Quote{}
	q.Bid, q.HasBid = book.BestBid()
	q.Ask, q.HasAsk = book.BestAsk()
	return q
}

// Depth returns up to limit levels per side, best price first.
// Each call walks again from the extremities of the book.
func (book *OrderBook) Depth(limit uint32) *Depth {
	return &Depth{
		UpdateID: book.seqID,
		Bids:     walk(book.bids, book.bids.Maximum(), book.bids.Predecessor, limit),
		Asks:     walk(book.asks, book.asks.Minimum(), book.asks.Successor, limit),
	}
}

func walk(tree *structure.PriceIndex, from structure.NodeID, next func(structure.NodeID) structure.NodeID, limit uint32) []DepthItem {
	size := min(limit, uint32(tree.Count()))
	result := make([]DepthItem, 0, size)
	for id := from; id != structure.Nil && uint32(len(result)) < limit; id = next(id) {
		result = append(result, DepthItem{
			Price:    tree.Price(id),
			Quantity: tree.Quantity(id),
		})
	}
	return result
}

// Stats returns level and quantity counts per side.
func (book *OrderBook) Stats() *BookStats {
	return &BookStats{
		BidLevelCount: book.bids.Count(),
		BidQuantity:   book.bidTotal,
		AskLevelCount: book.asks.Count(),
		AskQuantity:   book.askTotal,
	}
}

// SequenceID returns the ID of the last published BookLog.
func (book *OrderBook) SequenceID() uint64 {
	return book.seqID
}

// TradeID returns the ID of the last trade.
func (book *OrderBook) TradeID() uint64 {
	return book.tradeID
}
