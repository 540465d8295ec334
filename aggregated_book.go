package orderbook

import (
	"fmt"
	"sync/atomic"

	"github.com/igrmk/treemap/v2"
	"github.com/shopspring/decimal"
)

// AggregatedBook maintains a simplified view of the order book,
// tracking only price levels and their aggregated quantity (depth).
// It is designed for downstream services that rebuild book state
// from the BookLog stream of an OrderBook.
//
// AggregatedBook is not safe for concurrent writers; SequenceID may be read
// from any goroutine.
type AggregatedBook struct {
	seqID atomic.Uint64 // Last processed SequenceID for gap detection and deduplication
	ask   *treemap.TreeMap[decimal.Decimal, int64]
	bid   *treemap.TreeMap[decimal.Decimal, int64]
}

func newLevelMap() *treemap.TreeMap[decimal.Decimal, int64] {
	return treemap.NewWithKeyCompare[decimal.Decimal, int64](func(a, b decimal.Decimal) bool {
		return a.LessThan(b)
	})
}

// NewAggregatedBook creates a new AggregatedBook instance with empty ask and bid sides.
func NewAggregatedBook() *AggregatedBook {
	return &AggregatedBook{
		ask: newLevelMap(),
		bid: newLevelMap(),
	}
}

// SequenceID returns the last processed sequence ID.
func (ab *AggregatedBook) SequenceID() uint64 {
	return ab.seqID.Load()
}

// Replay applies a BookLog event to the aggregated book.
// Logs at or below the current sequence ID are ignored. A log that skips
// ahead returns ErrSequenceGap and leaves the book unchanged; the caller is
// expected to rebuild from a snapshot.
func (ab *AggregatedBook) Replay(log *BookLog) error {
	if log == nil {
		return ErrInvalidParam
	}

	current := ab.seqID.Load()
	if log.SequenceID <= current {
		return nil
	}
	if log.SequenceID != current+1 {
		return fmt.Errorf("%w: expected %d, got %d", ErrSequenceGap, current+1, log.SequenceID)
	}

	for _, change := range CalculateDepthChange(log) {
		ab.apply(change)
	}
	ab.seqID.Store(log.SequenceID)
	return nil
}

func (ab *AggregatedBook) apply(change DepthChange) {
	levels := ab.side(change.Side)
	if levels == nil {
		return
	}

	if change.Remove {
		levels.Del(change.Price)
		return
	}

	quantity, _ := levels.Get(change.Price)
	quantity += change.QuantityDiff
	if quantity <= 0 {
		levels.Del(change.Price)
		return
	}
	levels.Set(change.Price, quantity)
}

func (ab *AggregatedBook) side(side Side) *treemap.TreeMap[decimal.Decimal, int64] {
	switch side {
	case Buy:
		return ab.bid
	case Sell:
		return ab.ask
	}
	return nil
}

// OnRebuild resets the aggregated book from a snapshot.
// This should be called before replaying logs that follow snap.SeqID.
func (ab *AggregatedBook) OnRebuild(snap *BookSnapshot) error {
	if err := validateSnapshot(snap); err != nil {
		return err
	}

	bid, ask := newLevelMap(), newLevelMap()
	for _, item := range snap.Bids {
		quantity, _ := bid.Get(item.Price)
		bid.Set(item.Price, quantity+item.Quantity)
	}
	for _, item := range snap.Asks {
		quantity, _ := ask.Get(item.Price)
		ask.Set(item.Price, quantity+item.Quantity)
	}

	ab.bid, ab.ask = bid, ask
	ab.seqID.Store(snap.SeqID)
	return nil
}

// Depth returns the aggregated quantity at a specific price level for the given side.
// Returns zero if the price level does not exist.
func (ab *AggregatedBook) Depth(side Side, price decimal.Decimal) int64 {
	levels := ab.side(side)
	if levels == nil {
		return 0
	}
	quantity, _ := levels.Get(price)
	return quantity
}

// Snapshot returns up to limit levels per side, best price first.
func (ab *AggregatedBook) Snapshot(limit uint32) *Depth {
	depth := &Depth{
		UpdateID: ab.seqID.Load(),
		Bids:     make([]DepthItem, 0, min(limit, uint32(ab.bid.Len()))),
		Asks:     make([]DepthItem, 0, min(limit, uint32(ab.ask.Len()))),
	}

	for it := ab.bid.Reverse(); it.Valid() && uint32(len(depth.Bids)) < limit; it.Next() {
		depth.Bids = append(depth.Bids, DepthItem{Price: it.Key(), Quantity: it.Value()})
	}
	for it := ab.ask.Iterator(); it.Valid() && uint32(len(depth.Asks)) < limit; it.Next() {
		depth.Asks = append(depth.Asks, DepthItem{Price: it.Key(), Quantity: it.Value()})
	}

	return depth
}
