package orderbook

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// BookSnapshot contains the full state of a single OrderBook.
type BookSnapshot struct {
	SchemaVersion int         `json:"schema_version"`
	SeqID         uint64      `json:"seq_id"`   // Current BookLog sequence ID
	TradeID       uint64      `json:"trade_id"` // Current Trade sequence ID
	Bids          []DepthItem `json:"bids"`     // All bid levels, best price first
	Asks          []DepthItem `json:"asks"`     // All ask levels, best price first
}

// Snapshot captures every level of the book and its counters.
func (book *OrderBook) Snapshot() *BookSnapshot {
	snap := &BookSnapshot{
		SchemaVersion: SnapshotSchemaVersion,
		SeqID:         book.seqID,
		TradeID:       book.tradeID,
		Bids:          make([]DepthItem, 0, book.bids.Count()),
		Asks:          make([]DepthItem, 0, book.asks.Count()),
	}

	book.bids.Descend(func(price decimal.Decimal, quantity int64) bool {
		snap.Bids = append(snap.Bids, DepthItem{Price: price, Quantity: quantity})
		return true
	})
	book.asks.Ascend(func(price decimal.Decimal, quantity int64) bool {
		snap.Asks = append(snap.Asks, DepthItem{Price: price, Quantity: quantity})
		return true
	})

	return snap
}

// Restore resets the book to the state captured in snap.
// The snapshot is validated first; on error the book is left untouched.
// Nothing is published: downstream replicas rebuild from the same snapshot.
func (book *OrderBook) Restore(snap *BookSnapshot) error {
	if err := validateSnapshot(snap); err != nil {
		return err
	}

	book.bids.Clear()
	book.asks.Clear()
	book.bidTotal, book.askTotal = 0, 0
	for _, item := range snap.Bids {
		book.bids.Insert(item.Price, item.Quantity)
		book.bidTotal += item.Quantity
	}
	for _, item := range snap.Asks {
		book.asks.Insert(item.Price, item.Quantity)
		book.askTotal += item.Quantity
	}

	book.seqID = snap.SeqID
	book.tradeID = snap.TradeID
	return nil
}

func validateSnapshot(snap *BookSnapshot) error {
	if snap == nil {
		return ErrInvalidParam
	}
	if snap.SchemaVersion != SnapshotSchemaVersion {
		return fmt.Errorf("%w: unsupported snapshot schema version %d", ErrInvalidParam, snap.SchemaVersion)
	}
	for _, items := range [][]DepthItem{snap.Bids, snap.Asks} {
		// Duplicate prices merge on restore, so the side total bounds every level too.
		var total int64
		for _, item := range items {
			if item.Price.Sign() <= 0 {
				return fmt.Errorf("%w: got %s", ErrInvalidPrice, item.Price.String())
			}
			if item.Quantity <= 0 {
				return fmt.Errorf("%w: got %d", ErrInvalidQuantity, item.Quantity)
			}
			if addOverflows(total, item.Quantity) {
				return fmt.Errorf("%w: snapshot side exceeds %d resting", ErrInvalidQuantity, int64(math.MaxInt64))
			}
			total += item.Quantity
		}
	}
	return nil
}
