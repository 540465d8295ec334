package orderbook

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Side int8

const (
	Buy  Side = 1
	Sell Side = 2
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return fmt.Sprintf("side(%d)", int8(s))
}

// Trade is one execution between the best bid and the best ask.
// Price is always the resting ask's price.
type Trade struct {
	ID        uint64          `json:"trade_id"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	BidPrice  decimal.Decimal `json:"bid_price"` // Bid level the quantity was taken from
	CreatedAt time.Time       `json:"created_at"`
}

func (t Trade) String() string {
	return fmt.Sprintf("TRADE: %d @ %s", t.Quantity, t.Price.String())
}

type DepthItem struct {
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
}

// Depth is a best-first view of both sides.
// Bids are in descending price order, asks in ascending price order.
type Depth struct {
	UpdateID uint64      `json:"update_id"`
	Bids     []DepthItem `json:"bids"`
	Asks     []DepthItem `json:"asks"`
}

// Quote carries the top of the book. A side with no levels has Has* == false.
type Quote struct {
	Bid    decimal.Decimal `json:"bid"`
	HasBid bool            `json:"has_bid"`
	Ask    decimal.Decimal `json:"ask"`
	HasAsk bool            `json:"has_ask"`
}

// BookStats contains level and quantity counts per side.
type BookStats struct {
	BidLevelCount int   `json:"bid_level_count"`
	BidQuantity   int64 `json:"bid_quantity"`
	AskLevelCount int   `json:"ask_level_count"`
	AskQuantity   int64 `json:"ask_quantity"`
}

// DepthChange represents a change of one price level.
type DepthChange struct {
	Side         Side
	Price        decimal.Decimal
	QuantityDiff int64
	Remove       bool // the level is gone regardless of QuantityDiff
}
