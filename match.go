package orderbook

import (
	"fmt"
	"time"

	"github.com/arhamgarg/LimitOrderBook/structure"
)

// Match trades the best bid against the best ask until they no longer
// cross, and returns the trades in execution order.
//
// Every trade executes at the resting ask's price for min(bid, ask)
// quantity. Exhausted levels are removed. After Match returns, one side
// is empty or the best bid is strictly below the best ask.
func (book *OrderBook) Match() []Trade {
	var (
		trades []Trade
		logs   []*BookLog
		now    = time.Now().UTC()
	)

	for {
		bid := book.bids.Maximum()
		ask := book.asks.Minimum()
		if bid == structure.Nil || ask == structure.Nil {
			break
		}

		bidPrice := book.bids.Price(bid)
		askPrice := book.asks.Price(ask)
		if bidPrice.LessThan(askPrice) {
			break
		}

		bidQty := book.bids.Quantity(bid)
		askQty := book.asks.Quantity(ask)
		if bidQty <= 0 || askQty <= 0 {
			// AddOrder and Restore reject such levels; reaching here means the book is corrupt.
			panic(fmt.Sprintf("order book: non-positive resting quantity (bid %d @ %s, ask %d @ %s)",
				bidQty, bidPrice, askQty, askPrice))
		}

		book.tradeID++
		trade := Trade{
			ID:        book.tradeID,
			Price:     askPrice,
			Quantity:  min(bidQty, askQty),
			BidPrice:  bidPrice,
			CreatedAt: now,
		}
		trades = append(trades, trade)
		logs = append(logs, newMatchLog(book.nextSeqID(), &trade))

		book.bidTotal -= trade.Quantity
		book.askTotal -= trade.Quantity
		if book.bids.AddQuantity(bid, -trade.Quantity) == 0 {
			book.bids.Delete(bidPrice)
		}
		if book.asks.AddQuantity(ask, -trade.Quantity) == 0 {
			book.asks.Delete(askPrice)
		}
	}

	book.publish(logs...)
	return trades
}
