package orderbook

// CalculateDepthChange translates a book log into the level changes it implies.
// An open log adds quantity to one level, a remove log drops one level, and a
// match log takes the traded quantity from both the bid and the ask level.
func CalculateDepthChange(log *BookLog) []DepthChange {
	switch log.Type {
	case LogTypeOpen:
		return []DepthChange{{
			Side:         log.Side,
			Price:        log.Price,
			QuantityDiff: log.Quantity,
		}}
	case LogTypeRemove:
		return []DepthChange{{
			Side:         log.Side,
			Price:        log.Price,
			QuantityDiff: -log.Quantity,
			Remove:       true,
		}}
	case LogTypeMatch:
		// A trade prints at the ask price, the bid level sits at BidPrice.
		return []DepthChange{
			{
				Side:         Buy,
				Price:        log.BidPrice,
				QuantityDiff: -log.Quantity,
			},
			{
				Side:         Sell,
				Price:        log.Price,
				QuantityDiff: -log.Quantity,
			},
		}
	}

	return nil
}
