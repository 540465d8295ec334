package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateDepthChange(t *testing.T) {
	t.Run("open", func(t *testing.T) {
		changes := CalculateDepthChange(&BookLog{Type: LogTypeOpen, Side: Sell, Price: d("10"), Quantity: 3})
		require.Len(t, changes, 1)
		assert.Equal(t, Sell, changes[0].Side)
		assert.True(t, d("10").Equal(changes[0].Price))
		assert.Equal(t, int64(3), changes[0].QuantityDiff)
		assert.False(t, changes[0].Remove)
	})

	t.Run("remove", func(t *testing.T) {
		changes := CalculateDepthChange(&BookLog{Type: LogTypeRemove, Side: Buy, Price: d("9"), Quantity: 4})
		require.Len(t, changes, 1)
		assert.Equal(t, Buy, changes[0].Side)
		assert.Equal(t, int64(-4), changes[0].QuantityDiff)
		assert.True(t, changes[0].Remove)
	})

	t.Run("match touches both sides", func(t *testing.T) {
		changes := CalculateDepthChange(&BookLog{Type: LogTypeMatch, Price: d("10"), BidPrice: d("11"), Quantity: 2})
		require.Len(t, changes, 2)
		assert.Equal(t, Buy, changes[0].Side)
		assert.True(t, d("11").Equal(changes[0].Price))
		assert.Equal(t, int64(-2), changes[0].QuantityDiff)
		assert.Equal(t, Sell, changes[1].Side)
		assert.True(t, d("10").Equal(changes[1].Price))
		assert.Equal(t, int64(-2), changes[1].QuantityDiff)
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Empty(t, CalculateDepthChange(&BookLog{Type: "other"}))
	})
}
