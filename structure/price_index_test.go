package structure

import (
	"math/bits"
	"math/rand"
	"sort"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func inOrder(t *PriceIndex) []decimal.Decimal {
	result := make([]decimal.Decimal, 0, t.Count())
	t.Ascend(func(p decimal.Decimal, _ int64) bool {
		result = append(result, p)
		return true
	})
	return result
}

// maxHeight is the Red-Black bound 2*log2(n+1).
func maxHeight(n int) int {
	return 2 * bits.Len(uint(n+1))
}

func TestPriceIndex_BasicOperations(t *testing.T) {
	tree := NewPriceIndex(16)

	// Empty tree
	assert.True(t, tree.IsEmpty())
	assert.Equal(t, Nil, tree.Minimum())
	assert.Equal(t, Nil, tree.Maximum())
	assert.Equal(t, 0, tree.Count())
	require.NoError(t, tree.Verify())

	_, inserted := tree.Insert(price(100.5), 50)
	assert.True(t, inserted)
	_, inserted = tree.Insert(price(101.0), 30)
	assert.True(t, inserted)
	_, inserted = tree.Insert(price(99.5), 40)
	assert.True(t, inserted)
	assert.Equal(t, 3, tree.Count())

	max := tree.Maximum()
	assert.True(t, tree.Price(max).Equal(price(101)))
	assert.Equal(t, int64(30), tree.Quantity(max))

	min := tree.Minimum()
	assert.True(t, tree.Price(min).Equal(price(99.5)))
	assert.Equal(t, int64(40), tree.Quantity(min))

	assert.NotEqual(t, Nil, tree.Search(price(100.5)))
	assert.Equal(t, Nil, tree.Search(price(500)))
	require.NoError(t, tree.Verify())
}

func TestPriceIndex_QuantityAggregation(t *testing.T) {
	tree := NewPriceIndex(4)

	id1, inserted := tree.Insert(price(100), 10)
	require.True(t, inserted)
	id2, inserted := tree.Insert(decimal.RequireFromString("100.00"), 15)
	assert.False(t, inserted)
	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, tree.Count())
	assert.Equal(t, int64(25), tree.Quantity(id1))

	// Non-positive quantities are stored as given.
	tree.Insert(price(100), -5)
	assert.Equal(t, int64(20), tree.Quantity(id1))
	id3, _ := tree.Insert(price(90), 0)
	assert.Equal(t, int64(0), tree.Quantity(id3))
	require.NoError(t, tree.Verify())
}

func TestPriceIndex_Delete(t *testing.T) {
	tree := NewPriceIndex(16)

	values := []int64{50, 25, 75, 10, 30, 60, 80}
	for _, v := range values {
		tree.Insert(decimal.NewFromInt(v), v)
	}
	assert.Equal(t, 7, tree.Count())

	// Delete leaf
	assert.True(t, tree.Delete(decimal.NewFromInt(10)))
	assert.Equal(t, Nil, tree.Search(decimal.NewFromInt(10)))
	require.NoError(t, tree.Verify())

	// Delete node with one child
	assert.True(t, tree.Delete(decimal.NewFromInt(25)))
	require.NoError(t, tree.Verify())

	// Delete node with two children
	assert.True(t, tree.Delete(decimal.NewFromInt(75)))
	require.NoError(t, tree.Verify())

	// Delete root
	assert.True(t, tree.Delete(decimal.NewFromInt(50)))
	require.NoError(t, tree.Verify())
	assert.Equal(t, 3, tree.Count())

	for _, v := range []int64{30, 60, 80} {
		id := tree.Search(decimal.NewFromInt(v))
		require.NotEqual(t, Nil, id)
		assert.Equal(t, v, tree.Quantity(id))
	}

	for _, v := range []int64{30, 60, 80} {
		assert.True(t, tree.Delete(decimal.NewFromInt(v)))
		require.NoError(t, tree.Verify())
	}
	assert.True(t, tree.IsEmpty())
}

func TestPriceIndex_DeleteAbsent(t *testing.T) {
	tree := NewPriceIndex(8)
	assert.False(t, tree.Delete(price(500)))

	for _, v := range []float64{100.5, 101, 99.5} {
		tree.Insert(price(v), 1)
	}
	before := inOrder(tree)
	height := tree.Height()

	assert.Equal(t, Nil, tree.Search(price(500)))
	assert.False(t, tree.Delete(price(500)))
	assert.Equal(t, Nil, tree.Search(price(500)))

	assert.Equal(t, before, inOrder(tree))
	assert.Equal(t, height, tree.Height())
	assert.Equal(t, 3, tree.Count())
	require.NoError(t, tree.Verify())
}

func TestPriceIndex_SuccessorPredecessor(t *testing.T) {
	tree := NewPriceIndex(16)

	values := []int64{50, 25, 75, 10, 30, 60, 80}
	for _, v := range values {
		tree.Insert(decimal.NewFromInt(v), 1)
	}

	succ := tree.Successor(tree.Search(decimal.NewFromInt(10)))
	assert.True(t, tree.Price(succ).Equal(decimal.NewFromInt(25)))

	succ = tree.Successor(tree.Search(decimal.NewFromInt(50)))
	assert.True(t, tree.Price(succ).Equal(decimal.NewFromInt(60)))

	pred := tree.Predecessor(tree.Search(decimal.NewFromInt(60)))
	assert.True(t, tree.Price(pred).Equal(decimal.NewFromInt(50)))

	// Order boundaries
	assert.Equal(t, Nil, tree.Successor(tree.Maximum()))
	assert.Equal(t, Nil, tree.Predecessor(tree.Minimum()))
	assert.Equal(t, Nil, tree.Successor(Nil))
	assert.Equal(t, Nil, tree.Predecessor(Nil))

	// Mutual inverses away from the extremes
	for id := tree.Minimum(); id != Nil; id = tree.Successor(id) {
		if next := tree.Successor(id); next != Nil {
			assert.Equal(t, id, tree.Predecessor(next))
		}
	}
}

func TestPriceIndex_SubtreeExtremes(t *testing.T) {
	tree := NewPriceIndex(16)
	for _, v := range []int64{50, 25, 75, 10, 30, 60, 80} {
		tree.Insert(decimal.NewFromInt(v), 1)
	}
	assert.Equal(t, Nil, tree.MinimumOf(Nil))
	assert.Equal(t, Nil, tree.MaximumOf(Nil))

	root := tree.root
	left := tree.nodes[root].Left
	assert.True(t, tree.Price(tree.MinimumOf(left)).Equal(decimal.NewFromInt(10)))
	assert.True(t, tree.Price(tree.MaximumOf(left)).Equal(decimal.NewFromInt(30)))
}

func TestPriceIndex_Traversal(t *testing.T) {
	tree := NewPriceIndex(16)
	values := []int64{50, 25, 75, 10, 30, 60, 80, 5, 15, 27, 35}
	for _, v := range values {
		tree.Insert(decimal.NewFromInt(v), v)
	}

	result := inOrder(tree)
	assert.Equal(t, len(values), len(result))
	for i := 1; i < len(result); i++ {
		assert.True(t, result[i-1].LessThan(result[i]),
			"in-order not sorted: %s >= %s", result[i-1], result[i])
	}

	var desc []int64
	tree.Descend(func(p decimal.Decimal, q int64) bool {
		desc = append(desc, q)
		return len(desc) < 3
	})
	assert.Equal(t, []int64{80, 75, 60}, desc)
}

func TestPriceIndex_OrderedInsertHeight(t *testing.T) {
	const n = 4096

	t.Run("ascending", func(t *testing.T) {
		tree := NewPriceIndex(n)
		for i := 1; i <= n; i++ {
			tree.Insert(decimal.NewFromInt(int64(i)), 1)
		}
		require.NoError(t, tree.Verify())
		assert.LessOrEqual(t, tree.Height(), maxHeight(n))
	})

	t.Run("descending", func(t *testing.T) {
		tree := NewPriceIndex(n)
		for i := n; i >= 1; i-- {
			tree.Insert(decimal.NewFromInt(int64(i)), 1)
		}
		require.NoError(t, tree.Verify())
		assert.LessOrEqual(t, tree.Height(), maxHeight(n))
	})

	t.Run("all equal", func(t *testing.T) {
		tree := NewPriceIndex(4)
		for i := 0; i < n; i++ {
			tree.Insert(price(42.5), 1)
		}
		require.NoError(t, tree.Verify())
		assert.Equal(t, 1, tree.Count())
		assert.Equal(t, int64(n), tree.Quantity(tree.Minimum()))
	})
}

func TestPriceIndex_ArenaReuse(t *testing.T) {
	tree := NewPriceIndex(2)

	for i := 1; i <= 10; i++ {
		tree.Insert(decimal.NewFromInt(int64(i)), 1)
	}
	grown := len(tree.nodes)
	assert.GreaterOrEqual(t, grown, 11)

	kept := tree.Search(decimal.NewFromInt(7))
	for i := 1; i <= 5; i++ {
		assert.True(t, tree.Delete(decimal.NewFromInt(int64(i))))
	}
	// IDs of untouched levels survive deletes of others.
	assert.True(t, tree.Price(kept).Equal(decimal.NewFromInt(7)))

	for i := 11; i <= 15; i++ {
		tree.Insert(decimal.NewFromInt(int64(i)), 1)
	}
	assert.Equal(t, grown, len(tree.nodes), "freed slots should be reused")
	require.NoError(t, tree.Verify())

	tree.Clear()
	assert.True(t, tree.IsEmpty())
	assert.Equal(t, 0, tree.Count())
	require.NoError(t, tree.Verify())
	tree.Insert(price(1), 1)
	assert.Equal(t, 1, tree.Count())
}

func TestPriceIndex_VerifyDetectsCorruption(t *testing.T) {
	tree := NewPriceIndex(8)
	for _, v := range []int64{1, 2, 3, 4, 5} {
		tree.Insert(decimal.NewFromInt(v), 1)
	}
	require.NoError(t, tree.Verify())

	tree.nodes[tree.root].Color = Red
	assert.ErrorIs(t, tree.Verify(), ErrCorrupted)
	tree.nodes[tree.root].Color = Black

	tree.nodes[Nil].Color = Red
	assert.ErrorIs(t, tree.Verify(), ErrCorrupted)
	tree.nodes[Nil].Color = Black

	leaf := tree.Minimum()
	tree.nodes[leaf].Price = decimal.NewFromInt(100)
	assert.ErrorIs(t, tree.Verify(), ErrCorrupted)
}

func TestPriceIndex_RotateOnSentinelPanics(t *testing.T) {
	tree := NewPriceIndex(2)
	id, _ := tree.Insert(price(1), 1)
	assert.Panics(t, func() { tree.rotateLeft(id) })
	assert.Panics(t, func() { tree.rotateRight(id) })
	assert.Panics(t, func() { tree.AddQuantity(Nil, 1) })
}

func TestPriceIndex_OracleTest(t *testing.T) {
	tree := NewPriceIndex(64)
	oracle := make(map[int64]int64)

	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 10000; i++ {
		p := rng.Int63n(1000)

		if rng.Intn(2) == 0 {
			q := rng.Int63n(100) + 1
			tree.Insert(decimal.NewFromInt(p), q)
			oracle[p] += q
		} else {
			_, ok := oracle[p]
			assert.Equal(t, ok, tree.Delete(decimal.NewFromInt(p)))
			delete(oracle, p)
		}

		assert.Equal(t, len(oracle), tree.Count())
		if i%500 == 0 {
			require.NoError(t, tree.Verify(), "step %d", i)
		}
	}
	require.NoError(t, tree.Verify())

	keys := make([]int64, 0, len(oracle))
	for k := range oracle {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	got := inOrder(tree)
	require.Equal(t, len(keys), len(got))
	for i, k := range keys {
		assert.True(t, got[i].Equal(decimal.NewFromInt(k)))
		assert.Equal(t, oracle[k], tree.Quantity(tree.Search(got[i])))
	}
	assert.LessOrEqual(t, tree.Height(), maxHeight(tree.Count()))
}

func TestColor_String(t *testing.T) {
	assert.Equal(t, "red", Red.String())
	assert.Equal(t, "black", Black.String())
}

func TestPriceIndex_ArenaLimit(t *testing.T) {
	previous := maxSlots
	t.Cleanup(func() { maxSlots = previous })
	maxSlots = 6

	assert.Panics(t, func() { NewPriceIndex(6) })

	tree := NewPriceIndex(2)
	for i := 1; i <= 5; i++ {
		tree.Insert(decimal.NewFromInt(int64(i)), 1)
	}
	assert.Equal(t, 6, len(tree.nodes), "growth is capped at the limit")
	require.NoError(t, tree.Verify())

	assert.PanicsWithValue(t, "price index: arena exhausted", func() {
		tree.Insert(decimal.NewFromInt(6), 1)
	})
}
