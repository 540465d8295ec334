package structure

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// PriceIndex is an arena-backed Red-Black tree keyed by price.
// Each node aggregates all resting quantity at one distinct price.
//
// Nodes live in a slice and reference each other by NodeID. Slot 0 is a
// single BLACK sentinel shared by every leaf and by the root's parent, so
// rotation and fixup code never branches on an absent reference.
//
// Reference: Cormen et al., Introduction to Algorithms, chapter 13.

// Color is the balancing metadata of a node.
type Color uint8

const (
	Black Color = iota
	Red
)

func (c Color) String() string {
	if c == Red {
		return "red"
	}
	return "black"
}

// NodeID is a stable index into the node arena.
type NodeID int32

// Nil is the sentinel. Its price and quantity carry no meaning.
const Nil NodeID = 0

const defaultGrowthFactor = 2

// maxSlots bounds the arena so every slot index fits in a NodeID.
var maxSlots = math.MaxInt32

// ErrCorrupted is returned by Verify when a structural law does not hold.
var ErrCorrupted = errors.New("price index: invariant violated")

// PriceLevel is one arena slot.
type PriceLevel struct {
	Left     NodeID
	Right    NodeID
	Parent   NodeID
	Color    Color
	Price    decimal.Decimal
	Quantity int64
}

// PriceIndex owns every node of one book side, sentinel included.
type PriceIndex struct {
	nodes    []PriceLevel
	root     NodeID
	freeHead NodeID // free slots are threaded through Left, Nil terminates
	count    int
}

// NewPriceIndex creates an empty tree with room for capacity price levels.
// The arena grows on demand once capacity is used up.
func NewPriceIndex(capacity int32) *PriceIndex {
	if capacity < 1 {
		capacity = 1
	}
	slots := int(capacity) + 1
	if slots > maxSlots {
		panic(fmt.Sprintf("price index: capacity %d exceeds arena limit", capacity))
	}
	t := &PriceIndex{
		nodes: make([]PriceLevel, slots),
		root:  Nil,
	}
	t.nodes[Nil] = PriceLevel{Left: Nil, Right: Nil, Parent: Nil, Color: Black}
	t.threadFree(1, NodeID(len(t.nodes)))
	return t
}

// threadFree links slots [from, to) into the free list in ascending order.
func (t *PriceIndex) threadFree(from, to NodeID) {
	for i := to - 1; i >= from; i-- {
		t.nodes[i] = PriceLevel{Left: t.freeHead}
		t.freeHead = i
	}
}

func (t *PriceIndex) grow() {
	oldLen := len(t.nodes)
	newLen := min(oldLen*defaultGrowthFactor, maxSlots)
	if newLen <= oldLen {
		panic("price index: arena exhausted")
	}
	newNodes := make([]PriceLevel, newLen)
	copy(newNodes, t.nodes)
	t.nodes = newNodes
	t.threadFree(NodeID(oldLen), NodeID(newLen))
}

func (t *PriceIndex) alloc(price decimal.Decimal, quantity int64) NodeID {
	if t.freeHead == Nil {
		t.grow()
	}
	id := t.freeHead
	t.freeHead = t.nodes[id].Left
	t.nodes[id] = PriceLevel{
		Left:     Nil,
		Right:    Nil,
		Parent:   Nil,
		Color:    Red,
		Price:    price,
		Quantity: quantity,
	}
	return id
}

func (t *PriceIndex) free(id NodeID) {
	t.nodes[id] = PriceLevel{Left: t.freeHead}
	t.freeHead = id
}

// Count returns the number of price levels.
func (t *PriceIndex) Count() int {
	return t.count
}

// IsEmpty reports whether the tree holds no price level.
func (t *PriceIndex) IsEmpty() bool {
	return t.root == Nil
}

// Price returns the price stored at id. The sentinel yields zero.
func (t *PriceIndex) Price(id NodeID) decimal.Decimal {
	if id == Nil {
		return decimal.Zero
	}
	return t.nodes[id].Price
}

// Quantity returns the aggregated quantity stored at id. The sentinel yields zero.
func (t *PriceIndex) Quantity(id NodeID) int64 {
	if id == Nil {
		return 0
	}
	return t.nodes[id].Quantity
}

// AddQuantity adjusts the quantity at id by delta and returns the new value.
// It never reshapes the tree; removing an exhausted level is up to the caller.
func (t *PriceIndex) AddQuantity(id NodeID, delta int64) int64 {
	if id == Nil {
		panic("price index: quantity update on sentinel")
	}
	t.nodes[id].Quantity += delta
	return t.nodes[id].Quantity
}

// rotateLeft performs a left rotation at x.
//
//	  |              |
//	  x              y
//	 / \    =>      / \
//	a   y          x   c
//	   / \        / \
//	  b   c      a   b
func (t *PriceIndex) rotateLeft(x NodeID) {
	y := t.nodes[x].Right
	if y == Nil {
		panic("price index: rotate left without right child")
	}
	t.nodes[x].Right = t.nodes[y].Left
	if t.nodes[y].Left != Nil {
		t.nodes[t.nodes[y].Left].Parent = x
	}
	t.nodes[y].Parent = t.nodes[x].Parent
	switch p := t.nodes[x].Parent; {
	case p == Nil:
		t.root = y
	case x == t.nodes[p].Left:
		t.nodes[p].Left = y
	default:
		t.nodes[p].Right = y
	}
	t.nodes[y].Left = x
	t.nodes[x].Parent = y
}

// rotateRight performs a right rotation at x.
//
//	    |          |
//	    x          y
//	   / \   =>   / \
//	  y   c      a   x
//	 / \            / \
//	a   b          b   c
func (t *PriceIndex) rotateRight(x NodeID) {
	y := t.nodes[x].Left
	if y == Nil {
		panic("price index: rotate right without left child")
	}
	t.nodes[x].Left = t.nodes[y].Right
	if t.nodes[y].Right != Nil {
		t.nodes[t.nodes[y].Right].Parent = x
	}
	t.nodes[y].Parent = t.nodes[x].Parent
	switch p := t.nodes[x].Parent; {
	case p == Nil:
		t.root = y
	case x == t.nodes[p].Right:
		t.nodes[p].Right = y
	default:
		t.nodes[p].Left = y
	}
	t.nodes[y].Right = x
	t.nodes[x].Parent = y
}

// Insert adds quantity at price.
// An existing level accumulates the quantity and keeps its shape; the bool
// result is true only when a new level was created.
func (t *PriceIndex) Insert(price decimal.Decimal, quantity int64) (NodeID, bool) {
	parent := Nil
	cur := t.root
	for cur != Nil {
		parent = cur
		cmp := price.Cmp(t.nodes[cur].Price)
		if cmp < 0 {
			cur = t.nodes[cur].Left
		} else if cmp > 0 {
			cur = t.nodes[cur].Right
		} else {
			t.nodes[cur].Quantity += quantity
			return cur, false
		}
	}

	z := t.alloc(price, quantity)
	t.nodes[z].Parent = parent
	if parent == Nil {
		t.root = z
	} else if price.LessThan(t.nodes[parent].Price) {
		t.nodes[parent].Left = z
	} else {
		t.nodes[parent].Right = z
	}
	t.count++
	t.insertFixup(z)
	return z, true
}

func (t *PriceIndex) insertFixup(z NodeID) {
	n := t.nodes
	for n[n[z].Parent].Color == Red {
		p := n[z].Parent
		g := n[p].Parent
		if p == n[g].Left {
			uncle := n[g].Right
			if n[uncle].Color == Red {
				n[p].Color = Black
				n[uncle].Color = Black
				n[g].Color = Red
				z = g
				continue
			}
			if z == n[p].Right {
				z = p
				t.rotateLeft(z)
			}
			p = n[z].Parent
			g = n[p].Parent
			n[p].Color = Black
			n[g].Color = Red
			t.rotateRight(g)
		} else {
			uncle := n[g].Left
			if n[uncle].Color == Red {
				n[p].Color = Black
				n[uncle].Color = Black
				n[g].Color = Red
				z = g
				continue
			}
			if z == n[p].Left {
				z = p
				t.rotateRight(z)
			}
			p = n[z].Parent
			g = n[p].Parent
			n[p].Color = Black
			n[g].Color = Red
			t.rotateLeft(g)
		}
	}
	n[t.root].Color = Black
}

// Search returns the level at price, or Nil.
func (t *PriceIndex) Search(price decimal.Decimal) NodeID {
	cur := t.root
	for cur != Nil {
		cmp := price.Cmp(t.nodes[cur].Price)
		if cmp < 0 {
			cur = t.nodes[cur].Left
		} else if cmp > 0 {
			cur = t.nodes[cur].Right
		} else {
			return cur
		}
	}
	return Nil
}

// Minimum returns the lowest price level, or Nil when empty.
func (t *PriceIndex) Minimum() NodeID {
	return t.MinimumOf(t.root)
}

// Maximum returns the highest price level, or Nil when empty.
func (t *PriceIndex) Maximum() NodeID {
	return t.MaximumOf(t.root)
}

// MinimumOf returns the leftmost node of the subtree rooted at id.
func (t *PriceIndex) MinimumOf(id NodeID) NodeID {
	if id == Nil {
		return Nil
	}
	for t.nodes[id].Left != Nil {
		id = t.nodes[id].Left
	}
	return id
}

// MaximumOf returns the rightmost node of the subtree rooted at id.
func (t *PriceIndex) MaximumOf(id NodeID) NodeID {
	if id == Nil {
		return Nil
	}
	for t.nodes[id].Right != Nil {
		id = t.nodes[id].Right
	}
	return id
}

// Successor returns the next higher price level, or Nil past the maximum.
func (t *PriceIndex) Successor(id NodeID) NodeID {
	if id == Nil {
		return Nil
	}
	if t.nodes[id].Right != Nil {
		return t.MinimumOf(t.nodes[id].Right)
	}
	p := t.nodes[id].Parent
	for p != Nil && id == t.nodes[p].Right {
		id = p
		p = t.nodes[p].Parent
	}
	return p
}

// Predecessor returns the next lower price level, or Nil past the minimum.
func (t *PriceIndex) Predecessor(id NodeID) NodeID {
	if id == Nil {
		return Nil
	}
	if t.nodes[id].Left != Nil {
		return t.MaximumOf(t.nodes[id].Left)
	}
	p := t.nodes[id].Parent
	for p != Nil && id == t.nodes[p].Left {
		id = p
		p = t.nodes[p].Parent
	}
	return p
}

// transplant makes v take u's place under u's parent. v may be the sentinel,
// whose Parent is written so delete-fixup can climb from it.
func (t *PriceIndex) transplant(u, v NodeID) {
	p := t.nodes[u].Parent
	switch {
	case p == Nil:
		t.root = v
	case u == t.nodes[p].Left:
		t.nodes[p].Left = v
	default:
		t.nodes[p].Right = v
	}
	t.nodes[v].Parent = p
}

// Delete removes the level at price. It reports false when no such level exists.
func (t *PriceIndex) Delete(price decimal.Decimal) bool {
	z := t.Search(price)
	if z == Nil {
		return false
	}
	t.deleteNode(z)
	return true
}

func (t *PriceIndex) deleteNode(z NodeID) {
	n := t.nodes
	y := z
	yOriginalColor := n[y].Color
	var x NodeID

	switch {
	case n[z].Left == Nil:
		x = n[z].Right
		t.transplant(z, n[z].Right)
	case n[z].Right == Nil:
		x = n[z].Left
		t.transplant(z, n[z].Left)
	default:
		y = t.MinimumOf(n[z].Right)
		yOriginalColor = n[y].Color
		x = n[y].Right
		if n[y].Parent == z {
			n[x].Parent = y
		} else {
			t.transplant(y, n[y].Right)
			n[y].Right = n[z].Right
			n[n[y].Right].Parent = y
		}
		t.transplant(z, y)
		n[y].Left = n[z].Left
		n[n[y].Left].Parent = y
		n[y].Color = n[z].Color
	}

	if yOriginalColor == Black {
		t.deleteFixup(x)
	}

	// The sentinel may have been used as a temporary parent holder.
	n[Nil].Parent = Nil
	n[Nil].Color = Black

	t.free(z)
	t.count--
}

func (t *PriceIndex) deleteFixup(x NodeID) {
	n := t.nodes
	for x != t.root && n[x].Color == Black {
		p := n[x].Parent
		if x == n[p].Left {
			w := n[p].Right
			if n[w].Color == Red {
				n[w].Color = Black
				n[p].Color = Red
				t.rotateLeft(p)
				w = n[p].Right
			}
			if n[n[w].Left].Color == Black && n[n[w].Right].Color == Black {
				n[w].Color = Red
				x = p
				continue
			}
			if n[n[w].Right].Color == Black {
				n[n[w].Left].Color = Black
				n[w].Color = Red
				t.rotateRight(w)
				w = n[p].Right
			}
			n[w].Color = n[p].Color
			n[p].Color = Black
			n[n[w].Right].Color = Black
			t.rotateLeft(p)
			x = t.root
		} else {
			w := n[p].Left
			if n[w].Color == Red {
				n[w].Color = Black
				n[p].Color = Red
				t.rotateRight(p)
				w = n[p].Left
			}
			if n[n[w].Right].Color == Black && n[n[w].Left].Color == Black {
				n[w].Color = Red
				x = p
				continue
			}
			if n[n[w].Left].Color == Black {
				n[n[w].Right].Color = Black
				n[w].Color = Red
				t.rotateLeft(w)
				w = n[p].Left
			}
			n[w].Color = n[p].Color
			n[p].Color = Black
			n[n[w].Left].Color = Black
			t.rotateRight(p)
			x = t.root
		}
	}
	n[x].Color = Black
}

// Ascend calls fn for each level from the lowest price upward until fn returns false.
func (t *PriceIndex) Ascend(fn func(price decimal.Decimal, quantity int64) bool) {
	for id := t.Minimum(); id != Nil; id = t.Successor(id) {
		if !fn(t.nodes[id].Price, t.nodes[id].Quantity) {
			return
		}
	}
}

// Descend calls fn for each level from the highest price downward until fn returns false.
func (t *PriceIndex) Descend(fn func(price decimal.Decimal, quantity int64) bool) {
	for id := t.Maximum(); id != Nil; id = t.Predecessor(id) {
		if !fn(t.nodes[id].Price, t.nodes[id].Quantity) {
			return
		}
	}
}

// Clear drops every level and keeps the arena for reuse.
func (t *PriceIndex) Clear() {
	t.root = Nil
	t.count = 0
	t.freeHead = Nil
	t.nodes[Nil] = PriceLevel{Left: Nil, Right: Nil, Parent: Nil, Color: Black}
	t.threadFree(1, NodeID(len(t.nodes)))
}

// Height returns the number of nodes on the longest root-to-leaf path.
func (t *PriceIndex) Height() int {
	return t.height(t.root)
}

func (t *PriceIndex) height(id NodeID) int {
	if id == Nil {
		return 0
	}
	return 1 + max(t.height(t.nodes[id].Left), t.height(t.nodes[id].Right))
}

// Verify checks the Red-Black laws, key ordering and sentinel integrity.
func (t *PriceIndex) Verify() error {
	s := t.nodes[Nil]
	if s.Color != Black || s.Left != Nil || s.Right != Nil {
		return fmt.Errorf("%w: sentinel modified", ErrCorrupted)
	}
	if t.nodes[t.root].Color != Black {
		return fmt.Errorf("%w: red root", ErrCorrupted)
	}
	if t.root != Nil && t.nodes[t.root].Parent != Nil {
		return fmt.Errorf("%w: root has a parent", ErrCorrupted)
	}

	seen := 0
	if _, err := t.verifyNode(t.root, &seen); err != nil {
		return err
	}
	if seen != t.count {
		return fmt.Errorf("%w: count %d, reachable %d", ErrCorrupted, t.count, seen)
	}

	var prev decimal.Decimal
	first := true
	var orderErr error
	t.Ascend(func(price decimal.Decimal, _ int64) bool {
		if !first && !prev.LessThan(price) {
			orderErr = fmt.Errorf("%w: in-order %s after %s", ErrCorrupted, price, prev)
			return false
		}
		prev, first = price, false
		return true
	})
	return orderErr
}

// verifyNode returns the black-height of the subtree rooted at id.
func (t *PriceIndex) verifyNode(id NodeID, seen *int) (int, error) {
	if id == Nil {
		return 1, nil
	}
	*seen++
	if *seen > t.count {
		return 0, fmt.Errorf("%w: cycle or detached count", ErrCorrupted)
	}
	nd := t.nodes[id]
	if nd.Color != Red && nd.Color != Black {
		return 0, fmt.Errorf("%w: unknown color at %s", ErrCorrupted, nd.Price)
	}
	for _, c := range [2]NodeID{nd.Left, nd.Right} {
		if c == Nil {
			continue
		}
		if t.nodes[c].Parent != id {
			return 0, fmt.Errorf("%w: broken parent link below %s", ErrCorrupted, nd.Price)
		}
		if nd.Color == Red && t.nodes[c].Color == Red {
			return 0, fmt.Errorf("%w: red node %s has red child", ErrCorrupted, nd.Price)
		}
	}
	if nd.Left != Nil && !t.nodes[nd.Left].Price.LessThan(nd.Price) {
		return 0, fmt.Errorf("%w: left child not smaller at %s", ErrCorrupted, nd.Price)
	}
	if nd.Right != Nil && !nd.Price.LessThan(t.nodes[nd.Right].Price) {
		return 0, fmt.Errorf("%w: right child not larger at %s", ErrCorrupted, nd.Price)
	}

	lh, err := t.verifyNode(nd.Left, seen)
	if err != nil {
		return 0, err
	}
	rh, err := t.verifyNode(nd.Right, seen)
	if err != nil {
		return 0, err
	}
	if lh != rh {
		return 0, fmt.Errorf("%w: black-height %d vs %d at %s", ErrCorrupted, lh, rh, nd.Price)
	}
	if nd.Color == Black {
		lh++
	}
	return lh, nil
}
