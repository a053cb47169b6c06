// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bptree

import (
	"github.com/cockroachdb/bptree/internal/invariants"
	"github.com/cockroachdb/errors"
)

// Delete removes the exact (key, value) pair, reporting whether a pair was
// removed. Removing the last value under a key removes the key's entry;
// removing the last entry of the root leaf empties the tree.
func (t *Tree[K, V]) Delete(key K, value V) bool {
	hash := t.cfg.ValueHash(value)
	var p writePath[K, V]
	defer p.releaseAll()
	l := t.findLeafForWrite(key, true /* forDelete */, false /* create */, &p)
	if l == nil {
		return false
	}
	i, found := l.search(t.cfg.Compare, key)
	if !found || !l.values[i].remove(t.cfg.ValueEqual, hash, value) {
		return false
	}
	t.count.Add(-1)
	if l.values[i].len() > 0 {
		// The key entry survives; node occupancy is unchanged.
		return true
	}
	l.removeEntryAt(i)

	if p.fromRoot && p.len() == 1 {
		// The leaf is the root; it may legally hold any occupancy, but an
		// empty root collapses the tree to its initial state.
		if l.count == 0 {
			t.rootMu.Lock()
			t.root.Store(nil)
			t.rootMu.Unlock()
			t.height.Store(0)
			t.stats.rootCollapses.Add(1)
			t.cfg.EventListener.RootCollapse(RootCollapseInfo{NewHeight: 0})
		}
		return true
	}
	if int(l.count) >= minLeafEntries {
		return true
	}
	// The leaf underflowed. Its ancestors were retained by the descent (the
	// leaf was unsafe), so the path reaches every node a merge can touch.
	t.rebalance(&p)
	return true
}

// rebalance restores minimum occupancy at the bottom of the path, borrowing
// from or coalescing with a sibling, and recursing up through ancestors that
// underflow in turn. Siblings are always chosen through the shared parent;
// the leaf chain is never used to pick a rebalance partner, because a chain
// neighbor under a different parent would leave that parent's separator
// unmaintained.
//
// Sibling latches nest inside the already-held parent write latch, which
// excludes every same-parent structural operation; cross-parent latching is
// confined to leaf-chain splices taken left-to-right.
func (t *Tree[K, V]) rebalance(p *writePath[K, V]) {
	for i := p.len() - 1; ; i-- {
		n := p.at(i)
		if i == 0 {
			if invariants.Enabled && !p.fromRoot {
				panic(errors.AssertionFailedf("rebalance propagated past a released ancestor"))
			}
			// The root may hold as little as a single separator; it shrinks
			// out of existence only when a coalesce leaves it with one child.
			if !n.leaf && n.count == 0 {
				t.collapseRoot(n.asInner())
			}
			return
		}
		parent := p.at(i - 1).asInner()
		ci := parent.indexOfChild(n)

		var left, right *node[K, V]
		if ci > 0 {
			left = parent.children[ci-1]
			left.latch.Lock()
		}
		if left != nil && !left.willUnderflow() {
			t.borrowFromLeft(parent, ci, left, n)
			left.latch.Unlock()
			return
		}
		if ci < int(parent.count) {
			right = parent.children[ci+1]
			right.latch.Lock()
		}
		if right != nil && !right.willUnderflow() {
			t.borrowFromRight(parent, ci, right, n)
			right.latch.Unlock()
			if left != nil {
				left.latch.Unlock()
			}
			return
		}

		// Neither sibling can donate: coalesce. Merge into the left sibling
		// when one exists (n disappears); otherwise absorb the right sibling
		// into n. When n merges away it stays on the path, and its latch is
		// released with the rest of the held set; a merged-away right sibling
		// is unlatched here.
		if left != nil {
			if right != nil {
				// right is n's chain successor, which the splice in coalesce
				// latches; the parent latch keeps it in place meanwhile.
				right.latch.Unlock()
			}
			t.coalesce(parent, ci-1, left, n)
			left.latch.Unlock()
		} else {
			if invariants.Enabled && right == nil {
				panic(errors.AssertionFailedf("non-root node has no siblings"))
			}
			t.coalesce(parent, ci, n, right)
			right.latch.Unlock()
		}
		if i-1 > 0 && int(parent.count) >= minInnerEntries {
			return
		}
		// Otherwise the parent underflowed, or it is the root; the next
		// iteration rebalances it or collapses the root.
	}
}

// borrowFromLeft moves the boundary entry of the left sibling into n and
// rotates the parent separator that covers the boundary.
//
//	          +-----------+
//	          |     y     |
//	          +----/-\----+
//	              /   \
//	             v     v
//	+-----------+     +-----------+
//	|         x |     |           |
//	+----------\+     +-----------+
//	            \
//	             v
//	             a
//
//	After:
//
//	          +-----------+
//	          |     x     |
//	          +----/-\----+
//	              /   \
//	             v     v
//	+-----------+     +-----------+
//	|           |     | y         |
//	+-----------+     +/----------+
//	                  /
//	                 v
//	                 a
func (t *Tree[K, V]) borrowFromLeft(
	parent *innerNode[K, V], ci int, left, n *node[K, V],
) {
	if n.leaf {
		key, set := left.asLeaf().popBackEntry()
		n.asLeaf().prependEntry(key, set)
		// The separator for n becomes its new first key.
		parent.keys[ci-1] = key
	} else {
		key, child := left.asInner().popBack()
		// The old separator drops into n to key its former leftmost child;
		// the donated key rises into the parent.
		n.asInner().prepend(parent.keys[ci-1], child)
		parent.keys[ci-1] = key
	}
	t.stats.borrows.Add(1)
}

// borrowFromRight moves the boundary entry of the right sibling into n and
// rotates the parent separator that covers the boundary.
func (t *Tree[K, V]) borrowFromRight(
	parent *innerNode[K, V], ci int, right, n *node[K, V],
) {
	if n.leaf {
		key, set := right.asLeaf().popFrontEntry()
		n.asLeaf().appendEntry(key, set)
		// The separator for the right sibling becomes its new first key.
		parent.keys[ci] = right.firstKey()
	} else {
		key, child := right.asInner().popFront()
		n.asInner().append(parent.keys[ci], child)
		parent.keys[ci] = key
	}
	t.stats.borrows.Add(1)
}

// coalesce merges the right-hand sibling into the left-hand one. sepIdx is
// the parent separator between them; the parent loses that separator and the
// pointer to the disappearing right node. For leaves the chain is respliced,
// which latches the leaf following the right node (possibly under a different
// parent); the caller must not hold that latch.
func (t *Tree[K, V]) coalesce(
	parent *innerNode[K, V], sepIdx int, left, right *node[K, V],
) {
	sep := parent.removeEntryAt(sepIdx)
	if left.leaf {
		ll, rl := left.asLeaf(), right.asLeaf()
		ll.appendFrom(rl)
		ll.next = rl.next
		if rl.next != nil {
			rl.next.latch.Lock()
			rl.next.prev = ll
			rl.next.latch.Unlock()
		}
		rl.prev, rl.next = nil, nil
	} else {
		left.asInner().appendFrom(right.asInner(), sep)
	}
	t.stats.coalesces.Add(1)
}

// collapseRoot replaces a root inner node that has no separators left with its
// only remaining child, lowering the tree by one level. The old root's write latch is held
// across the swap.
func (t *Tree[K, V]) collapseRoot(oldRoot *innerNode[K, V]) {
	child := oldRoot.children[0]
	oldRoot.children[0] = nil
	t.rootMu.Lock()
	t.root.Store(child)
	t.rootMu.Unlock()
	h := t.height.Add(-1)
	t.stats.rootCollapses.Add(1)
	t.cfg.EventListener.RootCollapse(RootCollapseInfo{NewHeight: int(h)})
}
