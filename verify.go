// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bptree

import "github.com/cockroachdb/errors"

// CheckInvariants verifies the structural invariants of the entire tree,
// panicking with an assertion error on the first violation. The walk holds
// read latches over the visited subtree (writers are excluded for its
// duration), so it is meant for tests, the invariants build, and quiescent
// diagnostics rather than production hot paths.
//
// Checked invariants:
//   - keys are strictly sorted within every node;
//   - every non-root node holds at least its minimum entry count, every node
//     at most fanOut-1;
//   - every inner node has one more child than separators, and each
//     separator lower-bounds the keys of its right-hand subtree;
//   - all keys of a subtree lie within the bounds its ancestors route to it;
//   - value sets are non-empty;
//   - all leaves are at the same depth, equal to the recorded height;
//   - the leaf chain is doubly linked, complete, and ascending;
//   - the recorded pair count matches the tree contents.
func (t *Tree[K, V]) CheckInvariants() {
	n := t.latchRootRead(false)
	if n == nil {
		if h := t.height.Load(); h != 0 {
			panic(errors.AssertionFailedf("empty tree has height %d", h))
		}
		if c := t.count.Load(); c != 0 {
			panic(errors.AssertionFailedf("empty tree has count %d", c))
		}
		return
	}
	c := &treeChecker[K, V]{t: t}
	depth, pairs, _ := c.checkNode(n, true /* root */, nil, nil)
	if h := int(t.height.Load()); depth != h {
		panic(errors.AssertionFailedf("leaf depth %d does not match recorded height %d", depth, h))
	}
	if recorded := t.count.Load(); pairs != recorded {
		panic(errors.AssertionFailedf("tree holds %d pairs, recorded count is %d", pairs, recorded))
	}
	c.checkLeafChain()
}

type treeChecker[K, V any] struct {
	t *Tree[K, V]
	// leaves accumulates the leaves in key order as the walk visits them.
	leaves []*leafNode[K, V]
}

// checkNode verifies the subtree rooted at n, whose keys must all lie in
// [lo, hi) (nil bounds are unbounded). n must be read-latched; the latch is
// released before returning. It returns the depth of the subtree's leaves,
// the number of (key, value) pairs it holds, and its smallest key.
func (c *treeChecker[K, V]) checkNode(
	n *node[K, V], root bool, lo, hi *K,
) (depth int, pairs int64, minKey K) {
	cmp := c.t.cfg.Compare
	if int(n.count) > maxEntries {
		panic(errors.AssertionFailedf("node holds %d entries, max is %d", n.count, maxEntries))
	}
	if !root {
		min := minInnerEntries
		if n.leaf {
			min = minLeafEntries
		}
		if int(n.count) < min {
			panic(errors.AssertionFailedf("non-root node holds %d entries, min is %d", n.count, min))
		}
	}
	for i := 1; i < int(n.count); i++ {
		if cmp(n.keys[i-1], n.keys[i]) >= 0 {
			panic(errors.AssertionFailedf("keys are not sorted @ %d", i))
		}
	}
	for i := 0; i < int(n.count); i++ {
		if lo != nil && cmp(n.keys[i], *lo) < 0 {
			panic(errors.AssertionFailedf("key @ %d below subtree bound", i))
		}
		if hi != nil && cmp(n.keys[i], *hi) >= 0 {
			panic(errors.AssertionFailedf("key @ %d above subtree bound", i))
		}
	}

	if n.leaf {
		l := n.asLeaf()
		for i := 0; i < int(l.count); i++ {
			if l.values[i].len() == 0 {
				panic(errors.AssertionFailedf("leaf retains an empty value set"))
			}
			pairs += int64(l.values[i].len())
		}
		c.leaves = append(c.leaves, l)
		minKey = l.keys[0]
		n.latch.RUnlock()
		return 1, pairs, minKey
	}

	in := n.asInner()
	if in.count == 0 && !root {
		panic(errors.AssertionFailedf("non-root inner node has no separators"))
	}
	for i := int(in.count) + 1; i < len(in.children); i++ {
		if in.children[i] != nil {
			panic(errors.AssertionFailedf("inner node has a child beyond its separators"))
		}
	}
	childDepth := -1
	for i := 0; i <= int(in.count); i++ {
		child := in.children[i]
		if child == nil {
			panic(errors.AssertionFailedf("inner node has a nil child @ %d", i))
		}
		childLo, childHi := lo, hi
		if i > 0 {
			childLo = &in.keys[i-1]
		}
		if i < int(in.count) {
			childHi = &in.keys[i]
		}
		child.latch.RLock()
		d, p, m := c.checkNode(child, false, childLo, childHi)
		if childDepth == -1 {
			childDepth = d
			minKey = m
		} else if d != childDepth {
			panic(errors.AssertionFailedf("leaves at unequal depths %d and %d", childDepth, d))
		}
		// A separator bounds its right-hand subtree from below. Splits and
		// rebalances install the exact subtree minimum, but a deletion of a
		// leaf's first entry legitimately leaves the separator lagging
		// behind the minimum: the parent is not latched on the safe path,
		// and a lagging separator still routes every key correctly.
		if i > 0 && cmp(m, in.keys[i-1]) < 0 {
			panic(errors.AssertionFailedf("separator @ %d exceeds its subtree's smallest key", i-1))
		}
		pairs += p
	}
	n.latch.RUnlock()
	return childDepth + 1, pairs, minKey
}

// checkLeafChain verifies that the leaves discovered in key order form a
// complete doubly-linked chain.
func (c *treeChecker[K, V]) checkLeafChain() {
	for j, l := range c.leaves {
		if j == 0 {
			if l.prev != nil {
				panic(errors.AssertionFailedf("leftmost leaf has a prev link"))
			}
		} else if l.prev != c.leaves[j-1] {
			panic(errors.AssertionFailedf("leaf chain broken: prev mismatch @ %d", j))
		}
		if j == len(c.leaves)-1 {
			if l.next != nil {
				panic(errors.AssertionFailedf("rightmost leaf has a next link"))
			}
		} else if l.next != c.leaves[j+1] {
			panic(errors.AssertionFailedf("leaf chain broken: next mismatch @ %d", j))
		}
	}
}
