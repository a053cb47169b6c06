// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bptree

import (
	"github.com/cockroachdb/bptree/internal/invariants"
	"github.com/cockroachdb/errors"
)

// Iterator is a cursor over the (key, value) pairs of a Tree in key order,
// walking the leaf chain. Within a key, values appear in unspecified order.
//
// Iterators are not snapshot-consistent: they hold no latches between
// operations and are invalidated by any concurrent mutation of the tree. A
// seek latch-couples down the tree and releases every latch before
// returning; advancing dereferences the current leaf without latching. The
// caller must either serialize iteration with mutations externally or
// iterate only in quiescent periods. It is safe for an Iterator to be copied
// by value.
type Iterator[K, V any] struct {
	t *Tree[K, V]
	l *leafNode[K, V]
	// pos and vpos make up the current position: the entry index within the
	// leaf and the value index within the entry's value set.
	pos  int16
	vpos int
}

// NewIter returns a new Iterator positioned before the first pair; use
// First, Last, SeekGE, or SeekLE to position it.
func (t *Tree[K, V]) NewIter() Iterator[K, V] {
	return Iterator[K, V]{t: t, pos: -1}
}

// leftmostLeaf returns the first leaf in the chain, read-latched, or nil if
// the tree is empty.
func (t *Tree[K, V]) leftmostLeaf() *leafNode[K, V] {
	n := t.latchRootRead(false)
	if n == nil {
		return nil
	}
	for !n.leaf {
		child := n.asInner().children[0]
		child.latch.RLock()
		n.latch.RUnlock()
		n = child
	}
	return n.asLeaf()
}

// rightmostLeaf returns the last leaf in the chain, read-latched, or nil if
// the tree is empty.
func (t *Tree[K, V]) rightmostLeaf() *leafNode[K, V] {
	n := t.latchRootRead(false)
	if n == nil {
		return nil
	}
	for !n.leaf {
		in := n.asInner()
		child := in.children[in.count]
		child.latch.RLock()
		n.latch.RUnlock()
		n = child
	}
	return n.asLeaf()
}

// First positions the iterator at the smallest key's first value.
func (i *Iterator[K, V]) First() {
	i.l, i.pos, i.vpos = nil, -1, 0
	l := i.t.leftmostLeaf()
	if l == nil {
		return
	}
	if l.count > 0 {
		i.l, i.pos = l, 0
	}
	l.latch.RUnlock()
}

// Last positions the iterator at the largest key's last value.
func (i *Iterator[K, V]) Last() {
	i.l, i.pos, i.vpos = nil, -1, 0
	l := i.t.rightmostLeaf()
	if l == nil {
		return
	}
	if l.count > 0 {
		i.l, i.pos = l, l.count-1
		i.vpos = l.values[i.pos].len() - 1
	}
	l.latch.RUnlock()
}

// SeekGE positions the iterator at the first pair whose key is greater than
// or equal to key; the iterator is invalid if no such pair exists.
func (i *Iterator[K, V]) SeekGE(key K) {
	i.l, i.pos, i.vpos = nil, -1, 0
	l := i.t.findLeafForRead(key, false)
	if l == nil {
		return
	}
	pos, _ := l.search(i.t.cfg.Compare, key)
	if pos < int(l.count) {
		i.l, i.pos = l, int16(pos)
	} else if l.next != nil && l.next.count > 0 {
		// Past the last entry of this leaf; the covering position is the
		// start of the next leaf.
		i.l, i.pos = l.next, 0
	}
	l.latch.RUnlock()
}

// SeekLE positions the iterator at the last value of the last pair whose key
// is less than or equal to key; the iterator is invalid if no such pair
// exists.
func (i *Iterator[K, V]) SeekLE(key K) {
	i.l, i.pos, i.vpos = nil, -1, 0
	l := i.t.findLeafForRead(key, false)
	if l == nil {
		return
	}
	pos, found := l.search(i.t.cfg.Compare, key)
	switch {
	case found:
		i.l, i.pos = l, int16(pos)
	case pos > 0:
		i.l, i.pos = l, int16(pos-1)
	case l.prev != nil && l.prev.count > 0:
		// Every entry of this leaf is greater than key; fall back to the
		// previous leaf's last entry.
		i.l, i.pos = l.prev, l.prev.count-1
	}
	if i.l != nil {
		i.vpos = i.l.values[i.pos].len() - 1
	}
	l.latch.RUnlock()
}

// Valid reports whether the iterator is positioned at a pair.
func (i *Iterator[K, V]) Valid() bool {
	return i.l != nil && i.pos >= 0 && i.pos < i.l.count
}

// Key returns the key at the current position.
func (i *Iterator[K, V]) Key() K {
	if invariants.Enabled && !i.Valid() {
		panic(errors.AssertionFailedf("Key invoked on invalid iterator"))
	}
	return i.l.keys[i.pos]
}

// Value returns the value at the current position.
func (i *Iterator[K, V]) Value() V {
	if invariants.Enabled && !i.Valid() {
		panic(errors.AssertionFailedf("Value invoked on invalid iterator"))
	}
	return i.l.values[i.pos].vals[i.vpos].val
}

// Next advances to the following value: the next value within the current
// key's set, then the next entry of the leaf, then the head of the next
// leaf. Advancing past the last pair invalidates the iterator.
func (i *Iterator[K, V]) Next() {
	if !i.Valid() {
		return
	}
	i.vpos++
	if i.vpos < i.l.values[i.pos].len() {
		return
	}
	i.vpos = 0
	i.pos++
	if i.pos < i.l.count {
		return
	}
	i.l = i.l.next
	i.pos = 0
}

// Prev is the symmetric reverse of Next. Retreating before the first pair
// invalidates the iterator.
func (i *Iterator[K, V]) Prev() {
	if !i.Valid() {
		return
	}
	i.vpos--
	if i.vpos >= 0 {
		return
	}
	i.pos--
	if i.pos >= 0 {
		i.vpos = i.l.values[i.pos].len() - 1
		return
	}
	i.l = i.l.prev
	if i.l != nil {
		i.pos = i.l.count - 1
		i.vpos = i.l.values[i.pos].len() - 1
	}
}
