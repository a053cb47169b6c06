// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bptree

import (
	"github.com/cockroachdb/bptree/internal/invariants"
	"github.com/cockroachdb/errors"
)

// Insert adds (key, value) to the tree. It returns false without mutating if
// the exact pair already exists, or if unique is set and any value already
// exists under key. It returns true iff this call added the pair.
func (t *Tree[K, V]) Insert(key K, value V, unique bool) bool {
	inserted, _ := t.insert(key, value, unique, nil)
	return inserted
}

// ConditionalInsert adds (key, value) unless some existing value under key
// satisfies predicate. predicateSatisfied reports whether the predicate
// matched; when it did, the insert failed. The insert also fails, with
// predicateSatisfied false, if the exact pair already exists.
func (t *Tree[K, V]) ConditionalInsert(
	key K, value V, predicate func(V) bool,
) (inserted, predicateSatisfied bool) {
	if predicate == nil {
		panic(errors.AssertionFailedf("bptree: ConditionalInsert requires a predicate"))
	}
	return t.insert(key, value, false, predicate)
}

// leafRejects evaluates the insert guards against the latched leaf.
func (t *Tree[K, V]) leafRejects(
	l *leafNode[K, V], key K, hash uint64, value V, unique bool, pred func(V) bool,
) (reject, predHit bool) {
	i, found := l.search(t.cfg.Compare, key)
	if !found {
		return false, false
	}
	if unique {
		return true, false
	}
	if pred != nil && l.values[i].any(pred) {
		return true, true
	}
	if l.values[i].contains(t.cfg.ValueEqual, hash, value) {
		return true, false
	}
	return false, false
}

// leafInsert performs the actual entry mutation on a write-latched leaf.
func (t *Tree[K, V]) leafInsert(l *leafNode[K, V], key K, hash uint64, value V) {
	i, found := l.search(t.cfg.Compare, key)
	if found {
		l.values[i].add(hash, value)
	} else {
		l.insertEntryAt(i, key, hash, value)
	}
	t.count.Add(1)
}

func (t *Tree[K, V]) insert(
	key K, value V, unique bool, pred func(V) bool,
) (inserted, predHit bool) {
	hash := t.cfg.ValueHash(value)

	// Optimistic phase: read-couple down the spine and write-latch only the
	// leaf. This suffices unless the insert would split the leaf.
	if l := t.findLeafForRead(key, true); l != nil {
		if reject, hit := t.leafRejects(l, key, hash, value, unique, pred); reject {
			l.latch.Unlock()
			return false, hit
		}
		if !l.willOverflow() {
			t.leafInsert(l, key, hash, value)
			l.latch.Unlock()
			return true, false
		}
		// The leaf is full: retry pessimistically with write latches down the
		// spine so the split can propagate.
		l.latch.Unlock()
	}

	var p writePath[K, V]
	defer p.releaseAll()
	l := t.findLeafForWrite(key, false /* forDelete */, true /* create */, &p)
	// The guards must be re-evaluated: the leaf may have changed between the
	// optimistic release and the pessimistic latch.
	if reject, hit := t.leafRejects(l, key, hash, value, unique, pred); reject {
		return false, hit
	}
	t.leafInsert(l, key, hash, value)
	if int(l.count) == fanOut {
		t.propagateSplit(&p)
	}
	return true, false
}

// propagateSplit resolves the transient overflow of the leaf at the bottom
// of the path, splitting bottom-up until an ancestor absorbs the promoted
// separator without overflowing, or until the root itself splits.
func (t *Tree[K, V]) propagateSplit(p *writePath[K, V]) {
	i := p.len() - 1
	l := p.at(i).asLeaf()
	right := l.split()
	t.stats.leafSplits.Add(1)
	if right.next != nil {
		// The old next leaf may belong to another parent; its latch is all
		// that is needed to fix the back-pointer. Chain latches are only ever
		// taken left-to-right, which keeps splices deadlock-free.
		right.next.latch.Lock()
		right.next.prev = right
		right.next.latch.Unlock()
	}
	sep := right.keys[0]
	child := &right.node

	for {
		if i == 0 {
			if invariants.Enabled && !p.fromRoot {
				panic(errors.AssertionFailedf("split propagated past a released ancestor"))
			}
			t.growRoot(p.at(0), sep, child)
			return
		}
		parent := p.at(i - 1).asInner()
		parent.insertEntry(t.cfg.Compare, sep, child)
		if int(parent.count) < fanOut {
			return
		}
		r, promoted := parent.split()
		t.stats.innerSplits.Add(1)
		sep, child = promoted, &r.node
		i--
	}
}

// growRoot replaces the root with a new inner node holding the two halves of
// the old root. The old root's write latch is held across the swap; the tree
// latch is taken only to publish the new pointer.
func (t *Tree[K, V]) growRoot(oldRoot *node[K, V], sep K, right *node[K, V]) {
	nr := newInnerNode[K, V]()
	nr.children[0] = oldRoot
	nr.keys[0] = sep
	nr.children[1] = right
	nr.count = 1
	t.rootMu.Lock()
	t.root.Store(&nr.node)
	t.rootMu.Unlock()
	h := t.height.Add(1)
	t.stats.rootSplits.Add(1)
	t.cfg.EventListener.RootSplit(RootSplitInfo{NewHeight: int(h)})
}
