// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bptree

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"
)

// Tree is a concurrent, in-memory, multi-valued B+ tree: an ordered index
// from keys to sets of values, intended to back a relational secondary
// index. The key ordering and the value equality/hash are supplied by the
// caller through Config.
//
// All single-key operations (Insert, ConditionalInsert, Delete, GetValue)
// are linearizable and safe for concurrent use by multiple goroutines.
// Mutations latch-couple down the tree ("latch crabbing"), holding write
// latches only on the contiguous chain of ancestors that a split or merge
// could still propagate into. Iterators are the exception: they hold no
// latches and require external quiescence (see NewIter).
type Tree[K, V any] struct {
	cfg Config[K, V]

	// root is the current root node, nil while the tree is empty. Traversals
	// latch the sampled root and then re-verify it is still current, because
	// a concurrent root split or collapse may have swapped it. rootMu is held
	// only for the duration of the pointer swap itself.
	root   atomic.Pointer[node[K, V]]
	rootMu sync.Mutex

	// count is the number of live (key, value) pairs; height is the number of
	// levels (0 empty, 1 leaf-only root).
	count  atomic.Int64
	height atomic.Int32

	stats struct {
		leafSplits    atomic.Int64
		innerSplits   atomic.Int64
		borrows       atomic.Int64
		coalesces     atomic.Int64
		rootSplits    atomic.Int64
		rootCollapses atomic.Int64
	}
}

// New constructs an empty Tree from cfg. Compare and ValueEqual are
// mandatory; the remaining fields are defaulted via cfg.EnsureDefaults.
func New[K, V any](cfg Config[K, V]) *Tree[K, V] {
	if cfg.Compare == nil {
		panic(errors.AssertionFailedf("bptree: Config.Compare is required"))
	}
	if cfg.ValueEqual == nil {
		panic(errors.AssertionFailedf("bptree: Config.ValueEqual is required"))
	}
	cfg.EnsureDefaults()
	return &Tree[K, V]{cfg: cfg}
}

// Empty reports whether the tree holds no entries.
func (t *Tree[K, V]) Empty() bool {
	return t.root.Load() == nil
}

// Count returns the number of live (key, value) pairs.
func (t *Tree[K, V]) Count() int {
	return int(t.count.Load())
}

// Height returns the number of levels in the tree: 0 for an empty tree, 1
// when the root is a leaf.
func (t *Tree[K, V]) Height() int {
	return int(t.height.Load())
}

// latchRootRead latches the current root for reading and returns it, or nil
// if the tree is empty. If leafWrite is set and the root is itself a leaf,
// the root is write-latched instead, on behalf of an optimistic mutator.
//
// The root pointer may be swapped by a concurrent root split or collapse
// between sampling and latching, so the sample is re-verified after the
// latch is acquired and the acquisition retried on mismatch.
func (t *Tree[K, V]) latchRootRead(leafWrite bool) *node[K, V] {
	for {
		n := t.root.Load()
		if n == nil {
			return nil
		}
		write := n.leaf && leafWrite
		if write {
			n.latch.Lock()
		} else {
			n.latch.RLock()
		}
		if t.root.Load() == n {
			return n
		}
		if write {
			n.latch.Unlock()
		} else {
			n.latch.RUnlock()
		}
	}
}

// findLeafForRead latch-couples read latches from the root down to the leaf
// covering key and returns that leaf, or nil if the tree is empty. The leaf
// is returned read-latched, or write-latched when leafWrite is set.
func (t *Tree[K, V]) findLeafForRead(key K, leafWrite bool) *leafNode[K, V] {
	n := t.latchRootRead(leafWrite)
	if n == nil {
		return nil
	}
	for !n.leaf {
		in := n.asInner()
		child := in.children[in.childIndex(t.cfg.Compare, key)]
		if child.leaf && leafWrite {
			child.latch.Lock()
		} else {
			child.latch.RLock()
		}
		n.latch.RUnlock()
		n = child
	}
	return n.asLeaf()
}

// GetValue appends every value stored under key to dst and returns the
// extended slice. The order of values within a key is unspecified.
func (t *Tree[K, V]) GetValue(key K, dst []V) []V {
	l := t.findLeafForRead(key, false)
	if l == nil {
		return dst
	}
	if i, found := l.search(t.cfg.Compare, key); found {
		dst = l.values[i].appendTo(dst)
	}
	l.latch.RUnlock()
	return dst
}

// HasKey reports whether any value is stored under key.
func (t *Tree[K, V]) HasKey(key K) bool {
	l := t.findLeafForRead(key, false)
	if l == nil {
		return false
	}
	_, found := l.search(t.cfg.Compare, key)
	l.latch.RUnlock()
	return found
}

// HeapUsage returns an approximate byte count of the heap reachable from the
// tree: node structs plus value-set backing arrays. The walk read-latches
// each visited subtree, so it excludes writers for its duration; it is meant
// for accounting and tests, not hot paths.
func (t *Tree[K, V]) HeapUsage() uint64 {
	n := t.latchRootRead(false)
	if n == nil {
		return 0
	}
	return t.subtreeUsage(n)
}

// subtreeUsage accounts the subtree rooted at n. n must be read-latched; the
// latch is released before returning.
func (t *Tree[K, V]) subtreeUsage(n *node[K, V]) uint64 {
	var u uint64
	if n.leaf {
		l := n.asLeaf()
		u = uint64(unsafe.Sizeof(*l))
		for i := 0; i < int(l.count); i++ {
			u += uint64(cap(l.values[i].vals)) * uint64(unsafe.Sizeof(valueEntry[V]{}))
		}
		n.latch.RUnlock()
		return u
	}
	in := n.asInner()
	u = uint64(unsafe.Sizeof(*in))
	for i := 0; i <= int(in.count); i++ {
		c := in.children[i]
		c.latch.RLock()
		u += t.subtreeUsage(c)
	}
	n.latch.RUnlock()
	return u
}

// String returns a string description of the tree. The format is similar to
// the https://en.wikipedia.org/wiki/Newick_format: leaf entries print as
// key or key*n for an n-value set, and each inner node wraps its children in
// parentheses around its separator keys.
func (t *Tree[K, V]) String() string {
	n := t.latchRootRead(false)
	if n == nil {
		return ";"
	}
	var b strings.Builder
	t.writeString(n, &b)
	return b.String()
}

// writeString renders the subtree rooted at n. n must be read-latched; the
// latch is released before returning.
func (t *Tree[K, V]) writeString(n *node[K, V], b *strings.Builder) {
	if n.leaf {
		l := n.asLeaf()
		for i := 0; i < int(l.count); i++ {
			if i != 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(b, "%v", l.keys[i])
			if sz := l.values[i].len(); sz > 1 {
				fmt.Fprintf(b, "*%d", sz)
			}
		}
		n.latch.RUnlock()
		return
	}
	in := n.asInner()
	for i := 0; i <= int(in.count); i++ {
		b.WriteString("(")
		c := in.children[i]
		c.latch.RLock()
		t.writeString(c, b)
		b.WriteString(")")
		if i < int(in.count) {
			fmt.Fprintf(b, "%v", in.keys[i])
		}
	}
	n.latch.RUnlock()
}
