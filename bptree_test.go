// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bptree

import (
	stdcmp "cmp"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func newIntTree() *Tree[int, int] {
	return New(Config[int, int]{
		Compare:    stdcmp.Compare[int],
		ValueEqual: func(a, b int) bool { return a == b },
		ValueHash:  func(v int) uint64 { return uint64(v) },
	})
}

// insertSeq inserts keys [lo, hi) with value equal to the key.
func insertSeq(t *testing.T, tr *Tree[int, int], lo, hi int) {
	t.Helper()
	for k := lo; k < hi; k++ {
		require.True(t, tr.Insert(k, k, false), "insert %d", k)
	}
}

func sortedValues(tr *Tree[int, int], key int) []int {
	vals := tr.GetValue(key, nil)
	slices.Sort(vals)
	return vals
}

func TestEmptyTree(t *testing.T) {
	tr := newIntTree()
	require.True(t, tr.Empty())
	require.Equal(t, 0, tr.Height())
	require.Equal(t, 0, tr.Count())
	require.Empty(t, tr.GetValue(42, nil))
	require.False(t, tr.Delete(42, 42))
	require.Equal(t, uint64(0), tr.HeapUsage())
	require.Equal(t, ";", tr.String())
	tr.CheckInvariants()
}

func TestRootSplit(t *testing.T) {
	tr := newIntTree()
	insertSeq(t, tr, 0, 9)
	// Nine entries still fit in a root leaf.
	require.Equal(t, 1, tr.Height())
	require.True(t, tr.root.Load().leaf)

	require.True(t, tr.Insert(9, 9, false))
	require.Equal(t, 2, tr.Height())
	require.False(t, tr.root.Load().leaf)
	require.Equal(t, "(0,1,2,3,4)5(5,6,7,8,9)", tr.String())
	tr.CheckInvariants()
}

func TestBasicInsertShuffled(t *testing.T) {
	const keyNum = 15
	tr := newIntTree()
	keys := rand.Perm(keyNum)

	for i := 0; i < 5; i++ {
		require.True(t, tr.Insert(keys[i], keys[i], false))
	}
	require.True(t, tr.root.Load().leaf)

	// Same keys with a different value double up the value sets without
	// adding entries.
	for i := 0; i < 5; i++ {
		require.True(t, tr.Insert(keys[i], keys[i]+1, false))
	}
	require.True(t, tr.root.Load().leaf)
	require.Equal(t, 10, tr.Count())

	for i := 5; i < keyNum; i++ {
		require.True(t, tr.Insert(keys[i], keys[i], false))
	}
	require.False(t, tr.root.Load().leaf)
	tr.CheckInvariants()

	for i, k := range keys {
		want := []int{k}
		if i < 5 {
			want = []int{k, k + 1}
			slices.Sort(want)
		}
		require.Equal(t, want, sortedValues(tr, k), "key %d", k)
	}
}

func TestDuplicateValues(t *testing.T) {
	tr := newIntTree()
	for i := 0; i < 9; i++ {
		require.True(t, tr.Insert(i, i, false))
		require.True(t, tr.Insert(i, i+1, false))
	}
	require.Equal(t, 1, tr.Height())
	require.Equal(t, 18, tr.Count())
	require.Equal(t, []int{3, 4}, sortedValues(tr, 3))
	require.Equal(t, "0*2,1*2,2*2,3*2,4*2,5*2,6*2,7*2,8*2", tr.String())
	tr.CheckInvariants()
}

func TestInsertConflicts(t *testing.T) {
	tr := newIntTree()
	require.True(t, tr.Insert(1, 10, false))
	// Exact duplicate pair.
	require.False(t, tr.Insert(1, 10, false))
	// Same key, new value.
	require.True(t, tr.Insert(1, 11, false))
	// Unique insert on an occupied key.
	require.False(t, tr.Insert(1, 12, true))
	// Unique insert on a fresh key.
	require.True(t, tr.Insert(2, 20, true))
	require.Equal(t, 3, tr.Count())
	require.True(t, tr.HasKey(1))
	require.False(t, tr.HasKey(3))
	tr.CheckInvariants()
}

func TestConditionalInsert(t *testing.T) {
	tr := newIntTree()
	require.True(t, tr.Insert(7, 70, false))

	inserted, hit := tr.ConditionalInsert(7, 71, func(v int) bool { return v == 70 })
	require.False(t, inserted)
	require.True(t, hit)

	inserted, hit = tr.ConditionalInsert(7, 71, func(v int) bool { return v == 99 })
	require.True(t, inserted)
	require.False(t, hit)

	// The exact pair now exists; the insert fails without a predicate hit.
	inserted, hit = tr.ConditionalInsert(7, 71, func(v int) bool { return v == 99 })
	require.False(t, inserted)
	require.False(t, hit)

	// Predicate on a missing key never fires.
	inserted, hit = tr.ConditionalInsert(8, 80, func(v int) bool { return true })
	require.True(t, inserted)
	require.False(t, hit)
	tr.CheckInvariants()
}

func TestCoalesceLeaves(t *testing.T) {
	tr := newIntTree()
	insertSeq(t, tr, 0, 10)
	require.Equal(t, 2, tr.Height())

	require.True(t, tr.Delete(0, 0))
	require.Equal(t, 1, tr.Height())
	require.Equal(t, "1,2,3,4,5,6,7,8,9", tr.String())
	tr.CheckInvariants()
}

func TestBorrowFromLeaf(t *testing.T) {
	tr := newIntTree()
	insertSeq(t, tr, 0, 11)
	require.Equal(t, 2, tr.Height())
	require.Equal(t, "(0,1,2,3,4)5(5,6,7,8,9,10)", tr.String())

	// The left leaf drops to four entries and borrows 5 from the right; the
	// separator advances to the right leaf's new first key.
	require.True(t, tr.Delete(0, 0))
	require.Equal(t, 2, tr.Height())
	require.Equal(t, "(1,2,3,4,5)6(6,7,8,9,10)", tr.String())
	require.Equal(t, int64(1), tr.Metrics().Borrows)
	tr.CheckInvariants()
}

func TestBorrowFromInner(t *testing.T) {
	tr := newIntTree()
	insertSeq(t, tr, 0, 55)
	require.Equal(t, 3, tr.Height())
	tr.CheckInvariants()

	// The leftmost leaf underflows and coalesces with its right sibling,
	// which underflows the leftmost inner node; the right inner sibling
	// donates one (key, child) pair. The height is unchanged.
	m := tr.Metrics()
	require.True(t, tr.Delete(0, 0))
	require.Equal(t, 3, tr.Height())
	require.Equal(t, m.Coalesces+1, tr.Metrics().Coalesces)
	require.Equal(t, m.Borrows+1, tr.Metrics().Borrows)
	tr.CheckInvariants()

	require.Empty(t, tr.GetValue(0, nil))
	for k := 1; k < 55; k++ {
		require.Equal(t, []int{k}, sortedValues(tr, k), "key %d", k)
	}
}

func TestThreeLevelCollapse(t *testing.T) {
	tr := newIntTree()
	insertSeq(t, tr, 0, 1000)
	require.GreaterOrEqual(t, tr.Height(), 3)
	tr.CheckInvariants()

	for k := 0; k < 999; k++ {
		require.True(t, tr.Delete(k, k), "delete %d", k)
		if k%97 == 0 {
			tr.CheckInvariants()
		}
	}
	require.Equal(t, 1, tr.Height())
	require.Equal(t, 1, tr.Count())
	require.Equal(t, []int{999}, sortedValues(tr, 999))
	tr.CheckInvariants()

	// Deleting the last pair restores the empty-root state.
	require.True(t, tr.Delete(999, 999))
	require.True(t, tr.Empty())
	require.Equal(t, 0, tr.Height())
	tr.CheckInvariants()
}

func TestInsertDeleteRoundTrip(t *testing.T) {
	tr := newIntTree()
	insertSeq(t, tr, 0, 100)
	before := tr.String()

	// Insert-then-delete of a fresh pair returns the tree to its prior
	// structural state.
	require.True(t, tr.Insert(1000, 1000, false))
	require.True(t, tr.Delete(1000, 1000))
	require.Equal(t, before, tr.String())
	tr.CheckInvariants()
}

func TestRandomOperations(t *testing.T) {
	const (
		numOps   = 20000
		keySpace = 500
		valSpace = 8
	)
	rng := rand.New(rand.NewPCG(0, uint64(numOps)))
	tr := newIntTree()
	model := make(map[int]map[int]bool)

	modelHas := func(k, v int) bool { return model[k][v] }
	modelAdd := func(k, v int) {
		if model[k] == nil {
			model[k] = make(map[int]bool)
		}
		model[k][v] = true
	}
	modelDel := func(k, v int) {
		delete(model[k], v)
		if len(model[k]) == 0 {
			delete(model, k)
		}
	}

	live := 0
	for i := 0; i < numOps; i++ {
		k := rng.IntN(keySpace)
		v := rng.IntN(valSpace)
		switch rng.IntN(3) {
		case 0, 1:
			want := !modelHas(k, v)
			require.Equal(t, want, tr.Insert(k, v, false), "insert (%d, %d)", k, v)
			if want {
				modelAdd(k, v)
				live++
			}
		case 2:
			want := modelHas(k, v)
			require.Equal(t, want, tr.Delete(k, v), "delete (%d, %d)", k, v)
			if want {
				modelDel(k, v)
				live--
			}
		}
		if i%1000 == 0 {
			tr.CheckInvariants()
		}
	}
	tr.CheckInvariants()
	require.Equal(t, live, tr.Count())

	keys := make([]int, 0, len(model))
	for k := range model {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		want := make([]int, 0, len(model[k]))
		for v := range model[k] {
			want = append(want, v)
		}
		slices.Sort(want)
		require.Equal(t, want, sortedValues(tr, k), "key %d", k)
	}

	// Iteration visits each key once per stored value, in ascending key order.
	var gotKeys []int
	it := tr.NewIter()
	for it.First(); it.Valid(); it.Next() {
		gotKeys = append(gotKeys, it.Key())
	}
	var wantKeys []int
	for _, k := range keys {
		for range model[k] {
			wantKeys = append(wantKeys, k)
		}
	}
	require.Equal(t, wantKeys, gotKeys)
}

func TestUniqueUnderSplits(t *testing.T) {
	tr := newIntTree()
	insertSeq(t, tr, 0, 100)
	// Every occupied key refuses a unique insert regardless of which leaf it
	// landed in.
	for k := 0; k < 100; k++ {
		require.False(t, tr.Insert(k, k+1000, true), "key %d", k)
	}
	require.Equal(t, 100, tr.Count())
}

func TestHeapUsage(t *testing.T) {
	tr := newIntTree()
	require.Equal(t, uint64(0), tr.HeapUsage())

	var last uint64
	for k := 0; k < 200; k++ {
		require.True(t, tr.Insert(k, k, false))
		if k%50 == 49 {
			u := tr.HeapUsage()
			require.Greater(t, u, last)
			last = u
		}
	}
}

func TestHeightAccounting(t *testing.T) {
	tr := newIntTree()
	for k := 0; k < 1000; k++ {
		require.True(t, tr.Insert(k, k, false))
	}
	// Height matches the length of the leftmost-child chain.
	h := 0
	for n := tr.root.Load(); n != nil; {
		h++
		if n.leaf {
			break
		}
		n = n.asInner().children[0]
	}
	require.Equal(t, h, tr.Height())
}

func TestMetricsAndEvents(t *testing.T) {
	var splits, collapses int
	cfg := Config[int, int]{
		Compare:    stdcmp.Compare[int],
		ValueEqual: func(a, b int) bool { return a == b },
		ValueHash:  func(v int) uint64 { return uint64(v) },
		EventListener: EventListener{
			RootSplit:    func(info RootSplitInfo) { splits++ },
			RootCollapse: func(info RootCollapseInfo) { collapses++ },
		},
	}
	tr := New(cfg)
	for k := 0; k < 10; k++ {
		require.True(t, tr.Insert(k, k, false))
	}
	require.Equal(t, 1, splits)
	m := tr.Metrics()
	require.Equal(t, int64(1), m.RootSplits)
	require.Equal(t, int64(1), m.LeafSplits)
	require.Equal(t, int64(10), m.Count)
	require.Equal(t, 2, m.Height)
	require.NotEmpty(t, m.String())

	for k := 0; k < 10; k++ {
		require.True(t, tr.Delete(k, k))
	}
	// One collapse from inner root to leaf, one from emptying the root leaf.
	require.Equal(t, 2, collapses)
	require.Equal(t, int64(2), tr.Metrics().RootCollapses)
}

func TestEventInfoFormatting(t *testing.T) {
	require.Equal(t, "root split (height now 3)", RootSplitInfo{NewHeight: 3}.String())
	require.Equal(t, "root collapse (height now 0)", RootCollapseInfo{NewHeight: 0}.String())
}

func TestBytesConfig(t *testing.T) {
	tr := New(DefaultBytesConfig())
	for i := 0; i < 100; i++ {
		key := []byte(fmt.Sprintf("key-%03d", i))
		require.True(t, tr.Insert(key, []byte{byte(i)}, false))
	}
	tr.CheckInvariants()
	require.Equal(t, [][]byte{{42}}, tr.GetValue([]byte("key-042"), nil))
	require.False(t, tr.Insert([]byte("key-007"), []byte{7}, false))
	require.True(t, tr.Delete([]byte("key-007"), []byte{7}))
	require.Empty(t, tr.GetValue([]byte("key-007"), nil))
}
