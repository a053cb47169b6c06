// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bptree

// valueEntry pairs a value with its user-provided hash. The hash is kept
// alongside the value so that set membership checks can reject unequal
// values without invoking the (potentially expensive) equality func, the
// same trick pebble's batchskl plays with abbreviated keys.
type valueEntry[V any] struct {
	hash uint64
	val  V
}

// valueSet is the set of values stored under a single leaf key. Values are
// unique under the user equality func. A leaf never retains an empty set;
// deletion of the last value removes the whole entry.
type valueSet[V any] struct {
	vals []valueEntry[V]
}

func (s *valueSet[V]) len() int {
	return len(s.vals)
}

// contains reports whether the set holds a value equal to v.
func (s *valueSet[V]) contains(eq func(V, V) bool, hash uint64, v V) bool {
	for i := range s.vals {
		if s.vals[i].hash == hash && eq(s.vals[i].val, v) {
			return true
		}
	}
	return false
}

// add appends v. The caller has already established absence via contains.
func (s *valueSet[V]) add(hash uint64, v V) {
	s.vals = append(s.vals, valueEntry[V]{hash: hash, val: v})
}

// remove deletes the value equal to v, reporting whether it was present.
func (s *valueSet[V]) remove(eq func(V, V) bool, hash uint64, v V) bool {
	for i := range s.vals {
		if s.vals[i].hash == hash && eq(s.vals[i].val, v) {
			s.vals[i] = s.vals[len(s.vals)-1]
			s.vals[len(s.vals)-1] = valueEntry[V]{}
			s.vals = s.vals[:len(s.vals)-1]
			return true
		}
	}
	return false
}

// any reports whether some value in the set satisfies pred.
func (s *valueSet[V]) any(pred func(V) bool) bool {
	for i := range s.vals {
		if pred(s.vals[i].val) {
			return true
		}
	}
	return false
}

// appendTo appends every value in the set to dst and returns the extended
// slice.
func (s *valueSet[V]) appendTo(dst []V) []V {
	for i := range s.vals {
		dst = append(dst, s.vals[i].val)
	}
	return dst
}
