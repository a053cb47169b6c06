// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

/*
Package bptree provides a concurrent, in-memory, multi-valued B+ tree: an
ordered index from caller-defined keys to sets of values, designed to sit
beneath a relational secondary index.

Keys are ordered by a caller-supplied comparator; values carry caller-supplied
equality and hash functions and are unique within a key. Point lookups,
inserts (with optional uniqueness or predicate guards), and deletes of exact
(key, value) pairs are linearizable and safe for concurrent use. Range scans
walk the doubly-linked leaf chain through an Iterator and require external
quiescence.

Concurrency follows the classic latch-crabbing protocol. Readers couple read
latches down the spine. Inserts first try an optimistic descent that
write-latches only the leaf; if the insert might split the leaf, they retry
with write latches down the spine. Deletes always descend with write latches.
A write-latched descent releases each ancestor as soon as the newly latched
descendant cannot propagate a structural change into it. The
root pointer is swapped under a dedicated latch when a split raises the tree
or a merge collapses it, and traversals re-verify the root after latching it.
*/
package bptree
