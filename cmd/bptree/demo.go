// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	stdcmp "cmp"
	"fmt"

	"github.com/cockroachdb/bptree"
	"github.com/spf13/cobra"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "walk through the structural transitions of a small tree",
	RunE:  runDemo,
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg := bptree.Config[int, int]{
		Compare:       stdcmp.Compare[int],
		ValueEqual:    func(a, b int) bool { return a == b },
		ValueHash:     func(v int) uint64 { return uint64(v) },
		EventListener: bptree.MakeLoggingEventListener(bptree.DefaultLogger{}),
	}
	tree := bptree.New(cfg)

	dump := func(what string) {
		fmt.Printf("%-32s %s   (height=%d)\n", what+":", tree, tree.Height())
	}

	for k := 0; k < 9; k++ {
		tree.Insert(k, k, false)
	}
	dump("nine keys fit in the root leaf")

	tree.Insert(9, 9, false)
	dump("the tenth key splits the root")

	for k := 10; k < 21; k++ {
		tree.Insert(k, k, false)
	}
	dump("sequential fill")

	tree.Delete(20, 20)
	tree.Delete(19, 19)
	dump("deletes at the right edge")

	tree.Delete(0, 0)
	dump("underflow coalesces two leaves")

	for k := 1; k < 15; k++ {
		tree.Delete(k, k)
	}
	dump("draining coalesces leaves")

	for k := 15; k < 19; k++ {
		tree.Delete(k, k)
	}
	dump("the last delete empties the tree")

	fmt.Printf("\n%s\n", tree.Metrics())
	tree.CheckInvariants()
	return nil
}
