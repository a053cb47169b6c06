// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var (
	concurrency int
	numOps      int
	numKeys     int
	readPercent int
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "bptree [command] (flags)",
	Short: "bptree benchmarking/introspection tool",
	Long:  ``,
}

func main() {
	log.SetFlags(0)

	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		benchCmd,
		demoCmd,
	)

	benchCmd.Flags().IntVarP(
		&concurrency, "concurrency", "c", 8, "number of concurrent workers")
	benchCmd.Flags().IntVarP(
		&numOps, "num-ops", "n", 200000, "number of operations per worker")
	benchCmd.Flags().IntVar(
		&numKeys, "keys", 100000, "size of the key space")
	benchCmd.Flags().IntVar(
		&readPercent, "read-percent", 75, "percentage of operations that are reads")
	benchCmd.Flags().BoolVarP(
		&verbose, "verbose", "v", false, "enable verbose event logging")

	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error message.
		os.Exit(1)
	}
}
