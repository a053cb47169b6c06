// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/cockroachdb/bptree"
	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/swiss"
	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "run a concurrent read/write workload against a tree",
	Long: `
Runs a mixed workload of point lookups, inserts, and deletes from concurrent
workers over disjoint key regions, then verifies the tree against an oracle
map and checks its structural invariants.
`,
	RunE: runBench,
}

const (
	minLatency = 10 * time.Nanosecond
	maxLatency = 10 * time.Second
)

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(minLatency.Nanoseconds(), maxLatency.Nanoseconds(), 1)
}

// namedHistogram is a latency histogram for one operation type, safe for
// concurrent recording.
type namedHistogram struct {
	name string
	mu   struct {
		sync.Mutex
		h *hdrhistogram.Histogram
	}
}

func newNamedHistogram(name string) *namedHistogram {
	w := &namedHistogram{name: name}
	w.mu.h = newHistogram()
	return w
}

func (w *namedHistogram) record(elapsed time.Duration) {
	if elapsed < minLatency {
		elapsed = minLatency
	} else if elapsed > maxLatency {
		elapsed = maxLatency
	}
	w.mu.Lock()
	err := w.mu.h.RecordValue(elapsed.Nanoseconds())
	w.mu.Unlock()
	if err != nil {
		panic(err)
	}
}

func encodeKey(k uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, k)
	return b
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg := bptree.DefaultBytesConfig()
	if verbose {
		cfg.EventListener = bptree.MakeLoggingEventListener(bptree.DefaultLogger{})
	}
	tree := bptree.New(cfg)

	reads := newNamedHistogram("read")
	inserts := newNamedHistogram("insert")
	deletes := newNamedHistogram("delete")

	var opCount atomic.Int64
	var samples []float64
	stopSampling := make(chan struct{})
	var samplerDone sync.WaitGroup
	samplerDone.Add(1)
	go func() {
		defer samplerDone.Done()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		last := int64(0)
		for {
			select {
			case <-stopSampling:
				return
			case <-ticker.C:
				cur := opCount.Load()
				samples = append(samples, float64(cur-last))
				last = cur
			}
		}
	}()

	// Each worker owns a disjoint slice of the key space and toggles pairs
	// within it, so the final expected contents are known per worker and can
	// be folded into one oracle map.
	oracle := &swiss.Map[uint64, bool]{}
	oracle.Init(numKeys)
	var oracleMu sync.Mutex

	start := crtime.NowMono()
	var g errgroup.Group
	for w := 0; w < concurrency; w++ {
		base := uint64(w * numKeys / concurrency)
		limit := uint64((w + 1) * numKeys / concurrency)
		rng := rand.New(rand.NewPCG(uint64(w), 0))
		g.Go(func() error {
			present := make(map[uint64]bool)
			for i := 0; i < numOps; i++ {
				k := base + uint64(rng.Int64N(int64(limit-base)))
				key := encodeKey(k)
				opStart := crtime.NowMono()
				switch {
				case int(rng.Int64N(100)) < readPercent:
					got := tree.GetValue(key, nil)
					if want := present[k]; want != (len(got) == 1) {
						return fmt.Errorf("key %d: present=%t, got %d values", k, want, len(got))
					}
					reads.record(opStart.Elapsed())
				case present[k]:
					if !tree.Delete(key, key) {
						return fmt.Errorf("delete %d failed", k)
					}
					present[k] = false
					deletes.record(opStart.Elapsed())
				default:
					if !tree.Insert(key, key, false) {
						return fmt.Errorf("insert %d failed", k)
					}
					present[k] = true
					inserts.record(opStart.Elapsed())
				}
				opCount.Add(1)
			}
			oracleMu.Lock()
			for k, p := range present {
				if p {
					oracle.Put(k, true)
				}
			}
			oracleMu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	elapsed := start.Elapsed()
	close(stopSampling)
	samplerDone.Wait()
	if err != nil {
		return err
	}

	// Verify every surviving pair against the oracle, then the structure.
	verifyStart := crtime.NowMono()
	expected := 0
	var verifyErr error
	oracle.All(func(k uint64, _ bool) bool {
		expected++
		if got := tree.GetValue(encodeKey(k), nil); len(got) != 1 {
			verifyErr = fmt.Errorf("key %d: expected present, got %d values", k, len(got))
			return false
		}
		return true
	})
	if verifyErr != nil {
		return verifyErr
	}
	if got := tree.Count(); got != expected {
		return fmt.Errorf("tree holds %d pairs, oracle holds %d", got, expected)
	}
	tree.CheckInvariants()

	totalOps := opCount.Load()
	fmt.Printf("ran %s ops in %s (%s ops/sec); verified %s pairs in %s\n",
		crhumanize.Count(totalOps, crhumanize.Compact),
		elapsed.Round(time.Millisecond),
		crhumanize.Count(int64(float64(totalOps)/elapsed.Seconds()), crhumanize.Compact),
		crhumanize.Count(expected, crhumanize.Compact),
		verifyStart.Elapsed().Round(time.Millisecond))
	fmt.Printf("%s\n\n", tree.Metrics())

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"op", "count", "p50", "p95", "p99", "max"})
	for _, w := range []*namedHistogram{reads, inserts, deletes} {
		h := w.mu.h
		table.Append([]string{
			w.name,
			fmt.Sprint(h.TotalCount()),
			time.Duration(h.ValueAtQuantile(50)).String(),
			time.Duration(h.ValueAtQuantile(95)).String(),
			time.Duration(h.ValueAtQuantile(99)).String(),
			time.Duration(h.Max()).String(),
		})
	}
	table.Render()

	if len(samples) > 1 {
		fmt.Printf("\nops/sec\n%s\n", asciigraph.Plot(samples, asciigraph.Height(10)))
	}
	return nil
}
