// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bptree

import (
	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/redact"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a snapshot of tree statistics: live contents plus cumulative
// counts of structural operations since the tree was created.
type Metrics struct {
	// Count is the number of live (key, value) pairs.
	Count int64
	// Height is the number of levels; 0 for an empty tree.
	Height int
	// HeapUsage approximates the bytes of heap reachable from the tree.
	HeapUsage uint64

	// LeafSplits and InnerSplits count node splits by node kind.
	LeafSplits  int64
	InnerSplits int64
	// Borrows counts entries moved between siblings to fix an underflow.
	Borrows int64
	// Coalesces counts sibling merges.
	Coalesces int64
	// RootSplits and RootCollapses count height changes.
	RootSplits    int64
	RootCollapses int64
}

// Metrics returns a snapshot of the tree's statistics. The snapshot is not
// atomic with respect to concurrent mutations; individual fields are
// internally consistent but may reflect slightly different instants.
func (t *Tree[K, V]) Metrics() Metrics {
	return Metrics{
		Count:         t.count.Load(),
		Height:        int(t.height.Load()),
		HeapUsage:     t.HeapUsage(),
		LeafSplits:    t.stats.leafSplits.Load(),
		InnerSplits:   t.stats.innerSplits.Load(),
		Borrows:       t.stats.borrows.Load(),
		Coalesces:     t.stats.coalesces.Load(),
		RootSplits:    t.stats.rootSplits.Load(),
		RootCollapses: t.stats.rootCollapses.Load(),
	}
}

func (m Metrics) String() string {
	return redact.StringWithoutMarkers(m)
}

// SafeFormat implements redact.SafeFormatter.
func (m Metrics) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("pairs: %s (%s)  height: %d\n",
		crhumanize.Count(m.Count, crhumanize.Compact),
		crhumanize.Bytes(m.HeapUsage, crhumanize.Compact, crhumanize.OmitI),
		redact.Safe(m.Height))
	w.Printf("splits: %s leaf, %s inner  borrows: %s  coalesces: %s  root: +%s/-%s",
		crhumanize.Count(m.LeafSplits, crhumanize.Compact),
		crhumanize.Count(m.InnerSplits, crhumanize.Compact),
		crhumanize.Count(m.Borrows, crhumanize.Compact),
		crhumanize.Count(m.Coalesces, crhumanize.Compact),
		crhumanize.Count(m.RootSplits, crhumanize.Compact),
		crhumanize.Count(m.RootCollapses, crhumanize.Compact))
}

var (
	promPairsDesc = prometheus.NewDesc(
		"bptree_pairs", "Number of live (key, value) pairs.", nil, nil)
	promHeightDesc = prometheus.NewDesc(
		"bptree_height", "Number of levels in the tree.", nil, nil)
	promHeapUsageDesc = prometheus.NewDesc(
		"bptree_heap_usage_bytes", "Approximate heap bytes reachable from the tree.", nil, nil)
	promLeafSplitsDesc = prometheus.NewDesc(
		"bptree_leaf_splits_total", "Cumulative leaf node splits.", nil, nil)
	promInnerSplitsDesc = prometheus.NewDesc(
		"bptree_inner_splits_total", "Cumulative inner node splits.", nil, nil)
	promBorrowsDesc = prometheus.NewDesc(
		"bptree_borrows_total", "Cumulative sibling borrows.", nil, nil)
	promCoalescesDesc = prometheus.NewDesc(
		"bptree_coalesces_total", "Cumulative sibling coalesces.", nil, nil)
	promRootSplitsDesc = prometheus.NewDesc(
		"bptree_root_splits_total", "Cumulative root splits.", nil, nil)
	promRootCollapsesDesc = prometheus.NewDesc(
		"bptree_root_collapses_total", "Cumulative root collapses.", nil, nil)
)

// MetricsCollector adapts a Tree to the prometheus.Collector interface.
type MetricsCollector[K, V any] struct {
	t *Tree[K, V]
}

// NewMetricsCollector returns a prometheus.Collector exporting the tree's
// Metrics. Note that every scrape walks the tree to account heap usage; see
// Tree.HeapUsage.
func NewMetricsCollector[K, V any](t *Tree[K, V]) *MetricsCollector[K, V] {
	return &MetricsCollector[K, V]{t: t}
}

var _ prometheus.Collector = (*MetricsCollector[int, int])(nil)

// Describe implements prometheus.Collector.
func (c *MetricsCollector[K, V]) Describe(ch chan<- *prometheus.Desc) {
	ch <- promPairsDesc
	ch <- promHeightDesc
	ch <- promHeapUsageDesc
	ch <- promLeafSplitsDesc
	ch <- promInnerSplitsDesc
	ch <- promBorrowsDesc
	ch <- promCoalescesDesc
	ch <- promRootSplitsDesc
	ch <- promRootCollapsesDesc
}

// Collect implements prometheus.Collector.
func (c *MetricsCollector[K, V]) Collect(ch chan<- prometheus.Metric) {
	m := c.t.Metrics()
	ch <- prometheus.MustNewConstMetric(promPairsDesc, prometheus.GaugeValue, float64(m.Count))
	ch <- prometheus.MustNewConstMetric(promHeightDesc, prometheus.GaugeValue, float64(m.Height))
	ch <- prometheus.MustNewConstMetric(promHeapUsageDesc, prometheus.GaugeValue, float64(m.HeapUsage))
	ch <- prometheus.MustNewConstMetric(promLeafSplitsDesc, prometheus.CounterValue, float64(m.LeafSplits))
	ch <- prometheus.MustNewConstMetric(promInnerSplitsDesc, prometheus.CounterValue, float64(m.InnerSplits))
	ch <- prometheus.MustNewConstMetric(promBorrowsDesc, prometheus.CounterValue, float64(m.Borrows))
	ch <- prometheus.MustNewConstMetric(promCoalescesDesc, prometheus.CounterValue, float64(m.Coalesces))
	ch <- prometheus.MustNewConstMetric(promRootSplitsDesc, prometheus.CounterValue, float64(m.RootSplits))
	ch <- prometheus.MustNewConstMetric(promRootCollapsesDesc, prometheus.CounterValue, float64(m.RootCollapses))
}
