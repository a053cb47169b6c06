// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bptree

import "github.com/cockroachdb/redact"

// RootSplitInfo contains the info for a root split event. A root split raises
// the height of the tree by one.
type RootSplitInfo struct {
	// NewHeight is the height of the tree after the split.
	NewHeight int
}

func (i RootSplitInfo) String() string {
	return redact.StringWithoutMarkers(i)
}

// SafeFormat implements redact.SafeFormatter.
func (i RootSplitInfo) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("root split (height now %d)", redact.Safe(i.NewHeight))
}

// RootCollapseInfo contains the info for a root collapse event: the root was
// replaced by its only child, or the last entry of a root leaf was deleted.
type RootCollapseInfo struct {
	// NewHeight is the height of the tree after the collapse; zero if the
	// tree is now empty.
	NewHeight int
}

func (i RootCollapseInfo) String() string {
	return redact.StringWithoutMarkers(i)
}

// SafeFormat implements redact.SafeFormatter.
func (i RootCollapseInfo) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("root collapse (height now %d)", redact.Safe(i.NewHeight))
}

// EventListener contains a set of functions that will be invoked when
// structural events occur on a Tree. The callbacks run on the mutating
// goroutine while node latches are still held, so they must not re-enter the
// tree and must be cheap.
type EventListener struct {
	// RootSplit is invoked after a split propagates all the way to the root.
	RootSplit func(RootSplitInfo)

	// RootCollapse is invoked after a deletion lowers the height of the tree.
	RootCollapse func(RootCollapseInfo)
}

// EnsureDefaults fills any unspecified handler with a no-op.
func (l *EventListener) EnsureDefaults() {
	if l.RootSplit == nil {
		l.RootSplit = func(RootSplitInfo) {}
	}
	if l.RootCollapse == nil {
		l.RootCollapse = func(RootCollapseInfo) {}
	}
}

// MakeLoggingEventListener creates an EventListener that logs all events to
// the specified logger.
func MakeLoggingEventListener(logger Logger) EventListener {
	if logger == nil {
		logger = DefaultLogger{}
	}
	return EventListener{
		RootSplit: func(info RootSplitInfo) {
			logger.Infof("%s", info)
		},
		RootCollapse: func(info RootCollapseInfo) {
			logger.Infof("%s", info)
		},
	}
}
