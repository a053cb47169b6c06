// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bptree

import (
	"bytes"
	"fmt"
	"log"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Logger defines an interface for writing log messages.
type Logger interface {
	Infof(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// DefaultLogger logs to the Go stdlib logs.
type DefaultLogger struct{}

// Infof implements the Logger.Infof interface.
func (DefaultLogger) Infof(format string, args ...interface{}) {
	_ = log.Output(2, fmt.Sprintf(format, args...))
}

// Fatalf implements the Logger.Fatalf interface.
func (DefaultLogger) Fatalf(format string, args ...interface{}) {
	_ = log.Output(2, fmt.Sprintf(format, args...))
	os.Exit(1)
}

// Config holds the user-supplied capabilities of a Tree. Compare and
// ValueEqual are required; the remaining fields have sane zero values filled
// in by EnsureDefaults.
//
// All key/value funcs must be deterministic and side-effect free.
type Config[K, V any] struct {
	// Compare defines a total ordering over keys: negative if a < b, zero if
	// the keys are equal, positive if a > b.
	Compare func(a, b K) int

	// ValueEqual reports whether two values are the same value. Values repeat
	// freely across distinct keys but never within one key's value set.
	ValueEqual func(a, b V) bool

	// ValueHash hashes a value. Hashes are stored next to values and used to
	// skip ValueEqual calls on definite mismatches. Optional; when nil every
	// value hashes to zero and membership checks fall back to ValueEqual
	// alone.
	ValueHash func(V) uint64

	// Logger defaults to DefaultLogger. The tree itself does not log through
	// it; MakeLoggingEventListener takes its own Logger argument.
	Logger Logger

	// EventListener receives notifications of structural transitions. Any nil
	// callback is filled with a no-op.
	EventListener EventListener
}

// EnsureDefaults fills unset optional fields with their defaults.
func (c *Config[K, V]) EnsureDefaults() {
	if c.ValueHash == nil {
		c.ValueHash = func(V) uint64 { return 0 }
	}
	if c.Logger == nil {
		c.Logger = DefaultLogger{}
	}
	c.EventListener.EnsureDefaults()
}

// DefaultBytesConfig returns a Config for byte-slice keys and values ordered
// bytewise, with values hashed by xxhash.
func DefaultBytesConfig() Config[[]byte, []byte] {
	return Config[[]byte, []byte]{
		Compare:    bytes.Compare,
		ValueEqual: bytes.Equal,
		ValueHash:  xxhash.Sum64,
	}
}
