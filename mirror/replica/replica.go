// Copyright 2024 The Fluvio Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package replica declares the contract the mirror controller consumes from
// the local partition leader. The leader itself — the durable log, its
// high-watermark bookkeeping, and its offset-change notifications — lives
// outside this repository; this package only pins down the shape the
// controller programs against, plus an in-memory implementation
// (mirror/memlog) used for tests and the demo binary.
package replica

import (
	"context"
	"fmt"
)

// Offset names a position in an append-only log. UnknownOffset is the
// sentinel used before a value has ever been observed; all other values are
// non-negative and monotonically non-decreasing over a replica's lifetime.
type Offset int64

// UnknownOffset is the "no value yet" sentinel. A tagged union would be the
// natural fit here, but the value is stored in an atomic.Int64 alongside the
// controller's other counters, so it is kept as an in-band sentinel instead.
const UnknownOffset Offset = -1

// Known reports whether o is a real offset rather than UnknownOffset.
func (o Offset) Known() bool { return o >= 0 }

func (o Offset) String() string {
	if !o.Known() {
		return "unknown"
	}
	return fmt.Sprintf("%d", int64(o))
}

// EndOffsets bundles a replica's log-end-offset and high-watermark as
// observed together, avoiding a torn read between the two.
type EndOffsets struct {
	Leo Offset
	Hw  Offset
}

// ReplicaKey identifies a single partition of a topic.
type ReplicaKey struct {
	Topic     string
	Partition int32
}

func (k ReplicaKey) String() string {
	return fmt.Sprintf("%s-%d", k.Topic, k.Partition)
}

// Isolation selects whether an OffsetListener fires on high-watermark or
// log-end-offset changes.
type Isolation int

const (
	// ReadCommitted wakes the listener only when the high watermark moves.
	ReadCommitted Isolation = iota
	// ReadUncommitted wakes the listener whenever the log-end-offset moves,
	// even for records not yet known to be durably committed.
	ReadUncommitted
)

func (i Isolation) String() string {
	if i == ReadUncommitted {
		return "read_uncommitted"
	}
	return "read_committed"
}

// ReadResult is the outcome of a bounded read from the log.
type ReadResult struct {
	End EndOffsets
	// Slice is the raw bytes read, starting at the requested offset,
	// capped at the requested byte budget. It is empty (not nil) when
	// there was nothing to read, which is a legal, non-error outcome.
	Slice []byte
}

// OffsetListener is woken whenever the leader's log-end-offset or
// high-watermark — whichever the configured Isolation selects — changes.
type OffsetListener interface {
	// Listen blocks until the offset has changed since the listener was
	// created (or since the last successful Listen call), or until ctx is
	// done.
	Listen(ctx context.Context) error
}

// Leader is the read-only contract the mirror controller consumes from the
// replica it is mirroring. Implementations live outside this subsystem; see
// mirror/memlog for a test/demo implementation of an append-only log backing
// one.
type Leader interface {
	// ID identifies the replica this Leader serves.
	ID() ReplicaKey

	// Leo returns the current log-end-offset.
	Leo() Offset

	// EndOffsets returns the current (leo, hw) pair as a single
	// consistent snapshot.
	EndOffsets() EndOffsets

	// OffsetListener returns a listener that wakes on changes to the
	// offset selected by isolation.
	OffsetListener(isolation Isolation) OffsetListener

	// ReadRecords reads up to maxBytes bytes starting at start, subject to
	// isolation, returning the end offsets observed at read time alongside
	// the bytes read.
	ReadRecords(ctx context.Context, start Offset, maxBytes int, isolation Isolation) (ReadResult, error)
}
