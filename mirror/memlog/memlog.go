// Copyright 2024 The Fluvio Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package memlog provides an in-memory, append-only replica.Leader used by
// this repository's tests and by cmd/spumirrord's demo mode. Durable
// storage, segment rolling and recovery all belong to the real replica
// leader this subsystem mirrors from; this package exists only to give the
// sync protocol something to read from and wake up on without a real SPU.
package memlog

import (
	"context"
	"sync"

	"github.com/vaibhawvipul/fluvio/mirror/replica"
)

// Log is a single partition's append-only byte log, held entirely in
// memory. A zero Log is not valid; use New.
type Log struct {
	mu  sync.Mutex
	id  replica.ReplicaKey
	buf []byte
	hw  replica.Offset

	// wake is closed and replaced every time Leo or Hw advances, the
	// standard "close a channel to broadcast" idiom for waking an
	// arbitrary number of waiters without a sync.Cond's goroutine-
	// ownership caveats (Cond.Wait cannot be selected on or canceled by a
	// context, which OffsetListener.Listen requires).
	wake chan struct{}
}

// New returns an empty Log for id. hw defaults to 0, matching an append-only
// log that starts out fully committed (there is nothing yet to commit).
func New(id replica.ReplicaKey) *Log {
	return &Log{id: id, wake: make(chan struct{})}
}

func (l *Log) ID() replica.ReplicaKey { return l.id }

func (l *Log) Leo() replica.Offset {
	l.mu.Lock()
	defer l.mu.Unlock()
	return replica.Offset(len(l.buf))
}

func (l *Log) EndOffsets() replica.EndOffsets {
	l.mu.Lock()
	defer l.mu.Unlock()
	return replica.EndOffsets{Leo: replica.Offset(len(l.buf)), Hw: l.hw}
}

// Append adds records to the end of the log and advances the high watermark
// to match, then wakes any blocked listeners. Real replicas only move the
// high watermark once a write is acknowledged by a quorum; this in-memory
// stand-in has no followers to wait on, so every append is immediately
// committed.
func (l *Log) Append(records []byte) {
	l.mu.Lock()
	l.buf = append(l.buf, records...)
	l.hw = replica.Offset(len(l.buf))
	old := l.wake
	l.wake = make(chan struct{})
	l.mu.Unlock()
	close(old)
}

// ReadRecords returns up to maxBytes bytes starting at start. isolation is
// accepted for interface conformance; this log has no uncommitted tail
// distinct from its high watermark (see Append), so both isolation levels
// read identically.
func (l *Log) ReadRecords(_ context.Context, start replica.Offset, maxBytes int, _ replica.Isolation) (replica.ReadResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	end := replica.EndOffsets{Leo: replica.Offset(len(l.buf)), Hw: l.hw}
	if !start.Known() || int(start) >= len(l.buf) {
		return replica.ReadResult{End: end, Slice: []byte{}}, nil
	}
	stop := int(start) + maxBytes
	if stop > len(l.buf) {
		stop = len(l.buf)
	}
	out := make([]byte, stop-int(start))
	copy(out, l.buf[int(start):stop])
	return replica.ReadResult{End: end, Slice: out}, nil
}

// OffsetListener returns a listener that wakes on every Append, regardless
// of isolation: this log has no distinct committed/uncommitted boundary.
func (l *Log) OffsetListener(_ replica.Isolation) replica.OffsetListener {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &logListener{log: l, ch: l.wake}
}

type logListener struct {
	log *Log
	// ch is the wake channel current at creation or at the last successful
	// Listen, so an Append made between Listen calls is not missed.
	ch chan struct{}
}

func (w *logListener) Listen(ctx context.Context) error {
	select {
	case <-w.ch:
		w.log.mu.Lock()
		w.ch = w.log.wake
		w.log.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ replica.Leader = (*Log)(nil)
