// Copyright 2021 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package clock provides a context-injectable clock so that code which
// needs to read the current time (lib/retry's max-duration backoff, most
// notably) can be driven deterministically in tests.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock is the time source consulted by Now.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// System is the wall-clock Clock used whenever no other Clock is injected.
var System Clock = realClock{}

type contextKeyType struct{}

// NewContext returns a context carrying c, so that Now(ctx) returns c.Now().
func NewContext(ctx context.Context, c Clock) context.Context {
	return context.WithValue(ctx, contextKeyType{}, c)
}

// Now returns the current time according to the Clock stored in ctx, or the
// real wall-clock time if none was injected.
func Now(ctx context.Context) time.Time {
	if c, ok := ctx.Value(contextKeyType{}).(Clock); ok {
		return c.Now()
	}
	return time.Now()
}

// FakeClock is a manually-advanced Clock for deterministic tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock returns a FakeClock initialized to the real current time.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Now()}
}

// Now returns the fake clock's current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the fake clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
