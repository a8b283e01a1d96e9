// Copyright 2018 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package retry provides backoff strategies and a retry helper used to
// drive the reconnect-and-recover state machines in this repository.
package retry

import (
	"math/rand"
	"time"

	"github.com/vaibhawvipul/fluvio/lib/clock"
)

// Stop signals to the caller of Next that no more retries should be
// attempted.
const Stop time.Duration = -1

// BackOff computes successive delays to wait between retries.
type BackOff interface {
	// Next returns the duration to wait before the next retry, or Stop if
	// no more retries should be made.
	Next() time.Duration

	// Reset returns the BackOff to its initial state.
	Reset()
}

// ZeroBackoff always returns a zero delay, retrying immediately forever.
type ZeroBackoff struct{}

func (*ZeroBackoff) Next() time.Duration { return 0 }
func (*ZeroBackoff) Reset()              {}

// constantBackoff always waits the same fixed interval between retries.
type constantBackoff struct {
	interval time.Duration
}

// NewConstantBackoff returns a BackOff that always waits interval between
// retries.
func NewConstantBackoff(interval time.Duration) BackOff {
	return &constantBackoff{interval: interval}
}

func (b *constantBackoff) Next() time.Duration { return b.interval }
func (b *constantBackoff) Reset()              {}

// maxAttemptsBackoff wraps another BackOff and gives up after a fixed number
// of attempts. A maxAttempts of 0 means retry indefinitely.
type maxAttemptsBackoff struct {
	backOff     BackOff
	maxAttempts uint64
	attempt     uint64
}

// WithMaxAttempts wraps backOff so that the maxAttempts-th call to Next
// returns Stop, granting maxAttempts-1 retries. maxAttempts of 0 disables
// the limit.
func WithMaxAttempts(backOff BackOff, maxAttempts uint64) BackOff {
	return &maxAttemptsBackoff{backOff: backOff, maxAttempts: maxAttempts}
}

func (b *maxAttemptsBackoff) Next() time.Duration {
	// maxAttempts counts the total number of tries, including the one
	// already made before this BackOff is ever consulted; so only
	// maxAttempts-1 further retries are granted through Next.
	if b.maxAttempts > 0 && b.attempt >= b.maxAttempts-1 {
		return Stop
	}
	b.attempt++
	return b.backOff.Next()
}

func (b *maxAttemptsBackoff) Reset() {
	b.attempt = 0
	b.backOff.Reset()
}

// WithMaxRetries is an alias for WithMaxAttempts; maxRetries is interpreted
// exactly as maxAttempts is, so it counts the first try as well.
func WithMaxRetries(backOff BackOff, maxRetries uint64) BackOff {
	return WithMaxAttempts(backOff, maxRetries)
}

// maxDurationBackoff wraps another BackOff and gives up once maxDuration has
// elapsed since the last Reset. Its clock is lib/clock's, so tests drive it
// with a FakeClock.
type maxDurationBackoff struct {
	backOff     BackOff
	maxDuration time.Duration
	c           clock.Clock
	startTime   time.Time
}

// WithMaxDuration wraps backOff so that it stops once maxDuration has
// elapsed since the last Reset (or since construction).
func WithMaxDuration(backOff BackOff, maxDuration time.Duration) BackOff {
	b := &maxDurationBackoff{backOff: backOff, maxDuration: maxDuration, c: clock.System}
	b.Reset()
	return b
}

func (b *maxDurationBackoff) Next() time.Duration {
	if b.c.Now().Sub(b.startTime) >= b.maxDuration {
		return Stop
	}
	return b.backOff.Next()
}

func (b *maxDurationBackoff) Reset() {
	b.startTime = b.c.Now()
	b.backOff.Reset()
}

// exponentialBackoff doubles (or multiplies by an arbitrary factor) the
// delay on every call to Next, up to maxInterval, and randomizes each
// returned value below maxInterval within +/-50% to avoid thundering-herd
// reconnects; once the cap is reached, maxInterval is returned exactly.
type exponentialBackoff struct {
	initialInterval time.Duration
	maxInterval     time.Duration
	multiplier      float64
	currentInterval time.Duration
	rand            *rand.Rand
}

// NewExponentialBackoff returns a BackOff starting at initialInterval,
// growing by multiplier on every call to Next, capped at maxInterval.
func NewExponentialBackoff(initialInterval, maxInterval time.Duration, multiplier float64) BackOff {
	b := &exponentialBackoff{
		initialInterval: initialInterval,
		maxInterval:     maxInterval,
		multiplier:      multiplier,
		rand:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	b.Reset()
	return b
}

const randomizationFactor = 0.5

func (b *exponentialBackoff) Next() time.Duration {
	interval := b.currentInterval
	if interval > b.maxInterval {
		interval = b.maxInterval
	}

	next := b.currentInterval
	next = time.Duration(float64(next) * b.multiplier)
	if next > b.maxInterval {
		next = b.maxInterval
	}
	b.currentInterval = next

	if interval >= b.maxInterval {
		return b.maxInterval
	}
	return b.randomize(interval)
}

func (b *exponentialBackoff) randomize(interval time.Duration) time.Duration {
	delta := randomizationFactor * float64(interval)
	min := float64(interval) - delta
	max := float64(interval) + delta
	return time.Duration(min + (b.rand.Float64() * (max - min + 1)))
}

func (b *exponentialBackoff) Reset() {
	b.currentInterval = b.initialInterval
}

// noRetries never retries.
type noRetries struct{}

// NoRetries returns a BackOff that immediately signals Stop; useful in tests
// and for one-shot operations that share the Retry helper's plumbing.
func NoRetries() BackOff {
	return &noRetries{}
}

func (*noRetries) Next() time.Duration { return Stop }
func (*noRetries) Reset()              {}
