// Copyright 2024 The Fluvio Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package metrics holds the atomic counters/gauges a running mirror
// controller exposes to external observers, using the sync/atomic counter
// idiom.
package metrics

import (
	"sync/atomic"

	"github.com/vaibhawvipul/fluvio/mirror/replica"
)

// Controller is the shared, interior-mutable state a running controller
// exposes to both its own supervisor loop and external readers.
//
// All four fields are sync/atomic values, whose operations are sequentially
// consistent in Go. That ordering matters for HomeLeo: it's a causal
// handshake value, written by the sync loop and read by anything deciding
// whether the controller has caught its home peer up. The other three
// counters are purely observational.
type Controller struct {
	loopCount      atomic.Int64
	connectCount   atomic.Int64
	connectFailure atomic.Int64
	homeLeo        atomic.Int64
}

// New returns a Controller with HomeLeo initialized to replica.UnknownOffset,
// per this subsystem's invariant that a freshly started process has not yet
// learned its home peer's position.
func New() *Controller {
	c := &Controller{}
	c.homeLeo.Store(int64(replica.UnknownOffset))
	return c
}

// IncLoopCount records one pass through the supervisor's lookup-connect-sync
// outer loop.
func (c *Controller) IncLoopCount() { c.loopCount.Add(1) }

// LoopCount returns the number of outer supervisor iterations so far.
func (c *Controller) LoopCount() int64 { return c.loopCount.Load() }

// IncConnectCount records a connection attempt (Connector) or a sync-loop
// event iteration. Both call sites share this counter; dashboards already
// read it that way, so the two are not being split apart.
func (c *Controller) IncConnectCount() { c.connectCount.Add(1) }

// ConnectCount returns the current connect/event counter.
func (c *Controller) ConnectCount() int64 { return c.connectCount.Load() }

// IncConnectFailure records a failed connection attempt (Connector) or a
// supervisor backoff after a sync session ended, whether by error or by the
// home closing the connection.
func (c *Controller) IncConnectFailure() { c.connectFailure.Add(1) }

// ConnectFailure returns the number of failed connects and post-session
// backoffs so far.
func (c *Controller) ConnectFailure() int64 { return c.connectFailure.Load() }

// SetHomeLeo stores the home peer's last-announced log-end-offset.
func (c *Controller) SetHomeLeo(leo replica.Offset) { c.homeLeo.Store(int64(leo)) }

// HomeLeo loads the home peer's log-end-offset as last stored by the sync
// loop, or replica.UnknownOffset if none has been announced yet in this
// process's lifetime. An announcement equal to the leader's own leo is not
// stored unless it is the first one, so after a catch-up this holds the last
// offset at which the home peer was behind.
func (c *Controller) HomeLeo() replica.Offset { return replica.Offset(c.homeLeo.Load()) }

// Snapshot is a point-in-time, JSON-friendly copy of all four fields, used
// by the HTTP metrics endpoint.
type Snapshot struct {
	LoopCount      int64 `json:"loop_count"`
	ConnectCount   int64 `json:"connect_count"`
	ConnectFailure int64 `json:"connect_failure"`
	HomeLeo        int64 `json:"home_leo"`
}

// Snapshot takes a consistent-enough-for-observability copy of c's counters.
// The four loads are independent, so a reader could in principle observe a
// torn view across fields; that's acceptable for a metrics surface. Only
// HomeLeo's own ordering matters, not cross-field consistency.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		LoopCount:      c.LoopCount(),
		ConnectCount:   c.ConnectCount(),
		ConnectFailure: c.ConnectFailure(),
		HomeLeo:        int64(c.HomeLeo()),
	}
}
