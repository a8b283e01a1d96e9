// Copyright 2024 The Fluvio Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package mirror wires together the home-lookup, connector and sync
// subpackages into the supervisor loop that runs for the lifetime of one
// remote replica's mirroring relationship with its home cluster: find home,
// connect, sync until the connection drops, back off, repeat.
package mirror

import (
	"context"
	"time"

	"github.com/vaibhawvipul/fluvio/lib/logger"
	"github.com/vaibhawvipul/fluvio/lib/retry"
	"github.com/vaibhawvipul/fluvio/mirror/config"
	"github.com/vaibhawvipul/fluvio/mirror/connector"
	"github.com/vaibhawvipul/fluvio/mirror/lookup"
	"github.com/vaibhawvipul/fluvio/mirror/metrics"
	"github.com/vaibhawvipul/fluvio/mirror/replica"
	"github.com/vaibhawvipul/fluvio/mirror/sync"
)

// clusterLookupDelay is both the initial grace period given for the home
// cluster registry to populate at process start, and the re-poll interval
// used whenever the configured home cluster can't (yet) be found.
const clusterLookupDelay = 5 * time.Second

// Controller runs the outer find-home/connect/sync/backoff loop for a
// single local replica being mirrored to a single home cluster. Construct
// one with New and run it with Run or Start; the metrics.Controller returned
// by Start and Metrics is safe to read concurrently from an HTTP handler
// while Run executes.
type Controller struct {
	Leader    replica.Leader
	Registry  lookup.Registry
	Connector connector.Connector
	Config    config.RemotePartitionConfig
	MaxBytes  int
	Isolation replica.Isolation
	Log       *logger.Logger

	// NewBackoff constructs the backoff used after every ended sync
	// session; home-lookup misses wait LookupDelay instead. Tests
	// substitute a fast backoff here.
	NewBackoff func() retry.BackOff

	// LookupDelay overrides clusterLookupDelay. Tests substitute a short
	// delay here; production leaves it zero and gets the default.
	LookupDelay time.Duration

	metrics *metrics.Controller
}

// New returns a Controller ready to Run. log may be nil, in which case a
// disabled logger is used.
func New(leader replica.Leader, registry lookup.Registry, conn connector.Connector, cfg config.RemotePartitionConfig, maxBytes int, isolation replica.Isolation, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.NewLogger(logger.InfoLevel, nil, nil, nil, "")
	}
	return &Controller{
		Leader:    leader,
		Registry:  registry,
		Connector: conn,
		Config:    cfg,
		MaxBytes:  maxBytes,
		Isolation: isolation,
		Log:       log,
		NewBackoff: func() retry.BackOff {
			return retry.NewExponentialBackoff(time.Second, 300*time.Second, 2.0)
		},
		metrics: metrics.New(),
	}
}

// Metrics returns the controller's counters, readable concurrently with Run.
func (c *Controller) Metrics() *metrics.Controller { return c.metrics }

// Start spawns Run on its own goroutine and immediately returns the shared
// metrics handle, the shape a replica-activation caller wants: fire off the
// mirror relationship and keep only an observability handle to it. The
// goroutine runs until ctx is done.
func (c *Controller) Start(ctx context.Context) *metrics.Controller {
	go c.Run(ctx)
	return c.metrics
}

func (c *Controller) lookupDelay() time.Duration {
	if c.LookupDelay > 0 {
		return c.LookupDelay
	}
	return clusterLookupDelay
}

// Run executes the supervisor loop until ctx is done. The offset listener is
// created exactly once, before the first connection attempt, and reused
// across every reconnect: an offset change observed while disconnected must
// still be seen once a new connection comes up, which a listener recreated
// per-connection would miss.
func (c *Controller) Run(ctx context.Context) {
	listener := c.Leader.OffsetListener(c.Isolation)
	backoff := c.NewBackoff()

	c.Log.Debugf("initial delay to wait for home cluster to be ready")
	if !sleepOrDone(ctx, c.lookupDelay()) {
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}

		home, ok := lookup.Lookup(c.Registry, c.Config.HomeCluster)
		if !ok {
			c.Log.Warningf("home cluster %s not found, waiting %s", c.Config.HomeCluster, c.lookupDelay())
			if !sleepOrDone(ctx, c.lookupDelay()) {
				return
			}
			continue
		}

		c.metrics.IncLoopCount()
		c.Log.Debugf("found home cluster: %s", home.ID)

		sock, err := c.Connector.Connect(ctx, c.Config, home, c.metrics, c.Log)
		if err != nil {
			// Connect only fails via ctx cancellation; it retries
			// internally forever otherwise.
			return
		}

		err = c.syncOnce(ctx, home, listener, sock)
		sock.Close()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.Log.Errorf("error syncing mirror loop: %v", err)
		} else {
			c.Log.Infof("home closed connection, reconnecting")
		}
		// Both outcomes end the connection, so both back off before the
		// next lookup/connect pass; a home that closes cleanly in a tight
		// loop must not be re-dialed in one.
		c.backoffAndWait(ctx, backoff)
	}
}

// syncOnce runs a single connection's handshake and sync loop.
func (c *Controller) syncOnce(ctx context.Context, home lookup.Home, listener replica.OffsetListener, sock connector.Socket) error {
	session := &sync.Session{
		Leader:    c.Leader,
		Listener:  listener,
		Sock:      sock,
		Home:      home,
		Metrics:   c.metrics,
		Log:       c.Log,
		MaxBytes:  c.MaxBytes,
		Isolation: c.Isolation,
	}
	if err := session.Handshake(ctx); err != nil {
		return err
	}
	return session.Run(ctx)
}

func (c *Controller) backoffAndWait(ctx context.Context, backoff retry.BackOff) {
	wait := backoff.Next()
	if wait == retry.Stop {
		wait = 300 * time.Second
	}
	c.Log.Debugf("backing off, sleeping %s", wait)
	sleepOrDone(ctx, wait)
	c.Log.Debugf("resumed from backoff")
	c.metrics.IncConnectFailure()
}

// sleepOrDone waits for d or ctx to be done, reporting which happened.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
