// Copyright 2024 The Fluvio Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package connector establishes the outbound connection to a home peer,
// retrying with backoff until it succeeds. Connect never fails outright —
// it returns once a socket is in hand, or without one only when its context
// is done — matching the supervisor's loop-until-success contract.
package connector

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/vaibhawvipul/fluvio/lib/logger"
	"github.com/vaibhawvipul/fluvio/lib/retry"
	"github.com/vaibhawvipul/fluvio/mirror/config"
	"github.com/vaibhawvipul/fluvio/mirror/lookup"
	"github.com/vaibhawvipul/fluvio/mirror/metrics"
	"github.com/vaibhawvipul/fluvio/mirror/wire"
)

// Socket is a freshly connected, not-yet-handshaked connection to a home
// peer, split into its sink and stream halves.
type Socket interface {
	Sink() wire.Sink
	Stream() wire.Stream
	// TLS reports whether this connection negotiated TLS.
	TLS() bool
	Close() error
}

// Connector dials a home peer, retrying with backoff until it succeeds.
type Connector interface {
	// Connect never returns an error: on failure it backs off and retries
	// indefinitely until ctx is done, in which case it returns a nil
	// Socket and ctx.Err().
	Connect(ctx context.Context, cfg config.RemotePartitionConfig, home lookup.Home, m *metrics.Controller, log *logger.Logger) (Socket, error)

	// NewStream wraps a raw net.Conn into a Socket, applying the sink/
	// stream split and codec. Exposed separately from Connect so tests can
	// drive an in-memory net.Pipe() through the same wrapping logic.
	NewStream(conn net.Conn, tlsEnabled bool) Socket
}

// dialTimeout bounds a single connection attempt; backoff governs the delay
// between attempts, not the attempt itself.
const dialTimeout = 10 * time.Second

// TCPConnector dials cfg.HomeSPUEndpoint directly over TCP, or TLS-over-TCP
// when cfg.TLS is set. The home descriptor is accepted but only its RemoteID
// is used, for logging; the endpoint always comes from cfg, not from home.
// TODO: decide whether the endpoint should instead be derived from the home
// descriptor once cluster re-homing lands.
type TCPConnector struct {
	// NewBackoff constructs a fresh backoff for each Connect call; tests
	// substitute a fast backoff here.
	NewBackoff func() retry.BackOff
	// Wrap constructs the Socket around a freshly dialed net.Conn. Tests
	// substitute an in-memory codec; production wires in the real wire
	// encoder/decoder pair.
	Wrap func(conn net.Conn, tlsEnabled bool) Socket
}

var _ Connector = (*TCPConnector)(nil)

// NewTCPConnector returns a TCPConnector configured with the production
// exponential backoff (1s..300s) and the real gob/TCP socket wrapping.
func NewTCPConnector() *TCPConnector {
	return &TCPConnector{
		NewBackoff: func() retry.BackOff {
			return retry.NewExponentialBackoff(time.Second, 300*time.Second, 2.0)
		},
		Wrap: NewTCPSocket,
	}
}

func (c *TCPConnector) NewStream(conn net.Conn, tlsEnabled bool) Socket {
	return c.Wrap(conn, tlsEnabled)
}

func (c *TCPConnector) Connect(ctx context.Context, cfg config.RemotePartitionConfig, home lookup.Home, m *metrics.Controller, log *logger.Logger) (Socket, error) {
	backoff := c.NewBackoff()
	var sock Socket
	err := retry.Retry(ctx, backoff, func() error {
		m.IncConnectCount()
		conn, tlsEnabled, err := c.dial(ctx, cfg)
		if err != nil {
			m.IncConnectFailure()
			log.Warningf("connect to home %s (%s) failed: %v", home.RemoteID, cfg.HomeSPUEndpoint, err)
			return err
		}
		sock = c.NewStream(conn, tlsEnabled)
		return nil
	}, func(err error, delay time.Duration) {
		log.Infof("retrying connect to %s in %s: %v", cfg.HomeSPUEndpoint, delay, err)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return sock, nil
}

func (c *TCPConnector) dial(ctx context.Context, cfg config.RemotePartitionConfig) (net.Conn, bool, error) {
	dialer := &net.Dialer{Timeout: dialTimeout}
	if cfg.TLS != nil {
		conn, err := tls.DialWithDialer(dialer, "tcp", cfg.HomeSPUEndpoint, cfg.TLS)
		if err != nil {
			return nil, false, err
		}
		return conn, true, nil
	}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.HomeSPUEndpoint)
	if err != nil {
		return nil, false, err
	}
	return conn, false, nil
}
