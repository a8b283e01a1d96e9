// Copyright 2024 The Fluvio Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package connector

import (
	"net"

	"go.uber.org/multierr"

	"github.com/vaibhawvipul/fluvio/mirror/wire"
)

// tcpSocket is the production Socket: a net.Conn split into a gob-encoded
// Sink/Stream pair. When tlsEnabled is true the zero-copy path is
// unavailable, so the sink instead compresses FilePartitionSyncRequest
// payloads (see mirror/wire's codec).
type tcpSocket struct {
	conn       net.Conn
	sink       wire.Sink
	stream     wire.Stream
	tlsEnabled bool
}

// NewTCPSocket wraps conn, a dialed net.Conn, as a Socket.
func NewTCPSocket(conn net.Conn, tlsEnabled bool) Socket {
	return &tcpSocket{
		conn:       conn,
		sink:       wire.NewSink(conn, tlsEnabled),
		stream:     wire.NewStream(conn),
		tlsEnabled: tlsEnabled,
	}
}

func (s *tcpSocket) Sink() wire.Sink     { return s.sink }
func (s *tcpSocket) Stream() wire.Stream { return s.stream }
func (s *tcpSocket) TLS() bool           { return s.tlsEnabled }

func (s *tcpSocket) Close() error {
	return multierr.Combine(s.sink.Close(), s.conn.Close())
}
