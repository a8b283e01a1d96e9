// Copyright 2024 The Fluvio Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package wire declares the message schemas exchanged between the remote
// mirror controller and its home peer, and the Sink/Stream contracts the
// sync protocol writes to and reads from. Framing, versioning, and transport
// multiplexing belong to the surrounding RPC system and are deliberately not
// specified here — only the request schemas and the ordering rules the
// caller must respect are.
package wire

import (
	"context"

	"github.com/vaibhawvipul/fluvio/mirror/replica"
)

// StartMirrorRequest is always the first outbound message on a freshly
// connected socket.
type StartMirrorRequest struct {
	RemoteClusterID string
	RemoteReplica   string
}

// UpdateHomeOffsetRequest is sent by the home peer to announce its current
// log-end-offset. It arrives at least once per connection, and periodically
// thereafter even once the two sides are caught up.
type UpdateHomeOffsetRequest struct {
	Leo replica.Offset
}

// FilePartitionSyncRequest carries a batch of records starting at the home's
// last known leo. An empty Records slice is legal when only Leo/Hw are being
// refreshed.
type FilePartitionSyncRequest struct {
	ClientID string
	Leo      replica.Offset
	Hw       replica.Offset
	Records  []byte
}

// Frame is whatever the home peer sent inbound on a connection. Exactly one
// of the typed fields is populated; end-of-stream is reported out of band by
// Stream.Next's end result, not as a Frame variant.
type Frame struct {
	UpdateHomeOffset *UpdateHomeOffsetRequest
}

// Sink is the single-writer outbound half of a mirror connection.
type Sink interface {
	// SendStartMirror writes req as the connection's first frame.
	SendStartMirror(ctx context.Context, req StartMirrorRequest) error

	// SendFileSync writes req. When the sink was built over a plain (non-TLS)
	// socket, implementations are expected to transmit req.Records via a
	// zero-copy file-slice path where possible; this interface does not
	// distinguish the two paths; that is a transport-layer concern.
	SendFileSync(ctx context.Context, req FilePartitionSyncRequest) error

	// Close releases the sink's resources. It does not close the
	// underlying socket, which may still be read from.
	Close() error
}

// Stream is the inbound half of a mirror connection.
type Stream interface {
	// Next blocks until the next inbound frame is decoded, the stream
	// ends, or ctx is done. end==true with err==nil signals a clean
	// end-of-stream; a non-nil err signals a decode failure and the
	// connection must be dropped.
	Next(ctx context.Context) (frame Frame, end bool, err error)
}
