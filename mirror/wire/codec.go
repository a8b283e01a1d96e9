// Copyright 2024 The Fluvio Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package wire

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/s2"
)

// frameKind tags which request variant follows on the wire. The real
// framing, versioning and multiplexing belong to the surrounding RPC system
// (see the package doc); this is the minimal length-prefixed gob codec
// cmd/spumirrord and the test suite use to actually move bytes over a
// net.Conn.
type frameKind uint8

const (
	kindStartMirror frameKind = iota + 1
	kindUpdateHomeOffset
	kindFileSync
)

// gobSink is the single-writer outbound half of a connection. compress, when
// true, runs FilePartitionSyncRequest.Records through s2 before writing —
// the path taken once TLS has already forced a userspace copy, where the
// zero-copy file-slice transfer a plain socket would use is off the table.
type gobSink struct {
	mu       sync.Mutex
	w        *bufio.Writer
	compress bool
}

// NewSink wraps w as a Sink. compress selects whether FilePartitionSyncRequest
// payloads are s2-compressed before writing; callers pass the connection's
// TLS flag, since the zero-copy file-slice path available on a plain socket
// is strictly cheaper than compressing.
func NewSink(w io.Writer, compress bool) Sink {
	return &gobSink{w: bufio.NewWriter(w), compress: compress}
}

func (s *gobSink) writeFrame(kind frameKind, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var header [5]byte
	header[0] = byte(kind)
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))
	if _, err := s.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := s.w.Write(payload); err != nil {
		return err
	}
	return s.w.Flush()
}

func encodeGob(v interface{}) ([]byte, error) {
	var b bytes.Buffer
	if err := gob.NewEncoder(&b).Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (s *gobSink) SendStartMirror(_ context.Context, req StartMirrorRequest) error {
	payload, err := encodeGob(req)
	if err != nil {
		return fmt.Errorf("encoding StartMirrorRequest: %w", err)
	}
	return s.writeFrame(kindStartMirror, payload)
}

func (s *gobSink) SendFileSync(_ context.Context, req FilePartitionSyncRequest) error {
	if s.compress && len(req.Records) > 0 {
		req.Records = s2.Encode(nil, req.Records)
	}
	payload, err := encodeGob(req)
	if err != nil {
		return fmt.Errorf("encoding FilePartitionSyncRequest: %w", err)
	}
	return s.writeFrame(kindFileSync, payload)
}

func (s *gobSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Flush()
}

// gobStream is the inbound half of a connection.
type gobStream struct {
	r *bufio.Reader
}

// NewStream wraps r as a Stream, decoding the frames gobSink writes.
func NewStream(r io.Reader) Stream {
	return &gobStream{r: bufio.NewReader(r)}
}

// Next does not consult ctx: a read blocked on the underlying reader returns
// only when data arrives or the reader is closed.
func (s *gobStream) Next(_ context.Context) (Frame, bool, error) {
	var header [5]byte
	if _, err := io.ReadFull(s.r, header[:]); err != nil {
		if err == io.EOF {
			return Frame{}, true, nil
		}
		return Frame{}, false, err
	}
	kind := frameKind(header[0])
	length := binary.BigEndian.Uint32(header[1:])
	payload := make([]byte, length)
	if _, err := io.ReadFull(s.r, payload); err != nil {
		return Frame{}, false, err
	}

	switch kind {
	case kindUpdateHomeOffset:
		var req UpdateHomeOffsetRequest
		if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&req); err != nil {
			return Frame{}, false, fmt.Errorf("decoding UpdateHomeOffsetRequest: %w", err)
		}
		return Frame{UpdateHomeOffset: &req}, false, nil
	default:
		return Frame{}, false, fmt.Errorf("unrecognized frame kind %d", kind)
	}
}

// SendUpdateHomeOffset is a convenience for the home-side test double used
// by this repository's own tests; production home peers are out of scope.
func SendUpdateHomeOffset(w io.Writer, req UpdateHomeOffsetRequest) error {
	payload, err := encodeGob(req)
	if err != nil {
		return err
	}
	var header [5]byte
	header[0] = byte(kindUpdateHomeOffset)
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}
