// Copyright 2024 The Fluvio Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package sync

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vaibhawvipul/fluvio/lib/logger"
	"github.com/vaibhawvipul/fluvio/mirror/lookup"
	"github.com/vaibhawvipul/fluvio/mirror/memlog"
	"github.com/vaibhawvipul/fluvio/mirror/metrics"
	"github.com/vaibhawvipul/fluvio/mirror/replica"
	"github.com/vaibhawvipul/fluvio/mirror/wire"
)

// sentFrame records one outbound write on the capture sink, in write order.
// Exactly one of the two fields is set.
type sentFrame struct {
	start *wire.StartMirrorRequest
	sync  *wire.FilePartitionSyncRequest
}

type captureSink struct {
	sent chan sentFrame
}

func newCaptureSink() *captureSink {
	return &captureSink{sent: make(chan sentFrame, 64)}
}

func (s *captureSink) SendStartMirror(_ context.Context, req wire.StartMirrorRequest) error {
	s.sent <- sentFrame{start: &req}
	return nil
}

func (s *captureSink) SendFileSync(_ context.Context, req wire.FilePartitionSyncRequest) error {
	s.sent <- sentFrame{sync: &req}
	return nil
}

func (s *captureSink) Close() error { return nil }

type streamEvent struct {
	frame wire.Frame
	end   bool
	err   error
}

// scriptStream hands the session exactly the inbound events the test sends,
// blocking Next until the next event arrives. Sends from the test block
// until the session's frame pump consumes them, which makes the ordering of
// test steps deterministic.
type scriptStream struct {
	events chan streamEvent
}

func newScriptStream() *scriptStream {
	return &scriptStream{events: make(chan streamEvent)}
}

func (s *scriptStream) Next(ctx context.Context) (wire.Frame, bool, error) {
	select {
	case ev := <-s.events:
		return ev.frame, ev.end, ev.err
	case <-ctx.Done():
		return wire.Frame{}, false, ctx.Err()
	}
}

func (s *scriptStream) sendHomeLeo(leo replica.Offset) {
	s.events <- streamEvent{frame: wire.Frame{UpdateHomeOffset: &wire.UpdateHomeOffsetRequest{Leo: leo}}}
}

func (s *scriptStream) sendEnd() { s.events <- streamEvent{end: true} }

func (s *scriptStream) sendErr(err error) { s.events <- streamEvent{err: err} }

type fakeSocket struct {
	sink   *captureSink
	stream *scriptStream
}

func (s *fakeSocket) Sink() wire.Sink     { return s.sink }
func (s *fakeSocket) Stream() wire.Stream { return s.stream }
func (s *fakeSocket) TLS() bool           { return false }
func (s *fakeSocket) Close() error        { return nil }

func newTestSession(leader *memlog.Log) (*Session, *fakeSocket) {
	sock := &fakeSocket{sink: newCaptureSink(), stream: newScriptStream()}
	return &Session{
		Leader:    leader,
		Listener:  leader.OffsetListener(replica.ReadUncommitted),
		Sock:      sock,
		Home:      lookup.Home{ID: "home1", RemoteID: "edge1", SPUEndpoint: "home.example:9010"},
		Metrics:   metrics.New(),
		Log:       logger.NewLogger(logger.ErrorLevel, nil, nil, nil, ""),
		MaxBytes:  1 << 20,
		Isolation: replica.ReadUncommitted,
	}, sock
}

func startSession(s *Session) chan error {
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	return done
}

func awaitFrame(t *testing.T, sink *captureSink) sentFrame {
	t.Helper()
	select {
	case f := <-sink.sent:
		return f
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for an outbound frame")
		return sentFrame{}
	}
}

func awaitNoFrame(t *testing.T, sink *captureSink) {
	t.Helper()
	select {
	case f := <-sink.sent:
		t.Fatalf("unexpected outbound frame: %+v", f)
	case <-time.After(100 * time.Millisecond):
	}
}

func awaitDone(t *testing.T, done chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("session did not terminate")
		return nil
	}
}

func TestHandshakeSendsStartMirrorFirst(t *testing.T) {
	leader := memlog.New(replica.ReplicaKey{Topic: "events", Partition: 0})
	s, sock := newTestSession(leader)

	if err := s.Handshake(context.Background()); err != nil {
		t.Fatalf("Handshake() = %v", err)
	}

	f := awaitFrame(t, sock.sink)
	if f.start == nil {
		t.Fatalf("first outbound frame = %+v, want StartMirrorRequest", f)
	}
	want := wire.StartMirrorRequest{RemoteClusterID: "edge1", RemoteReplica: "events-0"}
	if diff := cmp.Diff(want, *f.start); diff != "" {
		t.Errorf("StartMirrorRequest diff (-want +got):\n%s", diff)
	}
}

func TestApplyHomeOffset(t *testing.T) {
	for _, tc := range []struct {
		name        string
		leaderLeo   int
		oldHomeLeo  replica.Offset
		reqLeo      replica.Offset
		wantNeeded  bool
		wantErr     bool
		wantHomeLeo replica.Offset
	}{
		{
			name:      "bootstrap behind",
			leaderLeo: 4, oldHomeLeo: replica.UnknownOffset, reqLeo: 2,
			wantNeeded: true, wantHomeLeo: 2,
		},
		{
			name:      "bootstrap caught up",
			leaderLeo: 4, oldHomeLeo: replica.UnknownOffset, reqLeo: 4,
			wantNeeded: false, wantHomeLeo: 4,
		},
		{
			name:      "behind",
			leaderLeo: 4, oldHomeLeo: 1, reqLeo: 2,
			wantNeeded: true, wantHomeLeo: 2,
		},
		{
			// The Equal branch does not persist the announced offset; only
			// the bootstrap and Less paths do.
			name:      "caught up keeps old value",
			leaderLeo: 4, oldHomeLeo: 2, reqLeo: 4,
			wantNeeded: false, wantHomeLeo: 2,
		},
		{
			name:      "home ahead of leader",
			leaderLeo: 4, oldHomeLeo: 3, reqLeo: 9,
			wantErr: true, wantHomeLeo: 3,
		},
		{
			// The bootstrap store happens before the comparison, so an
			// out-of-range announcement still lands in the gauge; the
			// connection is torn down right after, and a reconnect gets a
			// fresh announcement from home.
			name:      "home ahead at bootstrap",
			leaderLeo: 4, oldHomeLeo: replica.UnknownOffset, reqLeo: 9,
			wantErr: true, wantHomeLeo: 9,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			leader := memlog.New(replica.ReplicaKey{Topic: "events", Partition: 0})
			leader.Append(bytes.Repeat([]byte{'x'}, tc.leaderLeo))
			s, _ := newTestSession(leader)
			s.Metrics.SetHomeLeo(tc.oldHomeLeo)

			needed, err := s.applyHomeOffset(wire.UpdateHomeOffsetRequest{Leo: tc.reqLeo})
			if tc.wantErr {
				if !errors.Is(err, ErrHomeAheadOfLeader) {
					t.Fatalf("applyHomeOffset() error = %v, want ErrHomeAheadOfLeader", err)
				}
			} else if err != nil {
				t.Fatalf("applyHomeOffset() = %v", err)
			}
			if needed != tc.wantNeeded {
				t.Errorf("applyHomeOffset() needed = %t, want %t", needed, tc.wantNeeded)
			}
			if got := s.Metrics.HomeLeo(); got != tc.wantHomeLeo {
				t.Errorf("home leo after apply = %s, want %s", got, tc.wantHomeLeo)
			}
		})
	}
}

func TestBuildSyncPayload(t *testing.T) {
	newLeader := func(contents string) *memlog.Log {
		l := memlog.New(replica.ReplicaKey{Topic: "events", Partition: 1})
		l.Append([]byte(contents))
		return l
	}

	t.Run("caught up returns nothing", func(t *testing.T) {
		s, _ := newTestSession(newLeader("abcde"))
		req, err := s.buildSyncPayload(context.Background(), 5)
		if err != nil {
			t.Fatalf("buildSyncPayload() = %v", err)
		}
		if req != nil {
			t.Fatalf("buildSyncPayload() = %+v, want nil", req)
		}
	})

	t.Run("behind reads the missing range", func(t *testing.T) {
		s, _ := newTestSession(newLeader("abcdefg"))
		req, err := s.buildSyncPayload(context.Background(), 5)
		if err != nil {
			t.Fatalf("buildSyncPayload() = %v", err)
		}
		want := &wire.FilePartitionSyncRequest{Leo: 7, Hw: 7, Records: []byte("fg")}
		if diff := cmp.Diff(want, req); diff != "" {
			t.Errorf("payload diff (-want +got):\n%s", diff)
		}
	})

	t.Run("read is capped at max bytes", func(t *testing.T) {
		s, _ := newTestSession(newLeader("abcdefg"))
		s.MaxBytes = 3
		req, err := s.buildSyncPayload(context.Background(), 0)
		if err != nil {
			t.Fatalf("buildSyncPayload() = %v", err)
		}
		want := &wire.FilePartitionSyncRequest{Leo: 7, Hw: 7, Records: []byte("abc")}
		if diff := cmp.Diff(want, req); diff != "" {
			t.Errorf("payload diff (-want +got):\n%s", diff)
		}
	})

	t.Run("leader behind home is an error", func(t *testing.T) {
		s, _ := newTestSession(newLeader("abcd"))
		if _, err := s.buildSyncPayload(context.Background(), 9); err == nil {
			t.Fatalf("buildSyncPayload() = nil, want error")
		}
	})
}

func TestRunBootstrapCatchUp(t *testing.T) {
	leader := memlog.New(replica.ReplicaKey{Topic: "events", Partition: 0})
	leader.Append([]byte("ab"))
	s, sock := newTestSession(leader)
	done := startSession(s)

	sock.stream.sendHomeLeo(0)

	f := awaitFrame(t, sock.sink)
	if f.sync == nil {
		t.Fatalf("outbound frame = %+v, want FilePartitionSyncRequest", f)
	}
	want := wire.FilePartitionSyncRequest{
		ClientID: "leader: events-0",
		Leo:      2,
		Hw:       2,
		Records:  []byte("ab"),
	}
	if diff := cmp.Diff(want, *f.sync); diff != "" {
		t.Errorf("sync request diff (-want +got):\n%s", diff)
	}
	if got := s.Metrics.HomeLeo(); got != 0 {
		t.Errorf("home leo after bootstrap = %s, want 0", got)
	}

	// Home acknowledges the records by announcing the leader's own leo;
	// being caught up, no further sync is owed.
	sock.stream.sendHomeLeo(2)
	awaitNoFrame(t, sock.sink)

	sock.stream.sendEnd()
	if err := awaitDone(t, done); err != nil {
		t.Fatalf("Run() = %v, want nil on clean end-of-stream", err)
	}
}

func TestRunSteadyStateNoNewWrites(t *testing.T) {
	leader := memlog.New(replica.ReplicaKey{Topic: "events", Partition: 0})
	leader.Append([]byte("abcde"))
	s, sock := newTestSession(leader)
	done := startSession(s)

	sock.stream.sendHomeLeo(5)
	awaitNoFrame(t, sock.sink)
	if got := s.Metrics.HomeLeo(); got != 5 {
		t.Errorf("home leo = %s, want 5", got)
	}

	sock.stream.sendEnd()
	if err := awaitDone(t, done); err != nil {
		t.Fatalf("Run() = %v", err)
	}
}

func TestRunNewWriteWakesLoop(t *testing.T) {
	leader := memlog.New(replica.ReplicaKey{Topic: "events", Partition: 0})
	leader.Append([]byte("abcde"))
	s, sock := newTestSession(leader)
	done := startSession(s)

	// Catch up first so a known home leo is in hand and no sync is owed.
	sock.stream.sendHomeLeo(5)
	awaitNoFrame(t, sock.sink)

	// A local append wakes the offset listener; the loop coalesces that
	// into one sync carrying exactly the new range.
	leader.Append([]byte("fg"))

	f := awaitFrame(t, sock.sink)
	if f.sync == nil {
		t.Fatalf("outbound frame = %+v, want FilePartitionSyncRequest", f)
	}
	want := wire.FilePartitionSyncRequest{
		ClientID: "leader: events-0",
		Leo:      7,
		Hw:       7,
		Records:  []byte("fg"),
	}
	if diff := cmp.Diff(want, *f.sync); diff != "" {
		t.Errorf("sync request diff (-want +got):\n%s", diff)
	}

	sock.stream.sendEnd()
	if err := awaitDone(t, done); err != nil {
		t.Fatalf("Run() = %v", err)
	}
}

func TestRunHomeAheadClosesConnection(t *testing.T) {
	leader := memlog.New(replica.ReplicaKey{Topic: "events", Partition: 0})
	leader.Append([]byte("abcd"))
	s, sock := newTestSession(leader)
	done := startSession(s)

	sock.stream.sendHomeLeo(9)

	if err := awaitDone(t, done); !errors.Is(err, ErrHomeAheadOfLeader) {
		t.Fatalf("Run() = %v, want ErrHomeAheadOfLeader", err)
	}
	// No records may be sent on the way down.
	select {
	case f := <-sock.sink.sent:
		t.Fatalf("unexpected outbound frame after violation: %+v", f)
	default:
	}
}

func TestRunDecodeErrorSurfaces(t *testing.T) {
	leader := memlog.New(replica.ReplicaKey{Topic: "events", Partition: 0})
	s, sock := newTestSession(leader)
	done := startSession(s)

	decodeErr := errors.New("malformed frame")
	sock.stream.sendErr(decodeErr)

	if err := awaitDone(t, done); !errors.Is(err, decodeErr) {
		t.Fatalf("Run() = %v, want %v", err, decodeErr)
	}
}

func TestRunCountsLoopEvents(t *testing.T) {
	leader := memlog.New(replica.ReplicaKey{Topic: "events", Partition: 0})
	leader.Append([]byte("abc"))
	s, sock := newTestSession(leader)
	done := startSession(s)

	sock.stream.sendHomeLeo(3)
	awaitNoFrame(t, sock.sink)
	sock.stream.sendHomeLeo(3)
	awaitNoFrame(t, sock.sink)

	// Each processed event bumps the shared connect counter; that the
	// counter counts events rather than connects is long-standing behavior
	// external dashboards already depend on.
	if got := s.Metrics.ConnectCount(); got < 2 {
		t.Errorf("connect count after two events = %d, want >= 2", got)
	}

	sock.stream.sendEnd()
	if err := awaitDone(t, done); err != nil {
		t.Fatalf("Run() = %v", err)
	}
}
