// Copyright 2024 The Fluvio Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package sync drives one home connection's worth of the mirror protocol: a
// handshake followed by an event loop that reacts to two independent wakeup
// sources — the local leader's offset changing, and inbound frames from the
// home peer — and keeps the home cluster filled in with whatever records it
// is missing.
package sync

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vaibhawvipul/fluvio/lib/logger"
	"github.com/vaibhawvipul/fluvio/mirror/connector"
	"github.com/vaibhawvipul/fluvio/mirror/lookup"
	"github.com/vaibhawvipul/fluvio/mirror/metrics"
	"github.com/vaibhawvipul/fluvio/mirror/replica"
	"github.com/vaibhawvipul/fluvio/mirror/wire"
)

// ErrHomeAheadOfLeader is returned by applyHomeOffset, and treated as fatal
// by Run, when the home peer reports an end offset past the local leader's
// own — an invariant violation that should never occur between a correctly
// operating pair of peers.
var ErrHomeAheadOfLeader = errors.New("sync: home's leo is greater than leader's leo")

// Session drives one home connection's worth of the synchronization
// protocol. Callers construct a fresh Session per connection attempt, but
// Listener must be the same instance across reconnects: it is created once
// by the supervisor before the first connection and carried forward, so an
// offset change observed while a connection is down is not lost — a fresh
// listener would only wake on the next change after it was constructed.
type Session struct {
	Leader    replica.Leader
	Listener  replica.OffsetListener
	Sock      connector.Socket
	Home      lookup.Home
	Metrics   *metrics.Controller
	Log       *logger.Logger
	MaxBytes  int
	Isolation replica.Isolation
}

// Handshake sends the StartMirrorRequest that must precede all other traffic
// on a freshly connected socket.
func (s *Session) Handshake(ctx context.Context) error {
	req := wire.StartMirrorRequest{
		RemoteClusterID: s.Home.RemoteID,
		RemoteReplica:   s.Leader.ID().String(),
	}
	s.Log.Debugf("sending start mirror request: %+v", req)
	return s.Sock.Sink().SendStartMirror(ctx, req)
}

// Run executes the sync loop until the connection ends or fails. A clean
// end-of-stream from the home peer (Stream.Next reporting end==true) is
// reported as a nil error, matching the supervisor's "home closed the
// connection, go reconnect" contract; any other return is an error the
// supervisor should back off on.
func (s *Session) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames := make(chan wire.Frame)
	leaderChanged := make(chan struct{})

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return pumpFrames(gctx, s.Sock, frames) })
	g.Go(func() error { return pumpListener(gctx, s.Listener, leaderChanged) })

	loopErr := s.dispatch(runCtx, frames, leaderChanged)

	// Unblock the pumps before collecting their verdict: cancel their
	// context, and close the socket so a frame pump parked in a raw
	// conn.Read (which no context reaches) returns too. The supervisor's
	// own Close of the same socket afterwards is a harmless second close.
	cancel()
	s.Sock.Close()
	pumpErr := g.Wait()

	if loopErr != nil {
		return loopErr
	}
	// dispatch observes a decode failure only as a closed frame channel;
	// the error itself travels through the frame pump and surfaces here.
	if pumpErr != nil && !errors.Is(pumpErr, context.Canceled) {
		return pumpErr
	}
	return nil
}

// pumpFrames relays decoded inbound frames onto out, closing out when the
// stream ends or errors.
func pumpFrames(ctx context.Context, sock connector.Socket, out chan<- wire.Frame) error {
	defer close(out)
	for {
		frame, end, err := sock.Stream().Next(ctx)
		if err != nil {
			return err
		}
		if end {
			return nil
		}
		select {
		case out <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// pumpListener relays leader offset-change wakeups onto out.
func pumpListener(ctx context.Context, listener replica.OffsetListener, out chan<- struct{}) error {
	for {
		if err := listener.Listen(ctx); err != nil {
			return err
		}
		select {
		case out <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// dispatch is the main select loop: on each iteration it first pushes a
// pending home update (if one is owed and the home offset is known), then
// waits on whichever of the two event sources fires next. Every iteration
// of this loop — not just connection attempts — increments ConnectCount;
// the counter has always been shared between "tried to connect" and
// "processed one sync-loop event", and dashboards read it that way.
func (s *Session) dispatch(ctx context.Context, frames <-chan wire.Frame, leaderChanged <-chan struct{}) error {
	homeUpdateNeeded := false
	for {
		homeLeo := s.Metrics.HomeLeo()
		s.Log.Debugf("waiting for next event: home_leo=%s update_needed=%t", homeLeo, homeUpdateNeeded)

		if homeUpdateNeeded && homeLeo.Known() {
			if err := s.pushUpdate(ctx, homeLeo); err != nil {
				return err
			}
			homeUpdateNeeded = false
		}

		select {
		case <-leaderChanged:
			s.Log.Debugf("leader offset has changed, home cluster needs to be updated")
			homeUpdateNeeded = true

		case frame, ok := <-frames:
			if !ok {
				s.Log.Debugf("home has closed connection, terminating loop")
				return nil
			}
			s.Log.Debugf("received frame from home")
			if frame.UpdateHomeOffset != nil {
				needed, err := s.applyHomeOffset(*frame.UpdateHomeOffset)
				if err != nil {
					return err
				}
				homeUpdateNeeded = needed
			}

		case <-ctx.Done():
			return ctx.Err()
		}

		s.Metrics.IncConnectCount()
	}
}

// applyHomeOffset folds an UpdateHomeOffsetRequest into the controller's
// knowledge of the home peer's position. It returns true when the home peer
// is behind the leader and therefore needs a follow-up sync.
//
// Only the bootstrap path (home leo previously unknown) and the Less path
// persist a new value; the Equal branch deliberately does not store, so a
// caught-up announcement leaves the gauge at whatever the last
// records-owed announcement said.
func (s *Session) applyHomeOffset(req wire.UpdateHomeOffsetRequest) (bool, error) {
	leaderLeo := s.Leader.Leo()
	oldHomeLeo := s.Metrics.HomeLeo()
	newHomeLeo := req.Leo

	s.Log.Debugf("received update from home: leader_leo=%s old_home_leo=%s new_home_leo=%s", leaderLeo, oldHomeLeo, newHomeLeo)

	if !oldHomeLeo.Known() {
		s.Log.Debugf("updating home leo from uninitialized: %s", newHomeLeo)
		s.Metrics.SetHomeLeo(newHomeLeo)
	}

	switch {
	case newHomeLeo > leaderLeo:
		s.Log.Warningf("home has more records than leader, this should not happen: leader_leo=%s new_home_leo=%s", leaderLeo, newHomeLeo)
		return false, fmt.Errorf("%w: home's leo %s > leader's leo %s", ErrHomeAheadOfLeader, newHomeLeo, leaderLeo)

	case newHomeLeo < leaderLeo:
		s.Log.Debugf("home has less records, need to refresh home: new_home_leo=%s leader_leo=%s", newHomeLeo, leaderLeo)
		s.Metrics.SetHomeLeo(newHomeLeo)
		return true, nil

	default:
		s.Log.Debugf("home has same records, no need to refresh home: new_home_leo=%s", newHomeLeo)
		return false, nil
	}
}

// pushUpdate sends whatever home needs to catch up to homeLeo, if anything.
func (s *Session) pushUpdate(ctx context.Context, homeLeo replica.Offset) error {
	req, err := s.buildSyncPayload(ctx, homeLeo)
	if err != nil {
		return err
	}
	if req == nil {
		return nil
	}
	req.ClientID = fmt.Sprintf("leader: %s", s.Leader.ID())
	return s.Sock.Sink().SendFileSync(ctx, *req)
}

// buildSyncPayload computes the FilePartitionSyncRequest needed to bring
// home, currently at homeLeo, up to date with the local leader. It returns a
// nil request (and nil error) once home has fully caught up, and an error if
// home somehow has more records than the leader — a state this subsystem
// never expects to observe.
func (s *Session) buildSyncPayload(ctx context.Context, homeLeo replica.Offset) (*wire.FilePartitionSyncRequest, error) {
	end := s.Leader.EndOffsets()

	if end.Leo == homeLeo {
		s.Log.Debugf("home has caught up, just chilling out")
		return nil, nil
	}

	req := &wire.FilePartitionSyncRequest{Leo: end.Leo, Hw: end.Hw}

	if end.Leo < homeLeo {
		s.Log.Debugf("home has more records than leader, this should not happen: leo=%s home_leo=%s", end.Leo, homeLeo)
		return nil, fmt.Errorf("sync: leader has fewer records than home: leo=%s home_leo=%s", end.Leo, homeLeo)
	}

	result, err := s.Leader.ReadRecords(ctx, homeLeo, s.MaxBytes, s.Isolation)
	if err != nil {
		return nil, fmt.Errorf("reading records from %s: %w", homeLeo, err)
	}
	s.Log.Debugf("read records: leo=%s hw=%s replica=%s", result.End.Leo, result.End.Hw, s.Leader.ID())
	req.Records = result.Slice
	return req, nil
}
