// Copyright 2024 The Fluvio Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package lookup resolves a home-cluster identifier to a Home descriptor via
// the local mirror registry. The registry itself — a shared, RWMutex-guarded
// map populated by SPU process supervision — lives outside this subsystem;
// this package only consumes it.
package lookup

// Home is an immutable descriptor of the destination cluster a replica
// mirrors records to.
type Home struct {
	ID          string
	RemoteID    string
	SPUEndpoint string
}

// Snapshot is a read-only view of the registry taken under its read lock.
// Callers must not retain it past the lookup that produced it if the
// registry implementation reuses storage; the in-memory MapRegistry does
// not, but the contract makes no such promise in general.
type Snapshot interface {
	// Get returns the Home entry for clusterID, if the registry has one
	// and its mirror_type variant is Home. A registry that has not yet
	// been populated, or that names a non-Home peer for clusterID, is
	// indistinguishable from the caller's point of view: both report
	// ok==false, and callers are expected to poll.
	Get(clusterID string) (home Home, ok bool)
}

// Registry is the local mirror registry contract. Implementations must hold
// their own lock only for the duration of Read, matching the "read guard
// whose clone outlives the guard" discipline used by this repository's other
// shared, concurrently-read state.
type Registry interface {
	Read() Snapshot
}

// Lookup resolves homeCluster against registry. It is the sole operation
// HomeLookup performs; the supervisor is responsible for retrying on a
// miss, since the registry may not yet be populated at process startup.
func Lookup(registry Registry, homeCluster string) (Home, bool) {
	return registry.Read().Get(homeCluster)
}
