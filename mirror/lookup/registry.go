// Copyright 2024 The Fluvio Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package lookup

import "sync"

// MapRegistry is an in-memory Registry backed by a map, guarded by an
// RWMutex held only for the duration of a single lookup or mutation — the
// same discipline the out-of-scope production registry uses. It is used by
// tests and by cmd/spumirrord's demo mode; production deployments back
// Registry with the real SPU-supervision-populated store.
type MapRegistry struct {
	mu      sync.RWMutex
	entries map[string]Home
}

// NewMapRegistry returns an empty MapRegistry.
func NewMapRegistry() *MapRegistry {
	return &MapRegistry{entries: make(map[string]Home)}
}

// Set inserts or replaces the Home entry for clusterID.
func (r *MapRegistry) Set(clusterID string, home Home) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[clusterID] = home
}

// Remove deletes the entry for clusterID, if any.
func (r *MapRegistry) Remove(clusterID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, clusterID)
}

// mapSnapshot is a point-in-time copy taken under the registry's read lock;
// the copy is what lets the guard be released before the caller inspects it.
type mapSnapshot struct {
	entries map[string]Home
}

func (s mapSnapshot) Get(clusterID string) (Home, bool) {
	h, ok := s.entries[clusterID]
	return h, ok
}

// Read returns a snapshot of the registry's current contents.
func (r *MapRegistry) Read() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := make(map[string]Home, len(r.entries))
	for k, v := range r.entries {
		clone[k] = v
	}
	return mapSnapshot{entries: clone}
}
