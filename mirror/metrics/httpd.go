// Copyright 2024 The Fluvio Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// NewHandler returns an http.Handler exposing c's counters as JSON at
// GET /metrics and a trivial liveness check at GET /healthz. It is the
// long-lived, read-only observability surface this repository's CLI tools
// otherwise leave to log lines; julienschmidt/httprouter is used rather than
// net/http's own mux because this is the one place in the repository that
// benefits from a router at all, and it's already a dependency of the tree
// this was grown from.
func NewHandler(c *Controller) http.Handler {
	r := httprouter.New()
	r.GET("/metrics", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(c.Snapshot()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	r.GET("/healthz", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return r
}
