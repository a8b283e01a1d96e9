// Copyright 2019 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package command holds small helpers shared by this repository's CLI
// entrypoints.
package command

import (
	"context"
	"os"
	"os/signal"
)

// CancelOnSignals returns a Context that is canceled when any of sigs is
// received, assuming those signals can be handled by the current process.
func CancelOnSignals(ctx context.Context, sigs ...os.Signal) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, sigs...)
	go func() {
		select {
		case s := <-signals:
			if s != nil {
				cancel()
				signal.Stop(signals)
			}
		case <-ctx.Done():
		}
	}()
	return ctx
}
