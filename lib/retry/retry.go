// Copyright 2018 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package retry

import (
	"context"
	"time"
)

// Notify is called with the error returned by the retried function and the
// delay that will be waited before the next attempt, whenever a retry is
// about to happen. It may be nil.
type Notify func(error, time.Duration)

// Retry calls f until it returns nil, ctx is canceled, or backoff signals
// Stop. It returns nil on success; otherwise it returns the last error
// returned by f, including when ctx is canceled or backoff signals Stop.
func Retry(ctx context.Context, backoff BackOff, f func() error, notify Notify) error {
	var err error
	for {
		if err = f(); err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return err
		default:
		}

		delay := backoff.Next()
		if delay == Stop {
			return err
		}

		if notify != nil {
			notify(err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
