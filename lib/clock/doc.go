// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// The sync loop waits out its retry backoff with Clock.After and the
// client stamps optimistic messages with Clock.Now. Tests drive both
// with a FakeClock:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go driver.Run(ctx)
//	fake.WaitForTimers(1)        // the loop is now sleeping
//	fake.Advance(time.Second)    // wake it deterministically
package clock
