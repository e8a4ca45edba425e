// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// The ring buffer's consumer side waits for data by sleeping one poll
// interval and rechecking, and the command-line tool reports intake
// status on a ticker. Both take a Clock so tests can drive time
// explicitly instead of sleeping:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	ring := ringbuffer.New(1024, ringbuffer.WithClock(fake))
//	go ring.Read(ctx, destination, 1)
//	fake.WaitForTimers(1)      // consumer is now sleeping
//	fake.Advance(time.Second)  // consumer rechecks
//
// Production code uses Real(), which defers to the time package.
package clock
