// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

// Package ringbuffer implements the fixed-capacity word ring that sits
// between the socket intake goroutine and the record consumer.
//
// The ring stores 32-bit words exactly as they arrived on the wire
// (no byte swapping) in a byte slice, and counts everything in words.
// It serves exactly one producer and one consumer:
//
//   - The producer admits whole records. A record that does not fit in
//     the free space is rejected without touching the ring; the
//     producer charges its length to the loss counter with RecordLoss
//     and discards the bytes itself. Unread data is never overwritten.
//   - The consumer reads in bulk. When fewer words are buffered than
//     requested it sleeps one poll interval on the injected clock and
//     rechecks, until enough data arrives, the caller's minimum is
//     met, or the producer has stopped. A zero-word read means the
//     stream is over.
//
// Words lost since the previous successful read are logged at warning
// level on the next successful read and the pending counter is reset;
// the cumulative total stays available in Stats.
package ringbuffer
