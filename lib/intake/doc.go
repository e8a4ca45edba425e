// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

// Package intake pulls ORCA data streams off a socket or a set of
// files and hands them to a consumer as a plain io.Reader of 32-bit
// words.
//
// A [SocketReader] runs one producer goroutine per connection. The
// producer waits for the socket to become readable, peeks the next
// record header, sizes the record with a [decoder.LengthDecoder], and
// then either receives the whole record straight into a
// [ringbuffer.Ring] or, when the ring has no room, discards the whole
// record from the socket and charges its length to the ring's loss
// counter. A slow consumer therefore loses whole records and never
// stalls the socket.
//
// The consumer calls Read (or ReadContext) from a single goroutine.
// Reads are served from a private staging buffer that is refilled from
// the ring in bulk, so the ring lock is taken once per refill rather
// than once per call. A Read that returns fewer bytes than requested
// also returns io.EOF; [SocketReader.OK] tells a clean end of stream
// from a failed connection.
//
// [FileReader] honours the same Read contract for recorded runs,
// reading plain, zstd (.zst) and LZ4 (.lz4) files in order.
//
//	conn, err := intake.Dial(ctx, "daq01:44666")
//	reader, err := intake.NewSocketReader(conn, intake.WithLogger(logger))
//	if err := reader.Start(); err != nil { ... }
//	defer reader.Close()
//	records := framing.NewRecordReader(reader, nil)
package intake
