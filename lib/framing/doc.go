// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

// Package framing classifies ORCA data streams and splits them into
// records.
//
// ORCA writers have produced two incompatible stream layouts. Legacy
// writers always emitted big-endian words and opened the stream with a
// short-form record. Modern writers emit words in the writer's native
// order and open with a long-form header record whose data ID is 0.
// The first word of a connection is therefore enough to tell which
// layout is in use and whether words need byte-swapping on this host:
//
//	raw := binary.NativeEndian.Uint32(first4)
//	version := framing.ClassifyVersion(raw)
//
// A [Framer] caches the classification for the lifetime of a
// connection and applies it to later header words. A [RecordReader]
// does the same on the consumer side, over any io.Reader, yielding
// complete records in host byte order.
package framing
