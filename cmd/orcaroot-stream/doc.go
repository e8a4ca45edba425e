// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

// orcaroot-stream reads an ORCA data stream, live from a DAQ socket or
// from recorded run files, and reports what it contains.
//
// A single host:port argument connects to the DAQ's data socket. The
// stream is buffered by an [intake.SocketReader] so a slow consumer
// drops whole records (and logs the loss) instead of stalling the
// DAQ. Any other arguments are files, read in order as one stream
// by an [intake.FileReader]; .zst and .lz4 files are decompressed on
// the fly.
//
// Records are framed with a [framing.RecordReader] and counted per
// data ID. Data IDs bound to a decoder (--bind, or decoders.bindings
// in the configuration file) are decoded and logged at debug
// verbosity.
//
// Configuration comes from --config, else the file named by
// ORCAROOT_CONFIG, else built-in defaults. Flags that are set override
// the file. With --status-file, a CBOR status snapshot is written
// when the stream ends. The exit status is 1 when the stream ended
// with the reader not OK: a protocol error, a truncated record, or a
// socket failure including the DAQ hanging up.
package main
