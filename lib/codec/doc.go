// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the project's CBOR encoding configuration.
//
// Status snapshots written by the stream tools are CBOR so that
// monitoring scripts get typed integers (word counts exceed what
// JSON numbers carry safely in every consumer) and so that the same
// snapshot always produces the same bytes. The encoder uses Core
// Deterministic Encoding (RFC 8949 §4.2): sorted map keys, smallest
// integer encoding, no indefinite-length items.
//
//	data, err := codec.Marshal(stats)
//	err = codec.Unmarshal(data, &stats)
//
// For files that other processes poll, WriteFile replaces the file
// atomically:
//
//	err := codec.WriteFile("/run/orcaroot/status.cbor", stats)
//
// Types serialized here carry `cbor` struct tags with snake_case
// names.
package codec
