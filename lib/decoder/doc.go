// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

// Package decoder defines the contract between framed ORCA records and
// the format-specific code that extracts fields from them.
//
// The intake layer depends only on [LengthDecoder]: it must know how
// many words a record spans before it can decide to admit or drop it.
// Everything else on [Decoder] (identity, parameter names, tabular
// extraction) is for consumers that turn records into rows.
//
// Decoders are pure functions over a record's words, already in host
// byte order. They hold no mutable state and do no I/O, so one value
// can serve any number of goroutines.
//
// ORCA records start with a header word in one of two forms:
//
//	long form  (bit 31 clear): data ID in bits 31..18, length in words in bits 17..0
//	short form (bit 31 set):   data ID in bits 31..26, payload in bits 25..0, length 1
//
// [Basic] implements that framing and is embedded by concrete
// decoders. A [Registry] maps identity strings (the model:key names
// ORCA writes into a run header, such as "ORKatrinFLTModel:KatrinFLT")
// to decoders, and data IDs to the decoder bound to them.
package decoder
