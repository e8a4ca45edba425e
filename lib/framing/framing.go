// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

package framing

import (
	"encoding/binary"
	"math/bits"
	"sync"

	"github.com/sjmeijer/orcaroot/lib/decoder"
)

// StreamVersion identifies the layout of an ORCA data stream.
type StreamVersion uint8

const (
	// Unrecognized means the first word matched no known layout. A
	// stream in this state cannot be framed.
	Unrecognized StreamVersion = iota

	// Legacy streams are big-endian and open with a short-form record.
	Legacy

	// ModernNative streams open with a long-form header record whose
	// words are already in host order.
	ModernNative

	// ModernSwapped streams open with a long-form header record
	// written on a host of the opposite byte order.
	ModernSwapped
)

// String returns the lowercase name used in logs and status output.
func (v StreamVersion) String() string {
	switch v {
	case Legacy:
		return "legacy"
	case ModernNative:
		return "modern-native"
	case ModernSwapped:
		return "modern-swapped"
	default:
		return "unrecognized"
	}
}

// MarshalText lets versions appear by name in CBOR and YAML output.
func (v StreamVersion) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

const (
	longDataIDMask = 0xFFFC0000
	shortFormFlag  = 0x80000000
)

// hostBigEndian is true on big-endian hosts.
var hostBigEndian = binary.NativeEndian.Uint16([]byte{0x12, 0x34}) == 0x1234

// ClassifyVersion determines the stream layout from the first word of
// a stream, read in host byte order with no swapping applied. It is a
// pure function of raw.
func ClassifyVersion(raw uint32) StreamVersion {
	if isRunHeader(raw) {
		return ModernNative
	}
	if isRunHeader(bits.ReverseBytes32(raw)) {
		return ModernSwapped
	}
	bigEndian := raw
	if !hostBigEndian {
		bigEndian = bits.ReverseBytes32(raw)
	}
	if bigEndian&shortFormFlag != 0 {
		return Legacy
	}
	return Unrecognized
}

// isRunHeader reports whether word is a long-form header with data ID
// 0 and a nonzero length.
func isRunHeader(word uint32) bool {
	return word&longDataIDMask == 0 && word != 0
}

// mustSwap reports whether words of a version-v stream need
// byte-swapping on this host.
func mustSwap(v StreamVersion) bool {
	switch v {
	case ModernSwapped:
		return true
	case Legacy:
		return !hostBigEndian
	default:
		return false
	}
}

// Framer applies one connection's stream classification to header
// words. The version is fixed by the first call to Observe and kept
// for the framer's lifetime, so it survives producer restarts on the
// same connection. Safe for concurrent use.
type Framer struct {
	mu       sync.Mutex
	observed bool
	version  StreamVersion
}

// Observe classifies firstWordRaw if no version has been cached yet,
// and returns the cached version.
func (f *Framer) Observe(firstWordRaw uint32) StreamVersion {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.observed {
		f.version = ClassifyVersion(firstWordRaw)
		f.observed = true
	}
	return f.version
}

// Version returns the cached version and whether one has been
// observed.
func (f *Framer) Version() (StreamVersion, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version, f.observed
}

// MustSwap reports whether words of the observed stream must be
// byte-swapped before use. False until a version is observed.
func (f *Framer) MustSwap() bool {
	version, observed := f.Version()
	return observed && mustSwap(version)
}

// SwapIfNeeded converts a raw word to host order.
func (f *Framer) SwapIfNeeded(word uint32) uint32 {
	if f.MustSwap() {
		return bits.ReverseBytes32(word)
	}
	return word
}

// ByteOrder returns the byte order that decodes this stream's words
// directly from bytes.
func (f *Framer) ByteOrder() binary.ByteOrder {
	return byteOrder(f.MustSwap())
}

func byteOrder(swap bool) binary.ByteOrder {
	if swap == hostBigEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// RecordLengthWords converts the raw header words to host order in
// place and returns the record length lengths reports for them.
func (f *Framer) RecordLengthWords(header []uint32, lengths decoder.LengthDecoder) int {
	if f.MustSwap() {
		for i, word := range header {
			header[i] = bits.ReverseBytes32(word)
		}
	}
	return lengths.LengthOf(header)
}
