// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

package decoder

const (
	shortFormFlag   = 0x80000000
	shortDataIDMask = 0xFC000000
	longDataIDMask  = 0xFFFC0000
	longLengthMask  = 0x0003FFFF
)

// MaxRecordWords is the largest length a long-form header can express.
const MaxRecordWords = longLengthMask

// Basic decodes the framing common to every ORCA record. Its zero
// value is ready to use.
type Basic struct{}

// IsShort reports whether record starts with a short-form header.
func (Basic) IsShort(record []uint32) bool {
	return len(record) > 0 && record[0]&shortFormFlag != 0
}

// LengthOf returns 1 for short-form records and the length field for
// long-form ones. An empty record yields 0.
func (b Basic) LengthOf(record []uint32) int {
	if len(record) == 0 {
		return 0
	}
	if b.IsShort(record) {
		return 1
	}
	return int(record[0] & longLengthMask)
}

// DataIDOf returns the data ID bits of the header, left in place (not
// shifted), which is how ORCA run headers list them.
func (b Basic) DataIDOf(record []uint32) uint32 {
	if len(record) == 0 {
		return 0
	}
	if b.IsShort(record) {
		return record[0] & shortDataIDMask
	}
	return record[0] & longDataIDMask
}
