// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

package decoder

// LengthDecoder computes the total length in words, header included,
// of the record starting at record[0]. Implementations must look only
// at as many leading words as the format requires; the intake layer
// calls LengthOf with just the header word. A return of 0 means the
// header is malformed.
type LengthDecoder interface {
	LengthOf(record []uint32) int
}

// Decoder extracts fields from records of one detector format.
type Decoder interface {
	LengthDecoder

	// Identity is the key naming the format this decoder handles, in
	// ORCA's "Model:Key" form.
	Identity() string

	// ParameterCount is the number of columns Parameter can extract.
	ParameterCount() int

	// ParameterName names column parameter. Out-of-range indices
	// return the empty string.
	ParameterName(parameter int) string

	// RowCount is the number of rows record contributes to a table.
	RowCount(record []uint32) int

	// Parameter extracts column parameter of row from record.
	// Out-of-range indices, or a record too short to hold the field,
	// yield 0.
	Parameter(record []uint32, parameter, row int) uint32
}
