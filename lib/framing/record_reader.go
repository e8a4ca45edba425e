// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/sjmeijer/orcaroot/lib/decoder"
)

var (
	// ErrUnrecognizedStream is returned when the first word of a
	// stream matches no known layout.
	ErrUnrecognizedStream = errors.New("framing: unrecognized stream version")

	// ErrZeroLengthRecord is returned when a header decodes to a
	// length of zero words. The stream cannot be resynchronized past
	// such a header.
	ErrZeroLengthRecord = errors.New("framing: zero-length record")
)

// Record is one framed record in host byte order.
type Record struct {
	// Words holds the whole record, header first. It is only valid
	// until the next call to Next.
	Words []uint32

	// DataID is the header's data ID bits, unshifted.
	DataID uint32

	// Short is true for a one-word short-form record.
	Short bool
}

// RecordReader splits a word stream into records. The first word
// classifies the stream; every later word is converted to host order
// with the same decision.
//
// Errors are sticky: once Next fails, it keeps returning the same
// error.
type RecordReader struct {
	source  io.Reader
	lengths decoder.LengthDecoder
	framer  Framer

	buffer []byte
	words  []uint32
	err    error
}

// NewRecordReader returns a reader framing records from source, using
// lengths to size each record. A nil lengths uses [decoder.Basic].
func NewRecordReader(source io.Reader, lengths decoder.LengthDecoder) *RecordReader {
	if lengths == nil {
		lengths = decoder.Basic{}
	}
	return &RecordReader{source: source, lengths: lengths}
}

// Version returns the stream's classification, once the first word
// has been read.
func (r *RecordReader) Version() (StreamVersion, bool) {
	return r.framer.Version()
}

// Next returns the next record. It returns io.EOF when the source ends
// cleanly on a record boundary and io.ErrUnexpectedEOF when it ends
// inside a record.
func (r *RecordReader) Next() (Record, error) {
	if r.err != nil {
		return Record{}, r.err
	}
	record, err := r.next()
	if err != nil {
		r.err = err
	}
	return record, err
}

func (r *RecordReader) next() (Record, error) {
	var head [4]byte
	if _, err := io.ReadFull(r.source, head[:]); err != nil {
		return Record{}, err
	}
	raw := binary.NativeEndian.Uint32(head[:])

	if version := r.framer.Observe(raw); version == Unrecognized {
		return Record{}, fmt.Errorf("%w: first word %#08x", ErrUnrecognizedStream, raw)
	}

	header := []uint32{raw}
	length := r.framer.RecordLengthWords(header, r.lengths)
	if length <= 0 {
		return Record{}, fmt.Errorf("%w: header %#08x", ErrZeroLengthRecord, header[0])
	}

	bodyBytes := (length - 1) * 4
	if cap(r.buffer) < bodyBytes {
		r.buffer = make([]byte, bodyBytes)
	}
	body := r.buffer[:bodyBytes]
	if _, err := io.ReadFull(r.source, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Record{}, fmt.Errorf("reading %d-word record body: %w", length, err)
	}

	if cap(r.words) < length {
		r.words = make([]uint32, length)
	}
	words := r.words[:length]
	words[0] = header[0]
	order := r.framer.ByteOrder()
	for i := 1; i < length; i++ {
		words[i] = order.Uint32(body[(i-1)*4:])
	}

	var basic decoder.Basic
	return Record{
		Words:  words,
		DataID: basic.DataIDOf(words),
		Short:  basic.IsShort(words),
	}, nil
}
