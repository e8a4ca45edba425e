// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

package intake

import (
	"context"

	"github.com/sjmeijer/orcaroot/lib/ringbuffer"
)

// stagingDivisor sizes the staging buffer relative to the ring.
const stagingDivisor = 16

// staging is the consumer's private buffer between the ring and the
// caller. It is refilled from the ring in bulk and never touched by
// the producer.
type staging struct {
	buffer []byte
	filled int
	cursor int
}

func newStaging(ringWords int) staging {
	words := max(ringWords/stagingDivisor, 1)
	return staging{buffer: make([]byte, words*ringbuffer.WordSize)}
}

// read copies into p from the staging buffer, refilling it from ring
// as needed. Each refill asks the ring for a full staging buffer but
// settles for the words p still needs. A refill that yields nothing
// ends the read short.
func (s *staging) read(ctx context.Context, ring *ringbuffer.Ring, p []byte) int {
	copied := 0
	for copied < len(p) {
		if s.cursor == s.filled {
			needed := (len(p) - copied) / ringbuffer.WordSize
			words := ring.Read(ctx, s.buffer, needed)
			s.cursor = 0
			s.filled = words * ringbuffer.WordSize
			if words == 0 {
				break
			}
		}
		n := copy(p[copied:], s.buffer[s.cursor:s.filled])
		s.cursor += n
		copied += n
	}
	return copied
}
